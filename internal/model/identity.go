package model

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	idTitlePrefix  = 50
	idDatePrefix   = 10
	idCoordPrefix  = 6
	fingerprintLen = 5
)

// stopWords are dropped from titles before fingerprinting. Providers prefix or
// suffix titles with the hazard type in different ways ("M5.1 earthquake - X",
// "Earthquake in X"), so hazard words carry no identity.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "at": true, "on": true,
	"near": true, "and": true, "to": true, "for": true, "from": true, "by": true,
	"m": true, "mw": true, "ml": true, "mb": true, "magnitude": true,
	"earthquake": true, "earthquakes": true, "quake": true, "seismic": true,
	"flood": true, "floods": true, "flooding": true, "flash": true,
	"fire": true, "fires": true, "wildfire": true, "wildfires": true, "forest": true,
	"landslide": true, "landslides": true, "mudslide": true,
	"volcano": true, "volcanic": true, "eruption": true,
	"explosion": true, "industrial": true, "war": true, "conflict": true,
	"pollution": true, "environment": true, "event": true, "alert": true,
}

// SynthesizeID derives a stable id for a record that arrived without one.
// The same title, date and coordinates always produce the same id.
func SynthesizeID(e Event) string {
	key := strings.Join([]string{
		prefixRunes(e.Title, idTitlePrefix),
		prefixRunes(e.EventTime, idDatePrefix),
		prefixRunes(e.Latitude.String(), idCoordPrefix),
		prefixRunes(e.Longitude.String(), idCoordPrefix),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return idNamespace(e.OriginProvider) + "_" + hex.EncodeToString(sum[:])[:12]
}

func idNamespace(provider string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(provider) {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "EV"
	}
	return b.String()
}

func prefixRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// Fingerprint is a coarse content key: two records with equal fingerprints
// describe the same real-world event even if their ids differ.
type Fingerprint string

// ContentFingerprint computes the fingerprint of e. A title made only of stop
// words falls back to its normalised words. It returns "" for records whose
// title has no letters or digits; those are never content-deduplicated.
func ContentFingerprint(e Event) Fingerprint {
	tokens := TitleTokens(e.Title)
	if len(tokens) == 0 {
		tokens = titleWords(e.Title)
	}
	if len(tokens) == 0 {
		return ""
	}

	day := "-"
	if t := e.OccurredTime(); !t.IsZero() {
		day = t.Format("2006-01-02")
	}

	return Fingerprint(strings.Join([]string{
		strings.Join(tokens, " "),
		day,
		roundCoord(e.Latitude),
		roundCoord(e.Longitude),
	}, "|"))
}

// TitleTokens lower-cases the title, strips punctuation, removes stop words
// and keeps the first few significant tokens.
func TitleTokens(title string) []string {
	var tokens []string
	for _, tok := range normalizedWords(title) {
		if stopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
		if len(tokens) == fingerprintLen {
			break
		}
	}
	return tokens
}

func titleWords(title string) []string {
	words := normalizedWords(title)
	if len(words) > fingerprintLen {
		words = words[:fingerprintLen]
	}
	return words
}

func normalizedWords(title string) []string {
	return strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title))
}

// roundCoord buckets a coordinate to two decimals (~1 km).
func roundCoord(c Coordinate) string {
	if !c.Valid() {
		return "~"
	}
	v := math.Round(c.Float()*100) / 100
	if v == 0 {
		v = 0 // normalise -0
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
