package model

import (
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTime parses timestamps in the formats producers actually emit.
// Values without a zone are taken as UTC. Failure yields the zero time, which
// ranks as the oldest possible instant.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	// epoch seconds
	if len(s) >= 9 && len(s) <= 11 {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
			return time.Unix(sec, 0).UTC()
		}
	}
	return time.Time{}
}

// FormatTime renders t the way the engine stamps collectedAt.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// CollectedTime returns the parsed collectedAt; zero when missing or invalid.
func (e Event) CollectedTime() time.Time {
	return ParseTime(e.CollectedAt)
}

// OccurredTime returns the parsed eventTime; zero when missing or invalid.
func (e Event) OccurredTime() time.Time {
	return ParseTime(e.EventTime)
}
