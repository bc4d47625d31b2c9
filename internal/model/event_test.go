package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCoordinate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		valid bool
		value float64
		desc  string
	}{
		{`"35.68"`, true, 35.68, "string value"},
		{`139.7`, true, 139.7, "numeric value"},
		{`"35.68°N"`, true, 35.68, "degree suffix"},
		{`""`, false, 0, "empty string is missing"},
		{`"0"`, false, 0, "zero string is missing"},
		{`0.0`, false, 0, "zero number is missing"},
		{`"abc"`, false, 0, "unparseable is missing"},
		{`null`, false, 0, "null is missing"},
		{`"-"`, false, 0, "dash placeholder is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var c Coordinate
			if err := json.Unmarshal([]byte(tt.input), &c); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.input, err)
			}
			if c.Valid() != tt.valid {
				t.Errorf("Valid() = %v, want %v", c.Valid(), tt.valid)
			}
			if c.Float() != tt.value {
				t.Errorf("Float() = %v, want %v", c.Float(), tt.value)
			}
		})
	}
}

func TestCoordinate_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Lat Coordinate `json:"lat"`
		Lon Coordinate `json:"lon"`
	}{Lat: NewCoordinate(10), Lon: Coordinate{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"lat":"10","lon":""}` {
		t.Errorf("unexpected JSON: %s", got)
	}
}

func TestEvent_Normalize_ClearsOutOfRange(t *testing.T) {
	e := Event{
		ID:        "X1",
		Title:     "Flood",
		Category:  "Flood",
		Latitude:  NewCoordinate(95),
		Longitude: NewCoordinate(-200),
	}.Normalize()

	if e.Latitude.Valid() || e.Longitude.Valid() {
		t.Errorf("expected out-of-range coordinates to be cleared, got %s/%s", e.Latitude, e.Longitude)
	}
}

func TestEvent_Normalize_SynthesizesID(t *testing.T) {
	e := Event{
		Title:          "  Wildfire near Athens ",
		Category:       "Fire in built environment",
		EventTime:      "2024-07-01T10:00:00Z",
		Latitude:       NewCoordinate(37.98),
		Longitude:      NewCoordinate(23.72),
		OriginProvider: "rsoe",
	}

	first := e.Normalize()
	second := e.Normalize()

	if first.ID == "" {
		t.Fatal("expected an id to be synthesised")
	}
	if first.ID != second.ID {
		t.Errorf("synthesised id not stable: %s vs %s", first.ID, second.ID)
	}
	if !strings.HasPrefix(first.ID, "RSOE_") {
		t.Errorf("expected provider namespace, got %s", first.ID)
	}
	if first.Title != "Wildfire near Athens" {
		t.Errorf("expected trimmed title, got %q", first.Title)
	}
}

func TestSynthesizeID_DefaultNamespace(t *testing.T) {
	id := SynthesizeID(Event{Title: "Something happened"})
	if !strings.HasPrefix(id, "EV_") {
		t.Errorf("expected EV_ namespace, got %s", id)
	}
	if len(id) != len("EV_")+12 {
		t.Errorf("unexpected id length: %s", id)
	}
}

func TestContentFingerprint_PunctuationAndCase(t *testing.T) {
	a := Event{
		Title:     "M5.8 Earthquake - Honshu, Japan",
		EventTime: "2024-03-01T04:12:00Z",
		Latitude:  NewCoordinate(35.6812),
		Longitude: NewCoordinate(139.7671),
	}
	b := Event{
		Title:     "m5.8 earthquake honshu japan!",
		EventTime: "2024-03-01 23:59:00",
		Latitude:  NewCoordinate(35.6849),
		Longitude: NewCoordinate(139.7704),
	}

	fa, fb := ContentFingerprint(a), ContentFingerprint(b)
	if fa == "" {
		t.Fatal("expected a fingerprint")
	}
	if fa != fb {
		t.Errorf("expected equal fingerprints:\n  %s\n  %s", fa, fb)
	}
}

func TestContentFingerprint_DifferentDay(t *testing.T) {
	a := Event{Title: "Flood in Kabul", EventTime: "2024-03-01"}
	b := Event{Title: "Flood in Kabul", EventTime: "2024-03-02"}
	if ContentFingerprint(a) == ContentFingerprint(b) {
		t.Error("expected different fingerprints for different days")
	}
}

func TestContentFingerprint_EmptyTitle(t *testing.T) {
	if fp := ContentFingerprint(Event{Title: "  ", EventTime: "2024-03-01"}); fp != "" {
		t.Errorf("expected no fingerprint, got %s", fp)
	}
}

func TestContentFingerprint_StopWordTitle(t *testing.T) {
	a := Event{Title: "Flood", EventTime: "2024-03-01"}
	b := Event{Title: " flood! ", EventTime: "2024-03-01T22:00:00Z"}
	fa := ContentFingerprint(a)
	if fa == "" {
		t.Fatal("stop-word title must still have a fingerprint")
	}
	if fa != ContentFingerprint(b) {
		t.Errorf("expected equal fingerprints, got %q and %q", fa, ContentFingerprint(b))
	}
	if fa == ContentFingerprint(Event{Title: "Earthquake", EventTime: "2024-03-01"}) {
		t.Error("different stop-word titles must not collide")
	}
}

func TestTitleTokens(t *testing.T) {
	got := TitleTokens("Flash Flood in the Kabul River valley, Afghanistan (update)")
	want := []string{"kabul", "river", "valley", "afghanistan", "update"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("TitleTokens = %v, want %v", got, want)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-01T00:00:00Z", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01T09:00:00+09:00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01T00:00:00.123456", time.Date(2024, 1, 1, 0, 0, 0, 123456000, time.UTC)},
		{"2024-01-01 12:30:00", time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)},
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"1704067200", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"yesterday", time.Time{}},
		{"", time.Time{}},
	}

	for _, tt := range tests {
		if got := ParseTime(tt.input); !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestEvent_Provider(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{ID: "RW_123", OriginProvider: "ReliefWeb"}, "reliefweb"},
		{Event{ID: "RW_123"}, ProviderReliefWeb},
		{Event{ID: "EMSC_abc"}, ProviderEMSC},
		{Event{ID: "98765"}, ProviderRSOE},
	}
	for _, tt := range tests {
		if got := tt.event.Provider(); got != tt.want {
			t.Errorf("Provider(%s) = %s, want %s", tt.event.ID, got, tt.want)
		}
	}
}

func TestCounts_Reconcile(t *testing.T) {
	c := Counts{
		LoadedFromArchive: 3,
		LoadedFromActive:  4,
		NewProvided:       5,
		Superseded:        2,
		ContentDuplicates: 1,
		ValidationErrors:  1,
		ActiveTotal:       4,
		ArchiveTotal:      4,
	}
	if c.Considered() != c.Accounted() {
		t.Errorf("Considered %d != Accounted %d", c.Considered(), c.Accounted())
	}
}
