package model

import "strings"

// Event is one hazard occurrence as reported by one source at one point in time.
// Field names on disk match the dataset read by the map frontend.
type Event struct {
	ID               string     `json:"event_id"`
	Title            string     `json:"event_title"`
	Category         string     `json:"event_category"`
	OriginalCategory string     `json:"original_category,omitempty"`
	SourceName       string     `json:"source"`
	SourceURL        string     `json:"source_url,omitempty"`
	EventTime        string     `json:"event_date_utc"`
	LastUpdateTime   string     `json:"last_update_utc,omitempty"`
	Latitude         Coordinate `json:"latitude"`
	Longitude        Coordinate `json:"longitude"`
	AreaRange        string     `json:"area_range,omitempty"`
	Address          string     `json:"address"`
	Description      string     `json:"description,omitempty"`
	CollectedAt      string     `json:"crawled_at"`
	EventURL         string     `json:"event_url,omitempty"`
	OriginProvider   string     `json:"data_source,omitempty"`
}

// Origin tags where a record came from during one reconciliation run.
// It is carried next to the record and never persisted.
type Origin int

const (
	OriginIncoming Origin = iota
	OriginActive
	OriginArchive
)

func (o Origin) String() string {
	switch o {
	case OriginArchive:
		return "archive"
	case OriginActive:
		return "active"
	default:
		return "incoming"
	}
}

// Candidate is an event paired with its origin pool.
type Candidate struct {
	Event  Event
	Origin Origin
}

// HasLocation reports whether both coordinates are present.
func (e Event) HasLocation() bool {
	return e.Latitude.Valid() && e.Longitude.Valid()
}

// Normalize prepares a producer record for reconciliation: trims text fields,
// clears out-of-range coordinates and synthesises a missing id.
func (e Event) Normalize() Event {
	e.ID = strings.TrimSpace(e.ID)
	e.Title = strings.TrimSpace(e.Title)
	e.Category = strings.TrimSpace(e.Category)
	e.EventTime = strings.TrimSpace(e.EventTime)
	e.CollectedAt = strings.TrimSpace(e.CollectedAt)
	e.OriginProvider = strings.TrimSpace(e.OriginProvider)

	if !e.Latitude.InRange(90) {
		e.Latitude = Coordinate{}
	}
	if !e.Longitude.InRange(180) {
		e.Longitude = Coordinate{}
	}

	return e.EnsureID()
}

// EnsureID synthesises an id for a titled record that has none. Stored
// records go through EnsureID only, so their other fields stay as written.
func (e Event) EnsureID() Event {
	if strings.TrimSpace(e.ID) == "" && strings.TrimSpace(e.Title) != "" {
		e.ID = SynthesizeID(e)
	}
	return e
}
