package collect

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/hazardlog/internal/model"
)

// DecodeBatch parses a collector export. Both a bare JSON array and an object
// wrapping the array under "events" are accepted. Text fields are reduced to
// plain text and records without data_source are attributed to provider.
func DecodeBatch(data []byte, provider string) ([]model.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var events []model.Event
	if data[0] == '{' {
		var wrapped struct {
			Events []model.Event `json:"events"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
		events = wrapped.Events
	} else if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	for i := range events {
		events[i].Title = PlainText(events[i].Title)
		events[i].Description = PlainText(events[i].Description)
		events[i].Address = PlainText(events[i].Address)
		if events[i].OriginProvider == "" {
			events[i].OriginProvider = provider
		}
	}
	return events, nil
}
