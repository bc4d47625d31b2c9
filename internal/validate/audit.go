package validate

import (
	"errors"

	"github.com/ppiankov/hazardlog/internal/model"
)

// Audit summarises the health of a stored dataset without changing it.
type Audit struct {
	Total         int               `json:"total"`
	Valid         int               `json:"valid"`
	Invalid       int               `json:"invalid"`
	ByRule        map[string]int    `json:"by_rule"`
	DuplicateIDs  int               `json:"duplicate_ids"`
	Duplicates    int               `json:"content_duplicates"`
	Unsorted      bool              `json:"unsorted"`
	MissingCoords int               `json:"missing_coordinates"`
	Categories    map[string]int    `json:"categories"`
	Providers     map[string]int    `json:"providers"`
	Rejections    []model.Rejection `json:"rejections,omitempty"`
}

// Healthy reports whether a store satisfies every dataset invariant.
func (a Audit) Healthy() bool {
	return a.Invalid == 0 && a.DuplicateIDs == 0 && a.Duplicates == 0 && !a.Unsorted
}

// AuditEvents checks every record against the chain and the dataset-level
// invariants: unique ids, unique fingerprints and collectedAt descending order.
func (v *Validator) AuditEvents(events []model.Event) Audit {
	a := Audit{
		Total:  len(events),
		ByRule: make(map[string]int),
	}

	seenIDs := make(map[string]bool)
	seenPrints := make(map[model.Fingerprint]bool)
	for i, e := range events {
		if i > 0 && events[i-1].CollectedTime().Before(e.CollectedTime()) {
			a.Unsorted = true
		}
		if !e.HasLocation() {
			a.MissingCoords++
		}

		if err := v.Check(e); err != nil {
			a.Invalid++
			var ruleErr *RuleError
			if errors.As(err, &ruleErr) {
				a.ByRule[ruleErr.Rule]++
			}
			a.Rejections = append(a.Rejections, model.NewRejection(e, model.StageValidation, err.Error()))
			continue
		}
		a.Valid++

		if seenIDs[e.ID] {
			a.DuplicateIDs++
		}
		seenIDs[e.ID] = true

		if fp := model.ContentFingerprint(e); fp != "" {
			if seenPrints[fp] {
				a.Duplicates++
			}
			seenPrints[fp] = true
		}
	}

	a.Categories, a.Providers = Tally(events)
	return a
}
