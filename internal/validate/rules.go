package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/hazardlog/internal/model"
)

// Rule is one structural check applied to a record.
type Rule struct {
	Name  string
	Check func(model.Event) error
}

var (
	ErrMissingID       = errors.New("missing id")
	ErrMissingTitle    = errors.New("missing title")
	ErrMissingCategory = errors.New("missing category")
	ErrLatitudeRange   = errors.New("latitude out of range")
	ErrLongitudeRange  = errors.New("longitude out of range")
)

// RequireID rejects records without an id.
var RequireID = Rule{Name: "id", Check: func(e model.Event) error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrMissingID
	}
	return nil
}}

// RequireTitle rejects records without a title.
var RequireTitle = Rule{Name: "title", Check: func(e model.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrMissingTitle
	}
	return nil
}}

// RequireCategory rejects records without a category.
var RequireCategory = Rule{Name: "category", Check: func(e model.Event) error {
	if strings.TrimSpace(e.Category) == "" {
		return ErrMissingCategory
	}
	return nil
}}

// CoordinatesInRange rejects present coordinates outside the valid range.
var CoordinatesInRange = Rule{Name: "coordinates", Check: func(e model.Event) error {
	if !e.Latitude.InRange(90) {
		return fmt.Errorf("%w: %s", ErrLatitudeRange, e.Latitude)
	}
	if !e.Longitude.InRange(180) {
		return fmt.Errorf("%w: %s", ErrLongitudeRange, e.Longitude)
	}
	return nil
}}

// Validator runs a chain of rules; the first failing rule rejects the record.
type Validator struct {
	rules []Rule
}

// New creates a validator from rules, applied in order.
func New(rules ...Rule) *Validator {
	return &Validator{rules: rules}
}

// Required checks the fields every stored record must carry.
func Required() *Validator {
	return New(RequireID, RequireTitle, RequireCategory)
}

// Default is the full chain applied to the final Active set.
func Default() *Validator {
	return New(RequireID, RequireTitle, RequireCategory, CoordinatesInRange)
}

// RuleError names the rule that rejected a record.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return e.Rule + ": " + e.Err.Error()
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Check returns nil when e passes every rule.
func (v *Validator) Check(e model.Event) error {
	for _, r := range v.rules {
		if err := r.Check(e); err != nil {
			return &RuleError{Rule: r.Name, Err: err}
		}
	}
	return nil
}

// Filter splits events into those passing the chain and rejections.
func (v *Validator) Filter(events []model.Event) ([]model.Event, []model.Rejection) {
	valid := make([]model.Event, 0, len(events))
	var rejected []model.Rejection
	for _, e := range events {
		if err := v.Check(e); err != nil {
			rejected = append(rejected, model.NewRejection(e, model.StageValidation, err.Error()))
			continue
		}
		valid = append(valid, e)
	}
	return valid, rejected
}

// Tally counts events by category and by provider.
func Tally(events []model.Event) (categories, providers map[string]int) {
	categories = make(map[string]int)
	providers = make(map[string]int)
	for _, e := range events {
		categories[e.Category]++
		providers[e.Provider()]++
	}
	return categories, providers
}
