package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a decimal-degree value that may be missing.
// Zero, empty and unparseable inputs are all treated as missing.
type Coordinate struct {
	value float64
	ok    bool
}

// NewCoordinate returns a present coordinate, or a missing one for zero/NaN.
func NewCoordinate(v float64) Coordinate {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Coordinate{}
	}
	return Coordinate{value: v, ok: true}
}

// ParseCoordinate parses strings like "35.2", "35.2°N" or "-120.5 W".
func ParseCoordinate(s string) Coordinate {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "°NSEWnsew ")
	if s == "" || s == "-" {
		return Coordinate{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Coordinate{}
	}
	return NewCoordinate(v)
}

// Valid reports whether the coordinate is present.
func (c Coordinate) Valid() bool { return c.ok }

// Float returns the value; zero when missing.
func (c Coordinate) Float() float64 { return c.value }

// InRange reports whether a present coordinate lies within [-limit, limit].
// Missing coordinates are always in range.
func (c Coordinate) InRange(limit float64) bool {
	if !c.ok {
		return true
	}
	return c.value >= -limit && c.value <= limit
}

// String renders the shortest decimal form, or "" when missing.
func (c Coordinate) String() string {
	if !c.ok {
		return ""
	}
	return strconv.FormatFloat(c.value, 'f', -1, 64)
}

// MarshalJSON always writes a string, matching the historical store format.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts numbers, strings and null.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Coordinate{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ParseCoordinate(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		// unparseable values are missing, not fatal
		*c = Coordinate{}
		return nil
	}
	*c = NewCoordinate(v)
	return nil
}
