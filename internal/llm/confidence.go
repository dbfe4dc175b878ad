package llm

import (
	"math"
	"strconv"
	"strings"
)

// Confidence is a 0-100 score read from model output. Models are loose
// about its form, so integral and fractional numbers, numeric strings
// ("85", "85%") and null all decode; the value is rounded to the nearest
// integer. A fraction strictly between 0 and 1 is taken as a 0-1 scale.
// Anything else decodes as 0 rather than failing the whole reply.
type Confidence int

// UnmarshalJSON implements [json.Unmarshaler].
func (c *Confidence) UnmarshalJSON(data []byte) error {
	*c = ParseConfidence(string(data))
	return nil
}

// ParseConfidence reads a confidence from a raw JSON value or a bare
// string. Unreadable input yields 0.
func ParseConfidence(raw string) Confidence {
	s := strings.TrimSpace(raw)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > 0 && f < 1 {
		f *= 100
	}
	return Confidence(math.Round(f))
}
