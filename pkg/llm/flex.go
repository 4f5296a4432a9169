package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexFloat64 is a float64 that can unmarshal from both JSON numbers and
// strings. Models frequently return numeric fields as quoted strings
// (e.g., "42.5" instead of 42.5, or "25%" with a unit suffix).
type FlexFloat64 float64

func (f *FlexFloat64) UnmarshalJSON(data []byte) error {
	// Try number first
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat64(n)
		return nil
	}
	// Try string, tolerating a trailing percent sign
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("FlexFloat64: cannot parse %q as float64: %w", s, err)
		}
		*f = FlexFloat64(n)
		return nil
	}
	return fmt.Errorf("FlexFloat64: cannot unmarshal %s", string(data))
}

func (f FlexFloat64) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

func (f FlexFloat64) Float64() float64 {
	return float64(f)
}
