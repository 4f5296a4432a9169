// Package timeline converts between percentage-of-duration anchors and
// absolute seconds. Model-reported spans are always percentages; the
// recording duration is the system's ground truth, so every absolute
// time in the pipeline routes through ToAbsolute.
package timeline

// ClampPercent bounds a percentage to [0, 100].
func ClampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// ToAbsolute converts a percentage anchor to absolute seconds within a
// recording of the given duration. Percentages outside [0, 100] are
// clamped before conversion. A zero duration yields zero.
func ToAbsolute(percent, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return ClampPercent(percent) / 100 * duration
}

// Span is a time range in absolute seconds.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SpanFromPercent converts a percentage span to an absolute Span. If the
// converted bounds are inverted they are swapped so Start <= End always
// holds.
func SpanFromPercent(startPercent, endPercent, duration float64) Span {
	s := Span{
		Start: ToAbsolute(startPercent, duration),
		End:   ToAbsolute(endPercent, duration),
	}
	if s.Start > s.End {
		s.Start, s.End = s.End, s.Start
	}
	return s
}

// Contains reports whether t falls within the span widened by tolerance
// seconds on both sides. Boundaries are inclusive.
func (s Span) Contains(t, tolerance float64) bool {
	return t >= s.Start-tolerance && t <= s.End+tolerance
}
