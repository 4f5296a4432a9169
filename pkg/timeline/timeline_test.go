package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToAbsolute(t *testing.T) {
	tests := []struct {
		name     string
		percent  float64
		duration float64
		want     float64
	}{
		{"zero percent", 0, 60, 0},
		{"full percent", 100, 60, 60},
		{"half", 50, 60, 30},
		{"quarter of long recording", 25, 3600, 900},
		{"negative percent clamped", -10, 60, 0},
		{"over 100 clamped", 150, 60, 60},
		{"zero duration", 50, 0, 0},
		{"negative duration", 50, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ToAbsolute(tt.percent, tt.duration), 1e-9)
		})
	}
}

func TestToAbsolute_Bounds(t *testing.T) {
	// Any percentage, clamped or not, must land inside [0, duration].
	durations := []float64{1, 30, 60, 3600}
	percents := []float64{-50, 0, 0.5, 33.3, 99.9, 100, 250}

	for _, d := range durations {
		for _, p := range percents {
			got := ToAbsolute(p, d)
			assert.GreaterOrEqual(t, got, 0.0, "percent=%v duration=%v", p, d)
			assert.LessOrEqual(t, got, d, "percent=%v duration=%v", p, d)
		}
	}
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0.0, ClampPercent(-1))
	assert.Equal(t, 100.0, ClampPercent(101))
	assert.Equal(t, 42.5, ClampPercent(42.5))
}

func TestSpanFromPercent(t *testing.T) {
	s := SpanFromPercent(10, 50, 120)
	assert.InDelta(t, 12, s.Start, 1e-9)
	assert.InDelta(t, 60, s.End, 1e-9)
}

func TestSpanFromPercent_InvertedBounds(t *testing.T) {
	// Model occasionally reports start after end; span is normalized.
	s := SpanFromPercent(80, 20, 100)
	assert.InDelta(t, 20, s.Start, 1e-9)
	assert.InDelta(t, 80, s.End, 1e-9)
}

func TestSpanContains(t *testing.T) {
	tests := []struct {
		name      string
		span      Span
		t         float64
		tolerance float64
		want      bool
	}{
		{"inside", Span{Start: 10, End: 20}, 15, 5, true},
		{"boundary with tolerance", Span{Start: 10, End: 20}, 25, 5, true},
		{"just outside tolerance", Span{Start: 10, End: 20}, 25.1, 5, false},
		{"before with tolerance", Span{Start: 10, End: 20}, 5, 5, true},
		{"scan at 20 matches [10,20]", Span{Start: 10, End: 20}, 20, 5, true},
		{"scan at 20 misses [0,5]", Span{Start: 0, End: 5}, 20, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.span.Contains(tt.t, tt.tolerance))
		})
	}
}
