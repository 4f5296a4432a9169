// Package correlate matches barcode-scan side-channel events to diarized
// segments using a tolerance window around each segment's span. The match
// deliberately favors recall over precision: one scan may land in several
// overlapping segments, and a segment may collect several scans, because
// the result feeds a human-reviewed badge rather than an automated action.
package correlate

import (
	"github.com/xowlabs/expopulse/pkg/recordings"
	"github.com/xowlabs/expopulse/pkg/timeline"
)

// DefaultTolerance is the ± window, in seconds, applied around a segment
// span when matching scan timestamps.
const DefaultTolerance = 5.0

// Correlator annotates segments with the barcode payloads scanned inside
// their tolerance-widened span.
type Correlator struct {
	tolerance float64
}

// NewCorrelator creates a Correlator. A non-positive tolerance falls back
// to DefaultTolerance.
func NewCorrelator(tolerance float64) *Correlator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Correlator{tolerance: tolerance}
}

// MatchSpan returns the payloads of every scan whose video timestamp falls
// within [start-tolerance, end+tolerance], boundaries inclusive. Scans
// without a timestamp cannot be correlated and are skipped.
func (c *Correlator) MatchSpan(span timeline.Span, scans []*recordings.BarcodeScan) []string {
	matched := []string{}
	for _, scan := range scans {
		if scan.VideoTimestamp == nil {
			continue
		}
		if span.Contains(*scan.VideoTimestamp, c.tolerance) {
			matched = append(matched, scan.BarcodeData)
		}
	}
	return matched
}

// MatchSpeaker returns the payloads scanned during a speaker's overall
// span. A speaker with no dialogue matches nothing.
func (c *Correlator) MatchSpeaker(sp *recordings.SpeakerSegment, scans []*recordings.BarcodeScan) []string {
	if len(sp.Dialogue) == 0 {
		return []string{}
	}
	start, end := sp.Span()
	return c.MatchSpan(timeline.Span{Start: start, End: end}, scans)
}

// AnnotateSegments fills each conversation segment's Barcodes list from
// the scans falling inside its window.
func (c *Correlator) AnnotateSegments(segments []*recordings.ConversationSegment, scans []*recordings.BarcodeScan) {
	for _, seg := range segments {
		seg.Barcodes = c.MatchSpan(timeline.Span{Start: seg.StartTime, End: seg.EndTime}, scans)
	}
}
