// Package badges converts diarized non-host speakers into visitor badge
// records. Badge assembly is deterministic: no model calls, no I/O. The
// persisted set is replaced wholesale on every processing pass by the
// recordings repository.
package badges

import (
	"fmt"
	"strings"

	"github.com/xowlabs/expopulse/pkg/recordings"
)

// summaryTopicCount is how many leading topics feed the fallback summary.
const summaryTopicCount = 2

// Assembler builds visitor badges from diarization output.
type Assembler struct{}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble returns one badge per non-host speaker. Badge ids derive from
// the speaker label; two guests sharing a label within one recording will
// share a badge id, which is acceptable because badges are scoped to the
// recording. Times come from the speaker's absolute span, already bounded
// by the recording duration upstream.
func (a *Assembler) Assemble(recordingID string, speakers []*recordings.SpeakerSegment, scans []*recordings.BarcodeScan) []*recordings.VisitorBadge {
	badges := []*recordings.VisitorBadge{}
	for _, sp := range speakers {
		if sp.IsHost() {
			continue
		}
		start, end := sp.Span()
		badge := &recordings.VisitorBadge{
			BadgeID:        sp.Label,
			RecordingID:    recordingID,
			Label:          sp.Label,
			StartTime:      start,
			EndTime:        end,
			Summary:        summarize(sp),
			Topics:         orEmpty(sp.Topics),
			QuestionsAsked: orEmpty(sp.Questions),
			Sentiment:      sp.Sentiment,
			KeyPoints:      keyPoints(sp),
			BarcodeLinked:  isBarcodeLinked(sp.Label, scans),
			Company:        sp.Company,
			Title:          sp.Title,
		}
		badges = append(badges, badge)
	}
	return badges
}

// summarize prefers the summary the model supplied for the speaker and
// falls back to a deterministic join of the leading topics. No second model
// call is made here.
func summarize(sp *recordings.SpeakerSegment) string {
	if sp.Summary != "" {
		return sp.Summary
	}
	topics := sp.Topics
	if len(topics) > summaryTopicCount {
		topics = topics[:summaryTopicCount]
	}
	if len(topics) > 0 {
		return fmt.Sprintf("Discussed %s", strings.Join(topics, ", "))
	}
	return ""
}

// keyPoints collects the speaker's dialogue excerpts as reviewable points.
func keyPoints(sp *recordings.SpeakerSegment) []string {
	points := []string{}
	for _, line := range sp.Dialogue {
		if line.Text != "" {
			points = append(points, line.Text)
		}
	}
	return points
}

// isBarcodeLinked reports whether any scan's payload exactly equals the
// badge label. Fuzzy matching is deliberately avoided: a linked badge
// asserts identity, and a near-miss is worse than no link.
func isBarcodeLinked(label string, scans []*recordings.BarcodeScan) bool {
	for _, scan := range scans {
		if scan.BarcodeData == label {
			return true
		}
	}
	return false
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
