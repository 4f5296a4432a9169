// Package insights aggregates recordings and visitor badges into the
// cross-recording dashboard view. Aggregation is a pure function over rows
// already in memory: the service batch-fetches everything it needs up
// front and never issues per-badge queries.
package insights

import (
	"sort"

	"github.com/xowlabs/expopulse/pkg/recordings"
)

const (
	topTopicsLimit    = 10
	topQuestionsLimit = 5
	recentLimit       = 5
)

// Dashboard is the aggregated cross-recording view.
type Dashboard struct {
	TotalRecordings    int                     `json:"total_recordings"`
	TotalVisitors      int                     `json:"total_visitors"`
	TotalDurationHours float64                 `json:"total_duration_hours"`
	TopTopics          []string                `json:"top_topics"`
	TopQuestions       []string                `json:"top_questions"`
	RecentActivity     []*recordings.Recording `json:"recent_activity"`
}

// Aggregate rolls recordings and their badges up into a Dashboard. It is
// deterministic and idempotent: the same input always yields the same
// output. Topics and questions are ranked by descending frequency, ties
// broken by first appearance across the input.
func Aggregate(recs []*recordings.Recording, badgesByRecording map[string][]*recordings.VisitorBadge) *Dashboard {
	d := &Dashboard{
		TopTopics:      []string{},
		TopQuestions:   []string{},
		RecentActivity: []*recordings.Recording{},
	}
	d.TotalRecordings = len(recs)

	topics := newFrequencyCounter()
	questions := newFrequencyCounter()

	var totalSeconds float64
	for _, rec := range recs {
		totalSeconds += rec.Duration
		for _, tp := range rec.TopTopics {
			topics.Add(tp)
		}
		for _, q := range rec.TopQuestions {
			questions.Add(q)
		}
		for _, badge := range badgesByRecording[rec.ID] {
			d.TotalVisitors++
			for _, tp := range badge.Topics {
				topics.Add(tp)
			}
			for _, q := range badge.QuestionsAsked {
				questions.Add(q)
			}
		}
	}
	d.TotalDurationHours = totalSeconds / 3600

	d.TopTopics = topics.Top(topTopicsLimit)
	d.TopQuestions = questions.Top(topQuestionsLimit)
	d.RecentActivity = mostRecent(recs, recentLimit)

	return d
}

// frequencyCounter ranks strings by count with first-seen tie-breaking.
type frequencyCounter struct {
	counts map[string]int
	order  map[string]int
	next   int
}

func newFrequencyCounter() *frequencyCounter {
	return &frequencyCounter{
		counts: make(map[string]int),
		order:  make(map[string]int),
	}
}

func (f *frequencyCounter) Add(s string) {
	if s == "" {
		return
	}
	if _, seen := f.counts[s]; !seen {
		f.order[s] = f.next
		f.next++
	}
	f.counts[s]++
}

// Top returns up to n entries sorted by descending count, then first-seen.
func (f *frequencyCounter) Top(n int) []string {
	keys := make([]string, 0, len(f.counts))
	for k := range f.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if f.counts[keys[i]] != f.counts[keys[j]] {
			return f.counts[keys[i]] > f.counts[keys[j]]
		}
		return f.order[keys[i]] < f.order[keys[j]]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// mostRecent returns up to n recordings ordered by start time descending.
// The input slice is not mutated.
func mostRecent(recs []*recordings.Recording, n int) []*recordings.Recording {
	sorted := make([]*recordings.Recording, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
