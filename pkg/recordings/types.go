// Package recordings defines the expopulse data model and its Postgres
// repository: recordings, barcode scans, diarized speaker segments, and
// per-visitor badges.
package recordings

import (
	"time"
)

// RoleKind distinguishes the booth-staff speaker from visitors.
type RoleKind string

const (
	// RoleHost marks the booth-staff speaker. At most one per recording.
	RoleHost RoleKind = "host"

	// RoleGuest marks a visitor speaker.
	RoleGuest RoleKind = "guest"
)

// LabelSource records how a speaker label was resolved, in priority order:
// a self-stated name beats a nearby barcode scan beats the generic fallback.
type LabelSource string

const (
	LabelSourceName    LabelSource = "name_mentioned"
	LabelSourceBarcode LabelSource = "barcode_scan"
	LabelSourceAuto    LabelSource = "auto_generated"
)

// Recording is one booth recording session. Owned by the pipeline once
// created; mutated only by pipeline stages and terminal CRUD operations.
type Recording struct {
	ID               string     `json:"id"`
	DeviceID         string     `json:"device_id"`
	Expo             string     `json:"expo"`
	Booth            string     `json:"booth"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Duration         float64    `json:"duration"` // seconds, end - start
	Status           Status     `json:"status"`
	Transcript       string     `json:"transcript,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	OverallSummary   string     `json:"overall_summary,omitempty"`
	TopTopics        []string   `json:"top_topics,omitempty"`
	TopQuestions     []string   `json:"top_questions,omitempty"`
	OverallSentiment string     `json:"overall_sentiment,omitempty"`
	HostIdentified   bool       `json:"host_identified"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BarcodeScan is a side-channel event captured at the booth. Append-only
// per recording; never mutated after creation.
type BarcodeScan struct {
	ID          int64     `json:"id"`
	RecordingID string    `json:"recording_id"`
	BarcodeData string    `json:"barcode_data"`
	VisitorName string    `json:"visitor_name,omitempty"`
	// VideoTimestamp is seconds relative to video start; nil when the scan
	// happened before recording began.
	VideoTimestamp *float64  `json:"video_timestamp,omitempty"`
	CapturedAt     time.Time `json:"captured_at"`
}

// DialogueLine is one excerpt of a speaker's dialogue, anchored both as a
// percentage of the recording and in absolute seconds.
type DialogueLine struct {
	Text         string  `json:"text"`
	StartPercent float64 `json:"start_percent"`
	EndPercent   float64 `json:"end_percent"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
}

// SpeakerSegment is one diarized speaker within a recording.
type SpeakerSegment struct {
	ID            int64          `json:"id"`
	RecordingID   string         `json:"recording_id"`
	Role          RoleKind       `json:"role"`
	Label         string         `json:"label"`
	LabelSource   LabelSource    `json:"label_source"`
	Company       string         `json:"company,omitempty"`
	Title         string         `json:"title,omitempty"`
	Dialogue      []DialogueLine `json:"dialogue"`
	Summary       string         `json:"summary,omitempty"`
	Topics        []string       `json:"topics"`
	Questions     []string       `json:"questions"`
	Sentiment     string         `json:"sentiment"`
	SpeakingShare float64        `json:"speaking_share"` // percent of total speaking time
}

// IsHost reports whether this segment belongs to the booth-staff speaker.
func (s *SpeakerSegment) IsHost() bool {
	return s.Role == RoleHost
}

// Span returns the speaker's overall absolute time range, computed from
// the first and last dialogue lines. Returns zeros when there is no dialogue.
func (s *SpeakerSegment) Span() (start, end float64) {
	if len(s.Dialogue) == 0 {
		return 0, 0
	}
	start = s.Dialogue[0].StartTime
	end = s.Dialogue[0].EndTime
	for _, d := range s.Dialogue[1:] {
		if d.StartTime < start {
			start = d.StartTime
		}
		if d.EndTime > end {
			end = d.EndTime
		}
	}
	return start, end
}

// VisitorBadge is the persisted per-visitor interaction summary. One per
// non-host speaker per recording; a reprocessing pass replaces the full set.
type VisitorBadge struct {
	ID             int64     `json:"id"`
	BadgeID        string    `json:"badge_id"` // derived from the speaker label
	RecordingID    string    `json:"recording_id"`
	Label          string    `json:"label"`
	StartTime      float64   `json:"start_time"`
	EndTime        float64   `json:"end_time"`
	Summary        string    `json:"summary"`
	Topics         []string  `json:"topics"`
	QuestionsAsked []string  `json:"questions_asked"`
	Sentiment      string    `json:"sentiment"`
	KeyPoints      []string  `json:"key_points"`
	BarcodeLinked  bool      `json:"is_barcode_linked"`
	Company        string    `json:"company,omitempty"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationSegment is the optional topic-based decomposition kept for
// backward-compatible consumers. Not authoritative for visitor attribution.
type ConversationSegment struct {
	Topic     string   `json:"topic"`
	StartTime float64  `json:"start_time"`
	EndTime   float64  `json:"end_time"`
	Summary   string   `json:"summary"`
	Barcodes  []string `json:"barcodes,omitempty"`
}
