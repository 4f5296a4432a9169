package diarize

import (
	"fmt"
	"strings"

	"github.com/xowlabs/expopulse/pkg/llm"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

// diarizationPayload is the raw model response. Numeric fields use
// FlexFloat64 because models frequently quote numbers as strings.
type diarizationPayload struct {
	Speakers        []speakerPayload `json:"speakers"`
	OverallSummary  string           `json:"overall_summary"`
	MainTopics      []string         `json:"main_topics"`
	FollowUpActions []string         `json:"follow_up_actions"`
}

type speakerPayload struct {
	IsHost        bool              `json:"is_host"`
	Label         string            `json:"label"`
	LabelSource   string            `json:"label_source"`
	Company       string            `json:"company"`
	Title         string            `json:"title"`
	Dialogue      []dialoguePayload `json:"dialogue"`
	Summary       string            `json:"summary"`
	Topics        []string          `json:"topics"`
	Questions     []string          `json:"questions"`
	Sentiment     string            `json:"sentiment"`
	SpeakingShare llm.FlexFloat64   `json:"speaking_percent"`
}

type dialoguePayload struct {
	Text         string          `json:"text"`
	StartPercent llm.FlexFloat64 `json:"start_percent"`
	EndPercent   llm.FlexFloat64 `json:"end_percent"`
}

// buildSystemPrompt renders the diarization instruction, including the
// barcode side-channel context so the model can link scans to speakers.
func buildSystemPrompt(duration float64, scans []*recordings.BarcodeScan) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are analyzing an expo booth recording. The total recording duration is approximately %.0f seconds.

Your task is to identify the DISTINCT SPEAKERS in the conversation and attribute dialogue to each.

Rules for identifying speakers:
1. Exactly ONE speaker is the booth HOST (staff) - identified by welcoming language and speaking frequency. Mark them with "is_host": true.
2. All other speakers are visitors.
3. Label each visitor by priority:
   a. A name they state themselves in the dialogue ("label_source": "name_mentioned")
   b. A badge scanned within 30 seconds of their segment, listed below ("label_source": "barcode_scan")
   c. Otherwise leave the label empty ("label_source": "auto_generated")
4. All times are PERCENTAGES of the recording (0-100), never absolute seconds.
`, duration)

	if ctxStr := scanContext(scans); ctxStr != "" {
		b.WriteString("\nBadge scans captured during the recording:\n")
		b.WriteString(ctxStr)
	}

	b.WriteString(`
Return as JSON:
{
    "speakers": [
        {
            "is_host": false,
            "label": "Sarah",
            "label_source": "name_mentioned",
            "company": "Acme",
            "title": "",
            "dialogue": [
                {"text": "quote from this speaker", "start_percent": 0, "end_percent": 25}
            ],
            "summary": "1-2 sentences on what this speaker discussed",
            "topics": ["topic1"],
            "questions": ["question they asked"],
            "sentiment": "interested",
            "speaking_percent": 40
        }
    ],
    "overall_summary": "1-2 sentence summary of the whole recording",
    "main_topics": ["topic1", "topic2"],
    "follow_up_actions": ["action1"]
}`)
	return b.String()
}

// scanContext enumerates scans with a usable timestamp, one per line.
func scanContext(scans []*recordings.BarcodeScan) string {
	var b strings.Builder
	for _, scan := range scans {
		if scan.VideoTimestamp == nil {
			continue
		}
		name := scan.VisitorName
		if name == "" {
			name = "unknown visitor"
		}
		fmt.Fprintf(&b, "- badge %q (%s) scanned at %.0f seconds\n", scan.BarcodeData, name, *scan.VideoTimestamp)
	}
	return b.String()
}
