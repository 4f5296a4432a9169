// Package diarize implements the speaker-diarization stage: a structured
// model call that splits the transcript into per-speaker segments, resolves
// speaker labels (self-stated name, then a nearby barcode scan, then a
// generic "Guest N"), and classifies one speaker as the booth host.
//
// The model's output is untrusted. Every percentage is clamped, every
// absolute time is derived from the recording's own duration, and the
// exactly-one-host invariant is enforced after the call regardless of what
// the model claimed.
package diarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
	"github.com/xowlabs/expopulse/pkg/llm"
	"github.com/xowlabs/expopulse/pkg/logging"
	"github.com/xowlabs/expopulse/pkg/recordings"
	"github.com/xowlabs/expopulse/pkg/timeline"
)

const stageName = "diarization"

// barcodeProximityWindow is the ± window, in seconds, within which a scan
// may name a speaker's segment.
const barcodeProximityWindow = 30.0

// Result is the diarization stage output.
type Result struct {
	Speakers        []*recordings.SpeakerSegment `json:"speakers"`
	OverallSummary  string                       `json:"overall_summary"`
	MainTopics      []string                     `json:"main_topics"`
	HostIdentified  bool                         `json:"host_identified"`
	FollowUpActions []string                     `json:"follow_up_actions"`
	TotalSpeakers   int                          `json:"total_speakers"`
}

// EmptyResult returns the zero-speaker result used for empty transcripts.
func EmptyResult() *Result {
	return &Result{
		Speakers:        []*recordings.SpeakerSegment{},
		MainTopics:      []string{},
		FollowUpActions: []string{},
	}
}

// Diarizer runs the diarization stage against a generative-text provider.
type Diarizer struct {
	provider llm.Provider
	logger   logging.Logger
}

// NewDiarizer creates a Diarizer. A nil logger falls back to the nop logger.
func NewDiarizer(provider llm.Provider, logger logging.Logger) *Diarizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Diarizer{
		provider: provider,
		logger:   logger.With(logging.F("component", "diarization")),
	}
}

// Diarize splits the transcript into speaker segments. Unlike the analysis
// stage, a failure here is fatal for the processing pass: the returned
// error is classified and the caller must move the recording to the error
// status. An empty transcript is not an error; it returns the empty result
// without calling the provider.
func (d *Diarizer) Diarize(ctx context.Context, recordingID, transcript string, scans []*recordings.BarcodeScan, duration float64) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		d.logger.Debug("empty transcript, skipping diarization",
			logging.F("recording_id", recordingID))
		return EmptyResult(), nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(duration, scans),
		Prompt:       fmt.Sprintf("Transcript:\n%s", transcript),
		JSONMode:     true,
		RecordingID:  recordingID,
		Stage:        stageName,
	}

	var payload diarizationPayload
	if err := d.provider.CompleteStructured(ctx, req, &payload); err != nil {
		d.logger.Error("diarization call failed",
			logging.F("recording_id", recordingID),
			logging.F("provider", d.provider.Name()),
			logging.Err(err))
		return nil, classifyProviderError(err)
	}

	result := d.validate(&payload, scans, duration)
	d.logger.Info("diarization completed",
		logging.F("recording_id", recordingID),
		logging.F("speakers", len(result.Speakers)),
		logging.F("host_identified", result.HostIdentified))
	return result, nil
}

// classifyProviderError maps typed provider error codes onto the pipeline
// taxonomy before falling back to message-pattern classification.
func classifyProviderError(err error) *xperrors.PipelineError {
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		code := xperrors.ErrUpstreamCallFailure
		switch lerr.Code {
		case llm.ErrTimeout:
			code = xperrors.ErrTimeout
		case llm.ErrRateLimit:
			code = xperrors.ErrRateLimit
		case llm.ErrParseFailure:
			code = xperrors.ErrMalformedResponse
		case llm.ErrTokenLimit:
			code = xperrors.ErrTokenLimit
		case llm.ErrUnavailable:
			code = xperrors.ErrModelUnavailable
		}
		return &xperrors.PipelineError{Code: code, Stage: stageName, Message: lerr.Message, Cause: err}
	}
	return xperrors.ClassifyError(err, stageName)
}

// validate converts the raw model payload into the typed result, enforcing
// every invariant the model cannot be trusted with: percentage clamping,
// absolute times derived from duration, the single-host rule, label
// resolution priority, and guest numbering.
func (d *Diarizer) validate(payload *diarizationPayload, scans []*recordings.BarcodeScan, duration float64) *Result {
	result := EmptyResult()
	result.OverallSummary = payload.OverallSummary
	if payload.MainTopics != nil {
		result.MainTopics = payload.MainTopics
	}
	if payload.FollowUpActions != nil {
		result.FollowUpActions = payload.FollowUpActions
	}

	for _, sp := range payload.Speakers {
		seg := &recordings.SpeakerSegment{
			Role:          recordings.RoleGuest,
			Label:         strings.TrimSpace(sp.Label),
			LabelSource:   normalizeLabelSource(sp.LabelSource),
			Company:       sp.Company,
			Title:         sp.Title,
			Summary:       sp.Summary,
			Topics:        sp.Topics,
			Questions:     sp.Questions,
			Sentiment:     sp.Sentiment,
			SpeakingShare: timeline.ClampPercent(sp.SpeakingShare.Float64()),
		}
		if sp.IsHost {
			seg.Role = recordings.RoleHost
		}
		if seg.Topics == nil {
			seg.Topics = []string{}
		}
		if seg.Questions == nil {
			seg.Questions = []string{}
		}

		for _, line := range sp.Dialogue {
			span := timeline.SpanFromPercent(line.StartPercent.Float64(), line.EndPercent.Float64(), duration)
			seg.Dialogue = append(seg.Dialogue, recordings.DialogueLine{
				Text:         line.Text,
				StartPercent: timeline.ClampPercent(line.StartPercent.Float64()),
				EndPercent:   timeline.ClampPercent(line.EndPercent.Float64()),
				StartTime:    span.Start,
				EndTime:      span.End,
			})
		}

		result.Speakers = append(result.Speakers, seg)
	}

	enforceSingleHost(result.Speakers)
	resolveLabels(result.Speakers, scans)

	result.TotalSpeakers = len(result.Speakers)
	result.HostIdentified = false
	for _, sp := range result.Speakers {
		if sp.IsHost() {
			result.HostIdentified = true
			break
		}
	}
	return result
}

// enforceSingleHost guarantees exactly one host among the speakers when any
// exist. If the model flagged zero or several, the speaker with the largest
// speaking share becomes the host and the rest are downgraded to guests.
func enforceSingleHost(speakers []*recordings.SpeakerSegment) {
	if len(speakers) == 0 {
		return
	}

	hostCount := 0
	for _, sp := range speakers {
		if sp.IsHost() {
			hostCount++
		}
	}
	if hostCount == 1 {
		return
	}

	// Candidates are the model's hosts when it over-flagged, everyone when
	// it flagged none.
	candidates := speakers
	if hostCount > 1 {
		candidates = candidates[:0:0]
		for _, sp := range speakers {
			if sp.IsHost() {
				candidates = append(candidates, sp)
			}
		}
	}

	host := candidates[0]
	for _, sp := range candidates[1:] {
		if sp.SpeakingShare > host.SpeakingShare {
			host = sp
		}
	}

	for _, sp := range speakers {
		if sp == host {
			sp.Role = recordings.RoleHost
		} else {
			sp.Role = recordings.RoleGuest
		}
	}
}

// resolveLabels applies the labeling priority to every guest: a self-stated
// name from the model wins, then a barcode scanned within the proximity
// window of the speaker's segment, then a generated "Guest N" numbered in
// order of first appearance.
func resolveLabels(speakers []*recordings.SpeakerSegment, scans []*recordings.BarcodeScan) {
	guestNum := 0
	for _, sp := range speakers {
		if sp.IsHost() {
			if sp.Label == "" {
				sp.Label = "Host"
				sp.LabelSource = recordings.LabelSourceAuto
			}
			continue
		}
		guestNum++

		if sp.Label != "" && sp.LabelSource == recordings.LabelSourceName {
			continue
		}

		if scan := nearbyScan(sp, scans); scan != nil {
			sp.Label = scanLabel(scan)
			sp.LabelSource = recordings.LabelSourceBarcode
			continue
		}

		// Anything left is unverified: no self-stated name, and no scan
		// near the segment to corroborate a claimed barcode attribution.
		sp.Label = fmt.Sprintf("Guest %d", guestNum)
		sp.LabelSource = recordings.LabelSourceAuto
	}
}

// nearbyScan returns the first scan whose timestamp falls within the
// proximity window of the speaker's overall span, or nil. Scans without a
// video timestamp cannot be correlated and are skipped.
func nearbyScan(sp *recordings.SpeakerSegment, scans []*recordings.BarcodeScan) *recordings.BarcodeScan {
	if len(sp.Dialogue) == 0 {
		return nil
	}
	start, end := sp.Span()
	span := timeline.Span{Start: start, End: end}
	for _, scan := range scans {
		if scan.VideoTimestamp == nil {
			continue
		}
		if span.Contains(*scan.VideoTimestamp, barcodeProximityWindow) {
			return scan
		}
	}
	return nil
}

// scanLabel prefers the visitor's display name over the raw barcode payload.
func scanLabel(scan *recordings.BarcodeScan) string {
	if scan.VisitorName != "" {
		return scan.VisitorName
	}
	return scan.BarcodeData
}

func normalizeLabelSource(s string) recordings.LabelSource {
	switch recordings.LabelSource(strings.TrimSpace(strings.ToLower(s))) {
	case recordings.LabelSourceName:
		return recordings.LabelSourceName
	case recordings.LabelSourceBarcode:
		return recordings.LabelSourceBarcode
	default:
		return recordings.LabelSourceAuto
	}
}
