// Package analysis implements the transcript-level analysis stage: one
// structured model call that extracts an overall summary, topic highlights,
// visitor interests, key questions, and sentiment from the raw transcript.
//
// The stage never fails the pipeline. An empty transcript skips the model
// call entirely, and any provider failure (timeout, rate limit, malformed
// JSON) is logged and converted into the all-empty Result.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/xowlabs/expopulse/pkg/llm"
	"github.com/xowlabs/expopulse/pkg/logging"
)

const stageName = "analysis"

const systemPrompt = `You are an assistant analyzing expo booth conversations.
Analyze the transcript and provide:
1. A concise summary (2-3 sentences)
2. Key highlights/topics discussed (as a list)
3. Notable visitor interests
4. Questions the visitors asked

Return as JSON format:
{
    "summary": "...",
    "highlights": ["highlight1", "highlight2"],
    "visitor_interests": ["interest1", "interest2"],
    "key_questions": ["question1", "question2"],
    "sentiment": "positive|neutral|interested|skeptical"
}`

// Result holds the transcript-level fields the stage extracts. All fields
// default to their zero value when the model is unavailable.
type Result struct {
	Summary          string   `json:"summary"`
	Highlights       []string `json:"highlights"`
	VisitorInterests []string `json:"visitor_interests"`
	KeyQuestions     []string `json:"key_questions"`
	Sentiment        string   `json:"sentiment"`
}

// EmptyResult returns the all-empty Result used for empty transcripts and
// provider failures. Lists are non-nil so JSON consumers see [] not null.
func EmptyResult() *Result {
	return &Result{
		Highlights:       []string{},
		VisitorInterests: []string{},
		KeyQuestions:     []string{},
	}
}

// Analyzer runs the analysis stage against a generative-text provider.
type Analyzer struct {
	provider llm.Provider
	logger   logging.Logger
}

// NewAnalyzer creates an Analyzer. A nil logger falls back to the nop logger.
func NewAnalyzer(provider llm.Provider, logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Analyzer{
		provider: provider,
		logger:   logger.With(logging.F("component", "analysis")),
	}
}

// Analyze extracts transcript-level insights. It never returns an error:
// on any provider failure it logs the cause and returns the empty result,
// so downstream stages keep running with this stage's fields blank.
func (a *Analyzer) Analyze(ctx context.Context, recordingID, transcript string) *Result {
	if strings.TrimSpace(transcript) == "" {
		a.logger.Debug("empty transcript, skipping analysis",
			logging.F("recording_id", recordingID))
		return EmptyResult()
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Prompt:       fmt.Sprintf("Transcript:\n%s", transcript),
		JSONMode:     true,
		RecordingID:  recordingID,
		Stage:        stageName,
	}

	var payload struct {
		Summary          string   `json:"summary"`
		Highlights       []string `json:"highlights"`
		VisitorInterests []string `json:"visitor_interests"`
		KeyQuestions     []string `json:"key_questions"`
		Sentiment        string   `json:"sentiment"`
	}
	if err := a.provider.CompleteStructured(ctx, req, &payload); err != nil {
		a.logger.Warn("analysis call failed, returning empty result",
			logging.F("recording_id", recordingID),
			logging.F("provider", a.provider.Name()),
			logging.Err(err))
		return EmptyResult()
	}

	result := EmptyResult()
	result.Summary = payload.Summary
	result.Sentiment = payload.Sentiment
	if payload.Highlights != nil {
		result.Highlights = payload.Highlights
	}
	if payload.VisitorInterests != nil {
		result.VisitorInterests = payload.VisitorInterests
	}
	if payload.KeyQuestions != nil {
		result.KeyQuestions = payload.KeyQuestions
	}
	return result
}
