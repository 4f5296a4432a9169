package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xowlabs/expopulse/pkg/llm"
)

// fakeProvider counts calls and returns a canned JSON payload or error.
type fakeProvider struct {
	calls    int
	response string
	err      error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.response}, nil
}

func (f *fakeProvider) CompleteStructured(ctx context.Context, req llm.CompletionRequest, target interface{}) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), target)
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeProvider) Close() error                         { return nil }

func TestAnalyzer_Analyze(t *testing.T) {
	provider := &fakeProvider{
		response: `{
			"summary": "Visitor asked about pricing tiers.",
			"highlights": ["pricing", "enterprise plan"],
			"visitor_interests": ["cost comparison"],
			"key_questions": ["What does the enterprise tier cost?"],
			"sentiment": "interested"
		}`,
	}
	analyzer := NewAnalyzer(provider, nil)

	result := analyzer.Analyze(context.Background(), "rec-1", "Hi, what does the enterprise tier cost?")

	require.NotNil(t, result)
	assert.Equal(t, "Visitor asked about pricing tiers.", result.Summary)
	assert.Equal(t, []string{"pricing", "enterprise plan"}, result.Highlights)
	assert.Equal(t, []string{"cost comparison"}, result.VisitorInterests)
	assert.Equal(t, []string{"What does the enterprise tier cost?"}, result.KeyQuestions)
	assert.Equal(t, "interested", result.Sentiment)
	assert.Equal(t, 1, provider.calls)
}

func TestAnalyzer_Analyze_EmptyTranscriptSkipsCall(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{response: `{}`}
			analyzer := NewAnalyzer(provider, nil)

			result := analyzer.Analyze(context.Background(), "rec-1", tt.transcript)

			require.NotNil(t, result)
			assert.Empty(t, result.Summary)
			assert.Empty(t, result.Highlights)
			assert.Empty(t, result.Sentiment)
			assert.Equal(t, 0, provider.calls, "empty transcript must not reach the provider")
		})
	}
}

func TestAnalyzer_Analyze_ProviderFailureReturnsEmpty(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"timeout", &llm.Error{Code: llm.ErrTimeout, Message: "request timed out"}},
		{"rate limit", &llm.Error{Code: llm.ErrRateLimit, Message: "rate limited"}},
		{"parse failure", &llm.Error{Code: llm.ErrParseFailure, Message: "invalid json"}},
		{"plain error", errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{err: tt.err}
			analyzer := NewAnalyzer(provider, nil)

			result := analyzer.Analyze(context.Background(), "rec-1", "some transcript")

			require.NotNil(t, result, "failure must degrade to empty result, not nil")
			assert.Empty(t, result.Summary)
			assert.NotNil(t, result.Highlights)
			assert.Empty(t, result.Highlights)
			assert.Equal(t, 1, provider.calls)
		})
	}
}

func TestAnalyzer_Analyze_NilListsNormalized(t *testing.T) {
	provider := &fakeProvider{response: `{"summary": "short chat"}`}
	analyzer := NewAnalyzer(provider, nil)

	result := analyzer.Analyze(context.Background(), "rec-1", "hello")

	assert.Equal(t, "short chat", result.Summary)
	assert.NotNil(t, result.Highlights)
	assert.NotNil(t, result.VisitorInterests)
	assert.NotNil(t, result.KeyQuestions)
}
