// Package llm provides the generative-text client used by the analysis
// and diarization stages. Providers speak the OpenAI-compatible chat
// completion API; responses are untrusted and every structured call
// validates the payload before use.
package llm

import (
	"context"
	"time"
)

// Provider defines the interface for generative-text providers.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai-gpt-4o-mini").
	Name() string

	// Complete sends a completion request and returns the raw response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStructured sends a request expecting JSON output and parses it.
	CompleteStructured(ctx context.Context, req CompletionRequest, target interface{}) error

	// IsAvailable checks if the provider is currently available.
	IsAvailable(ctx context.Context) bool

	// Close releases provider resources.
	Close() error
}

// ModelObserver receives the outcome of every completion round-trip.
// *observability.PipelineMetrics satisfies it.
type ModelObserver interface {
	// RecordModelCall records one call outcome; status is "ok" or an
	// ErrorCode value.
	RecordModelCall(stage, model, status string, latencySeconds float64)
	// RecordModelTokens records token usage; direction is "input" or
	// "output".
	RecordModelTokens(direction, model string, count float64)
}

// CompletionRequest represents a request to the model.
type CompletionRequest struct {
	// Prompt is the full prompt text to send to the model.
	Prompt string `json:"prompt"`

	// SystemPrompt is an optional system-level instruction.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// JSONMode enables structured JSON output.
	JSONMode bool `json:"json_mode"`

	// MaxTokens limits response length (0 = provider default).
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0, 0 = provider default).
	Temperature float32 `json:"temperature,omitempty"`

	// Metadata for tracing/logging.
	RecordingID string `json:"recording_id,omitempty"`
	Stage       string `json:"stage,omitempty"`
}

// CompletionResponse represents a response from the model.
type CompletionResponse struct {
	// Content is the raw text response from the model.
	Content string `json:"content"`

	// TokensUsed tracks token consumption.
	TokensUsed TokenUsage `json:"tokens_used"`

	// LatencyMs is the response time in milliseconds.
	LatencyMs int `json:"latency_ms"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// FinishReason indicates why the model stopped generating.
	// "stop" = natural end, "length" = hit max_tokens limit.
	FinishReason string `json:"finish_reason,omitempty"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Error represents an error from a provider.
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorCode identifies the type of provider error.
type ErrorCode string

const (
	ErrTimeout      ErrorCode = "timeout"
	ErrUnavailable  ErrorCode = "unavailable"
	ErrRateLimit    ErrorCode = "rate_limit"
	ErrParseFailure ErrorCode = "parse_failure"
	ErrTokenLimit   ErrorCode = "token_limit"
)

// Config configures a provider.
type Config struct {
	// Model is the chat model name requested from the endpoint.
	Model string `json:"model" yaml:"model"`

	// BaseURL is the endpoint root, e.g. "https://api.openai.com" or a
	// local OpenAI-compatible server.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is sent as a bearer token when non-empty.
	APIKey string `json:"-" yaml:"api_key"`

	// Timeout bounds each round-trip.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries bounds structured-parse retry attempts.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// Validate fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com"
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	return nil
}
