package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xowlabs/expopulse/pkg/observability"
)

// OpenAIProvider implements Provider for OpenAI-compatible chat endpoints,
// including self-hosted servers that expose /v1/chat/completions.
type OpenAIProvider struct {
	config     Config
	httpClient *http.Client
	name       string
	tracer     *observability.Tracer
	observer   ModelObserver
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(config Config) *OpenAIProvider {
	_ = config.Validate()
	return &OpenAIProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		name: fmt.Sprintf("openai-%s", config.Model),
	}
}

// WithInstrumentation attaches tracing and metrics to every completion
// round-trip. Either argument may be nil.
func (p *OpenAIProvider) WithInstrumentation(tracer *observability.Tracer, observer ModelObserver) *OpenAIProvider {
	p.tracer = tracer
	p.observer = observer
	return p
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// chatMessage represents a message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat selects structured output on endpoints that support it.
type responseFormat struct {
	Type string `json:"type"`
}

// chatRequest is the OpenAI-compatible chat completion request.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatChoice represents a completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage represents token usage.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatResponse is the OpenAI-compatible chat completion response.
type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// Complete sends a completion request and returns the raw response.
// Each round-trip is wrapped in a model-call span and reported to the
// observer when instrumentation is attached.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	var helper *observability.SpanHelper
	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.StartModelSpan(ctx, p.config.Model)
		defer span.End()
		helper = observability.NewSpanHelper(span)
	}

	resp, err := p.complete(ctx, req, start)
	p.observeCall(helper, req.Stage, resp, err, time.Since(start))
	return resp, err
}

// observeCall reports one round-trip outcome to the span and observer.
func (p *OpenAIProvider) observeCall(helper *observability.SpanHelper, stage string, resp *CompletionResponse, err error, latency time.Duration) {
	if err != nil {
		status := "error"
		var lerr *Error
		if errors.As(err, &lerr) {
			status = string(lerr.Code)
		}
		if helper != nil {
			retryable := status == string(ErrRateLimit) || status == string(ErrUnavailable) || status == string(ErrParseFailure)
			helper.SetError(err, status, retryable)
		}
		if p.observer != nil {
			p.observer.RecordModelCall(stage, p.config.Model, status, latency.Seconds())
		}
		return
	}

	if helper != nil {
		helper.SetModelResult(resp.TokensUsed.Prompt, resp.TokensUsed.Completion, int64(resp.LatencyMs))
		helper.SetSuccess()
	}
	if p.observer != nil {
		p.observer.RecordModelCall(stage, p.config.Model, "ok", latency.Seconds())
		p.observer.RecordModelTokens("input", p.config.Model, float64(resp.TokensUsed.Prompt))
		p.observer.RecordModelTokens("output", p.config.Model, float64(resp.TokensUsed.Completion))
	}
}

func (p *OpenAIProvider) complete(ctx context.Context, req CompletionRequest, start time.Time) (*CompletionResponse, error) {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, chatMessage{
		Role:    "user",
		Content: req.Prompt,
	})

	chatReq := chatRequest{
		Model:    p.config.Model,
		Messages: messages,
	}

	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	} else {
		chatReq.Temperature = 0.1 // Low temperature for structured extraction
	}

	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	} else {
		chatReq.MaxTokens = 4096
	}

	if req.JSONMode {
		chatReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, &Error{Code: ErrParseFailure, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	endpoint := fmt.Sprintf("%s/v1/chat/completions", p.config.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: ErrUnavailable, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Code: ErrTimeout, Message: "request timeout"}
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, &Error{Code: ErrTimeout, Message: "request timeout"}
		}
		return nil, &Error{Code: ErrUnavailable, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: ErrParseFailure, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &Error{Code: ErrRateLimit, Message: fmt.Sprintf("HTTP 429: %s", string(respBody))}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Code:    ErrUnavailable,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &Error{Code: ErrParseFailure, Message: fmt.Sprintf("parse response: %v", err)}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &Error{Code: ErrParseFailure, Message: "no choices in response"}
	}

	latency := time.Since(start)
	return &CompletionResponse{
		Content:      chatResp.Choices[0].Message.Content,
		FinishReason: chatResp.Choices[0].FinishReason,
		LatencyMs:    int(latency.Milliseconds()),
		Model:        chatResp.Model,
		TokensUsed: TokenUsage{
			Prompt:     chatResp.Usage.PromptTokens,
			Completion: chatResp.Usage.CompletionTokens,
			Total:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// CompleteStructured sends a request expecting JSON output and parses it.
func (p *OpenAIProvider) CompleteStructured(ctx context.Context, req CompletionRequest, target interface{}) error {
	req.JSONMode = true
	if !strings.Contains(req.Prompt, "JSON") && !strings.Contains(req.Prompt, "json") {
		req.Prompt = req.Prompt + "\n\nRespond with valid JSON only."
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			lastErr = err
			// Don't retry on context cancellation or timeouts
			if ctx.Err() != nil {
				return err
			}
			if llmErr, ok := err.(*Error); ok && llmErr.Code == ErrTimeout {
				return err // retrying a saturated server won't help
			}
			continue
		}

		// Check for token limit truncation before attempting JSON parse
		if resp.FinishReason == "length" {
			return &Error{
				Code:    ErrTokenLimit,
				Message: fmt.Sprintf("response truncated: hit max_tokens limit (%d completion tokens used)", resp.TokensUsed.Completion),
				Details: resp.Content,
			}
		}

		// Clean up the response - sometimes models wrap JSON in markdown
		content := strings.TrimSpace(resp.Content)
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)

		if err := json.Unmarshal([]byte(content), target); err != nil {
			lastErr = &Error{
				Code:    ErrParseFailure,
				Message: fmt.Sprintf("parse JSON: %v", err),
				Details: resp.Content,
			}
			// Retry with a stronger hint about the format
			if attempt < p.config.MaxRetries {
				req.Prompt = fmt.Sprintf("%s\n\nIMPORTANT: Respond with valid JSON only. No markdown, no explanations.", req.Prompt)
			}
			continue
		}

		return nil
	}

	return lastErr
}

// IsAvailable checks if the provider is currently available.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	endpoint := fmt.Sprintf("%s/v1/models", p.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Close releases provider resources.
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
