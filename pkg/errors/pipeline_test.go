package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifyError_Nil(t *testing.T) {
	result := ClassifyError(nil, "analysis")
	if result != nil {
		t.Errorf("Expected nil for nil error, got %v", result)
	}
}

func TestClassifyError_DeadlineExceeded(t *testing.T) {
	err := context.DeadlineExceeded
	result := ClassifyError(err, "analysis")

	if result == nil {
		t.Fatal("Expected non-nil PipelineError")
	}
	if result.Code != ErrTimeout {
		t.Errorf("Expected ErrTimeout, got %s", result.Code)
	}
	if result.Stage != "analysis" {
		t.Errorf("Expected stage 'analysis', got %s", result.Stage)
	}
	if result.Message != "operation timed out" {
		t.Errorf("Expected 'operation timed out', got %s", result.Message)
	}
	if result.Cause != err {
		t.Errorf("Expected cause to be original error")
	}
}

func TestClassifyError_Canceled(t *testing.T) {
	err := context.Canceled
	result := ClassifyError(err, "analysis")

	if result == nil {
		t.Fatal("Expected non-nil PipelineError")
	}
	if result.Code != ErrContextCancelled {
		t.Errorf("Expected ErrContextCancelled, got %s", result.Code)
	}
	if result.Message != "operation cancelled" {
		t.Errorf("Expected 'operation cancelled', got %s", result.Message)
	}
}

func TestClassifyError_RateLimit(t *testing.T) {
	tests := []struct {
		name     string
		errorMsg string
	}{
		{"rate limit exact", "rate limit exceeded"},
		{"429 status", "HTTP 429 error"},
		{"too many requests", "too many requests"},
		{"quota exceeded", "quota exceeded for this resource"},
		{"Rate Limit uppercase", "Rate Limit Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.errorMsg)
			result := ClassifyError(err, "analysis")

			if result == nil {
				t.Fatal("Expected non-nil PipelineError")
			}
			if result.Code != ErrRateLimit {
				t.Errorf("Expected ErrRateLimit for '%s', got %s", tt.errorMsg, result.Code)
			}
			if result.Message != tt.errorMsg {
				t.Errorf("Expected message '%s', got %s", tt.errorMsg, result.Message)
			}
		})
	}
}

func TestClassifyError_ModelUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		errorMsg string
	}{
		{"connection refused", "connection refused"},
		{"unavailable", "service unavailable"},
		{"503 status", "HTTP 503 error"},
		{"no such host", "dial tcp: lookup example.com: no such host"},
		{"Unavailable uppercase", "Model Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.errorMsg)
			result := ClassifyError(err, "diarization")

			if result == nil {
				t.Fatal("Expected non-nil PipelineError")
			}
			if result.Code != ErrModelUnavailable {
				t.Errorf("Expected ErrModelUnavailable for '%s', got %s", tt.errorMsg, result.Code)
			}
			if result.Message != tt.errorMsg {
				t.Errorf("Expected message '%s', got %s", tt.errorMsg, result.Message)
			}
		})
	}
}

func TestClassifyError_InputUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
	}{
		{"no transcript", errors.New("no transcript available for recording")},
		{"empty transcript", errors.New("transcript is empty")},
		{"no speech", errors.New("no speech detected in audio")},
		{"not found sentinel", fmt.Errorf("load recording: %w", ErrNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyError(tt.err, "diarization")

			if result == nil {
				t.Fatal("Expected non-nil PipelineError")
			}
			if result.Code != ErrInputUnavailable {
				t.Errorf("Expected ErrInputUnavailable, got %s", result.Code)
			}
		})
	}
}

func TestClassifyError_MalformedResponse(t *testing.T) {
	tests := []struct {
		name     string
		errorMsg string
	}{
		{"invalid json", "invalid JSON in model response"},
		{"unmarshal failure", "failed to unmarshal segments"},
		{"parse failure", "could not parse structured output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.errorMsg)
			result := ClassifyError(err, "analysis")

			if result == nil {
				t.Fatal("Expected non-nil PipelineError")
			}
			if result.Code != ErrMalformedResponse {
				t.Errorf("Expected ErrMalformedResponse for '%s', got %s", tt.errorMsg, result.Code)
			}
		})
	}
}

func TestClassifyError_ValidationViolation(t *testing.T) {
	err := fmt.Errorf("host check: %w", ErrValidation)
	result := ClassifyError(err, "diarization")

	if result == nil {
		t.Fatal("Expected non-nil PipelineError")
	}
	if result.Code != ErrValidationViolation {
		t.Errorf("Expected ErrValidationViolation, got %s", result.Code)
	}
}

func TestClassifyError_AlreadyClassified(t *testing.T) {
	inner := &PipelineError{Code: ErrTokenLimit, Message: "response truncated"}
	wrapped := fmt.Errorf("complete: %w", inner)

	result := ClassifyError(wrapped, "analysis")
	if result == nil {
		t.Fatal("Expected non-nil PipelineError")
	}
	if result.Code != ErrTokenLimit {
		t.Errorf("Expected classification to be preserved, got %s", result.Code)
	}
	if result.Stage != "analysis" {
		t.Errorf("Expected stage to be filled in, got %s", result.Stage)
	}
}

func TestClassifyError_Unknown(t *testing.T) {
	err := errors.New("some random error")
	result := ClassifyError(err, "analysis")

	if result == nil {
		t.Fatal("Expected non-nil PipelineError")
	}
	if result.Code != ErrProcessingError {
		t.Errorf("Expected ErrProcessingError for unrecognized error, got %s", result.Code)
	}
	if result.Message != "some random error" {
		t.Errorf("Expected message 'some random error', got %s", result.Message)
	}
}

func TestPipelineError_Error_WithTimeout(t *testing.T) {
	pe := &PipelineError{
		Code:     ErrTimeout,
		Stage:    "diarization",
		Duration: 120 * time.Second,
		Timeout:  120 * time.Second,
	}

	expected := "timeout: diarization timed out after 2m0s (limit: 2m0s)"
	if pe.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, pe.Error())
	}
}

func TestPipelineError_Error_WithStage(t *testing.T) {
	pe := &PipelineError{
		Code:    ErrRateLimit,
		Stage:   "analysis",
		Message: "quota exceeded",
	}

	expected := "rate_limit: analysis: quota exceeded"
	if pe.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, pe.Error())
	}
}

func TestPipelineError_Error_NoStage(t *testing.T) {
	pe := &PipelineError{
		Code:    ErrProcessingError,
		Message: "something went wrong",
	}

	expected := "processing_error: something went wrong"
	if pe.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, pe.Error())
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	pe := &PipelineError{
		Code:  ErrProcessingError,
		Cause: originalErr,
	}

	unwrapped := pe.Unwrap()
	if unwrapped != originalErr {
		t.Errorf("Expected unwrapped error to be original error")
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "timeout error",
			err:      &PipelineError{Code: ErrTimeout},
			expected: true,
		},
		{
			name:     "rate limit error",
			err:      &PipelineError{Code: ErrRateLimit},
			expected: false,
		},
		{
			name:     "processing error",
			err:      &PipelineError{Code: ErrProcessingError},
			expected: false,
		},
		{
			name:     "regular error",
			err:      errors.New("some error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsTimeout(tt.err)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestIsErrorRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "timeout error",
			err:      &PipelineError{Code: ErrTimeout},
			expected: true,
		},
		{
			name:     "rate limit error",
			err:      &PipelineError{Code: ErrRateLimit},
			expected: true,
		},
		{
			name:     "model unavailable error",
			err:      &PipelineError{Code: ErrModelUnavailable},
			expected: true,
		},
		{
			name:     "upstream call failure",
			err:      &PipelineError{Code: ErrUpstreamCallFailure},
			expected: true,
		},
		{
			name:     "processing error",
			err:      &PipelineError{Code: ErrProcessingError},
			expected: false,
		},
		{
			name:     "malformed response",
			err:      &PipelineError{Code: ErrMalformedResponse},
			expected: false,
		},
		{
			name:     "validation violation",
			err:      &PipelineError{Code: ErrValidationViolation},
			expected: false,
		},
		{
			name:     "context cancelled error",
			err:      &PipelineError{Code: ErrContextCancelled},
			expected: false,
		},
		{
			name:     "regular error",
			err:      errors.New("some error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsErrorRetryable(tt.err)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestPipelineError_Error_WithDurationAndTimeout(t *testing.T) {
	pe := &PipelineError{
		Code:     ErrTimeout,
		Stage:    "analysis",
		Message:  "operation timed out",
		Duration: 45 * time.Second,
		Timeout:  30 * time.Second,
	}

	expected := "timeout: analysis timed out after 45s (limit: 30s)"
	if pe.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, pe.Error())
	}

	// When only Duration is set (no Timeout), should fall through to stage+message format
	peNoTimeout := &PipelineError{
		Code:     ErrTimeout,
		Stage:    "analysis",
		Message:  "operation timed out",
		Duration: 45 * time.Second,
	}

	expectedNoTimeout := "timeout: analysis: operation timed out"
	if peNoTimeout.Error() != expectedNoTimeout {
		t.Errorf("Expected '%s', got '%s'", expectedNoTimeout, peNoTimeout.Error())
	}
}

func TestClassifyError_WrappedErrors(t *testing.T) {
	// Test that context.DeadlineExceeded works even when wrapped
	wrappedErr := fmt.Errorf("wrapped: %w", context.DeadlineExceeded)
	result := ClassifyError(wrappedErr, "analysis")

	if result == nil {
		t.Fatal("Expected non-nil PipelineError")
	}
	if result.Code != ErrTimeout {
		t.Errorf("Expected ErrTimeout for wrapped DeadlineExceeded, got %s", result.Code)
	}
}
