package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a classified pipeline error.
type ErrorCode string

const (
	ErrTimeout             ErrorCode = "timeout"
	ErrRateLimit           ErrorCode = "rate_limit"
	ErrModelUnavailable    ErrorCode = "model_unavailable"
	ErrContextCancelled    ErrorCode = "context_cancelled"
	ErrInputUnavailable    ErrorCode = "input_unavailable"
	ErrUpstreamCallFailure ErrorCode = "upstream_call_failure"
	ErrMalformedResponse   ErrorCode = "malformed_response"
	ErrValidationViolation ErrorCode = "validation_violation"
	ErrTokenLimit          ErrorCode = "token_limit"
	ErrProcessingError     ErrorCode = "processing_error"
)

// PipelineError is a structured error for processing pipeline failures.
type PipelineError struct {
	Code     ErrorCode
	Stage    string
	Message  string
	Duration time.Duration
	Timeout  time.Duration
	Cause    error
}

func (e *PipelineError) Error() string {
	if e.Timeout > 0 && e.Duration > 0 {
		return fmt.Sprintf("%s: %s timed out after %s (limit: %s)", e.Code, e.Stage, e.Duration.Truncate(time.Second), e.Timeout.Truncate(time.Second))
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects an error and returns a *PipelineError with the appropriate code.
// If the error doesn't match any known pattern, it returns a PipelineError with ErrProcessingError.
func ClassifyError(err error, stage string) *PipelineError {
	if err == nil {
		return nil
	}

	// Already classified: keep the original code, update the stage if missing.
	var existing *PipelineError
	if errors.As(err, &existing) {
		if existing.Stage == "" {
			existing.Stage = stage
		}
		return existing
	}

	pe := &PipelineError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		pe.Code = ErrTimeout
		pe.Message = "operation timed out"
		return pe
	}

	if errors.Is(err, context.Canceled) {
		pe.Code = ErrContextCancelled
		pe.Message = "operation cancelled"
		return pe
	}

	if errors.Is(err, ErrNotFound) {
		pe.Code = ErrInputUnavailable
		pe.Message = err.Error()
		return pe
	}

	if errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidState) {
		pe.Code = ErrValidationViolation
		pe.Message = err.Error()
		return pe
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	// Missing input patterns
	if strings.Contains(lower, "no transcript") || strings.Contains(lower, "transcript is empty") || strings.Contains(lower, "no speech detected") {
		pe.Code = ErrInputUnavailable
		pe.Message = msg
		return pe
	}

	// Malformed model output patterns
	if strings.Contains(lower, "invalid json") || strings.Contains(lower, "unmarshal") || strings.Contains(lower, "parse") || strings.Contains(lower, "malformed") {
		pe.Code = ErrMalformedResponse
		pe.Message = msg
		return pe
	}

	// Rate limit patterns
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "quota exceeded") {
		pe.Code = ErrRateLimit
		pe.Message = msg
		return pe
	}

	// Model/service unavailable patterns
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "unavailable") || strings.Contains(lower, "503") || strings.Contains(lower, "no such host") {
		pe.Code = ErrModelUnavailable
		pe.Message = msg
		return pe
	}

	// Generic upstream failure patterns
	if strings.Contains(lower, "upstream") || strings.Contains(lower, "status 5") || strings.Contains(lower, "bad gateway") {
		pe.Code = ErrUpstreamCallFailure
		pe.Message = msg
		return pe
	}

	pe.Code = ErrProcessingError
	pe.Message = msg
	return pe
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == ErrTimeout
	}
	return false
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
// This function checks the error code using the ErrorCodeRegistry.
func IsErrorRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		if info, ok := ErrorCodeRegistry[pe.Code]; ok {
			return info.Retryable
		}
		return false
	}
	return false
}
