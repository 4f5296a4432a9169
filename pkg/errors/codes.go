package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrTimeout: {
		Code:            ErrTimeout,
		Retryable:       true,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Check the model endpoint latency and the configured stage timeouts",
	},
	ErrRateLimit: {
		Code:            ErrRateLimit,
		Retryable:       true,
		Description:     "API rate limit exceeded",
		SuggestedAction: "Wait and retry automatically, or check quota limits with the model provider",
	},
	ErrModelUnavailable: {
		Code:            ErrModelUnavailable,
		Retryable:       true,
		Description:     "Model endpoint unavailable",
		SuggestedAction: "Check service health: expopulse insights health, or verify the model deployment",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Retryable:       false,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Check if cancellation was intentional, or investigate upstream cancellation",
	},
	ErrInputUnavailable: {
		Code:            ErrInputUnavailable,
		Retryable:       false,
		Description:     "Required input is missing or empty (e.g. no transcript)",
		SuggestedAction: "Verify the recording has speech content: expopulse recordings show <id>",
	},
	ErrUpstreamCallFailure: {
		Code:            ErrUpstreamCallFailure,
		Retryable:       true,
		Description:     "Call to the model endpoint failed",
		SuggestedAction: "Check endpoint reachability and credentials, then reprocess the recording",
	},
	ErrMalformedResponse: {
		Code:            ErrMalformedResponse,
		Retryable:       false,
		Description:     "Model response could not be parsed as the expected structure",
		SuggestedAction: "Inspect the stored error message; the retry loop already attempted a repair prompt",
	},
	ErrValidationViolation: {
		Code:            ErrValidationViolation,
		Retryable:       false,
		Description:     "Stage output failed post-validation",
		SuggestedAction: "Reprocess the recording; if persistent, the model may need a stricter prompt",
	},
	ErrTokenLimit: {
		Code:            ErrTokenLimit,
		Retryable:       false,
		Description:     "Model response truncated at the token limit",
		SuggestedAction: "Increase max tokens or shorten the transcript window",
	},
	ErrProcessingError: {
		Code:            ErrProcessingError,
		Retryable:       false,
		Description:     "Unclassified processing error",
		SuggestedAction: "Check logs for the recording id and reprocess once the cause is fixed",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check service logs for more details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
