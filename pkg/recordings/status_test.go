package recordings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"recording to completed", StatusRecording, StatusCompleted, true},
		{"completed to processing", StatusCompleted, StatusProcessing, true},
		{"processing to processed", StatusProcessing, StatusProcessed, true},
		{"processing to error", StatusProcessing, StatusError, true},
		{"error to processing (reprocess)", StatusError, StatusProcessing, true},
		{"processed to processing (reprocess)", StatusProcessed, StatusProcessing, true},
		{"recording to processing skips completed", StatusRecording, StatusProcessing, false},
		{"completed to processed skips processing", StatusCompleted, StatusProcessed, false},
		{"processed to completed", StatusProcessed, StatusCompleted, false},
		{"error to processed", StatusError, StatusProcessed, false},
		{"recording to itself", StatusRecording, StatusRecording, false},
		{"unknown status", Status("bogus"), StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusCompleted, StatusProcessing))

	err := ValidateTransition(StatusRecording, StatusProcessed)
	assert.Error(t, err)
	assert.ErrorIs(t, err, xperrors.ErrInvalidState)
	assert.Contains(t, err.Error(), "recording")
	assert.Contains(t, err.Error(), "processed")
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusProcessed.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
	assert.False(t, StatusRecording.IsTerminal())
	assert.False(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusRecording, StatusCompleted, StatusProcessing, StatusProcessed, StatusError} {
		assert.True(t, s.Valid(), "expected %q to be valid", s)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("done").Valid())
}
