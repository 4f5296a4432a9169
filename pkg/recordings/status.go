package recordings

import (
	"fmt"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
)

// Status is the recording lifecycle state.
//
// recording -> completed -> processing -> processed is the happy path.
// Any stage failure moves processing -> error; a manual reprocess moves
// error -> processed again via processing.
type Status string

const (
	StatusRecording  Status = "recording"
	StatusCompleted  Status = "completed"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusError      Status = "error"
)

var statusTransitions = map[Status][]Status{
	StatusRecording:  {StatusCompleted},
	StatusCompleted:  {StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusError},
	// Terminal until an explicit reprocess/retranscribe action.
	StatusProcessed: {StatusProcessing},
	StatusError:     {StatusProcessing},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidState when the transition is not legal.
func ValidateTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("cannot transition recording from %q to %q: %w", from, to, xperrors.ErrInvalidState)
	}
	return nil
}

// IsTerminal reports whether the status ends a processing pass.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusError
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusRecording, StatusCompleted, StatusProcessing, StatusProcessed, StatusError:
		return true
	}
	return false
}
