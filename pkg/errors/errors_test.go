package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelHelpers(t *testing.T) {
	helpers := []struct {
		name     string
		sentinel error
		check    func(error) bool
		other    error
	}{
		{"not found", ErrNotFound, IsNotFound, ErrConflict},
		{"conflict", ErrConflict, IsConflict, ErrNotFound},
		{"validation", ErrValidation, IsValidation, ErrNotFound},
		{"already exists", ErrAlreadyExists, IsAlreadyExists, ErrConflict},
		{"invalid state", ErrInvalidState, IsInvalidState, ErrValidation},
		{"locked", ErrLocked, IsLocked, ErrConflict},
	}

	for _, h := range helpers {
		t.Run(h.name, func(t *testing.T) {
			assert.True(t, h.check(h.sentinel), "direct match")
			assert.True(t, h.check(fmt.Errorf("repo: %w", h.sentinel)), "wrapped once")
			assert.True(t, h.check(fmt.Errorf("service: %w", fmt.Errorf("repo: %w", h.sentinel))), "wrapped twice")
			assert.False(t, h.check(h.other), "different sentinel")
			assert.False(t, h.check(nil), "nil error")
			assert.False(t, h.check(errors.New("unrelated")), "unrelated error")
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{
		ErrNotFound,
		ErrConflict,
		ErrValidation,
		ErrAlreadyExists,
		ErrInvalidState,
		ErrLocked,
	}

	for i, e1 := range all {
		for j, e2 := range all {
			if i != j {
				assert.False(t, errors.Is(e1, e2), "%v and %v must be distinct", e1, e2)
			}
		}
	}
}
