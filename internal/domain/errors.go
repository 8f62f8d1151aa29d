package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("record changed since it was read")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRunInProgress    = errors.New("reminder run already in progress")
	ErrSubscriptionGone = errors.New("push subscription gone")
)

// DuplicateError reports a uniqueness conflict on a single field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// ValidationError carries the caller-facing message for a rejected payload.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError with a formatted message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
