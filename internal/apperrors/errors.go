// Package apperrors defines the terminal, user-visible error taxonomy shared
// across the service. Handlers map these onto HTTP status codes in one place.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden signals that the actor lacks rights on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict signals that a state-transition precondition no longer
	// holds; the caller should refetch and retry with current state.
	ErrConflict = errors.New("conflict")

	// ErrInsufficientStock signals a business-rule failure: requested
	// quantity exceeds available stock. Not retryable without changing
	// quantities.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition signals a status change outside the legal edge
	// set.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInternal signals an unrecoverable inconsistency requiring operator
	// intervention.
	ErrInternal = errors.New("internal error")
)

// ValidationError reports malformed or missing input on a named field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
