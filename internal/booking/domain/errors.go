package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrAssignmentNotFound is returned when a job has no active assignment.
	ErrAssignmentNotFound = errors.New("active assignment not found")

	// ErrUserNotFound is returned when a user lookup fails.
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyBooked is returned when the translator already holds an
	// active assignment overlapping the job's due time.
	ErrAlreadyBooked = errors.New("translator already booked at that time")

	// ErrAlreadyAssigned is returned when an acceptance attempt loses the
	// race for a pending job.
	ErrAlreadyAssigned = errors.New("job already assigned to another translator")

	// ErrCancellationWindowClosed is returned when a translator tries to
	// cancel less than 24 hours before the session.
	ErrCancellationWindowClosed = errors.New("cancellation window closed")

	// ErrInvalidEnum is returned when a stored or submitted enum value is
	// outside its closed set.
	ErrInvalidEnum = errors.New("invalid enum value")
)

// ValidationError reports a rejected input with the field that caused it.
// No mutation has occurred when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
