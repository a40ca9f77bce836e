package domain

import (
	"errors"
	"fmt"
)

// Error classes surfaced by the billing engine. Callers match them with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrInvalidReference = errors.New("invalid reference")
	ErrInvalidState     = errors.New("invalid state")
	ErrConcurrency      = errors.New("concurrent modification")
	ErrInfrastructure   = errors.New("infrastructure failure")
)

// InfrastructureError wraps a persistence, rendering or delivery failure.
// errors.Is matches both ErrInfrastructure and the underlying cause.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func (e *InfrastructureError) Is(target error) bool {
	return target == ErrInfrastructure
}

// Invalid builds an ErrValidation error with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound error naming the missing entity.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// IsClassified reports whether err already carries one of the error classes above.
func IsClassified(err error) bool {
	for _, target := range []error{ErrValidation, ErrNotFound, ErrInvalidReference, ErrInvalidState, ErrConcurrency, ErrInfrastructure} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// InvalidState builds an ErrInvalidState error with a formatted reason.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
