package checklist

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrChecklistNotFound = fmt.Errorf("checklist %w", ErrNotFound)
	ErrReportNotFound    = fmt.Errorf("report %w", ErrNotFound)
	ErrPersistence       = errors.New("persistence failure")
)

// ValidationError carries the human-readable reason a checklist or result set
// was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// PersistenceError wraps a storage read/write or decode failure.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
