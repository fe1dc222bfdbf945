package service

import (
	"errors"
	"fmt"

	"schoolcrm_backend/internals/constants"
	"schoolcrm_backend/internals/directory"
	"schoolcrm_backend/internals/features/tasks/policy"
)

var (
	// ErrNotFound covers both a missing entity and one the caller may not
	// touch. The message is the same either way.
	ErrNotFound   = errors.New(constants.ErrTaskNotFound)
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
)

// ValidationError is a bad or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// storageErr wraps a lower-level failure so callers can match ErrStorage
// while logs keep the cause.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// mapLookup turns "no such row" and policy denials into ErrNotFound.
func mapLookup(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, policy.ErrNotFound):
		return ErrNotFound
	default:
		return storageErr(op, err)
	}
}
