package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrInvalidFormat = errors.New("invalid format")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// ConflictError reports a uniqueness violation on a business field.
// It matches ErrAlreadyExists with errors.Is.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, ErrAlreadyExists)
	}
	return fmt.Sprintf("%s with %s %q: %s", e.Entity, e.Field, e.Value, ErrAlreadyExists)
}

func (e *ConflictError) Unwrap() error { return ErrAlreadyExists }

// BulkError reports the position of the first failing item of a bulk
// operation. Nothing of the batch was persisted.
type BulkError struct {
	Index int
	Err   error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk item %d: %v", e.Index, e.Err)
}

func (e *BulkError) Unwrap() error { return e.Err }
