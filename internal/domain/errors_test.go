package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_SingleField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("dna_count", "must not exceed new + followup patients")

	if got := err.Error(); got != "validation: dna_count: must not exceed new + followup patients" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("errors.Is(err, ErrValidation) = false")
	}
}

func TestValidationError_MultipleFields(t *testing.T) {
	t.Parallel()

	err := NewValidationErrors([]FieldError{
		{Field: "name", Message: "required"},
		{Field: "patient_count", Message: "must be >= 0"},
	})

	if got := err.Error(); got != "validation: 2 errors" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("errors.Is(err, ErrValidation) = false")
	}
	if len(err.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(err.Errors))
	}
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	var err error = fmt.Errorf("create client: %w", &ConflictError{Entity: "client", Field: "name", Value: "North Site"})

	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatal("errors.Is(err, ErrAlreadyExists) = false")
	}
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As(err, *ConflictError) = false")
	}
	if ce.Field != "name" || ce.Value != "North Site" {
		t.Errorf("unexpected conflict context: %+v", ce)
	}
	if got := ce.Error(); got != `client with name "North Site": already exists` {
		t.Errorf("unexpected Error(): %q", got)
	}
}

func TestBulkError(t *testing.T) {
	t.Parallel()

	inner := NewValidationError("name", "required")
	err := &BulkError{Index: 3, Err: inner}

	if got := err.Error(); got != "bulk item 3: validation: name: required" {
		t.Errorf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("BulkError should unwrap to the item error")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrValidation,
		ErrUnauthorized, ErrForbidden, ErrConflict, ErrInvalidFormat,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel errors %d and %d should not match", i, j)
			}
		}
	}
}
