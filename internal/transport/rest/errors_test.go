package rest

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

func TestPresentError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantFields []FieldError
	}{
		{
			name:       "validation",
			err:        domain.NewValidationError("date_to", "must not be before date_from"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
			wantFields: []FieldError{{Field: "date_to", Message: "must not be before date_from"}},
		},
		{
			name:       "bulk item validation",
			err:        &domain.BulkError{Index: 1, Err: domain.NewValidationError("dna_count", "too many")},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
			wantFields: []FieldError{{Field: "entries[1].dna_count", Message: "too many"}},
		},
		{name: "invalid format", err: fmt.Errorf("export: %w", domain.ErrInvalidFormat), wantStatus: http.StatusBadRequest, wantCode: "INVALID_FORMAT"},
		{name: "not found", err: fmt.Errorf("service log x: %w", domain.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{
			name:       "duplicate",
			err:        &domain.ConflictError{Entity: "client", Field: "name", Value: "Acme"},
			wantStatus: http.StatusConflict,
			wantCode:   "ALREADY_EXISTS",
			wantFields: []FieldError{{Field: "name", Message: "already exists"}},
		},
		{name: "conflict", err: domain.ErrConflict, wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "unauthorized", err: domain.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHENTICATED"},
		{name: "forbidden", err: domain.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "unexpected", err: errors.New(`pq: relation "service_logs" does not exist`), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, resp := presentError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantFields, resp.Fields)
		})
	}
}

func TestPresentError_InternalHidesStoreText(t *testing.T) {
	t.Parallel()

	_, resp := presentError(errors.New("duplicate key value violates unique constraint"))
	assert.Equal(t, "internal server error", resp.Message)
}
