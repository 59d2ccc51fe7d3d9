package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceLogFilter contains the optional predicates of service-log queries.
// Set fields are combined with AND.
type ServiceLogFilter struct {
	UserID     *uuid.UUID
	ClientID   *int64
	ActivityID *int64
	IsDraft    *bool
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Validate rejects an inverted date range.
func (f ServiceLogFilter) Validate() error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return NewValidationError("date_to", "must not be before date_from")
	}
	return nil
}
