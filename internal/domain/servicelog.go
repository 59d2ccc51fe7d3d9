package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ServiceLog is one record of services delivered by a user on a date.
type ServiceLog struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ClientID     int64
	ActivityID   int64
	ServiceDate  time.Time
	PatientCount int
	IsDraft      bool
	SubmittedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time

	Entries []PatientEntry
}

// PatientEntry is an appointment-type breakdown line of a service log.
type PatientEntry struct {
	ID               uuid.UUID
	ServiceLogID     uuid.UUID
	NewPatients      int
	FollowupPatients int
	DNACount         int
	OutcomeID        *int64
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MaxCount is the largest value the integer count columns can hold.
const MaxCount = math.MaxInt32

// checkCount appends a field error when v is outside [0, MaxCount].
func checkCount(errs []FieldError, field string, v int) ([]FieldError, bool) {
	switch {
	case v < 0:
		return append(errs, FieldError{Field: field, Message: "must be >= 0"}), false
	case v > MaxCount:
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("must be <= %d", MaxCount)}), false
	}
	return errs, true
}

// Validate checks the count invariants of a patient entry.
func (e PatientEntry) Validate() error {
	var errs []FieldError
	errs, _ = checkCount(errs, "new_patients", e.NewPatients)
	errs, _ = checkCount(errs, "followup_patients", e.FollowupPatients)
	errs, dnaOK := checkCount(errs, "dna_count", e.DNACount)
	if dnaOK && e.DNACount > e.NewPatients+e.FollowupPatients {
		errs = append(errs, FieldError{Field: "dna_count", Message: "must not exceed new + followup patients"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Validate checks a service log and all of its entries.
func (l ServiceLog) Validate() error {
	var errs []FieldError
	if l.UserID == uuid.Nil {
		errs = append(errs, FieldError{Field: "user_id", Message: "required"})
	}
	if l.ClientID <= 0 {
		errs = append(errs, FieldError{Field: "client_id", Message: "required"})
	}
	if l.ActivityID <= 0 {
		errs = append(errs, FieldError{Field: "activity_id", Message: "required"})
	}
	if l.ServiceDate.IsZero() {
		errs = append(errs, FieldError{Field: "service_date", Message: "required"})
	}
	errs, _ = checkCount(errs, "patient_count", l.PatientCount)
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	for _, e := range l.Entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ServiceLogPatch holds the fields of a partial service-log update.
type ServiceLogPatch struct {
	ClientID     *int64
	ActivityID   *int64
	ServiceDate  *time.Time
	PatientCount *int
	IsDraft      *bool
	SubmittedAt  *time.Time

	// ClearSubmittedAt resets SubmittedAt to nil and wins over SubmittedAt.
	ClearSubmittedAt bool
}

func (p ServiceLogPatch) Apply(l ServiceLog) ServiceLog {
	if p.ClientID != nil {
		l.ClientID = *p.ClientID
	}
	if p.ActivityID != nil {
		l.ActivityID = *p.ActivityID
	}
	if p.ServiceDate != nil {
		l.ServiceDate = DateOf(*p.ServiceDate)
	}
	if p.PatientCount != nil {
		l.PatientCount = *p.PatientCount
	}
	if p.IsDraft != nil {
		l.IsDraft = *p.IsDraft
	}
	if p.SubmittedAt != nil {
		ts := *p.SubmittedAt
		l.SubmittedAt = &ts
	}
	if p.ClearSubmittedAt {
		l.SubmittedAt = nil
	}
	return l
}

// PatientEntryPatch holds the fields of a partial patient-entry update.
type PatientEntryPatch struct {
	NewPatients      *int
	FollowupPatients *int
	DNACount         *int
	OutcomeID        *int64
	Notes            *string
}

func (p PatientEntryPatch) Apply(e PatientEntry) PatientEntry {
	if p.NewPatients != nil {
		e.NewPatients = *p.NewPatients
	}
	if p.FollowupPatients != nil {
		e.FollowupPatients = *p.FollowupPatients
	}
	if p.DNACount != nil {
		e.DNACount = *p.DNACount
	}
	if p.OutcomeID != nil {
		id := *p.OutcomeID
		e.OutcomeID = &id
	}
	if p.Notes != nil {
		e.Notes = optionalText(*p.Notes)
	}
	return e
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
