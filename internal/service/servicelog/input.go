package servicelog

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// CreateInput holds the parameters for recording a service log.
type CreateInput struct {
	// UserID is the owner. Only admins may set it to someone else;
	// uuid.Nil means the actor.
	UserID       uuid.UUID
	ClientID     int64
	ActivityID   int64
	ServiceDate  time.Time
	PatientCount int
	Entries      []EntryInput
}

// EntryInput holds one patient entry line.
type EntryInput struct {
	NewPatients      int
	FollowupPatients int
	DNACount         int
	OutcomeID        *int64
	Notes            *string
}

func (e EntryInput) toDomain() domain.PatientEntry {
	return domain.PatientEntry{
		NewPatients:      e.NewPatients,
		FollowupPatients: e.FollowupPatients,
		DNACount:         e.DNACount,
		OutcomeID:        e.OutcomeID,
		Notes:            e.Notes,
	}
}

// validateEntries checks every entry and reports the first invalid one by index.
func validateEntries(entries []EntryInput) ([]domain.PatientEntry, error) {
	out := make([]domain.PatientEntry, len(entries))
	for i, in := range entries {
		e := in.toDomain()
		if err := e.Validate(); err != nil {
			return nil, &domain.BulkError{Index: i, Err: err}
		}
		out[i] = e
	}
	return out, nil
}

// UpdateInput holds the editable fields of a draft service log.
type UpdateInput struct {
	ClientID     *int64
	ActivityID   *int64
	ServiceDate  *time.Time
	PatientCount *int
}

func (i UpdateInput) patch() domain.ServiceLogPatch {
	return domain.ServiceLogPatch{
		ClientID:     i.ClientID,
		ActivityID:   i.ActivityID,
		ServiceDate:  i.ServiceDate,
		PatientCount: i.PatientCount,
	}
}
