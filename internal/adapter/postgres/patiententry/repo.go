// Package patiententry implements the PatientEntry repository using PostgreSQL.
// Patient entries have no soft delete: edits of a log replace its entries.
package patiententry

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// Repo provides patient entry persistence backed by PostgreSQL.
type Repo struct {
	base *postgres.Repository[domain.PatientEntry, row, uuid.UUID]
}

// New creates a new patient entry repository.
func New(db postgres.DB, auditor postgres.Auditor, logger *slog.Logger) *Repo {
	return &Repo{
		base: postgres.NewRepository[domain.PatientEntry, row, uuid.UUID](db, mapper{}, auditor, logger),
	}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a single patient entry.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PatientEntry, error) {
	e, err := r.base.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByServiceLog returns the entries of one service log in creation order.
func (r *Repo) ListByServiceLog(ctx context.Context, serviceLogID uuid.UUID) ([]domain.PatientEntry, error) {
	entries, err := r.base.FindWhere(ctx, sq.Eq{"service_log_id": serviceLogID}, 0, "created_at", "id")
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.PatientEntry{}
	}
	return entries, nil
}

// GetByServiceLogIDs loads the entries of many service logs with one query,
// grouped by service log id. Logs without entries are absent from the map.
func (r *Repo) GetByServiceLogIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.PatientEntry, error) {
	out := make(map[uuid.UUID][]domain.PatientEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	entries, err := r.base.FindWhere(ctx,
		sq.Expr("service_log_id = ANY(?::uuid[])", ids), 0,
		"service_log_id", "created_at", "id",
	)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		out[e.ServiceLogID] = append(out[e.ServiceLogID], e)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// BulkCreate validates and inserts all entries in one transaction.
func (r *Repo) BulkCreate(ctx context.Context, entries []domain.PatientEntry, actor uuid.UUID) ([]domain.PatientEntry, error) {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, &domain.BulkError{Index: i, Err: err}
		}
	}
	return r.base.BulkCreate(ctx, entries, actor)
}

// ReplaceForServiceLog hard-deletes the existing entries of a service log and
// inserts entries in their place, all in one transaction.
func (r *Repo) ReplaceForServiceLog(ctx context.Context, serviceLogID uuid.UUID, entries []domain.PatientEntry, actor uuid.UUID) ([]domain.PatientEntry, error) {
	var created []domain.PatientEntry
	err := r.base.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := r.ListByServiceLog(ctx, serviceLogID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if _, err := r.base.HardDelete(ctx, e.ID, actor); err != nil {
				return err
			}
		}

		next := make([]domain.PatientEntry, len(entries))
		for i, e := range entries {
			e.ServiceLogID = serviceLogID
			next[i] = e
		}
		created, err = r.BulkCreate(ctx, next, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies patch to an entry. The merged entry must still be valid.
func (r *Repo) Update(ctx context.Context, id uuid.UUID, patch domain.PatientEntryPatch, actor uuid.UUID) (*domain.PatientEntry, error) {
	var updated domain.PatientEntry
	err := r.base.RunInTx(ctx, func(ctx context.Context) error {
		current, err := r.base.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(current).Validate(); err != nil {
			return err
		}
		updated, err = r.base.Update(ctx, id, patch, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes an entry. Returns false if it did not exist.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) (bool, error) {
	return r.base.HardDelete(ctx, id, actor)
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID               uuid.UUID
	ServiceLogID     uuid.UUID
	NewPatients      int32
	FollowupPatients int32
	DNACount         int32
	OutcomeID        pgtype.Int8
	Notes            pgtype.Text
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type mapper struct{}

func (mapper) Table() postgres.TableSpec {
	return postgres.TableSpec{
		Name:   "patient_entries",
		Entity: "patient entry",
		Key:    "id",
		Columns: []string{
			"service_log_id", "new_patients", "followup_patients", "dna_count",
			"outcome_id", "notes", "created_at", "updated_at",
		},
	}
}

func (mapper) ScanRow(r pgx.Row) (row, error) {
	var out row
	err := r.Scan(&out.ID, &out.ServiceLogID, &out.NewPatients, &out.FollowupPatients, &out.DNACount,
		&out.OutcomeID, &out.Notes, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func (mapper) RowValues(r row) []any {
	return []any{r.ServiceLogID, r.NewPatients, r.FollowupPatients, r.DNACount, r.OutcomeID, r.Notes, r.CreatedAt, r.UpdatedAt}
}

func (mapper) RowKey(r row) uuid.UUID { return r.ID }

func (mapper) NewKey() (uuid.UUID, bool) { return uuid.New(), true }

func (mapper) ToDomain(r row) domain.PatientEntry {
	return domain.PatientEntry{
		ID:               r.ID,
		ServiceLogID:     r.ServiceLogID,
		NewPatients:      int(r.NewPatients),
		FollowupPatients: int(r.FollowupPatients),
		DNACount:         int(r.DNACount),
		OutcomeID:        postgres.Int8Ptr(r.OutcomeID),
		Notes:            postgres.TextPtr(r.Notes),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (mapper) ToRow(e domain.PatientEntry) row {
	return row{
		ID:               e.ID,
		ServiceLogID:     e.ServiceLogID,
		NewPatients:      int32(e.NewPatients),
		FollowupPatients: int32(e.FollowupPatients),
		DNACount:         int32(e.DNACount),
		OutcomeID:        postgres.Int8(e.OutcomeID),
		Notes:            postgres.Text(e.Notes),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}
