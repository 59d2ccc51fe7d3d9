// Package servicelog implements the ServiceLog repository using PostgreSQL.
//
// Listing and mutations go through the generic audited repository. Exports
// read through Batches, which pages by keyset on (service_date, id) so that
// memory stays bounded by the batch size. Statistics and breakdowns are
// single aggregate queries sharing the same filter builder.
package servicelog

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/patiententry"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// Repo provides service log persistence backed by PostgreSQL.
type Repo struct {
	db      postgres.DB
	base    *postgres.Repository[domain.ServiceLog, row, uuid.UUID]
	entries *patiententry.Repo
	log     *slog.Logger
}

// New creates a new service log repository.
func New(db postgres.DB, auditor postgres.Auditor, logger *slog.Logger) *Repo {
	return &Repo{
		db:      db,
		base:    postgres.NewRepository[domain.ServiceLog, row, uuid.UUID](db, mapper{}, auditor, logger),
		entries: patiententry.New(db, auditor, logger),
		log:     logger.With("repository", "service_logs"),
	}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a live service log together with its patient entries.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error) {
	l, err := r.base.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := r.entries.ListByServiceLog(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Entries = entries
	return &l, nil
}

// FindByUser returns a page of one user's live service logs, newest first.
func (r *Repo) FindByUser(ctx context.Context, userID uuid.UUID, page, limit int) (domain.Page[domain.ServiceLog], error) {
	return r.Find(ctx, domain.ServiceLogFilter{UserID: &userID}, page, limit)
}

// Find returns a page of live service logs matching filter, newest first.
func (r *Repo) Find(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLog], error) {
	if err := filter.Validate(); err != nil {
		return domain.Page[domain.ServiceLog]{}, err
	}
	return r.base.FindAll(ctx, postgres.FindOptions{
		Page:           page,
		Limit:          limit,
		OrderBy:        "service_date",
		OrderDirection: "DESC",
		Where:          filterWhere(filter, ""),
	})
}

// Batches yields the live service logs matching filter in (service_date, id)
// order, size rows at a time. Entries are not loaded. Iteration stops at the
// first error, which is yielded with a nil batch.
func (r *Repo) Batches(ctx context.Context, filter domain.ServiceLogFilter, size int) iter.Seq2[[]domain.ServiceLog, error] {
	return func(yield func([]domain.ServiceLog, error) bool) {
		if err := filter.Validate(); err != nil {
			yield(nil, err)
			return
		}
		if size <= 0 {
			size = domain.DefaultPageLimit
		}

		where := filterWhere(filter, "")
		var last *domain.ServiceLog
		for {
			cond := sq.And{where}
			if last != nil {
				cond = append(cond, sq.Expr("(service_date, id) > (?, ?)", pgtypeDate(last.ServiceDate), last.ID))
			}

			batch, err := r.base.FindWhere(ctx, cond, size, "service_date", "id")
			if err != nil {
				yield(nil, err)
				return
			}
			if len(batch) == 0 {
				return
			}
			if !yield(batch, nil) {
				return
			}
			if len(batch) < size {
				return
			}
			last = &batch[len(batch)-1]
		}
	}
}

// ---------------------------------------------------------------------------
// Aggregates
// ---------------------------------------------------------------------------

// entrySumsSQL collapses patient entries to one row per service log so that
// joining them does not multiply service-log counts.
const entrySumsSQL = `(
	SELECT service_log_id,
	       SUM(new_patients) AS new_patients,
	       SUM(followup_patients) AS followup_patients,
	       SUM(dna_count) AS dna_count
	FROM patient_entries
	GROUP BY service_log_id
) e ON e.service_log_id = sl.id`

// GetStatistics aggregates the live service logs matching filter in one query.
func (r *Repo) GetStatistics(ctx context.Context, filter domain.ServiceLogFilter) (domain.ServiceLogStatistics, error) {
	if err := filter.Validate(); err != nil {
		return domain.ServiceLogStatistics{}, err
	}

	query, args, err := postgres.Builder().Select(
		"COUNT(*)::bigint",
		"(COUNT(*) FILTER (WHERE sl.is_draft))::bigint",
		"(COUNT(*) FILTER (WHERE NOT sl.is_draft))::bigint",
		"COALESCE(SUM(sl.patient_count), 0)::bigint",
		"COALESCE(AVG(sl.patient_count), 0)::float8",
		"COALESCE(SUM(e.new_patients), 0)::bigint",
		"COALESCE(SUM(e.followup_patients), 0)::bigint",
		"COALESCE(SUM(e.dna_count), 0)::bigint",
	).
		From("service_logs sl").
		LeftJoin(entrySumsSQL).
		Where(liveWhere(filter)).
		ToSql()
	if err != nil {
		return domain.ServiceLogStatistics{}, fmt.Errorf("build service log statistics: %w", err)
	}

	var (
		total, drafts, submitted, patients int64
		newPatients, followup, dna         int64
		stats                              domain.ServiceLogStatistics
	)
	err = postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...).Scan(
		&total, &drafts, &submitted, &patients, &stats.AveragePatients, &newPatients, &followup, &dna,
	)
	if err != nil {
		return domain.ServiceLogStatistics{}, postgres.MapError(err, "service log", "statistics")
	}

	stats.Total = int(total)
	stats.Drafts = int(drafts)
	stats.Submitted = int(submitted)
	stats.TotalPatients = int(patients)
	stats.NewPatients = int(newPatients)
	stats.FollowupPatients = int(followup)
	stats.DNACount = int(dna)
	return stats, nil
}

// Breakdown groups the live service logs matching filter by dim. Client and
// activity groups count logs and sum patient_count; outcome groups count
// patient entries and sum their new and followup patients.
func (r *Repo) Breakdown(ctx context.Context, filter domain.ServiceLogFilter, dim domain.Dimension) ([]domain.DimensionCount, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	b := postgres.Builder().Select().From("service_logs sl")
	switch dim {
	case domain.DimensionClient:
		b = b.Columns("d.id", "d.name", "COUNT(sl.id)::bigint", "COALESCE(SUM(sl.patient_count), 0)::bigint").
			Join("clients d ON d.id = sl.client_id")
	case domain.DimensionActivity:
		b = b.Columns("d.id", "d.name", "COUNT(sl.id)::bigint", "COALESCE(SUM(sl.patient_count), 0)::bigint").
			Join("activities d ON d.id = sl.activity_id")
	case domain.DimensionOutcome:
		b = b.Columns("d.id", "d.name", "COUNT(pe.id)::bigint", "COALESCE(SUM(pe.new_patients + pe.followup_patients), 0)::bigint").
			Join("patient_entries pe ON pe.service_log_id = sl.id").
			Join("outcomes d ON d.id = pe.outcome_id")
	default:
		return nil, domain.NewValidationError("dimension", fmt.Sprintf("unknown dimension %q", dim))
	}

	query, args, err := b.Where(liveWhere(filter)).
		GroupBy("d.id", "d.name").
		OrderBy("3 DESC", "d.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s breakdown: %w", dim, err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "service log", dim.String()+" breakdown")
	}
	defer rows.Close()

	out := []domain.DimensionCount{}
	for rows.Next() {
		var (
			d               domain.DimensionCount
			count, patients int64
		)
		if err := rows.Scan(&d.ID, &d.Name, &count, &patients); err != nil {
			return nil, fmt.Errorf("scan %s breakdown: %w", dim, err)
		}
		d.Count = int(count)
		d.PatientCount = int(patients)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "service log", dim.String()+" breakdown")
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a service log and its entries in one transaction. The log
// id is generated; entry service log ids are overwritten with it.
func (r *Repo) Create(ctx context.Context, l domain.ServiceLog, actor uuid.UUID) (*domain.ServiceLog, error) {
	l.ServiceDate = domain.DateOf(l.ServiceDate)
	if err := l.Validate(); err != nil {
		return nil, err
	}

	var created domain.ServiceLog
	err := r.base.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = r.base.Create(ctx, l, actor)
		if err != nil {
			return err
		}

		entries := make([]domain.PatientEntry, len(l.Entries))
		for i, e := range l.Entries {
			e.ServiceLogID = created.ID
			entries[i] = e
		}
		created.Entries, err = r.entries.BulkCreate(ctx, entries, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update applies patch to a live service log. Entries are untouched;
// use ReplaceEntries for those.
func (r *Repo) Update(ctx context.Context, id uuid.UUID, patch domain.ServiceLogPatch, actor uuid.UUID) (*domain.ServiceLog, error) {
	var updated domain.ServiceLog
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

// ReplaceEntries swaps the patient entries of a live service log.
func (r *Repo) ReplaceEntries(ctx context.Context, id uuid.UUID, entries []domain.PatientEntry, actor uuid.UUID) ([]domain.PatientEntry, error) {
	var replaced []domain.PatientEntry
	err := r.base.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := r.base.FindByID(ctx, id); err != nil {
			return err
		}
		var err error
		replaced, err = r.entries.ReplaceForServiceLog(ctx, id, entries, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// Submit marks a log as submitted at the given time.
func (r *Repo) Submit(ctx context.Context, id uuid.UUID, at time.Time, actor uuid.UUID) (*domain.ServiceLog, error) {
	draft := false
	at = at.UTC().Truncate(time.Microsecond)
	return r.Update(ctx, id, domain.ServiceLogPatch{IsDraft: &draft, SubmittedAt: &at}, actor)
}

// RevertToDraft returns a submitted log to draft and clears submitted_at.
func (r *Repo) RevertToDraft(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*domain.ServiceLog, error) {
	draft := true
	return r.Update(ctx, id, domain.ServiceLogPatch{IsDraft: &draft, ClearSubmittedAt: true}, actor)
}

// Delete soft-deletes a service log. Its entries are kept.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	return r.base.SoftDelete(ctx, id, actor)
}

// HardDelete removes a service log and, by cascade, its entries. The entries
// are deleted through the audited repository first so each gets its own
// DELETE record.
func (r *Repo) HardDelete(ctx context.Context, id uuid.UUID, actor uuid.UUID) (bool, error) {
	var removed bool
	err := r.base.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := r.entries.ReplaceForServiceLog(ctx, id, nil, actor); err != nil {
			return err
		}
		var err error
		removed, err = r.base.HardDelete(ctx, id, actor)
		return err
	})
	return removed, err
}

// BulkDeleteByUser soft-deletes every live service log of userID in one
// transaction and returns how many were deleted.
func (r *Repo) BulkDeleteByUser(ctx context.Context, userID, actor uuid.UUID) (int, error) {
	var deleted int
	err := r.base.RunInTx(ctx, func(ctx context.Context) error {
		logs, err := r.base.FindWhere(ctx, sq.Eq{"user_id": userID}, 0, "service_date", "id")
		if err != nil {
			return err
		}
		for _, l := range logs {
			if err := r.base.SoftDelete(ctx, l.ID, actor); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.InfoContext(ctx, "bulk deleted service logs",
		slog.String("user_id", userID.String()),
		slog.String("actor", actor.String()),
		slog.Int("count", deleted),
	)
	return deleted, nil
}

// SoftDeletedBefore returns the ids of service logs soft-deleted before cutoff.
func (r *Repo) SoftDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	b := postgres.Builder().Select("id").
		From("service_logs").
		Where(sq.Lt{"deleted_at": cutoff}).
		OrderBy("deleted_at", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build soft-deleted query: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "service log", "soft-deleted")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, postgres.MapError(err, "service log", "soft-deleted")
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

// filterWhere translates filter into predicates on columns qualified by
// prefix ("" or "sl.").
func filterWhere(f domain.ServiceLogFilter, prefix string) sq.And {
	and := sq.And{}
	if f.UserID != nil {
		and = append(and, sq.Eq{prefix + "user_id": *f.UserID})
	}
	if f.ClientID != nil {
		and = append(and, sq.Eq{prefix + "client_id": *f.ClientID})
	}
	if f.ActivityID != nil {
		and = append(and, sq.Eq{prefix + "activity_id": *f.ActivityID})
	}
	if f.IsDraft != nil {
		and = append(and, sq.Eq{prefix + "is_draft": *f.IsDraft})
	}
	if f.DateFrom != nil {
		and = append(and, sq.GtOrEq{prefix + "service_date": pgtypeDate(*f.DateFrom)})
	}
	if f.DateTo != nil {
		and = append(and, sq.LtOrEq{prefix + "service_date": pgtypeDate(*f.DateTo)})
	}
	return and
}

// liveWhere is filterWhere for raw queries aliasing service_logs as sl.
func liveWhere(f domain.ServiceLogFilter) sq.And {
	return append(filterWhere(f, "sl."), sq.Expr("sl.deleted_at IS NULL"))
}

func pgtypeDate(t time.Time) pgtype.Date {
	return postgres.Date(domain.DateOf(t))
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ClientID     int64
	ActivityID   int64
	ServiceDate  pgtype.Date
	PatientCount int32
	IsDraft      bool
	SubmittedAt  pgtype.Timestamptz
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    pgtype.Timestamptz
}

type mapper struct{}

func (mapper) Table() postgres.TableSpec {
	return postgres.TableSpec{
		Name:   "service_logs",
		Entity: "service log",
		Key:    "id",
		Columns: []string{
			"user_id", "client_id", "activity_id", "service_date", "patient_count",
			"is_draft", "submitted_at", "created_at", "updated_at", "deleted_at",
		},
		SoftDelete: true,
	}
}

func (mapper) ScanRow(r pgx.Row) (row, error) {
	var out row
	err := r.Scan(&out.ID, &out.UserID, &out.ClientID, &out.ActivityID, &out.ServiceDate, &out.PatientCount,
		&out.IsDraft, &out.SubmittedAt, &out.CreatedAt, &out.UpdatedAt, &out.DeletedAt)
	return out, err
}

func (mapper) RowValues(r row) []any {
	return []any{
		r.UserID, r.ClientID, r.ActivityID, r.ServiceDate, r.PatientCount,
		r.IsDraft, r.SubmittedAt, r.CreatedAt, r.UpdatedAt, r.DeletedAt,
	}
}

func (mapper) RowKey(r row) uuid.UUID { return r.ID }

func (mapper) NewKey() (uuid.UUID, bool) { return uuid.New(), true }

func (mapper) ToDomain(r row) domain.ServiceLog {
	return domain.ServiceLog{
		ID:           r.ID,
		UserID:       r.UserID,
		ClientID:     r.ClientID,
		ActivityID:   r.ActivityID,
		ServiceDate:  r.ServiceDate.Time,
		PatientCount: int(r.PatientCount),
		IsDraft:      r.IsDraft,
		SubmittedAt:  postgres.TimePtr(r.SubmittedAt),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DeletedAt:    postgres.TimePtr(r.DeletedAt),
	}
}

func (mapper) ToRow(l domain.ServiceLog) row {
	return row{
		ID:           l.ID,
		UserID:       l.UserID,
		ClientID:     l.ClientID,
		ActivityID:   l.ActivityID,
		ServiceDate:  postgres.Date(l.ServiceDate),
		PatientCount: int32(l.PatientCount),
		IsDraft:      l.IsDraft,
		SubmittedAt:  postgres.Timestamptz(l.SubmittedAt),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
		DeletedAt:    postgres.Timestamptz(l.DeletedAt),
	}
}
