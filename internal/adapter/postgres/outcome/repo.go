// Package outcome implements the Outcome repository using PostgreSQL.
// Outcome usage is counted through patient entries, not service logs.
package outcome

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// Repo provides outcome persistence backed by PostgreSQL.
type Repo struct {
	db   postgres.DB
	base *postgres.Repository[domain.Outcome, row, int64]
}

// New creates a new outcome repository.
func New(db postgres.DB, auditor postgres.Auditor, logger *slog.Logger) *Repo {
	return &Repo{
		db:   db,
		base: postgres.NewRepository[domain.Outcome, row, int64](db, mapper{}, auditor, logger),
	}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const usageStatsSQL = `
SELECT o.id, o.name, o.is_active, COUNT(sl.id) AS usage_count, MAX(sl.service_date) AS last_used
FROM outcomes o
LEFT JOIN patient_entries pe ON pe.outcome_id = o.id
LEFT JOIN service_logs sl ON sl.id = pe.service_log_id AND sl.deleted_at IS NULL
WHERE o.deleted_at IS NULL
GROUP BY o.id, o.name, o.is_active
ORDER BY usage_count DESC, o.name`

const namesSQL = `SELECT id, name FROM outcomes`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a live outcome.
func (r *Repo) GetByID(ctx context.Context, id int64) (*domain.Outcome, error) {
	o, err := r.base.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns a page of live outcomes ordered by name.
func (r *Repo) List(ctx context.Context, page, limit int) (domain.Page[domain.Outcome], error) {
	return r.base.FindAll(ctx, postgres.FindOptions{Page: page, Limit: limit, OrderBy: "name"})
}

// FindByName looks an outcome up by name, case-insensitively.
func (r *Repo) FindByName(ctx context.Context, name string) (*domain.Outcome, error) {
	o, err := r.base.FindOne(ctx, sq.Expr("lower(name) = lower(?)", name))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindActive returns the outcomes selectable on new patient entries.
func (r *Repo) FindActive(ctx context.Context) ([]domain.Outcome, error) {
	return r.base.FindWhere(ctx, sq.Eq{"is_active": true}, 0, "name")
}

// FindWithUsageStats returns every live outcome with the number of patient
// entries of live service logs that recorded it.
func (r *Repo) FindWithUsageStats(ctx context.Context) ([]domain.UsageStats, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.db).Query(ctx, usageStatsSQL)
	if err != nil {
		return nil, fmt.Errorf("outcome usage stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.UsageStats
	for rows.Next() {
		var (
			s        domain.UsageStats
			count    int64
			lastUsed pgtype.Date
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.IsActive, &count, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan outcome usage stats: %w", err)
		}
		s.UsageCount = int(count)
		if lastUsed.Valid {
			s.LastUsedAt = &lastUsed.Time
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outcome usage stats: %w", err)
	}
	return stats, nil
}

// Names returns the id→name map of all outcomes, soft-deleted included.
func (r *Repo) Names(ctx context.Context) (map[int64]string, error) {
	return postgres.LoadNames(ctx, r.db, namesSQL, "outcome")
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts an outcome.
func (r *Repo) Create(ctx context.Context, o domain.Outcome, actor uuid.UUID) (*domain.Outcome, error) {
	o.Name = strings.TrimSpace(o.Name)
	if err := domain.ValidateName(o.Name); err != nil {
		return nil, err
	}
	created, err := r.base.Create(ctx, o, actor)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// BulkCreate inserts all outcomes or none.
func (r *Repo) BulkCreate(ctx context.Context, outcomes []domain.Outcome, actor uuid.UUID) ([]domain.Outcome, error) {
	for i := range outcomes {
		outcomes[i].Name = strings.TrimSpace(outcomes[i].Name)
		if err := domain.ValidateName(outcomes[i].Name); err != nil {
			return nil, &domain.BulkError{Index: i, Err: err}
		}
	}
	return r.base.BulkCreate(ctx, outcomes, actor)
}

// Update applies patch to a live outcome.
func (r *Repo) Update(ctx context.Context, id int64, patch domain.OutcomePatch, actor uuid.UUID) (*domain.Outcome, error) {
	if patch.Name != nil {
		if err := domain.ValidateName(*patch.Name); err != nil {
			return nil, err
		}
	}
	updated, err := r.base.Update(ctx, id, patch, actor)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete soft-deletes an outcome.
func (r *Repo) Delete(ctx context.Context, id int64, actor uuid.UUID) error {
	return r.base.SoftDelete(ctx, id, actor)
}

// HardDelete removes an outcome permanently.
func (r *Repo) HardDelete(ctx context.Context, id int64, actor uuid.UUID) (bool, error) {
	return r.base.HardDelete(ctx, id, actor)
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID        int64
	Name      string
	Category  pgtype.Text
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt pgtype.Timestamptz
}

type mapper struct{}

func (mapper) Table() postgres.TableSpec {
	return postgres.TableSpec{
		Name:       "outcomes",
		Entity:     "outcome",
		Key:        "id",
		Columns:    []string{"name", "category", "is_active", "created_at", "updated_at", "deleted_at"},
		SoftDelete: true,
		Conflicts:  map[string]string{"outcomes_name_unique": "name"},
	}
}

func (mapper) ScanRow(r pgx.Row) (row, error) {
	var out row
	err := r.Scan(&out.ID, &out.Name, &out.Category, &out.IsActive, &out.CreatedAt, &out.UpdatedAt, &out.DeletedAt)
	return out, err
}

func (mapper) RowValues(r row) []any {
	return []any{r.Name, r.Category, r.IsActive, r.CreatedAt, r.UpdatedAt, r.DeletedAt}
}

func (mapper) RowKey(r row) int64 { return r.ID }

func (mapper) NewKey() (int64, bool) { return 0, false }

func (mapper) ToDomain(r row) domain.Outcome {
	return domain.Outcome{
		ID:        r.ID,
		Name:      r.Name,
		Category:  postgres.TextPtr(r.Category),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		DeletedAt: postgres.TimePtr(r.DeletedAt),
	}
}

func (mapper) ToRow(o domain.Outcome) row {
	return row{
		ID:        o.ID,
		Name:      o.Name,
		Category:  postgres.Text(o.Category),
		IsActive:  o.IsActive,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		DeletedAt: postgres.Timestamptz(o.DeletedAt),
	}
}
