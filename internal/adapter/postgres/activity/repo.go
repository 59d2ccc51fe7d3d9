// Package activity implements the Activity repository using PostgreSQL.
package activity

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

// Repo provides activity persistence backed by PostgreSQL.
type Repo struct {
	db   postgres.DB
	base *postgres.Repository[domain.Activity, row, int64]
}

// New creates a new activity repository.
func New(db postgres.DB, auditor postgres.Auditor, logger *slog.Logger) *Repo {
	return &Repo{
		db:   db,
		base: postgres.NewRepository[domain.Activity, row, int64](db, mapper{}, auditor, logger),
	}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const usageStatsSQL = `
SELECT a.id, a.name, a.is_active, COUNT(sl.id) AS usage_count, MAX(sl.service_date) AS last_used
FROM activities a
LEFT JOIN service_logs sl ON sl.activity_id = a.id AND sl.deleted_at IS NULL
WHERE a.deleted_at IS NULL
GROUP BY a.id, a.name, a.is_active
ORDER BY usage_count DESC, a.name`

const namesSQL = `SELECT id, name FROM activities`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a live activity.
func (r *Repo) GetByID(ctx context.Context, id int64) (*domain.Activity, error) {
	a, err := r.base.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns a page of live activities ordered by name.
func (r *Repo) List(ctx context.Context, page, limit int) (domain.Page[domain.Activity], error) {
	return r.base.FindAll(ctx, postgres.FindOptions{Page: page, Limit: limit, OrderBy: "name"})
}

// FindByName looks an activity up by name, case-insensitively.
func (r *Repo) FindByName(ctx context.Context, name string) (*domain.Activity, error) {
	a, err := r.base.FindOne(ctx, sq.Expr("lower(name) = lower(?)", name))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindActive returns the activities offered for new service logs.
func (r *Repo) FindActive(ctx context.Context) ([]domain.Activity, error) {
	return r.base.FindWhere(ctx, sq.Eq{"is_active": true}, 0, "name")
}

// FindWithUsageStats returns every live activity with its service-log count.
func (r *Repo) FindWithUsageStats(ctx context.Context) ([]domain.UsageStats, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.db).Query(ctx, usageStatsSQL)
	if err != nil {
		return nil, fmt.Errorf("activity usage stats: %w", err)
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
			return nil, fmt.Errorf("scan activity usage stats: %w", err)
		}
		s.UsageCount = int(count)
		if lastUsed.Valid {
			s.LastUsedAt = &lastUsed.Time
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity usage stats: %w", err)
	}
	return stats, nil
}

// Names returns the id→name map of all activities, soft-deleted included.
func (r *Repo) Names(ctx context.Context) (map[int64]string, error) {
	return postgres.LoadNames(ctx, r.db, namesSQL, "activity")
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts an activity.
func (r *Repo) Create(ctx context.Context, a domain.Activity, actor uuid.UUID) (*domain.Activity, error) {
	a.Name = strings.TrimSpace(a.Name)
	if err := domain.ValidateName(a.Name); err != nil {
		return nil, err
	}
	created, err := r.base.Create(ctx, a, actor)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// BulkCreate inserts all activities or none.
func (r *Repo) BulkCreate(ctx context.Context, activities []domain.Activity, actor uuid.UUID) ([]domain.Activity, error) {
	for i := range activities {
		activities[i].Name = strings.TrimSpace(activities[i].Name)
		if err := domain.ValidateName(activities[i].Name); err != nil {
			return nil, &domain.BulkError{Index: i, Err: err}
		}
	}
	return r.base.BulkCreate(ctx, activities, actor)
}

// Update applies patch to a live activity.
func (r *Repo) Update(ctx context.Context, id int64, patch domain.ActivityPatch, actor uuid.UUID) (*domain.Activity, error) {
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

// Delete soft-deletes an activity.
func (r *Repo) Delete(ctx context.Context, id int64, actor uuid.UUID) error {
	return r.base.SoftDelete(ctx, id, actor)
}

// HardDelete removes an activity permanently.
func (r *Repo) HardDelete(ctx context.Context, id int64, actor uuid.UUID) (bool, error) {
	return r.base.HardDelete(ctx, id, actor)
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID          int64
	Name        string
	Description pgtype.Text
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   pgtype.Timestamptz
}

type mapper struct{}

func (mapper) Table() postgres.TableSpec {
	return postgres.TableSpec{
		Name:       "activities",
		Entity:     "activity",
		Key:        "id",
		Columns:    []string{"name", "description", "is_active", "created_at", "updated_at", "deleted_at"},
		SoftDelete: true,
		Conflicts:  map[string]string{"activities_name_unique": "name"},
	}
}

func (mapper) ScanRow(r pgx.Row) (row, error) {
	var out row
	err := r.Scan(&out.ID, &out.Name, &out.Description, &out.IsActive, &out.CreatedAt, &out.UpdatedAt, &out.DeletedAt)
	return out, err
}

func (mapper) RowValues(r row) []any {
	return []any{r.Name, r.Description, r.IsActive, r.CreatedAt, r.UpdatedAt, r.DeletedAt}
}

func (mapper) RowKey(r row) int64 { return r.ID }

func (mapper) NewKey() (int64, bool) { return 0, false }

func (mapper) ToDomain(r row) domain.Activity {
	return domain.Activity{
		ID:          r.ID,
		Name:        r.Name,
		Description: postgres.TextPtr(r.Description),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DeletedAt:   postgres.TimePtr(r.DeletedAt),
	}
}

func (mapper) ToRow(a domain.Activity) row {
	return row{
		ID:          a.ID,
		Name:        a.Name,
		Description: postgres.Text(a.Description),
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		DeletedAt:   postgres.Timestamptz(a.DeletedAt),
	}
}
