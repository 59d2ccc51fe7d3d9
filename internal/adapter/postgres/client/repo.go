// Package client implements the Client repository using PostgreSQL.
// Writes go through the generic audited repository; usage statistics and
// lookups are raw SQL.
package client

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

// Repo provides client persistence backed by PostgreSQL.
type Repo struct {
	db   postgres.DB
	base *postgres.Repository[domain.Client, row, int64]
}

// New creates a new client repository. Mutations are audited through auditor.
func New(db postgres.DB, auditor postgres.Auditor, logger *slog.Logger) *Repo {
	return &Repo{
		db:   db,
		base: postgres.NewRepository[domain.Client, row, int64](db, mapper{}, auditor, logger),
	}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const usageStatsSQL = `
SELECT c.id, c.name, c.is_active, COUNT(sl.id) AS usage_count, MAX(sl.service_date) AS last_used
FROM clients c
LEFT JOIN service_logs sl ON sl.client_id = c.id AND sl.deleted_at IS NULL
WHERE c.deleted_at IS NULL
GROUP BY c.id, c.name, c.is_active
ORDER BY usage_count DESC, c.name`

const namesSQL = `SELECT id, name FROM clients`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a live client. Returns domain.ErrNotFound otherwise.
func (r *Repo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := r.base.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns a page of live clients ordered by name.
func (r *Repo) List(ctx context.Context, page, limit int) (domain.Page[domain.Client], error) {
	return r.base.FindAll(ctx, postgres.FindOptions{Page: page, Limit: limit, OrderBy: "name"})
}

// FindByName returns the live client with the given name, ignoring case.
func (r *Repo) FindByName(ctx context.Context, name string) (*domain.Client, error) {
	c, err := r.base.FindOne(ctx, sq.Expr("lower(name) = lower(?)", name))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindActive returns all live, active clients ordered by name.
func (r *Repo) FindActive(ctx context.Context) ([]domain.Client, error) {
	return r.base.FindWhere(ctx, sq.Eq{"is_active": true}, 0, "name")
}

// FindWithUsageStats returns every live client with the number of live
// service logs referencing it and the latest service date.
func (r *Repo) FindWithUsageStats(ctx context.Context) ([]domain.UsageStats, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.db).Query(ctx, usageStatsSQL)
	if err != nil {
		return nil, fmt.Errorf("client usage stats: %w", err)
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
			return nil, fmt.Errorf("scan client usage stats: %w", err)
		}
		s.UsageCount = int(count)
		if lastUsed.Valid {
			s.LastUsedAt = &lastUsed.Time
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("client usage stats: %w", err)
	}
	return stats, nil
}

// Names returns the id→name map of all clients, including soft-deleted ones
// so that historical service logs still resolve.
func (r *Repo) Names(ctx context.Context) (map[int64]string, error) {
	return postgres.LoadNames(ctx, r.db, namesSQL, "client")
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a client. A live client with the same name (any case)
// yields a *domain.ConflictError.
func (r *Repo) Create(ctx context.Context, c domain.Client, actor uuid.UUID) (*domain.Client, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := domain.ValidateName(c.Name); err != nil {
		return nil, err
	}
	created, err := r.base.Create(ctx, c, actor)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// BulkCreate inserts all clients in one transaction.
func (r *Repo) BulkCreate(ctx context.Context, clients []domain.Client, actor uuid.UUID) ([]domain.Client, error) {
	for i := range clients {
		clients[i].Name = strings.TrimSpace(clients[i].Name)
		if err := domain.ValidateName(clients[i].Name); err != nil {
			return nil, &domain.BulkError{Index: i, Err: err}
		}
	}
	return r.base.BulkCreate(ctx, clients, actor)
}

// Update applies patch to a live client.
func (r *Repo) Update(ctx context.Context, id int64, patch domain.ClientPatch, actor uuid.UUID) (*domain.Client, error) {
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

// Delete soft-deletes a client.
func (r *Repo) Delete(ctx context.Context, id int64, actor uuid.UUID) error {
	return r.base.SoftDelete(ctx, id, actor)
}

// HardDelete removes a client permanently. Returns false if it did not exist.
func (r *Repo) HardDelete(ctx context.Context, id int64, actor uuid.UUID) (bool, error) {
	return r.base.HardDelete(ctx, id, actor)
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID        int64
	Name      string
	Code      pgtype.Text
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt pgtype.Timestamptz
}

type mapper struct{}

func (mapper) Table() postgres.TableSpec {
	return postgres.TableSpec{
		Name:       "clients",
		Entity:     "client",
		Key:        "id",
		Columns:    []string{"name", "code", "is_active", "created_at", "updated_at", "deleted_at"},
		SoftDelete: true,
		Conflicts:  map[string]string{"clients_name_unique": "name"},
	}
}

func (mapper) ScanRow(r pgx.Row) (row, error) {
	var out row
	err := r.Scan(&out.ID, &out.Name, &out.Code, &out.IsActive, &out.CreatedAt, &out.UpdatedAt, &out.DeletedAt)
	return out, err
}

func (mapper) RowValues(r row) []any {
	return []any{r.Name, r.Code, r.IsActive, r.CreatedAt, r.UpdatedAt, r.DeletedAt}
}

func (mapper) RowKey(r row) int64 { return r.ID }

func (mapper) NewKey() (int64, bool) { return 0, false }

func (mapper) ToDomain(r row) domain.Client {
	return domain.Client{
		ID:        r.ID,
		Name:      r.Name,
		Code:      postgres.TextPtr(r.Code),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		DeletedAt: postgres.TimePtr(r.DeletedAt),
	}
}

func (mapper) ToRow(c domain.Client) row {
	return row{
		ID:        c.ID,
		Name:      c.Name,
		Code:      postgres.Text(c.Code),
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		DeletedAt: postgres.Timestamptz(c.DeletedAt),
	}
}
