// Package audit implements the audit trail repository using PostgreSQL.
// It provides append-only writes and history reads over audit_log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

const tableName = "audit_log"

var columns = []string{"id", "table_name", "record_id", "action", "old_values", "new_values", "user_id", `"timestamp"`}

// Repo provides audit log persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new audit repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

const appendSQL = `
INSERT INTO audit_log (table_name, record_id, action, old_values, new_values, user_id, "timestamp")
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Append inserts entry through the querier in ctx, so it takes part in the
// caller's transaction. Satisfies postgres.Auditor.
func (r *Repo) Append(ctx context.Context, entry domain.AuditEntry) error {
	if !entry.Action.IsValid() {
		return fmt.Errorf("audit_log: %w", domain.NewValidationError("action", "invalid audit action"))
	}

	oldJSON, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("audit_log marshal old_values: %w", err)
	}
	newJSON, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("audit_log marshal new_values: %w", err)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, appendSQL,
		entry.TableName, entry.RecordID, entry.Action.String(), oldJSON, newJSON, entry.UserID, ts,
	)
	if err != nil {
		return postgres.MapError(err, "audit_log", entry.TableName+"/"+entry.RecordID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListByRecord returns the history of one record, newest first.
func (r *Repo) ListByRecord(ctx context.Context, table, recordID string, limit int) ([]domain.AuditEntry, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(tableName).
		Where(sq.Eq{"table_name": table, "record_id": recordID}).
		OrderBy(`"timestamp" DESC`, "id DESC").
		Limit(uint64(clampLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit_log query: %w", err)
	}
	return r.query(ctx, query, args)
}

// List returns one page of audit entries matching filter, newest first,
// together with the total number of matching entries.
func (r *Repo) List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, int, error) {
	where := filterWhere(filter)
	q := postgres.QuerierFromCtx(ctx, r.db)

	countSQL, countArgs, err := postgres.Builder().Select("COUNT(*)").From(tableName).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit_log count: %w", err)
	}
	var total int64
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit_log: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	query, args, err := postgres.Builder().
		Select(columns...).
		From(tableName).
		Where(where).
		OrderBy(`"timestamp" DESC`, "id DESC").
		Limit(uint64(clampLimit(limit))).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit_log query: %w", err)
	}

	entries, err := r.query(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	return entries, int(total), nil
}

func filterWhere(f domain.AuditFilter) sq.And {
	where := sq.And{}
	if f.TableName != nil {
		where = append(where, sq.Eq{"table_name": *f.TableName})
	}
	if f.RecordID != nil {
		where = append(where, sq.Eq{"record_id": *f.RecordID})
	}
	if f.Action != nil {
		where = append(where, sq.Eq{"action": f.Action.String()})
	}
	if f.UserID != nil {
		where = append(where, sq.Eq{"user_id": *f.UserID})
	}
	if f.From != nil {
		where = append(where, sq.GtOrEq{`"timestamp"`: *f.From})
	}
	if f.To != nil {
		where = append(where, sq.LtOrEq{`"timestamp"`: *f.To})
	}
	return where
}

func (r *Repo) query(ctx context.Context, query string, args []any) ([]domain.AuditEntry, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_log: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit_log: %w", err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func scanEntry(row pgx.Row) (domain.AuditEntry, error) {
	var (
		e         domain.AuditEntry
		action    string
		oldValues []byte
		newValues []byte
		userID    uuid.UUID
	)
	if err := row.Scan(&e.ID, &e.TableName, &e.RecordID, &action, &oldValues, &newValues, &userID, &e.Timestamp); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("scan audit_log: %w", err)
	}

	e.Action = domain.AuditAction(action)
	e.UserID = userID

	var err error
	if e.OldValues, err = unmarshalValues(oldValues); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit_log %d unmarshal old_values: %w", e.ID, err)
	}
	if e.NewValues, err = unmarshalValues(newValues); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit_log %d unmarshal new_values: %w", e.ID, err)
	}
	return e, nil
}

// marshalValues encodes a snapshot; a nil snapshot is stored as SQL NULL.
func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func unmarshalValues(data []byte) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func clampLimit(limit int) int {
	_, limit = domain.NormalizePage(1, limit)
	return limit
}
