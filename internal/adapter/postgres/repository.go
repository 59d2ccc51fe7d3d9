package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/telemetry"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Builder returns a squirrel statement builder using $n placeholders.
func Builder() sq.StatementBuilderType { return psql }

const (
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
	colDeletedAt = "deleted_at"
)

// TableSpec describes how an entity is stored.
type TableSpec struct {
	Name   string
	Entity string
	Key    string
	// Columns lists every stored column except Key, in RowValues order.
	Columns []string
	// SoftDelete enables deleted_at stamping and filtering.
	SoftDelete bool
	// Conflicts maps unique constraint names to the business field they protect.
	Conflicts map[string]string
}

// Mapper supplies the per-entity behaviour of a Repository.
type Mapper[D, R any, K comparable] interface {
	Table() TableSpec
	ScanRow(row pgx.Row) (R, error)
	RowValues(r R) []any
	RowKey(r R) K
	// NewKey returns a key for a new row, or false when the store assigns it.
	NewKey() (K, bool)
	ToDomain(r R) D
	ToRow(d D) R
}

// Patch is a partial update merged against the current value.
type Patch[D any] interface {
	Apply(current D) D
}

// Auditor persists audit entries through the querier found in ctx.
type Auditor interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
}

// Repository implements storage and the audit side effect for one entity.
// Every mutation and its audit entry are written in one transaction.
type Repository[D, R any, K comparable] struct {
	db     DB
	tx     *TxManager
	mapper Mapper[D, R, K]
	spec   TableSpec
	audit  Auditor
	log    *slog.Logger
	now    func() time.Time
}

// NewRepository creates a Repository for the entity described by mapper.
func NewRepository[D, R any, K comparable](db DB, mapper Mapper[D, R, K], audit Auditor, logger *slog.Logger) *Repository[D, R, K] {
	spec := mapper.Table()
	return &Repository[D, R, K]{
		db:     db,
		tx:     NewTxManager(db),
		mapper: mapper,
		spec:   spec,
		audit:  audit,
		log:    logger.With("repository", spec.Name),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// RunInTx runs fn in a transaction, joining one already present in ctx.
func (r *Repository[D, R, K]) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.tx.RunInTx(ctx, fn)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// FindByID returns a live row. Soft-deleted rows are reported as not found.
func (r *Repository[D, R, K]) FindByID(ctx context.Context, id K) (D, error) {
	return r.findByID(ctx, id, false)
}

// FindByIDWithDeleted returns a row whether or not it is soft-deleted.
func (r *Repository[D, R, K]) FindByIDWithDeleted(ctx context.Context, id K) (D, error) {
	return r.findByID(ctx, id, true)
}

func (r *Repository[D, R, K]) findByID(ctx context.Context, id K, withDeleted bool) (D, error) {
	row, err := r.findRow(ctx, QuerierFromCtx(ctx, r.db), id, withDeleted)
	if err != nil {
		var zero D
		return zero, MapError(err, r.spec.Entity, id)
	}
	return r.mapper.ToDomain(row), nil
}

// FindAll returns one page of live rows matching opts.Where.
func (r *Repository[D, R, K]) FindAll(ctx context.Context, opts FindOptions) (domain.Page[D], error) {
	page, limit := domain.NormalizePage(opts.Page, opts.Limit)

	order, err := r.orderClause(opts.OrderBy, opts.OrderDirection)
	if err != nil {
		return domain.Page[D]{}, err
	}

	where := r.scope(opts.Where, opts.IncludeDeleted)

	total, err := r.count(ctx, where)
	if err != nil {
		return domain.Page[D]{}, err
	}

	query, args, err := psql.Select(r.selectColumns()...).
		From(r.spec.Name).
		Where(where).
		OrderBy(order...).
		Limit(uint64(limit)).
		Offset(uint64(domain.Offset(page, limit))).
		ToSql()
	if err != nil {
		return domain.Page[D]{}, fmt.Errorf("build %s page query: %w", r.spec.Name, err)
	}

	items, err := r.query(ctx, query, args)
	if err != nil {
		return domain.Page[D]{}, err
	}

	return domain.NewPage(items, total, page, limit), nil
}

// FindWhere returns live rows matching where in the given order.
// orderBy terms are trusted SQL and must come from repository code.
// A limit of 0 returns all rows.
func (r *Repository[D, R, K]) FindWhere(ctx context.Context, where sq.Sqlizer, limit int, orderBy ...string) ([]D, error) {
	b := psql.Select(r.selectColumns()...).
		From(r.spec.Name).
		Where(r.scope(where, false))
	if len(orderBy) > 0 {
		b = b.OrderBy(orderBy...)
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", r.spec.Name, err)
	}
	return r.query(ctx, query, args)
}

// FindOne returns the first live row matching where.
func (r *Repository[D, R, K]) FindOne(ctx context.Context, where sq.Sqlizer) (D, error) {
	var zero D

	query, args, err := psql.Select(r.selectColumns()...).
		From(r.spec.Name).
		Where(r.scope(where, false)).
		Limit(1).
		ToSql()
	if err != nil {
		return zero, fmt.Errorf("build %s query: %w", r.spec.Name, err)
	}

	row, err := r.mapper.ScanRow(QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return zero, MapError(err, r.spec.Entity, "lookup")
	}
	return r.mapper.ToDomain(row), nil
}

// Count returns the number of live rows matching where.
func (r *Repository[D, R, K]) Count(ctx context.Context, where sq.Sqlizer) (int, error) {
	return r.count(ctx, r.scope(where, false))
}

// Exists reports whether any live row matches where.
func (r *Repository[D, R, K]) Exists(ctx context.Context, where sq.Sqlizer) (bool, error) {
	sub, args, err := psql.Select("1").From(r.spec.Name).Where(r.scope(where, false)).ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s exists query: %w", r.spec.Name, err)
	}

	var exists bool
	if err := QuerierFromCtx(ctx, r.db).QueryRow(ctx, "SELECT EXISTS("+sub+")", args...).Scan(&exists); err != nil {
		return false, MapError(err, r.spec.Entity, "exists")
	}
	return exists, nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Create inserts d, re-reads the stored row and records an INSERT entry.
func (r *Repository[D, R, K]) Create(ctx context.Context, d D, actor uuid.UUID) (D, error) {
	row := r.mapper.ToRow(d)

	ch, err := r.mutateWithAudit(ctx, domain.AuditActionInsert, actor, func(ctx context.Context, q Querier) (change[R, K], error) {
		cols, vals := r.writeValues(row, r.now(), true)

		key, generated := r.mapper.NewKey()
		if generated {
			cols = append([]string{r.spec.Key}, cols...)
			vals = append([]any{key}, vals...)
		}

		query, args, err := psql.Insert(r.spec.Name).
			Columns(cols...).
			Values(vals...).
			Suffix("RETURNING " + r.spec.Key).
			ToSql()
		if err != nil {
			return change[R, K]{}, fmt.Errorf("build %s insert: %w", r.spec.Name, err)
		}

		if err := q.QueryRow(ctx, query, args...).Scan(&key); err != nil {
			return change[R, K]{}, mapWriteError(err, r.spec, "(new)", valueMap(cols, vals))
		}

		after, err := r.findRow(ctx, q, key, true)
		if err != nil {
			return change[R, K]{}, MapError(err, r.spec.Entity, key)
		}
		return change[R, K]{key: key, after: &after}, nil
	})
	if err != nil {
		var zero D
		return zero, err
	}
	return r.mapper.ToDomain(*ch.after), nil
}

// Update merges patch into the live row id and records an UPDATE entry
// with the before and after snapshots.
func (r *Repository[D, R, K]) Update(ctx context.Context, id K, patch Patch[D], actor uuid.UUID) (D, error) {
	ch, err := r.mutateWithAudit(ctx, domain.AuditActionUpdate, actor, func(ctx context.Context, q Querier) (change[R, K], error) {
		before, err := r.findRow(ctx, q, id, false)
		if err != nil {
			return change[R, K]{}, MapError(err, r.spec.Entity, id)
		}

		next := r.mapper.ToRow(patch.Apply(r.mapper.ToDomain(before)))
		cols, vals := r.writeValues(next, r.now(), false)
		set := valueMap(cols, vals)

		query, args, err := r.scopeUpdate(psql.Update(r.spec.Name).SetMap(set).Where(sq.Eq{r.spec.Key: id})).ToSql()
		if err != nil {
			return change[R, K]{}, fmt.Errorf("build %s update: %w", r.spec.Name, err)
		}

		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return change[R, K]{}, mapWriteError(err, r.spec, id, set)
		}
		if tag.RowsAffected() == 0 {
			return change[R, K]{}, MapError(pgx.ErrNoRows, r.spec.Entity, id)
		}

		after, err := r.findRow(ctx, q, id, true)
		if err != nil {
			return change[R, K]{}, MapError(err, r.spec.Entity, id)
		}
		return change[R, K]{key: id, before: &before, after: &after}, nil
	})
	if err != nil {
		var zero D
		return zero, err
	}
	return r.mapper.ToDomain(*ch.after), nil
}

// SoftDelete stamps deleted_at on the live row id and records a DELETE
// entry whose new values hold the stamped row.
func (r *Repository[D, R, K]) SoftDelete(ctx context.Context, id K, actor uuid.UUID) error {
	if !r.spec.SoftDelete {
		return fmt.Errorf("%s %v: %w", r.spec.Entity, id,
			domain.NewValidationError(colDeletedAt, "soft delete is not supported"))
	}

	_, err := r.mutateWithAudit(ctx, domain.AuditActionDelete, actor, func(ctx context.Context, q Querier) (change[R, K], error) {
		before, err := r.findRow(ctx, q, id, false)
		if err != nil {
			return change[R, K]{}, MapError(err, r.spec.Entity, id)
		}

		now := r.now()
		query, args, err := psql.Update(r.spec.Name).
			Set(colDeletedAt, now).
			Set(colUpdatedAt, now).
			Where(sq.Eq{r.spec.Key: id}).
			Where(colDeletedAt + " IS NULL").
			ToSql()
		if err != nil {
			return change[R, K]{}, fmt.Errorf("build %s soft delete: %w", r.spec.Name, err)
		}

		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return change[R, K]{}, MapError(err, r.spec.Entity, id)
		}
		if tag.RowsAffected() == 0 {
			return change[R, K]{}, MapError(pgx.ErrNoRows, r.spec.Entity, id)
		}

		after, err := r.findRow(ctx, q, id, true)
		if err != nil {
			return change[R, K]{}, MapError(err, r.spec.Entity, id)
		}
		return change[R, K]{key: id, before: &before, after: &after}, nil
	})
	return err
}

// HardDelete physically removes row id, soft-deleted or not, and records a
// DELETE entry without new values. It returns false when no row existed.
func (r *Repository[D, R, K]) HardDelete(ctx context.Context, id K, actor uuid.UUID) (bool, error) {
	ch, err := r.mutateWithAudit(ctx, domain.AuditActionDelete, actor, func(ctx context.Context, q Querier) (change[R, K], error) {
		before, err := r.findRow(ctx, q, id, true)
		if errors.Is(err, pgx.ErrNoRows) {
			return change[R, K]{skip: true}, nil
		}
		if err != nil {
			return change[R, K]{}, MapError(err, r.spec.Entity, id)
		}

		query, args, err := psql.Delete(r.spec.Name).Where(sq.Eq{r.spec.Key: id}).ToSql()
		if err != nil {
			return change[R, K]{}, fmt.Errorf("build %s delete: %w", r.spec.Name, err)
		}

		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
				return change[R, K]{}, fmt.Errorf("%s %v: still referenced: %w", r.spec.Entity, id, domain.ErrConflict)
			}
			return change[R, K]{}, MapError(err, r.spec.Entity, id)
		}
		if tag.RowsAffected() == 0 {
			return change[R, K]{skip: true}, nil
		}
		return change[R, K]{key: id, before: &before}, nil
	})
	if err != nil {
		return false, err
	}
	return !ch.skip, nil
}

// BulkCreate creates all items in one transaction. On the first failure
// nothing is persisted and a *domain.BulkError with the item index is returned.
func (r *Repository[D, R, K]) BulkCreate(ctx context.Context, items []D, actor uuid.UUID) ([]D, error) {
	if len(items) == 0 {
		return []D{}, nil
	}

	out := make([]D, 0, len(items))
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		for i, item := range items {
			created, err := r.Create(ctx, item, actor)
			if err != nil {
				return &domain.BulkError{Index: i, Err: err}
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Mutation protocol
// ---------------------------------------------------------------------------

// change is what a mutation did to one row. skip suppresses the audit entry.
type change[R any, K comparable] struct {
	key    K
	before *R
	after  *R
	skip   bool
}

// mutateWithAudit runs fn in a transaction (joining one in ctx) and appends
// the audit entry for its change before commit. The entry is written in a
// savepoint: if it fails, only the savepoint is rolled back and the failure
// is logged and counted, so the domain write still commits.
func (r *Repository[D, R, K]) mutateWithAudit(
	ctx context.Context,
	action domain.AuditAction,
	actor uuid.UUID,
	fn func(ctx context.Context, q Querier) (change[R, K], error),
) (change[R, K], error) {
	var ch change[R, K]
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ch, err = fn(ctx, QuerierFromCtx(ctx, r.db))
		if err != nil || ch.skip {
			return err
		}
		r.appendAudit(ctx, domain.AuditEntry{
			TableName: r.spec.Name,
			RecordID:  fmt.Sprint(ch.key),
			Action:    action,
			OldValues: r.snapshot(ch.before),
			NewValues: r.snapshot(ch.after),
			UserID:    actor,
			Timestamp: r.now(),
		})
		return nil
	})
	return ch, err
}

func (r *Repository[D, R, K]) appendAudit(ctx context.Context, entry domain.AuditEntry) {
	tx, ok := txFromCtx(ctx)
	if !ok {
		r.auditFailed(ctx, entry, errors.New("no transaction in context"))
		return
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		r.auditFailed(ctx, entry, fmt.Errorf("savepoint: %w", err))
		return
	}

	if err := r.audit.Append(withTx(ctx, sp), entry); err != nil {
		_ = sp.Rollback(ctx)
		r.auditFailed(ctx, entry, err)
		return
	}

	if err := sp.Commit(ctx); err != nil {
		r.auditFailed(ctx, entry, fmt.Errorf("release savepoint: %w", err))
	}
}

func (r *Repository[D, R, K]) auditFailed(ctx context.Context, entry domain.AuditEntry, err error) {
	telemetry.AuditWriteFailuresTotal.WithLabelValues(entry.TableName).Inc()
	r.log.ErrorContext(ctx, "audit write failed",
		slog.String("table", entry.TableName),
		slog.String("record_id", entry.RecordID),
		slog.String("action", entry.Action.String()),
		slog.String("error", err.Error()),
	)
}

// snapshot returns the column→value view of row recorded in audit entries.
func (r *Repository[D, R, K]) snapshot(row *R) map[string]any {
	if row == nil {
		return nil
	}
	vals := r.mapper.RowValues(*row)
	m := make(map[string]any, len(vals)+1)
	m[r.spec.Key] = r.mapper.RowKey(*row)
	for i, col := range r.spec.Columns {
		m[col] = vals[i]
	}
	return m
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (r *Repository[D, R, K]) selectColumns() []string {
	return append([]string{r.spec.Key}, r.spec.Columns...)
}

func (r *Repository[D, R, K]) findRow(ctx context.Context, q Querier, id K, withDeleted bool) (R, error) {
	b := psql.Select(r.selectColumns()...).
		From(r.spec.Name).
		Where(sq.Eq{r.spec.Key: id})
	if r.spec.SoftDelete && !withDeleted {
		b = b.Where(colDeletedAt + " IS NULL")
	}

	query, args, err := b.ToSql()
	if err != nil {
		var zero R
		return zero, fmt.Errorf("build %s select: %w", r.spec.Name, err)
	}
	return r.mapper.ScanRow(q.QueryRow(ctx, query, args...))
}

func (r *Repository[D, R, K]) query(ctx context.Context, query string, args []any) ([]D, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, MapError(err, r.spec.Entity, "query")
	}
	defer rows.Close()

	var out []D
	for rows.Next() {
		row, err := r.mapper.ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.spec.Entity, err)
		}
		out = append(out, r.mapper.ToDomain(row))
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err, r.spec.Entity, "query")
	}
	return out, nil
}

func (r *Repository[D, R, K]) count(ctx context.Context, where sq.Sqlizer) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(r.spec.Name).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s count: %w", r.spec.Name, err)
	}

	var total int64
	if err := QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, MapError(err, r.spec.Entity, "count")
	}
	return int(total), nil
}

// scope ANDs the soft-delete filter onto where for soft-delete tables.
func (r *Repository[D, R, K]) scope(where sq.Sqlizer, withDeleted bool) sq.And {
	and := sq.And{}
	if where != nil {
		and = append(and, where)
	}
	if r.spec.SoftDelete && !withDeleted {
		and = append(and, sq.Expr(colDeletedAt+" IS NULL"))
	}
	return and
}

func (r *Repository[D, R, K]) scopeUpdate(b sq.UpdateBuilder) sq.UpdateBuilder {
	if r.spec.SoftDelete {
		return b.Where(colDeletedAt + " IS NULL")
	}
	return b
}

// writeValues returns the columns and values written for row. Inserts stamp
// created_at and updated_at; updates stamp updated_at and never touch
// created_at or deleted_at.
func (r *Repository[D, R, K]) writeValues(row R, now time.Time, insert bool) ([]string, []any) {
	vals := r.mapper.RowValues(row)
	cols := make([]string, 0, len(r.spec.Columns))
	out := make([]any, 0, len(vals))
	for i, col := range r.spec.Columns {
		v := vals[i]
		switch col {
		case colCreatedAt:
			if !insert {
				continue
			}
			v = now
		case colUpdatedAt:
			v = now
		case colDeletedAt:
			if !insert {
				continue
			}
		}
		cols = append(cols, col)
		out = append(out, v)
	}
	return cols, out
}

func valueMap(cols []string, vals []any) map[string]any {
	m := make(map[string]any, len(cols))
	for i, col := range cols {
		m[col] = vals[i]
	}
	return m
}
