// Package report builds listings, summary reports and file exports over
// service logs. Every operation is scoped to the actor in the context:
// non-admin actors only ever see their own logs.
package report

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

type serviceLogRepo interface {
	Find(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLog], error)
	Batches(ctx context.Context, filter domain.ServiceLogFilter, size int) iter.Seq2[[]domain.ServiceLog, error]
	GetStatistics(ctx context.Context, filter domain.ServiceLogFilter) (domain.ServiceLogStatistics, error)
	Breakdown(ctx context.Context, filter domain.ServiceLogFilter, dim domain.Dimension) ([]domain.DimensionCount, error)
}

type entryRepo interface {
	GetByServiceLogIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.PatientEntry, error)
}

// nameRepo resolves catalog ids to display names, soft-deleted rows included.
type nameRepo interface {
	Names(ctx context.Context) (map[int64]string, error)
}

type snapshotter interface {
	RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service builds reports and exports over service logs.
type Service struct {
	logs       serviceLogRepo
	entries    entryRepo
	clients    nameRepo
	activities nameRepo
	outcomes   nameRepo
	tx         snapshotter
	batchSize  int
	log        *slog.Logger
	now        func() time.Time
}

// NewService creates a new report service.
func NewService(
	log *slog.Logger,
	logs serviceLogRepo,
	entries entryRepo,
	clients, activities, outcomes nameRepo,
	tx snapshotter,
	cfg config.ExportConfig,
) *Service {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1000
	}
	return &Service{
		logs:       logs,
		entries:    entries,
		clients:    clients,
		activities: activities,
		outcomes:   outcomes,
		tx:         tx,
		batchSize:  batch,
		log:        log.With("service", "report"),
		now:        time.Now,
	}
}

// scopeFilter resolves the actor and narrows filter to the actor's own logs
// unless they are an admin.
func scopeFilter(ctx context.Context, filter domain.ServiceLogFilter) (domain.ServiceLogFilter, domain.Actor, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return filter, domain.Actor{}, domain.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		id := actor.UserID
		filter.UserID = &id
	}
	if err := filter.Validate(); err != nil {
		return filter, actor, err
	}
	return filter, actor, nil
}
