// Package servicelog implements the service-log workflow on top of the
// audited repository.
package servicelog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

type serviceLogRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error)
	Create(ctx context.Context, l domain.ServiceLog, actor uuid.UUID) (*domain.ServiceLog, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.ServiceLogPatch, actor uuid.UUID) (*domain.ServiceLog, error)
	ReplaceEntries(ctx context.Context, id uuid.UUID, entries []domain.PatientEntry, actor uuid.UUID) ([]domain.PatientEntry, error)
	Submit(ctx context.Context, id uuid.UUID, at time.Time, actor uuid.UUID) (*domain.ServiceLog, error)
	RevertToDraft(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*domain.ServiceLog, error)
	Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error
	BulkDeleteByUser(ctx context.Context, userID, actor uuid.UUID) (int, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the service-log workflow: drafts are edited by their
// owner, submitted once, and only an admin may return them to draft.
type Service struct {
	logs serviceLogRepo
	tx   txManager
	log  *slog.Logger
	now  func() time.Time
}

// NewService creates a new service-log service.
func NewService(log *slog.Logger, logs serviceLogRepo, tx txManager) *Service {
	return &Service{
		logs: logs,
		tx:   tx,
		log:  log.With("service", "servicelog"),
		now:  time.Now,
	}
}
