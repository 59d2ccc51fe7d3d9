package servicelog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

// Create records a new draft service log with its patient entries.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.ServiceLog, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	owner := input.UserID
	if owner == uuid.Nil {
		owner = actor.UserID
	}
	if !actor.CanAccess(owner) {
		return nil, domain.ErrForbidden
	}

	entries, err := validateEntries(input.Entries)
	if err != nil {
		return nil, err
	}

	l := domain.ServiceLog{
		UserID:       owner,
		ClientID:     input.ClientID,
		ActivityID:   input.ActivityID,
		ServiceDate:  domain.DateOf(input.ServiceDate),
		PatientCount: input.PatientCount,
		IsDraft:      true,
		Entries:      entries,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	created, err := s.logs.Create(ctx, l, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("create service log: %w", err)
	}
	return created, nil
}

// Get returns a service log with its entries if the actor may see it.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return s.load(ctx, actor, id)
}

// Update edits the header fields of a draft. Submitted logs can only be
// edited by an admin.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*domain.ServiceLog, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	var updated *domain.ServiceLog
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.load(txCtx, actor, id)
		if err != nil {
			return err
		}
		if !l.IsDraft && !actor.IsAdmin() {
			return fmt.Errorf("service log %s is submitted: %w", id, domain.ErrForbidden)
		}
		updated, err = s.logs.Update(txCtx, id, input.patch(), actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReplaceEntries swaps the patient entries of a log. Ordinary actors cannot
// change the entries of a submitted log.
func (s *Service) ReplaceEntries(ctx context.Context, id uuid.UUID, inputs []EntryInput) ([]domain.PatientEntry, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	entries, err := validateEntries(inputs)
	if err != nil {
		return nil, err
	}

	var replaced []domain.PatientEntry
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.load(txCtx, actor, id)
		if err != nil {
			return err
		}
		if !l.IsDraft && !actor.IsAdmin() {
			return fmt.Errorf("service log %s is submitted: %w", id, domain.ErrForbidden)
		}
		replaced, err = s.logs.ReplaceEntries(txCtx, id, entries, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// Submit moves a draft to submitted. Submitting twice is a conflict.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	var submitted *domain.ServiceLog
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.load(txCtx, actor, id)
		if err != nil {
			return err
		}
		if !l.IsDraft {
			return fmt.Errorf("service log %s already submitted: %w", id, domain.ErrConflict)
		}
		submitted, err = s.logs.Submit(txCtx, id, s.now(), actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "service log submitted",
		slog.String("service_log_id", id.String()),
		slog.String("actor", actor.UserID.String()),
	)
	return submitted, nil
}

// RevertToDraft returns a submitted log to draft. Admin only.
func (s *Service) RevertToDraft(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	var reverted *domain.ServiceLog
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		l, err := s.logs.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if l.IsDraft {
			return fmt.Errorf("service log %s is already a draft: %w", id, domain.ErrConflict)
		}
		reverted, err = s.logs.RevertToDraft(txCtx, id, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "service log reverted to draft",
		slog.String("service_log_id", id.String()),
		slog.String("actor", actor.UserID.String()),
	)
	return reverted, nil
}

// Delete soft-deletes one service log.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return domain.ErrUnauthorized
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.load(txCtx, actor, id); err != nil {
			return err
		}
		return s.logs.Delete(txCtx, id, actor.UserID)
	})
}

// BulkDeleteByUser soft-deletes every log of userID. Actors may clear their
// own logs; admins may clear anyone's.
func (s *Service) BulkDeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return 0, domain.ErrUnauthorized
	}
	if userID == uuid.Nil {
		return 0, domain.NewValidationError("user_id", "required")
	}
	if !actor.CanAccess(userID) {
		return 0, domain.ErrForbidden
	}

	n, err := s.logs.BulkDeleteByUser(ctx, userID, actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("bulk delete service logs: %w", err)
	}
	return n, nil
}

// load fetches a log and hides logs of other users from non-admins.
func (s *Service) load(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ServiceLog, error) {
	l, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(l.UserID) {
		return nil, fmt.Errorf("service log %s: %w", id, domain.ErrForbidden)
	}
	return l, nil
}
