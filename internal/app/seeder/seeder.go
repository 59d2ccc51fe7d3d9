package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// Phase names, in execution order.
const (
	PhaseClients    = "clients"
	PhaseActivities = "activities"
	PhaseOutcomes   = "outcomes"
)

// AllPhases lists every phase in execution order.
var AllPhases = []string{PhaseClients, PhaseActivities, PhaseOutcomes}

type catalogRepo[T any] interface {
	FindByName(ctx context.Context, name string) (*T, error)
	BulkCreate(ctx context.Context, items []T, actor uuid.UUID) ([]T, error)
}

// PhaseResult reports what one phase did.
type PhaseResult struct {
	Phase   string
	Created int
	Skipped int
}

// Seeder inserts the catalog entries of a seed file that do not exist yet.
// Each phase is one audited bulk insert recorded under domain.SystemUserID,
// so a failing item leaves that phase unchanged.
type Seeder struct {
	clients    catalogRepo[domain.Client]
	activities catalogRepo[domain.Activity]
	outcomes   catalogRepo[domain.Outcome]
	dryRun     bool
	log        *slog.Logger
}

// New creates a Seeder. With dryRun set nothing is written.
func New(
	logger *slog.Logger,
	clients catalogRepo[domain.Client],
	activities catalogRepo[domain.Activity],
	outcomes catalogRepo[domain.Outcome],
	dryRun bool,
) *Seeder {
	return &Seeder{
		clients:    clients,
		activities: activities,
		outcomes:   outcomes,
		dryRun:     dryRun,
		log:        logger.With("component", "seeder"),
	}
}

// Run executes phases (all when empty) in order and stops at the first failure.
func (s *Seeder) Run(ctx context.Context, file *File, phases []string) ([]PhaseResult, error) {
	if len(phases) == 0 {
		phases = AllPhases
	}
	for _, p := range phases {
		if !slices.Contains(AllPhases, p) {
			return nil, fmt.Errorf("unknown phase %q: %w", p, domain.ErrValidation)
		}
	}

	var results []PhaseResult
	for _, phase := range AllPhases {
		if !slices.Contains(phases, phase) {
			continue
		}

		var (
			res PhaseResult
			err error
		)
		switch phase {
		case PhaseClients:
			res, err = seed(ctx, s, phase, s.clients, convert(file.Clients, ClientSeed.toDomain), func(c domain.Client) string { return c.Name })
		case PhaseActivities:
			res, err = seed(ctx, s, phase, s.activities, convert(file.Activities, ActivitySeed.toDomain), func(a domain.Activity) string { return a.Name })
		case PhaseOutcomes:
			res, err = seed(ctx, s, phase, s.outcomes, convert(file.Outcomes, OutcomeSeed.toDomain), func(o domain.Outcome) string { return o.Name })
		}
		if err != nil {
			return results, fmt.Errorf("phase %s: %w", phase, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func seed[T any](ctx context.Context, s *Seeder, phase string, repo catalogRepo[T], items []T, name func(T) string) (PhaseResult, error) {
	res := PhaseResult{Phase: phase}

	var missing []T
	for _, item := range items {
		_, err := repo.FindByName(ctx, name(item))
		switch {
		case err == nil:
			res.Skipped++
		case errors.Is(err, domain.ErrNotFound):
			missing = append(missing, item)
		default:
			return res, fmt.Errorf("look up %q: %w", name(item), err)
		}
	}

	if len(missing) > 0 && !s.dryRun {
		created, err := repo.BulkCreate(ctx, missing, domain.SystemUserID)
		if err != nil {
			return res, err
		}
		res.Created = len(created)
	} else if s.dryRun {
		res.Created = len(missing)
	}

	s.log.InfoContext(ctx, "seed phase done",
		slog.String("phase", phase),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
		slog.Bool("dry_run", s.dryRun),
	)
	return res, nil
}

func convert[S, T any](in []S, fn func(S) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
