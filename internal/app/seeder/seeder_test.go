package seeder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

type mockRepo[T any] struct {
	FindByNameFunc func(ctx context.Context, name string) (*T, error)
	BulkCreateFunc func(ctx context.Context, items []T, actor uuid.UUID) ([]T, error)
}

func (m *mockRepo[T]) FindByName(ctx context.Context, name string) (*T, error) {
	return m.FindByNameFunc(ctx, name)
}

func (m *mockRepo[T]) BulkCreate(ctx context.Context, items []T, actor uuid.UUID) ([]T, error) {
	return m.BulkCreateFunc(ctx, items, actor)
}

// existing builds a repo that already holds names and records bulk inserts.
func existing[T any](inserted *[]T, names ...string) *mockRepo[T] {
	return &mockRepo[T]{
		FindByNameFunc: func(ctx context.Context, name string) (*T, error) {
			for _, n := range names {
				if strings.EqualFold(n, name) {
					var v T
					return &v, nil
				}
			}
			return nil, fmt.Errorf("%s: %w", name, domain.ErrNotFound)
		},
		BulkCreateFunc: func(ctx context.Context, items []T, actor uuid.UUID) ([]T, error) {
			if actor != domain.SystemUserID {
				return nil, errors.New("unexpected actor")
			}
			*inserted = append(*inserted, items...)
			return items, nil
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sample = `
clients:
  - name: North Clinic
    code: NC
  - name: "  South Clinic "
activities:
  - name: Assessment
    description: First visit
    inactive: true
outcomes:
  - name: Discharged
    category: closed
  - name: Referred
`

func TestParse(t *testing.T) {
	t.Parallel()

	file, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, file.Clients, 2)
	require.NotNil(t, file.Clients[0].Code)
	assert.Equal(t, "NC", *file.Clients[0].Code)
	assert.Nil(t, file.Clients[1].Code)
	assert.Equal(t, "South Clinic", file.Clients[1].toDomain().Name)
	assert.True(t, file.Clients[1].toDomain().IsActive)

	require.Len(t, file.Activities, 1)
	assert.False(t, file.Activities[0].toDomain().IsActive)
	require.Len(t, file.Outcomes, 2)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	file, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, file.Clients)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{name: "empty name", doc: "clients:\n  - name: ' '\n", wantField: "clients[0].name"},
		{name: "duplicate", doc: "outcomes:\n  - name: Done\n  - name: DONE\n", wantField: "outcomes[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(strings.NewReader(tt.doc))

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Len(t, ve.Errors, 1)
			assert.Equal(t, tt.wantField, ve.Errors[0].Field)
		})
	}
}

func TestParse_UnknownKey(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("clinics:\n  - name: x\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrValidation)
}

func TestRun_SkipsExisting(t *testing.T) {
	t.Parallel()
	file, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	var (
		clients    []domain.Client
		activities []domain.Activity
		outcomes   []domain.Outcome
	)
	s := New(discard(),
		existing(&clients, "north clinic"),
		existing(&activities),
		existing(&outcomes, "Discharged", "Referred"),
		false,
	)

	results, err := s.Run(context.Background(), file, nil)
	require.NoError(t, err)

	assert.Equal(t, []PhaseResult{
		{Phase: PhaseClients, Created: 1, Skipped: 1},
		{Phase: PhaseActivities, Created: 1},
		{Phase: PhaseOutcomes, Skipped: 2},
	}, results)

	require.Len(t, clients, 1)
	assert.Equal(t, "South Clinic", clients[0].Name)
	require.Len(t, activities, 1)
	assert.Empty(t, outcomes)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	file, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	var clients []domain.Client
	s := New(discard(), existing(&clients), nil, nil, true)

	results, err := s.Run(context.Background(), file, []string{PhaseClients})
	require.NoError(t, err)
	assert.Equal(t, []PhaseResult{{Phase: PhaseClients, Created: 2}}, results)
	assert.Empty(t, clients)
}

func TestRun_UnknownPhase(t *testing.T) {
	t.Parallel()

	s := New(discard(), nil, nil, nil, false)
	_, err := s.Run(context.Background(), &File{}, []string{"users"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRun_BulkFailureStops(t *testing.T) {
	t.Parallel()
	file, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	clients := &mockRepo[domain.Client]{
		FindByNameFunc: func(ctx context.Context, name string) (*domain.Client, error) {
			return nil, domain.ErrNotFound
		},
		BulkCreateFunc: func(ctx context.Context, items []domain.Client, actor uuid.UUID) ([]domain.Client, error) {
			return nil, &domain.BulkError{Index: 1, Err: &domain.ConflictError{Entity: "client", Field: "name", Value: items[1].Name}}
		},
	}
	activities := &mockRepo[domain.Activity]{
		FindByNameFunc: func(ctx context.Context, name string) (*domain.Activity, error) {
			t.Fatal("later phases must not run")
			return nil, nil
		},
	}
	s := New(discard(), clients, activities, nil, false)

	results, err := s.Run(context.Background(), file, nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Empty(t, results)
}
