package rest

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/service/report"
)

// brokenLogStore serves the batches it holds and then fails with err, if set.
type brokenLogStore struct {
	batches [][]domain.ServiceLog
	err     error
}

func (s *brokenLogStore) Find(context.Context, domain.ServiceLogFilter, int, int) (domain.Page[domain.ServiceLog], error) {
	return domain.Page[domain.ServiceLog]{}, s.err
}

func (s *brokenLogStore) Batches(context.Context, domain.ServiceLogFilter, int) iter.Seq2[[]domain.ServiceLog, error] {
	return func(yield func([]domain.ServiceLog, error) bool) {
		for _, b := range s.batches {
			if !yield(b, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func (s *brokenLogStore) GetStatistics(context.Context, domain.ServiceLogFilter) (domain.ServiceLogStatistics, error) {
	return domain.ServiceLogStatistics{}, s.err
}

func (s *brokenLogStore) Breakdown(context.Context, domain.ServiceLogFilter, domain.Dimension) ([]domain.DimensionCount, error) {
	return nil, s.err
}

type noEntries struct{}

func (noEntries) GetByServiceLogIDs(context.Context, []uuid.UUID) (map[uuid.UUID][]domain.PatientEntry, error) {
	return map[uuid.UUID][]domain.PatientEntry{}, nil
}

type staticNames map[int64]string

func (n staticNames) Names(context.Context) (map[int64]string, error) { return n, nil }

type inlineSnapshot struct{}

func (inlineSnapshot) RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newReportService(logs *brokenLogStore) *report.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return report.NewService(logger, logs, noEntries{},
		staticNames{1: "North Clinic"}, staticNames{2: "Physio"}, staticNames{},
		inlineSnapshot{}, config.ExportConfig{BatchSize: 10})
}

func TestExport_StoreFailureIsServerError(t *testing.T) {
	t.Parallel()

	l := domain.ServiceLog{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		ClientID:    1,
		ActivityID:  2,
		ServiceDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		format  string
		batches [][]domain.ServiceLog
	}{
		{name: "csv first batch", format: "csv"},
		{name: "excel first batch", format: "excel"},
		{name: "csv after rows", format: "csv", batches: [][]domain.ServiceLog{{l}}},
		{name: "excel after rows", format: "excel", batches: [][]domain.ServiceLog{{l}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logs := &brokenLogStore{batches: tt.batches, err: errors.New("connection reset by peer")}
			r := testRouter(newReportService(logs), nil)

			rec := do(t, r, http.MethodGet, "/api/reports/export?format="+tt.format, adminActor(), nil)
			require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
			assert.Empty(t, rec.Header().Get("Content-Disposition"))
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "INTERNAL", resp.Code)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestExport_RealServiceServesFile(t *testing.T) {
	t.Parallel()

	// A store that yields nothing and ends cleanly.
	logs := &brokenLogStore{}
	r := testRouter(newReportService(logs), nil)

	rec := do(t, r, http.MethodGet, "/api/reports/export", adminActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment;")
	assert.Equal(t, "Service Log ID,User ID,Client Name,Activity Name,Service Date,Total Patient Count,New Patients,Followup Patients,DNA Count,Primary Outcome,Is Draft,Submitted At,Created At,Updated At\n", rec.Body.String())
}
