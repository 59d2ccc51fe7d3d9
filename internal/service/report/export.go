package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/service/report/export"
	"github.com/heartmarshall/servicelog-backend/internal/telemetry"
)

// lookups holds the id→name maps resolved once per export.
type lookups struct {
	clients    map[int64]string
	activities map[int64]string
	outcomes   map[int64]string
}

// ExportServiceLogs streams the service logs visible to the actor into w in
// the given format, one row per patient entry. A log without entries yields
// one row with zero counts. All reads happen in one consistent snapshot and
// at most one batch of logs is held in memory.
func (s *Service) ExportServiceLogs(ctx context.Context, filter domain.ServiceLogFilter, format domain.ExportFormat, w io.Writer) (*domain.ExportMeta, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("export format %q: %w", format, domain.ErrInvalidFormat)
	}

	filter, actor, err := scopeFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := export.NewWriter(format, w)
	if err != nil {
		return nil, err
	}

	rows := 0
	err = s.tx.RunInSnapshot(ctx, func(ctx context.Context) error {
		names, err := s.loadLookups(ctx)
		if err != nil {
			return err
		}

		for batch, err := range s.logs.Batches(ctx, filter, s.batchSize) {
			if err != nil {
				return fmt.Errorf("read service logs: %w", err)
			}
			n, err := s.writeBatch(ctx, out, batch, names)
			rows += n
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		out.Abort()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	telemetry.ExportRowsTotal.WithLabelValues(format.String()).Add(float64(rows))
	telemetry.ExportDuration.WithLabelValues(format.String()).Observe(time.Since(start).Seconds())

	s.log.InfoContext(ctx, "service logs exported",
		slog.String("format", format.String()),
		slog.String("actor", actor.UserID.String()),
		slog.Int("rows", rows),
		slog.Duration("duration", time.Since(start)),
	)

	return &domain.ExportMeta{
		Filename:    export.Filename(format, s.now()),
		ContentType: format.ContentType(),
		Rows:        rows,
	}, nil
}

func (s *Service) loadLookups(ctx context.Context) (lookups, error) {
	var (
		l   lookups
		err error
	)
	if l.clients, err = s.clients.Names(ctx); err != nil {
		return lookups{}, fmt.Errorf("load client names: %w", err)
	}
	if l.activities, err = s.activities.Names(ctx); err != nil {
		return lookups{}, fmt.Errorf("load activity names: %w", err)
	}
	if l.outcomes, err = s.outcomes.Names(ctx); err != nil {
		return lookups{}, fmt.Errorf("load outcome names: %w", err)
	}
	return l, nil
}

// writeBatch loads the entries of batch with one query and writes its rows.
func (s *Service) writeBatch(ctx context.Context, out export.Writer, batch []domain.ServiceLog, names lookups) (int, error) {
	ids := make([]uuid.UUID, len(batch))
	for i, l := range batch {
		ids[i] = l.ID
	}
	entries, err := s.entries.GetByServiceLogIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("read patient entries: %w", err)
	}

	written := 0
	for _, l := range batch {
		for _, row := range exportRows(l, entries[l.ID], names) {
			if err := out.Write(row); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// exportRows flattens one log into its export rows.
func exportRows(l domain.ServiceLog, entries []domain.PatientEntry, names lookups) []domain.ExportRow {
	base := domain.ExportRow{
		ServiceLogID: l.ID,
		UserID:       l.UserID,
		ClientName:   names.clients[l.ClientID],
		ActivityName: names.activities[l.ActivityID],
		ServiceDate:  l.ServiceDate,
		PatientCount: l.PatientCount,
		IsDraft:      l.IsDraft,
		SubmittedAt:  l.SubmittedAt,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	if len(entries) == 0 {
		return []domain.ExportRow{base}
	}

	rows := make([]domain.ExportRow, len(entries))
	for i, e := range entries {
		row := base
		row.NewPatients = e.NewPatients
		row.FollowupPatients = e.FollowupPatients
		row.DNACount = e.DNACount
		if e.OutcomeID != nil {
			row.OutcomeName = names.outcomes[*e.OutcomeID]
		}
		rows[i] = row
	}
	return rows
}
