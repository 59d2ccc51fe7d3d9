package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// GetSummaryReport aggregates the service logs visible to the actor.
// The statistics query and the three breakdowns run concurrently.
func (s *Service) GetSummaryReport(ctx context.Context, filter domain.ServiceLogFilter) (*domain.SummaryReport, error) {
	filter, _, err := scopeFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	var (
		stats                           domain.ServiceLogStatistics
		byClient, byActivity, byOutcome []domain.DimensionCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.logs.GetStatistics(gctx, filter)
		if err != nil {
			return fmt.Errorf("statistics: %w", err)
		}
		return nil
	})
	breakdown := func(dim domain.Dimension, dst *[]domain.DimensionCount) {
		g.Go(func() error {
			counts, err := s.logs.Breakdown(gctx, filter, dim)
			if err != nil {
				return fmt.Errorf("%s breakdown: %w", dim, err)
			}
			*dst = counts
			return nil
		})
	}
	breakdown(domain.DimensionClient, &byClient)
	breakdown(domain.DimensionActivity, &byActivity)
	breakdown(domain.DimensionOutcome, &byOutcome)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	appointments := stats.NewPatients + stats.FollowupPatients + stats.DNACount
	return &domain.SummaryReport{
		Overview: domain.SummaryOverview{
			TotalLogs:       stats.Total,
			DraftLogs:       stats.Drafts,
			SubmittedLogs:   stats.Submitted,
			CompletionRate:  percent(stats.Submitted, stats.Total),
			TotalPatients:   stats.TotalPatients,
			AveragePatients: round2(stats.AveragePatients),
		},
		Appointments: domain.AppointmentBreakdown{
			NewPatients:      stats.NewPatients,
			FollowupPatients: stats.FollowupPatients,
			DNACount:         stats.DNACount,
			Total:            appointments,
			DNARate:          percent(stats.DNACount, appointments),
		},
		ByClient:   nonNil(byClient),
		ByActivity: nonNil(byActivity),
		ByOutcome:  nonNil(byOutcome),
		Period: domain.ReportPeriod{
			DateFrom: filter.DateFrom,
			DateTo:   filter.DateTo,
			Weekdays: weekdays(filter.DateFrom, filter.DateTo),
		},
	}, nil
}

// percent returns part/total*100 rounded to two decimals, or 0 for an empty total.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// weekdays counts Monday to Friday dates in [from, to]. It is 0 when either
// bound is missing or the range is inverted.
func weekdays(from, to *time.Time) int {
	if from == nil || to == nil {
		return 0
	}
	start, end := domain.DateOf(*from), domain.DateOf(*to)
	if end.Before(start) {
		return 0
	}

	days := int(end.Sub(start).Hours()/24) + 1
	n := (days / 7) * 5
	// Remaining partial week.
	for d := start.AddDate(0, 0, (days/7)*7); !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

func nonNil(counts []domain.DimensionCount) []domain.DimensionCount {
	if counts == nil {
		return []domain.DimensionCount{}
	}
	return counts
}
