// Package telemetry holds the Prometheus metrics of the service-log backend.
//
// All metrics are registered against the default registry and are served by
// the REST router on the configured metrics path (default /metrics).
//
// HTTP metrics use c.FullPath() (the gin route template such as
// /api/service-logs/:id/submit) as the path label, never the raw URL, to keep
// label cardinality bounded.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Request rate:   rate(http_requests_total[5m])
//   - p99 per route:  histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Export metrics, labelled by format (csv, excel).
//
// ExportRowsTotal counts rows written to export files. ExportDuration observes
// one complete export, from the first query to the last flushed byte.
var (
	ExportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_rows_total",
			Help: "Total number of rows written by service-log exports, by format.",
		},
		[]string{"format"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "export_duration_seconds",
			Help:    "Duration of service-log exports, by format.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"format"},
	)
)

// AuditWriteFailuresTotal counts audit entries that could not be written.
// The domain write they belong to was committed without its audit entry,
// so any increase deserves an alert:
//
//	increase(audit_write_failures_total[15m]) > 0
var AuditWriteFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Total number of audit entries that failed to persist, by table.",
	},
	[]string{"table"},
)

// DBAcquiredConnections tracks connections currently checked out of the pool.
var DBAcquiredConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_acquired_connections",
		Help: "Current number of connections acquired from the database pool.",
	},
)

// StartPoolStatsCollector samples pool statistics every interval until ctx
// is done.
func StartPoolStatsCollector(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("pool stats collector stopped")
				return
			case <-ticker.C:
				DBAcquiredConnections.Set(float64(pool.Stat().AcquiredConns()))
			}
		}
	}()
}
