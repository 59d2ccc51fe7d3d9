// Command cleanup physically removes service logs that were soft-deleted
// longer than retention.hard_delete_after_days ago, together with their
// patient entries. Every removed row is audited under the system user.
// It is intended to be invoked by an external cron job.
//
// Flags:
//
//	--batch    logs removed per round (default 500)
//	--dry-run  only count the logs that would be removed
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/servicelog"
	"github.com/heartmarshall/servicelog-backend/internal/app"
	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

func main() {
	batch := flag.Int("batch", 500, "service logs removed per round")
	dryRun := flag.Bool("dry-run", false, "only count the service logs that would be removed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *batch <= 0 {
		log.Fatalf("--batch must be > 0 (got %d)", *batch)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	logs := servicelog.New(pool, audit.New(pool), logger)
	threshold := time.Now().AddDate(0, 0, -cfg.Retention.HardDeleteAfterDays)

	deleted := 0
	for {
		ids, err := logs.SoftDeletedBefore(ctx, threshold, *batch)
		if err != nil {
			logger.Error("list soft-deleted service logs", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if *dryRun {
			deleted = len(ids)
			break
		}

		for _, id := range ids {
			ok, err := logs.HardDelete(ctx, id, domain.SystemUserID)
			if err != nil {
				logger.Error("hard delete failed",
					slog.String("service_log_id", id.String()),
					slog.String("error", err.Error()),
					slog.Int("deleted", deleted),
				)
				os.Exit(1)
			}
			if ok {
				deleted++
			}
		}
		if len(ids) < *batch {
			break
		}
	}

	logger.Info("hard delete completed",
		slog.Int("deleted", deleted),
		slog.Time("threshold", threshold),
		slog.Bool("dry_run", *dryRun),
	)
}
