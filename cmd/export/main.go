// Command export writes service logs to a CSV or XLSX file using the same
// engine as the REST export, acting as the system administrator.
//
// Usage:
//
//	export --format=excel --from=2025-01-01 --to=2025-03-31 [--user=<uuid>] [--drafts=false] [--out=dir]
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/app"
	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/service/report/export"
	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

func main() {
	formatFlag := flag.String("format", "csv", "output format: csv or excel")
	fromFlag := flag.String("from", "", "first service date, YYYY-MM-DD")
	toFlag := flag.String("to", "", "last service date, YYYY-MM-DD")
	userFlag := flag.String("user", "", "only logs of this user id")
	draftsFlag := flag.String("drafts", "", "true: only drafts, false: only submitted (default: both)")
	outFlag := flag.String("out", ".", "output directory")
	flag.Parse()

	format := domain.ExportFormat(*formatFlag)
	if !format.IsValid() {
		log.Fatalf("--format must be csv or excel (got %q)", *formatFlag)
	}

	filter, err := parseFilter(*fromFlag, *toFlag, *userFlag, *draftsFlag)
	if err != nil {
		log.Fatalf("invalid filter: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	ctx = ctxutil.WithActor(ctx, domain.Actor{UserID: domain.SystemUserID, Role: domain.UserRoleAdmin})

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	services := app.NewServices(app.NewRepos(pool, logger), cfg, logger)

	path := filepath.Join(*outFlag, export.Filename(format, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		logger.Error("create output file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	meta, err := services.Reports.ExportServiceLogs(ctx, filter, format, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		logger.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("export written",
		slog.String("path", path),
		slog.Int("rows", meta.Rows),
	)
}

func parseFilter(from, to, user, drafts string) (domain.ServiceLogFilter, error) {
	var f domain.ServiceLogFilter
	if from != "" {
		d, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return f, err
		}
		f.DateFrom = &d
	}
	if to != "" {
		d, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return f, err
		}
		f.DateTo = &d
	}
	if user != "" {
		id, err := uuid.Parse(user)
		if err != nil {
			return f, err
		}
		f.UserID = &id
	}
	switch drafts {
	case "":
	case "true", "false":
		v := drafts == "true"
		f.IsDraft = &v
	default:
		return f, domain.NewValidationError("drafts", "must be true or false")
	}
	return f, f.Validate()
}
