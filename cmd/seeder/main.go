// Command seeder loads clients, activities and outcomes from a YAML file.
// Entries whose name already exists are skipped, so the command can be
// re-run after editing the file.
//
// Flags:
//
//	--file     path to the seed YAML file (required)
//	--phase    comma-separated phases to run: clients,activities,outcomes (default: all)
//	--dry-run  report what would be inserted without writing
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/app"
	"github.com/heartmarshall/servicelog-backend/internal/app/seeder"
	"github.com/heartmarshall/servicelog-backend/internal/config"
)

func main() {
	fileFlag := flag.String("file", "", "path to the seed YAML file")
	phaseFlag := flag.String("phase", "", "comma-separated phases to run (default: all)")
	dryRunFlag := flag.Bool("dry-run", false, "report what would be inserted without writing")
	flag.Parse()

	if *fileFlag == "" {
		log.Fatal("--file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	file, err := seeder.Load(*fileFlag)
	if err != nil {
		logger.Error("load seed file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var phases []string
	if *phaseFlag != "" {
		for _, p := range strings.Split(*phaseFlag, ",") {
			phases = append(phases, strings.TrimSpace(p))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := app.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migrate", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	repos := app.NewRepos(pool, logger)
	s := seeder.New(logger, repos.Clients, repos.Activities, repos.Outcomes, *dryRunFlag)

	if _, err := s.Run(ctx, file, phases); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("seeding completed successfully")
}
