package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/telemetry"
	"github.com/heartmarshall/servicelog-backend/internal/transport/rest"
)

const poolStatsInterval = 15 * time.Second

// Run is the application entry point. It loads configuration, connects to
// the database, applies migrations when enabled, wires repositories,
// services and the REST router, and serves HTTP until ctx is cancelled.
// Shutdown waits for in-flight requests up to the configured timeout.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)
	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	telemetry.StartPoolStatsCollector(ctx, pool, poolStatsInterval)

	repos := NewRepos(pool, logger)
	services := NewServices(repos, cfg, logger)

	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := rest.NewRouter(cfg, logger, rest.Handlers{
		Health:      rest.NewHealthHandler(pool, Version),
		Reports:     rest.NewReportHandler(services.Reports, logger),
		ServiceLogs: rest.NewServiceLogHandler(services.ServiceLogs, logger),
		Catalog:     rest.NewCatalogHandler(repos.Clients, repos.Activities, repos.Outcomes, logger),
		Audit:       rest.NewAuditHandler(repos.Audit, logger),
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
