package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/activity"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/client"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/outcome"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/patiententry"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/servicelog"
	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/service/report"
	servicelogsvc "github.com/heartmarshall/servicelog-backend/internal/service/servicelog"
)

// Repos holds every repository bound to one pool. All of them share the
// same audit trail.
type Repos struct {
	Tx          *postgres.TxManager
	Audit       *audit.Repo
	Clients     *client.Repo
	Activities  *activity.Repo
	Outcomes    *outcome.Repo
	ServiceLogs *servicelog.Repo
	Entries     *patiententry.Repo
}

// NewRepos creates the repositories over pool.
func NewRepos(pool *pgxpool.Pool, logger *slog.Logger) *Repos {
	auditRepo := audit.New(pool)
	return &Repos{
		Tx:          postgres.NewTxManager(pool),
		Audit:       auditRepo,
		Clients:     client.New(pool, auditRepo, logger),
		Activities:  activity.New(pool, auditRepo, logger),
		Outcomes:    outcome.New(pool, auditRepo, logger),
		ServiceLogs: servicelog.New(pool, auditRepo, logger),
		Entries:     patiententry.New(pool, auditRepo, logger),
	}
}

// Services holds the application services.
type Services struct {
	Reports     *report.Service
	ServiceLogs *servicelogsvc.Service
}

// NewServices creates the services on top of repos.
func NewServices(repos *Repos, cfg *config.Config, logger *slog.Logger) *Services {
	return &Services{
		Reports: report.NewService(
			logger,
			repos.ServiceLogs,
			repos.Entries,
			repos.Clients,
			repos.Activities,
			repos.Outcomes,
			repos.Tx,
			cfg.Export,
		),
		ServiceLogs: servicelogsvc.NewService(logger, repos.ServiceLogs, repos.Tx),
	}
}
