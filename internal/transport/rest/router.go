// Package rest is the HTTP transport of the service-log backend.
//
// Identity comes from the X-User-ID and X-User-Role headers set by the
// upstream authentication gateway; the services enforce ownership and
// admin rights on top of it.
package rest

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/transport/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Health      *HealthHandler
	Reports     *ReportHandler
	ServiceLogs *ServiceLogHandler
	Catalog     *CatalogHandler
	Audit       *AuditHandler
}

// NewRouter builds the gin engine with the middleware stack and all routes.
func NewRouter(cfg *config.Config, logger *slog.Logger, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Metrics(),
		middleware.CORS(cfg.CORS),
		middleware.Identity(),
	)

	r.GET("/healthz", h.Health.Health)
	r.GET("/livez", h.Health.Live)
	r.GET("/readyz", h.Health.Ready)

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")

	reports := api.Group("/reports")
	reports.GET("/summary", h.Reports.Summary)
	reports.GET("/service-logs", h.Reports.ServiceLogs)
	reports.GET("/export", h.Reports.Export)

	logs := api.Group("/service-logs")
	logs.POST("", h.ServiceLogs.Create)
	logs.GET("/:id", h.ServiceLogs.Get)
	logs.PATCH("/:id", h.ServiceLogs.Update)
	logs.PUT("/:id/entries", h.ServiceLogs.ReplaceEntries)
	logs.POST("/:id/submit", h.ServiceLogs.Submit)
	logs.POST("/:id/revert", h.ServiceLogs.Revert)
	logs.DELETE("/:id", h.ServiceLogs.Delete)
	logs.DELETE("/user/:userId", h.ServiceLogs.DeleteByUser)

	api.GET("/clients", h.Catalog.Clients)
	api.GET("/clients/usage", h.Catalog.ClientUsage)
	api.GET("/activities", h.Catalog.Activities)
	api.GET("/activities/usage", h.Catalog.ActivityUsage)
	api.GET("/outcomes", h.Catalog.Outcomes)
	api.GET("/outcomes/usage", h.Catalog.OutcomeUsage)

	api.GET("/audit", h.Audit.List)
	api.GET("/audit/:table/:recordId", h.Audit.Record)

	return r
}
