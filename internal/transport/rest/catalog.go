package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

type catalogSource[T any] interface {
	FindActive(ctx context.Context) ([]T, error)
	FindWithUsageStats(ctx context.Context) ([]domain.UsageStats, error)
}

// CatalogHandler serves the reference catalogs that service logs point at.
type CatalogHandler struct {
	clients    catalogSource[domain.Client]
	activities catalogSource[domain.Activity]
	outcomes   catalogSource[domain.Outcome]
	log        *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(
	clients catalogSource[domain.Client],
	activities catalogSource[domain.Activity],
	outcomes catalogSource[domain.Outcome],
	logger *slog.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		clients:    clients,
		activities: activities,
		outcomes:   outcomes,
		log:        logger.With("handler", "catalog"),
	}
}

// CatalogItemResponse is one selectable catalog item. Detail is the client
// code, activity description or outcome category.
type CatalogItemResponse struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Detail *string `json:"detail,omitempty"`
}

type UsageResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	IsActive   bool    `json:"is_active"`
	UsageCount int     `json:"usage_count"`
	LastUsedAt *string `json:"last_used_at"`
}

// Clients lists active clients.
// GET /api/clients
func (h *CatalogHandler) Clients(c *gin.Context) {
	listActive(c, h, h.clients, func(v domain.Client) CatalogItemResponse {
		return CatalogItemResponse{ID: v.ID, Name: v.Name, Detail: v.Code}
	})
}

// Activities lists active activities.
// GET /api/activities
func (h *CatalogHandler) Activities(c *gin.Context) {
	listActive(c, h, h.activities, func(v domain.Activity) CatalogItemResponse {
		return CatalogItemResponse{ID: v.ID, Name: v.Name, Detail: v.Description}
	})
}

// Outcomes lists active outcomes.
// GET /api/outcomes
func (h *CatalogHandler) Outcomes(c *gin.Context) {
	listActive(c, h, h.outcomes, func(v domain.Outcome) CatalogItemResponse {
		return CatalogItemResponse{ID: v.ID, Name: v.Name, Detail: v.Category}
	})
}

// ClientUsage, ActivityUsage and OutcomeUsage report how often each catalog
// item is used by live service logs. Admin only.
// GET /api/{clients,activities,outcomes}/usage
func (h *CatalogHandler) ClientUsage(c *gin.Context)   { usage(c, h, h.clients) }
func (h *CatalogHandler) ActivityUsage(c *gin.Context) { usage(c, h, h.activities) }
func (h *CatalogHandler) OutcomeUsage(c *gin.Context)  { usage(c, h, h.outcomes) }

func listActive[T any](c *gin.Context, h *CatalogHandler, src catalogSource[T], toResp func(T) CatalogItemResponse) {
	if !requireActor(c, h.log) {
		return
	}
	items, err := src.FindActive(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	out := make([]CatalogItemResponse, len(items))
	for i, v := range items {
		out[i] = toResp(v)
	}
	c.JSON(http.StatusOK, out)
}

func usage[T any](c *gin.Context, h *CatalogHandler, src catalogSource[T]) {
	if !requireAdmin(c, h.log) {
		return
	}
	stats, err := src.FindWithUsageStats(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	out := make([]UsageResponse, len(stats))
	for i, s := range stats {
		out[i] = UsageResponse{ID: s.ID, Name: s.Name, IsActive: s.IsActive, UsageCount: s.UsageCount}
		if s.LastUsedAt != nil {
			d := s.LastUsedAt.Format(time.DateOnly)
			out[i].LastUsedAt = &d
		}
	}
	c.JSON(http.StatusOK, out)
}
