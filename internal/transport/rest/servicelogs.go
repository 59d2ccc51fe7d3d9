package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/service/servicelog"
)

type serviceLogService interface {
	Create(ctx context.Context, input servicelog.CreateInput) (*domain.ServiceLog, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error)
	Update(ctx context.Context, id uuid.UUID, input servicelog.UpdateInput) (*domain.ServiceLog, error)
	ReplaceEntries(ctx context.Context, id uuid.UUID, inputs []servicelog.EntryInput) ([]domain.PatientEntry, error)
	Submit(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error)
	RevertToDraft(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkDeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// ServiceLogHandler serves the service-log workflow endpoints.
type ServiceLogHandler struct {
	logs serviceLogService
	log  *slog.Logger
}

// NewServiceLogHandler creates a ServiceLogHandler.
func NewServiceLogHandler(logs serviceLogService, logger *slog.Logger) *ServiceLogHandler {
	return &ServiceLogHandler{
		logs: logs,
		log:  logger.With("handler", "servicelog"),
	}
}

// Create records a new draft service log with its entries.
// POST /api/service-logs
func (h *ServiceLogHandler) Create(c *gin.Context) {
	var req createServiceLogRequest
	if !h.bind(c, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	l, err := h.logs.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toServiceLogResponse(*l))
}

// Get returns a service log with its entries.
// GET /api/service-logs/:id
func (h *ServiceLogHandler) Get(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	l, err := h.logs.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toServiceLogResponse(*l))
}

// Update edits the header fields of a service log.
// PATCH /api/service-logs/:id
func (h *ServiceLogHandler) Update(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	var req updateServiceLogRequest
	if !h.bind(c, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	l, err := h.logs.Update(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toServiceLogResponse(*l))
}

// ReplaceEntries swaps the patient entries of a service log.
// PUT /api/service-logs/:id/entries
func (h *ServiceLogHandler) ReplaceEntries(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	var req replaceEntriesRequest
	if !h.bind(c, &req) {
		return
	}

	entries, err := h.logs.ReplaceEntries(c.Request.Context(), id, toEntryInputs(req.Entries))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toEntryResponses(entries))
}

// Submit finalizes a draft service log.
// POST /api/service-logs/:id/submit
func (h *ServiceLogHandler) Submit(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	l, err := h.logs.Submit(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toServiceLogResponse(*l))
}

// Revert turns a submitted service log back into a draft.
// POST /api/service-logs/:id/revert
func (h *ServiceLogHandler) Revert(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	l, err := h.logs.RevertToDraft(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toServiceLogResponse(*l))
}

// Delete soft-deletes a service log.
// DELETE /api/service-logs/:id
func (h *ServiceLogHandler) Delete(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	if err := h.logs.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteByUser soft-deletes every service log of a user.
// DELETE /api/service-logs/user/:userId
func (h *ServiceLogHandler) DeleteByUser(c *gin.Context) {
	p := newParams(c)
	userID := p.pathUUID("userId")
	if err := p.err(); err != nil {
		writeError(c, h.log, err)
		return
	}

	n, err := h.logs.BulkDeleteByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, BulkDeleteResponse{Deleted: n})
}

func (h *ServiceLogHandler) id(c *gin.Context) (uuid.UUID, bool) {
	p := newParams(c)
	id := p.pathUUID("id")
	if err := p.err(); err != nil {
		writeError(c, h.log, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ServiceLogHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, h.log, domain.NewValidationError("body", "malformed JSON: "+err.Error()))
		return false
	}
	return true
}
