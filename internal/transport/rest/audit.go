package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

type auditReader interface {
	ListByRecord(ctx context.Context, table, recordID string, limit int) ([]domain.AuditEntry, error)
	List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, int, error)
}

// AuditHandler serves the audit history. Admin only.
type AuditHandler struct {
	audit auditReader
	log   *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit auditReader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		audit: audit,
		log:   logger.With("handler", "audit"),
	}
}

type AuditEntryResponse struct {
	ID        int64          `json:"id"`
	TableName string         `json:"table_name"`
	RecordID  string         `json:"record_id"`
	Action    string         `json:"action"`
	OldValues map[string]any `json:"old_values"`
	NewValues map[string]any `json:"new_values"`
	UserID    uuid.UUID      `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
}

type AuditListResponse struct {
	Items  []AuditEntryResponse `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// List returns audit entries matching the query, newest first.
// GET /api/audit?table=service_logs&action=UPDATE&user_id=...&from=2025-01-01&to=2025-01-31&limit=50&offset=0
func (h *AuditHandler) List(c *gin.Context) {
	if !requireAdmin(c, h.log) {
		return
	}

	p := newParams(c)
	filter := domain.AuditFilter{
		UserID: p.uuid("user_id"),
		From:   p.date("from"),
		To:     p.date("to"),
	}
	if v := strings.TrimSpace(c.Query("table")); v != "" {
		filter.TableName = &v
	}
	if v := strings.TrimSpace(c.Query("record_id")); v != "" {
		filter.RecordID = &v
	}
	if v := strings.TrimSpace(c.Query("action")); v != "" {
		action := domain.AuditAction(strings.ToUpper(v))
		if !action.IsValid() {
			p.fail("action", "must be one of INSERT, UPDATE, DELETE")
		} else {
			filter.Action = &action
		}
	}
	_, limit := domain.NormalizePage(1, p.int("limit", 50))
	offset := p.int("offset", 0)
	if offset < 0 {
		p.fail("offset", "must be >= 0")
	}
	if err := p.err(); err != nil {
		writeError(c, h.log, err)
		return
	}
	if filter.To != nil {
		// The whole "to" day is included.
		end := filter.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &end
	}

	entries, total, err := h.audit.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, AuditListResponse{
		Items:  toAuditResponses(entries),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Record returns the history of one row, newest first.
// GET /api/audit/:table/:recordId
func (h *AuditHandler) Record(c *gin.Context) {
	if !requireAdmin(c, h.log) {
		return
	}

	p := newParams(c)
	limit := p.int("limit", 100)
	if err := p.err(); err != nil {
		writeError(c, h.log, err)
		return
	}

	entries, err := h.audit.ListByRecord(c.Request.Context(), c.Param("table"), c.Param("recordId"), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toAuditResponses(entries))
}

func toAuditResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:        e.ID,
			TableName: e.TableName,
			RecordID:  e.RecordID,
			Action:    e.Action.String(),
			OldValues: e.OldValues,
			NewValues: e.NewValues,
			UserID:    e.UserID,
			Timestamp: e.Timestamp,
		}
	}
	return out
}

// requireActor answers 401 when the request carries no identity.
func requireActor(c *gin.Context, log *slog.Logger) bool {
	if _, ok := ctxutil.ActorFromCtx(c.Request.Context()); !ok {
		writeError(c, log, domain.ErrUnauthorized)
		return false
	}
	return true
}

// requireAdmin answers 401 without identity and 403 for non-admin actors.
func requireAdmin(c *gin.Context, log *slog.Logger) bool {
	actor, ok := ctxutil.ActorFromCtx(c.Request.Context())
	if !ok {
		writeError(c, log, domain.ErrUnauthorized)
		return false
	}
	if !actor.IsAdmin() {
		writeError(c, log, domain.ErrForbidden)
		return false
	}
	return true
}
