package rest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/service/report/export"
)

type reportService interface {
	ListServiceLogs(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLogView], error)
	GetSummaryReport(ctx context.Context, filter domain.ServiceLogFilter) (*domain.SummaryReport, error)
	ExportServiceLogs(ctx context.Context, filter domain.ServiceLogFilter, format domain.ExportFormat, w io.Writer) (*domain.ExportMeta, error)
}

// ReportHandler serves report and export endpoints.
type ReportHandler struct {
	reports reportService
	log     *slog.Logger
	now     func() time.Time
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reports reportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		log:     logger.With("handler", "report"),
		now:     time.Now,
	}
}

// Summary returns the aggregated report over the filtered service logs.
// GET /api/reports/summary?date_from=2025-01-01&date_to=2025-01-31
func (h *ReportHandler) Summary(c *gin.Context) {
	p := newParams(c)
	filter := p.serviceLogFilter()
	if err := p.err(); err != nil {
		writeError(c, h.log, err)
		return
	}

	report, err := h.reports.GetSummaryReport(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toSummaryResponse(report))
}

// ServiceLogs returns one page of service logs with display names.
// GET /api/reports/service-logs?page=1&limit=20&is_draft=false
func (h *ReportHandler) ServiceLogs(c *gin.Context) {
	p := newParams(c)
	filter := p.serviceLogFilter()
	page := p.int("page", 1)
	limit := p.int("limit", domain.DefaultPageLimit)
	if err := p.err(); err != nil {
		writeError(c, h.log, err)
		return
	}

	result, err := h.reports.ListServiceLogs(c.Request.Context(), filter, page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toViewPage(result))
}

// Export streams the filtered service logs as a downloadable file.
// GET /api/reports/export?format=csv|excel
func (h *ReportHandler) Export(c *gin.Context) {
	p := newParams(c)
	filter := p.serviceLogFilter()
	if err := p.err(); err != nil {
		writeError(c, h.log, err)
		return
	}

	format := domain.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(domain.ExportFormatCSV))))
	out := &attachment{
		c:        c,
		format:   format,
		filename: export.Filename(format, h.now()),
	}

	meta, err := h.reports.ExportServiceLogs(c.Request.Context(), filter, format, out)
	if err != nil {
		if !out.started {
			writeError(c, h.log, err)
			return
		}
		// Headers are gone; the truncated body is all the client gets.
		h.log.ErrorContext(c.Request.Context(), "export aborted mid-stream",
			slog.String("format", format.String()),
			slog.String("error", err.Error()),
		)
		c.Abort()
		return
	}

	out.start()
	h.log.DebugContext(c.Request.Context(), "export served",
		slog.String("filename", meta.Filename),
		slog.Int("rows", meta.Rows),
	)
}

// attachment defers the download headers until the first byte of the file
// is written, so that errors raised before that still get a JSON response.
type attachment struct {
	c        *gin.Context
	format   domain.ExportFormat
	filename string
	started  bool
}

func (a *attachment) start() {
	if a.started {
		return
	}
	a.started = true
	h := a.c.Writer.Header()
	h.Set("Content-Type", a.format.ContentType())
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.filename))
	a.c.Status(http.StatusOK)
}

func (a *attachment) Write(b []byte) (int, error) {
	a.start()
	return a.c.Writer.Write(b)
}
