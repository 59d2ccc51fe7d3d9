package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/servicelog-backend/internal/config"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/service/servicelog"
	"github.com/heartmarshall/servicelog-backend/internal/transport/middleware"
	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockReportService struct {
	ListServiceLogsFunc   func(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLogView], error)
	GetSummaryReportFunc  func(ctx context.Context, filter domain.ServiceLogFilter) (*domain.SummaryReport, error)
	ExportServiceLogsFunc func(ctx context.Context, filter domain.ServiceLogFilter, format domain.ExportFormat, w io.Writer) (*domain.ExportMeta, error)
}

func (m *mockReportService) ListServiceLogs(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLogView], error) {
	return m.ListServiceLogsFunc(ctx, filter, page, limit)
}

func (m *mockReportService) GetSummaryReport(ctx context.Context, filter domain.ServiceLogFilter) (*domain.SummaryReport, error) {
	return m.GetSummaryReportFunc(ctx, filter)
}

func (m *mockReportService) ExportServiceLogs(ctx context.Context, filter domain.ServiceLogFilter, format domain.ExportFormat, w io.Writer) (*domain.ExportMeta, error) {
	return m.ExportServiceLogsFunc(ctx, filter, format, w)
}

type mockServiceLogService struct {
	CreateFunc           func(ctx context.Context, input servicelog.CreateInput) (*domain.ServiceLog, error)
	GetFunc              func(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error)
	UpdateFunc           func(ctx context.Context, id uuid.UUID, input servicelog.UpdateInput) (*domain.ServiceLog, error)
	ReplaceEntriesFunc   func(ctx context.Context, id uuid.UUID, inputs []servicelog.EntryInput) ([]domain.PatientEntry, error)
	SubmitFunc           func(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error)
	RevertToDraftFunc    func(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error)
	DeleteFunc           func(ctx context.Context, id uuid.UUID) error
	BulkDeleteByUserFunc func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockServiceLogService) Create(ctx context.Context, input servicelog.CreateInput) (*domain.ServiceLog, error) {
	return m.CreateFunc(ctx, input)
}

func (m *mockServiceLogService) Get(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockServiceLogService) Update(ctx context.Context, id uuid.UUID, input servicelog.UpdateInput) (*domain.ServiceLog, error) {
	return m.UpdateFunc(ctx, id, input)
}

func (m *mockServiceLogService) ReplaceEntries(ctx context.Context, id uuid.UUID, inputs []servicelog.EntryInput) ([]domain.PatientEntry, error) {
	return m.ReplaceEntriesFunc(ctx, id, inputs)
}

func (m *mockServiceLogService) Submit(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error) {
	return m.SubmitFunc(ctx, id)
}

func (m *mockServiceLogService) RevertToDraft(ctx context.Context, id uuid.UUID) (*domain.ServiceLog, error) {
	return m.RevertToDraftFunc(ctx, id)
}

func (m *mockServiceLogService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.DeleteFunc(ctx, id)
}

func (m *mockServiceLogService) BulkDeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.BulkDeleteByUserFunc(ctx, userID)
}

type mockCatalog[T any] struct {
	FindActiveFunc         func(ctx context.Context) ([]T, error)
	FindWithUsageStatsFunc func(ctx context.Context) ([]domain.UsageStats, error)
}

func (m *mockCatalog[T]) FindActive(ctx context.Context) ([]T, error) {
	return m.FindActiveFunc(ctx)
}

func (m *mockCatalog[T]) FindWithUsageStats(ctx context.Context) ([]domain.UsageStats, error) {
	return m.FindWithUsageStatsFunc(ctx)
}

type mockAuditReader struct {
	ListByRecordFunc func(ctx context.Context, table, recordID string, limit int) ([]domain.AuditEntry, error)
	ListFunc         func(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, int, error)
}

func (m *mockAuditReader) ListByRecord(ctx context.Context, table, recordID string, limit int) ([]domain.AuditEntry, error) {
	return m.ListByRecordFunc(ctx, table, recordID, limit)
}

func (m *mockAuditReader) List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, int, error) {
	return m.ListFunc(ctx, filter, limit, offset)
}

type dbPingerMock struct {
	err error
}

func (m *dbPingerMock) Ping(_ context.Context) error {
	return m.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type testDeps struct {
	reports    reportService
	logs       serviceLogService
	clients    catalogSource[domain.Client]
	activities catalogSource[domain.Activity]
	outcomes   catalogSource[domain.Outcome]
	audit      auditReader
}

func newTestRouter(d testDeps) *gin.Engine {
	cfg := &config.Config{CORS: config.CORSConfig{AllowedOrigins: "*"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(cfg, logger, Handlers{
		Health:      NewHealthHandler(&dbPingerMock{}, "test"),
		Reports:     NewReportHandler(d.reports, logger),
		ServiceLogs: NewServiceLogHandler(d.logs, logger),
		Catalog:     NewCatalogHandler(d.clients, d.activities, d.outcomes, logger),
		Audit:       NewAuditHandler(d.audit, logger),
	})
}

func testRouter(reports reportService, logs serviceLogService) *gin.Engine {
	return newTestRouter(testDeps{reports: reports, logs: logs})
}

// do sends a request as actor; a zero actor sends no identity headers.
func do(t *testing.T, r http.Handler, method, target string, actor domain.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor.UserID != uuid.Nil {
		req.Header.Set(middleware.UserIDHeader, actor.UserID.String())
		req.Header.Set(middleware.UserRoleHeader, actor.Role.String())
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func userActor() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.UserRoleUser}
}

func adminActor() domain.Actor {
	return domain.Actor{UserID: uuid.New(), Role: domain.UserRoleAdmin}
}

func actorOf(ctx context.Context) domain.Actor {
	a, _ := ctxutil.ActorFromCtx(ctx)
	return a
}
