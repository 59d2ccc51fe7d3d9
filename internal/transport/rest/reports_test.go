package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

func TestSummary_ParsesFilter(t *testing.T) {
	t.Parallel()
	actor := adminActor()
	userID := uuid.New()

	var got domain.ServiceLogFilter
	reports := &mockReportService{
		GetSummaryReportFunc: func(ctx context.Context, filter domain.ServiceLogFilter) (*domain.SummaryReport, error) {
			got = filter
			assert.Equal(t, actor, actorOf(ctx))
			from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
			return &domain.SummaryReport{
				Overview:     domain.SummaryOverview{TotalLogs: 4, SubmittedLogs: 3, DraftLogs: 1, CompletionRate: 75},
				Appointments: domain.AppointmentBreakdown{NewPatients: 5, FollowupPatients: 3, DNACount: 2, Total: 10, DNARate: 20},
				ByClient:     []domain.DimensionCount{{ID: 1, Name: "Acme", Count: 4, PatientCount: 12}},
				ByActivity:   []domain.DimensionCount{},
				ByOutcome:    []domain.DimensionCount{},
				Period:       domain.ReportPeriod{DateFrom: &from, Weekdays: 0},
			}, nil
		},
	}
	r := testRouter(reports, nil)

	target := fmt.Sprintf("/api/reports/summary?user_id=%s&client_id=7&is_draft=false&date_from=2025-03-01", userID)
	rec := do(t, r, http.MethodGet, target, actor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, got.UserID)
	assert.Equal(t, userID, *got.UserID)
	require.NotNil(t, got.ClientID)
	assert.Equal(t, int64(7), *got.ClientID)
	require.NotNil(t, got.IsDraft)
	assert.False(t, *got.IsDraft)
	require.NotNil(t, got.DateFrom)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *got.DateFrom)
	assert.Nil(t, got.ActivityID)
	assert.Nil(t, got.DateTo)

	resp := decode[SummaryResponse](t, rec)
	assert.Equal(t, 75.0, resp.Overview.CompletionRate)
	assert.Equal(t, 20.0, resp.Appointments.DNARate)
	assert.Equal(t, 10, resp.Appointments.Total)
	require.Len(t, resp.ByClient, 1)
	assert.Equal(t, "Acme", resp.ByClient[0].Name)
	assert.Empty(t, resp.ByOutcome)
	require.NotNil(t, resp.Period.DateFrom)
	assert.Equal(t, "2025-03-01", *resp.Period.DateFrom)
	assert.Nil(t, resp.Period.DateTo)
}

func TestSummary_InvalidParams(t *testing.T) {
	t.Parallel()
	reports := &mockReportService{
		GetSummaryReportFunc: func(ctx context.Context, filter domain.ServiceLogFilter) (*domain.SummaryReport, error) {
			t.Fatal("service must not be called for invalid params")
			return nil, nil
		},
	}
	r := testRouter(reports, nil)

	rec := do(t, r, http.MethodGet, "/api/reports/summary?client_id=abc&date_to=03/01/2025&is_draft=maybe", adminActor(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "VALIDATION", resp.Code)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"client_id", "is_draft", "date_to"}, fields)
}

func TestSummary_Unauthorized(t *testing.T) {
	t.Parallel()
	reports := &mockReportService{
		GetSummaryReportFunc: func(ctx context.Context, filter domain.ServiceLogFilter) (*domain.SummaryReport, error) {
			return nil, domain.ErrUnauthorized
		},
	}
	r := testRouter(reports, nil)

	rec := do(t, r, http.MethodGet, "/api/reports/summary", domain.Actor{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServiceLogs_Page(t *testing.T) {
	t.Parallel()
	logID := uuid.New()

	var gotPage, gotLimit int
	reports := &mockReportService{
		ListServiceLogsFunc: func(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLogView], error) {
			gotPage, gotLimit = page, limit
			view := domain.ServiceLogView{
				ServiceLog: domain.ServiceLog{
					ID:          logID,
					ClientID:    1,
					ActivityID:  2,
					ServiceDate: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
					IsDraft:     true,
				},
				ClientName:   "Acme",
				ActivityName: "Clinic",
			}
			return domain.NewPage([]domain.ServiceLogView{view}, 11, page, limit), nil
		},
	}
	r := testRouter(reports, nil)

	rec := do(t, r, http.MethodGet, "/api/reports/service-logs?page=3&limit=5", userActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, gotPage)
	assert.Equal(t, 5, gotLimit)

	resp := decode[PageResponse[ServiceLogResponse]](t, rec)
	assert.Equal(t, 11, resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, logID, resp.Items[0].ID)
	assert.Equal(t, "2025-05-02", resp.Items[0].ServiceDate)
	assert.Equal(t, "Acme", resp.Items[0].ClientName)
	assert.Equal(t, "Clinic", resp.Items[0].ActivityName)
}

func TestServiceLogs_DefaultPaging(t *testing.T) {
	t.Parallel()

	var gotPage, gotLimit int
	reports := &mockReportService{
		ListServiceLogsFunc: func(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLogView], error) {
			gotPage, gotLimit = page, limit
			return domain.NewPage[domain.ServiceLogView](nil, 0, page, limit), nil
		},
	}
	r := testRouter(reports, nil)

	rec := do(t, r, http.MethodGet, "/api/reports/service-logs", userActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gotPage)
	assert.Equal(t, domain.DefaultPageLimit, gotLimit)
	assert.JSONEq(t, `{"items":[],"total":0,"page":1,"limit":20,"total_pages":0}`, rec.Body.String())
}

func TestExport_Headers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query       string
		format      domain.ExportFormat
		contentType string
		ext         string
	}{
		{query: "", format: domain.ExportFormatCSV, contentType: "text/csv; charset=utf-8", ext: "csv"},
		{query: "?format=EXCEL", format: domain.ExportFormatExcel, contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ext: "xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			t.Parallel()
			reports := &mockReportService{
				ExportServiceLogsFunc: func(ctx context.Context, filter domain.ServiceLogFilter, format domain.ExportFormat, w io.Writer) (*domain.ExportMeta, error) {
					assert.Equal(t, tt.format, format)
					_, err := io.WriteString(w, "payload")
					return &domain.ExportMeta{Filename: "f", ContentType: format.ContentType(), Rows: 1}, err
				},
			}
			r := testRouter(reports, nil)

			rec := do(t, r, http.MethodGet, "/api/reports/export"+tt.query, adminActor(), nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Regexp(t, `^attachment; filename="service-logs-export-\d{4}-\d{2}-\d{2}\.`+tt.ext+`"$`, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, "payload", rec.Body.String())
		})
	}
}

func TestExport_ErrorBeforeFirstByte(t *testing.T) {
	t.Parallel()
	reports := &mockReportService{
		ExportServiceLogsFunc: func(ctx context.Context, filter domain.ServiceLogFilter, format domain.ExportFormat, w io.Writer) (*domain.ExportMeta, error) {
			return nil, fmt.Errorf("export format %q: %w", format, domain.ErrInvalidFormat)
		},
	}
	r := testRouter(reports, nil)

	rec := do(t, r, http.MethodGet, "/api/reports/export?format=pdf", adminActor(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "INVALID_FORMAT", decode[ErrorResponse](t, rec).Code)
}

func TestExport_StoreErrorIsGeneric(t *testing.T) {
	t.Parallel()
	reports := &mockReportService{
		ExportServiceLogsFunc: func(ctx context.Context, filter domain.ServiceLogFilter, format domain.ExportFormat, w io.Writer) (*domain.ExportMeta, error) {
			return nil, errors.New("conn reset by peer")
		},
	}
	r := testRouter(reports, nil)

	rec := do(t, r, http.MethodGet, "/api/reports/export", adminActor(), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "conn reset")
}
