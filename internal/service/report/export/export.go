// Package export writes flattened service-log rows as CSV or XLSX.
//
// Writers are incremental: each row is written as it arrives and nothing
// but the current row is held in memory. Close flushes buffered output and
// Abort discards it; exactly one of them must be called, after which the
// writer must not be used.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// SheetName is the worksheet that holds exported rows in XLSX files.
const SheetName = "Service Logs"

// Header is the column header row shared by all formats.
var Header = []string{
	"Service Log ID",
	"User ID",
	"Client Name",
	"Activity Name",
	"Service Date",
	"Total Patient Count",
	"New Patients",
	"Followup Patients",
	"DNA Count",
	"Primary Outcome",
	"Is Draft",
	"Submitted At",
	"Created At",
	"Updated At",
}

// Writer receives export rows one at a time.
type Writer interface {
	Write(row domain.ExportRow) error
	Close() error
	Abort()
}

// NewWriter returns the writer for format. Nothing reaches w before the
// first data row or Close.
func NewWriter(format domain.ExportFormat, w io.Writer) (Writer, error) {
	switch format {
	case domain.ExportFormatCSV:
		return newCSVWriter(w)
	case domain.ExportFormatExcel:
		return newExcelWriter(w)
	default:
		return nil, fmt.Errorf("export format %q: %w", format, domain.ErrInvalidFormat)
	}
}

// Filename returns the download name of an export produced on day.
func Filename(format domain.ExportFormat, day time.Time) string {
	return fmt.Sprintf("service-logs-export-%s.%s", day.Format(time.DateOnly), format.Extension())
}

// record renders row as text cells in Header order.
func record(row domain.ExportRow) []string {
	submitted := ""
	if row.SubmittedAt != nil {
		submitted = formatTime(*row.SubmittedAt)
	}
	return []string{
		row.ServiceLogID.String(),
		row.UserID.String(),
		row.ClientName,
		row.ActivityName,
		row.ServiceDate.Format(time.DateOnly),
		strconv.Itoa(row.PatientCount),
		strconv.Itoa(row.NewPatients),
		strconv.Itoa(row.FollowupPatients),
		strconv.Itoa(row.DNACount),
		row.OutcomeName,
		strconv.FormatBool(row.IsDraft),
		submitted,
		formatTime(row.CreatedAt),
		formatTime(row.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
