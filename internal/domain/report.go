package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceLogStatistics is the single-pass aggregate over a filtered set of
// service logs and their patient entries.
type ServiceLogStatistics struct {
	Total            int
	Drafts           int
	Submitted        int
	TotalPatients    int
	AveragePatients  float64
	NewPatients      int
	FollowupPatients int
	DNACount         int
}

// DimensionCount is one group of a summary breakdown.
type DimensionCount struct {
	ID           int64
	Name         string
	Count        int
	PatientCount int
}

// SummaryReport is the aggregated report over a filtered set of service logs.
type SummaryReport struct {
	Overview     SummaryOverview
	Appointments AppointmentBreakdown
	ByClient     []DimensionCount
	ByActivity   []DimensionCount
	ByOutcome    []DimensionCount
	Period       ReportPeriod
}

type SummaryOverview struct {
	TotalLogs       int
	DraftLogs       int
	SubmittedLogs   int
	CompletionRate  float64
	TotalPatients   int
	AveragePatients float64
}

type AppointmentBreakdown struct {
	NewPatients      int
	FollowupPatients int
	DNACount         int
	Total            int
	DNARate          float64
}

// ReportPeriod is the date range of a report. Weekdays is 0 unless both
// bounds are set.
type ReportPeriod struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Weekdays int
}

// ServiceLogView is a service log enriched with display names.
type ServiceLogView struct {
	ServiceLog
	ClientName   string
	ActivityName string
}

// ExportRow is one flattened line of a service-log export.
type ExportRow struct {
	ServiceLogID     uuid.UUID
	UserID           uuid.UUID
	ClientName       string
	ActivityName     string
	ServiceDate      time.Time
	PatientCount     int
	NewPatients      int
	FollowupPatients int
	DNACount         int
	OutcomeName      string
	IsDraft          bool
	SubmittedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ExportMeta describes a finished export.
type ExportMeta struct {
	Filename    string
	ContentType string
	Rows        int
}
