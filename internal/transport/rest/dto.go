package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/internal/service/servicelog"
)

// Request bodies.

type entryRequest struct {
	NewPatients      int     `json:"new_patients"`
	FollowupPatients int     `json:"followup_patients"`
	DNACount         int     `json:"dna_count"`
	OutcomeID        *int64  `json:"outcome_id"`
	Notes            *string `json:"notes"`
}

type createServiceLogRequest struct {
	UserID       *uuid.UUID     `json:"user_id"`
	ClientID     int64          `json:"client_id"`
	ActivityID   int64          `json:"activity_id"`
	ServiceDate  string         `json:"service_date"`
	PatientCount int            `json:"patient_count"`
	Entries      []entryRequest `json:"entries"`
}

type updateServiceLogRequest struct {
	ClientID     *int64  `json:"client_id"`
	ActivityID   *int64  `json:"activity_id"`
	ServiceDate  *string `json:"service_date"`
	PatientCount *int    `json:"patient_count"`
}

type replaceEntriesRequest struct {
	Entries []entryRequest `json:"entries"`
}

func toEntryInputs(in []entryRequest) []servicelog.EntryInput {
	out := make([]servicelog.EntryInput, len(in))
	for i, e := range in {
		out[i] = servicelog.EntryInput{
			NewPatients:      e.NewPatients,
			FollowupPatients: e.FollowupPatients,
			DNACount:         e.DNACount,
			OutcomeID:        e.OutcomeID,
			Notes:            e.Notes,
		}
	}
	return out
}

func parseServiceDate(v string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, domain.NewValidationError("service_date", "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

func (r createServiceLogRequest) toInput() (servicelog.CreateInput, error) {
	date, err := parseServiceDate(r.ServiceDate)
	if err != nil {
		return servicelog.CreateInput{}, err
	}
	in := servicelog.CreateInput{
		ClientID:     r.ClientID,
		ActivityID:   r.ActivityID,
		ServiceDate:  date,
		PatientCount: r.PatientCount,
		Entries:      toEntryInputs(r.Entries),
	}
	if r.UserID != nil {
		in.UserID = *r.UserID
	}
	return in, nil
}

func (r updateServiceLogRequest) toInput() (servicelog.UpdateInput, error) {
	in := servicelog.UpdateInput{
		ClientID:     r.ClientID,
		ActivityID:   r.ActivityID,
		PatientCount: r.PatientCount,
	}
	if r.ServiceDate != nil {
		date, err := parseServiceDate(*r.ServiceDate)
		if err != nil {
			return servicelog.UpdateInput{}, err
		}
		in.ServiceDate = &date
	}
	return in, nil
}

// Responses.

type EntryResponse struct {
	ID               uuid.UUID `json:"id"`
	ServiceLogID     uuid.UUID `json:"service_log_id"`
	NewPatients      int       `json:"new_patients"`
	FollowupPatients int       `json:"followup_patients"`
	DNACount         int       `json:"dna_count"`
	OutcomeID        *int64    `json:"outcome_id"`
	Notes            *string   `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ServiceLogResponse struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	ClientID     int64           `json:"client_id"`
	ClientName   string          `json:"client_name,omitempty"`
	ActivityID   int64           `json:"activity_id"`
	ActivityName string          `json:"activity_name,omitempty"`
	ServiceDate  string          `json:"service_date"`
	PatientCount int             `json:"patient_count"`
	IsDraft      bool            `json:"is_draft"`
	SubmittedAt  *time.Time      `json:"submitted_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Entries      []EntryResponse `json:"entries,omitempty"`
}

// PageResponse is one page of a listing.
type PageResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

type DimensionCountResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
	PatientCount int    `json:"patient_count"`
}

type SummaryResponse struct {
	Overview struct {
		TotalLogs       int     `json:"total_logs"`
		DraftLogs       int     `json:"draft_logs"`
		SubmittedLogs   int     `json:"submitted_logs"`
		CompletionRate  float64 `json:"completion_rate"`
		TotalPatients   int     `json:"total_patients"`
		AveragePatients float64 `json:"average_patients"`
	} `json:"overview"`
	Appointments struct {
		NewPatients      int     `json:"new_patients"`
		FollowupPatients int     `json:"followup_patients"`
		DNACount         int     `json:"dna_count"`
		Total            int     `json:"total"`
		DNARate          float64 `json:"dna_rate"`
	} `json:"appointments"`
	ByClient   []DimensionCountResponse `json:"by_client"`
	ByActivity []DimensionCountResponse `json:"by_activity"`
	ByOutcome  []DimensionCountResponse `json:"by_outcome"`
	Period     struct {
		DateFrom *string `json:"date_from"`
		DateTo   *string `json:"date_to"`
		Weekdays int     `json:"weekdays"`
	} `json:"period"`
}

func toEntryResponse(e domain.PatientEntry) EntryResponse {
	return EntryResponse{
		ID:               e.ID,
		ServiceLogID:     e.ServiceLogID,
		NewPatients:      e.NewPatients,
		FollowupPatients: e.FollowupPatients,
		DNACount:         e.DNACount,
		OutcomeID:        e.OutcomeID,
		Notes:            e.Notes,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func toEntryResponses(entries []domain.PatientEntry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	return out
}

func toServiceLogResponse(l domain.ServiceLog) ServiceLogResponse {
	resp := ServiceLogResponse{
		ID:           l.ID,
		UserID:       l.UserID,
		ClientID:     l.ClientID,
		ActivityID:   l.ActivityID,
		ServiceDate:  l.ServiceDate.Format(time.DateOnly),
		PatientCount: l.PatientCount,
		IsDraft:      l.IsDraft,
		SubmittedAt:  l.SubmittedAt,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	if len(l.Entries) > 0 {
		resp.Entries = toEntryResponses(l.Entries)
	}
	return resp
}

func toViewPage(p domain.Page[domain.ServiceLogView]) PageResponse[ServiceLogResponse] {
	items := make([]ServiceLogResponse, len(p.Items))
	for i, v := range p.Items {
		items[i] = toServiceLogResponse(v.ServiceLog)
		items[i].ClientName = v.ClientName
		items[i].ActivityName = v.ActivityName
	}
	return PageResponse[ServiceLogResponse]{
		Items:      items,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
	}
}

func toDimensionCounts(in []domain.DimensionCount) []DimensionCountResponse {
	out := make([]DimensionCountResponse, len(in))
	for i, d := range in {
		out[i] = DimensionCountResponse{ID: d.ID, Name: d.Name, Count: d.Count, PatientCount: d.PatientCount}
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func toSummaryResponse(r *domain.SummaryReport) SummaryResponse {
	var resp SummaryResponse
	resp.Overview.TotalLogs = r.Overview.TotalLogs
	resp.Overview.DraftLogs = r.Overview.DraftLogs
	resp.Overview.SubmittedLogs = r.Overview.SubmittedLogs
	resp.Overview.CompletionRate = r.Overview.CompletionRate
	resp.Overview.TotalPatients = r.Overview.TotalPatients
	resp.Overview.AveragePatients = r.Overview.AveragePatients

	resp.Appointments.NewPatients = r.Appointments.NewPatients
	resp.Appointments.FollowupPatients = r.Appointments.FollowupPatients
	resp.Appointments.DNACount = r.Appointments.DNACount
	resp.Appointments.Total = r.Appointments.Total
	resp.Appointments.DNARate = r.Appointments.DNARate

	resp.ByClient = toDimensionCounts(r.ByClient)
	resp.ByActivity = toDimensionCounts(r.ByActivity)
	resp.ByOutcome = toDimensionCounts(r.ByOutcome)

	resp.Period.DateFrom = formatDate(r.Period.DateFrom)
	resp.Period.DateTo = formatDate(r.Period.DateTo)
	resp.Period.Weekdays = r.Period.Weekdays
	return resp
}
