package testhelper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// DiscardLogger returns a logger that drops all records.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SeedClient inserts a live client with a unique name.
func SeedClient(t *testing.T, pool *pgxpool.Pool) domain.Client {
	t.Helper()

	c := domain.Client{Name: "Client " + uniqueSuffix(), IsActive: true}
	err := pool.QueryRow(context.Background(),
		`INSERT INTO clients (name, is_active) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		t.Fatalf("testhelper: SeedClient: %v", err)
	}
	return c
}

// SeedActivity inserts a live activity with a unique name.
func SeedActivity(t *testing.T, pool *pgxpool.Pool) domain.Activity {
	t.Helper()

	a := domain.Activity{Name: "Activity " + uniqueSuffix(), IsActive: true}
	err := pool.QueryRow(context.Background(),
		`INSERT INTO activities (name, is_active) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		a.Name, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		t.Fatalf("testhelper: SeedActivity: %v", err)
	}
	return a
}

// SeedOutcome inserts a live outcome with a unique name.
func SeedOutcome(t *testing.T, pool *pgxpool.Pool) domain.Outcome {
	t.Helper()

	o := domain.Outcome{Name: "Outcome " + uniqueSuffix(), IsActive: true}
	err := pool.QueryRow(context.Background(),
		`INSERT INTO outcomes (name, is_active) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		o.Name, o.IsActive,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		t.Fatalf("testhelper: SeedOutcome: %v", err)
	}
	return o
}

// ServiceLogSeed holds the fields of a seeded service log. Zero ClientID or
// ActivityID makes SeedServiceLog create a fresh reference row.
type ServiceLogSeed struct {
	UserID       uuid.UUID
	ClientID     int64
	ActivityID   int64
	ServiceDate  time.Time
	PatientCount int
	Submitted    bool
	Entries      []domain.PatientEntry
}

// SeedServiceLog inserts a service log and its patient entries directly,
// bypassing repositories and the audit trail.
func SeedServiceLog(t *testing.T, pool *pgxpool.Pool, seed ServiceLogSeed) domain.ServiceLog {
	t.Helper()
	ctx := context.Background()

	if seed.UserID == uuid.Nil {
		seed.UserID = uuid.New()
	}
	if seed.ClientID == 0 {
		seed.ClientID = SeedClient(t, pool).ID
	}
	if seed.ActivityID == 0 {
		seed.ActivityID = SeedActivity(t, pool).ID
	}
	if seed.ServiceDate.IsZero() {
		seed.ServiceDate = Date(2025, time.March, 3)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	log := domain.ServiceLog{
		ID:           uuid.New(),
		UserID:       seed.UserID,
		ClientID:     seed.ClientID,
		ActivityID:   seed.ActivityID,
		ServiceDate:  seed.ServiceDate,
		PatientCount: seed.PatientCount,
		IsDraft:      !seed.Submitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if seed.Submitted {
		log.SubmittedAt = &now
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO service_logs (id, user_id, client_id, activity_id, service_date, patient_count,
		                           is_draft, submitted_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID, log.UserID, log.ClientID, log.ActivityID, log.ServiceDate, log.PatientCount,
		log.IsDraft, log.SubmittedAt, log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedServiceLog insert service_log: %v", err)
	}

	for i, e := range seed.Entries {
		e.ID = uuid.New()
		e.ServiceLogID = log.ID
		e.CreatedAt = now
		e.UpdatedAt = now

		_, err := pool.Exec(ctx,
			`INSERT INTO patient_entries (id, service_log_id, new_patients, followup_patients, dna_count,
			                              outcome_id, notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.ServiceLogID, e.NewPatients, e.FollowupPatients, e.DNACount,
			e.OutcomeID, e.Notes, e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			t.Fatalf("testhelper: SeedServiceLog insert patient_entry[%d]: %v", i, err)
		}
		log.Entries = append(log.Entries, e)
	}

	return log
}

// AuditCount returns the number of audit entries for one record.
func AuditCount(t *testing.T, pool *pgxpool.Pool, table, recordID string, action domain.AuditAction) int {
	t.Helper()

	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM audit_log WHERE table_name = $1 AND record_id = $2 AND action = $3`,
		table, recordID, action.String(),
	).Scan(&n)
	if err != nil {
		t.Fatalf("testhelper: AuditCount: %v", err)
	}
	return n
}
