package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/servicelog-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// newRepo sets up a test DB and returns a ready Repo + pool.
func newRepo(t *testing.T) (*audit.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return audit.New(pool), pool
}

func buildEntry(table, recordID string, action domain.AuditAction, userID uuid.UUID, ts time.Time) domain.AuditEntry {
	entry := domain.AuditEntry{
		TableName: table,
		RecordID:  recordID,
		Action:    action,
		UserID:    userID,
		Timestamp: ts,
	}
	if action != domain.AuditActionInsert {
		entry.OldValues = map[string]any{"name": "before"}
	}
	if action != domain.AuditActionDelete {
		entry.NewValues = map[string]any{"name": "after"}
	}
	return entry
}

// ---------------------------------------------------------------------------
// Append / ListByRecord
// ---------------------------------------------------------------------------

func TestRepo_Append_ListByRecord(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	userID := uuid.New()
	recordID := uuid.New().String()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, action := range []domain.AuditAction{domain.AuditActionInsert, domain.AuditActionUpdate, domain.AuditActionDelete} {
		entry := buildEntry("clients", recordID, action, userID, base.Add(time.Duration(i)*time.Second))
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append %s: unexpected error: %v", action, err)
		}
	}

	got, err := repo.ListByRecord(ctx, "clients", recordID, 10)
	if err != nil {
		t.Fatalf("ListByRecord: unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}

	// Newest first.
	if got[0].Action != domain.AuditActionDelete || got[2].Action != domain.AuditActionInsert {
		t.Errorf("unexpected order: %s, %s, %s", got[0].Action, got[1].Action, got[2].Action)
	}
	if got[0].NewValues != nil {
		t.Errorf("DELETE entry NewValues = %v, want nil", got[0].NewValues)
	}
	if got[2].OldValues != nil {
		t.Errorf("INSERT entry OldValues = %v, want nil", got[2].OldValues)
	}
	if got[1].OldValues["name"] != "before" || got[1].NewValues["name"] != "after" {
		t.Errorf("UPDATE entry snapshots mismatch: old=%v new=%v", got[1].OldValues, got[1].NewValues)
	}
	if got[1].UserID != userID {
		t.Errorf("UserID mismatch: got %s, want %s", got[1].UserID, userID)
	}
}

func TestRepo_Append_InvalidAction(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	err := repo.Append(context.Background(), domain.AuditEntry{TableName: "clients", RecordID: "1", Action: "MERGE", UserID: uuid.New()})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestRepo_ListByRecord_Empty(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	got, err := repo.ListByRecord(context.Background(), "clients", "does-not-exist", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestRepo_List_FilterAndPaginate(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	userID := uuid.New()
	other := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		entry := buildEntry("service_logs", uuid.New().String(), domain.AuditActionUpdate, userID, base.Add(time.Duration(i)*time.Second))
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := repo.Append(ctx, buildEntry("service_logs", uuid.New().String(), domain.AuditActionUpdate, other, base)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	action := domain.AuditActionUpdate
	filter := domain.AuditFilter{UserID: &userID, Action: &action}

	page1, total, err := repo.List(ctx, filter, 2, 0)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 {
		t.Fatalf("page 1 len = %d, want 2", len(page1))
	}

	page3, total3, err := repo.List(ctx, filter, 2, 4)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}
	if total3 != total {
		t.Errorf("total changed between pages: %d vs %d", total3, total)
	}
	if len(page3) != 1 {
		t.Errorf("page 3 len = %d, want 1", len(page3))
	}

	from := base.Add(3 * time.Second)
	_, recent, err := repo.List(ctx, domain.AuditFilter{UserID: &userID, From: &from}, 10, 0)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}
	if recent != 2 {
		t.Errorf("entries since %v = %d, want 2", from, recent)
	}
}
