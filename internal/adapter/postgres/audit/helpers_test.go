package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

func domainEntry(userID uuid.UUID, ts time.Time) domain.AuditEntry {
	return domain.AuditEntry{
		TableName: "clients",
		RecordID:  "42",
		Action:    domain.AuditActionInsert,
		NewValues: map[string]any{"name": "North"},
		UserID:    userID,
		Timestamp: ts,
	}
}
