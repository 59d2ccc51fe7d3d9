package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an immutable record of one mutation of one row.
// OldValues is nil for inserts; NewValues is nil for hard deletes.
type AuditEntry struct {
	ID        int64
	TableName string
	RecordID  string
	Action    AuditAction
	OldValues map[string]any
	NewValues map[string]any
	UserID    uuid.UUID
	Timestamp time.Time
}

// AuditFilter narrows audit history queries. Nil fields are not applied.
type AuditFilter struct {
	TableName *string
	RecordID  *string
	Action    *AuditAction
	UserID    *uuid.UUID
	From      *time.Time
	To        *time.Time
}
