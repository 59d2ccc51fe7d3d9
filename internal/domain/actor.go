package domain

import "github.com/google/uuid"

// SystemUserID is the actor recorded for mutations made by batch commands.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	UserID uuid.UUID
	Role   UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == UserRoleAdmin }

// CanAccess reports whether the actor may act on data owned by owner.
func (a Actor) CanAccess(owner uuid.UUID) bool {
	return a.IsAdmin() || a.UserID == owner
}
