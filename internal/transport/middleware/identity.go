package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

// Headers set by the upstream authentication gateway.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
)

// Identity turns the gateway identity headers into a domain.Actor in the
// request context. A request without X-User-ID continues anonymously and is
// rejected by the services that need an actor. A malformed user id or an
// unknown role is rejected here with 401.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if raw == "" {
			c.Next()
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			abortUnauthorized(c, "invalid "+UserIDHeader+" header")
			return
		}

		role := domain.UserRoleUser
		if v := strings.TrimSpace(c.GetHeader(UserRoleHeader)); v != "" {
			role = domain.UserRole(strings.ToLower(v))
		}
		if !role.IsValid() {
			abortUnauthorized(c, "invalid "+UserRoleHeader+" header")
			return
		}

		ctx := ctxutil.WithActor(c.Request.Context(), domain.Actor{UserID: userID, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "message": msg})
}
