package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

// Logger logs each HTTP request with method, path, status code, duration
// and the request and user identifiers found in the context.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
		}
		if userID, ok := ctxutil.UserIDFromCtx(ctx); ok {
			attrs = append(attrs, slog.String("user_id", userID.String()))
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(ctx, level, "http.request", attrs...)
	}
}
