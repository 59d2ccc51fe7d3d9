package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heartmarshall/servicelog-backend/internal/telemetry"
)

// Metrics records the request count and latency of every request.
//
// The path label is the matched route template (c.FullPath()), so
// /api/service-logs/3f2a.../submit is recorded as
// /api/service-logs/:id/submit. Unmatched requests share "<no-route>".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
