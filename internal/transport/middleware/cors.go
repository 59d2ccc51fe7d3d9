package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/heartmarshall/servicelog-backend/internal/config"
)

// CORS sets Cross-Origin Resource Sharing headers for allowed origins and
// answers preflight OPTIONS requests with 204.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := strings.Split(cfg.AllowedOrigins, ",")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && isAllowedOrigin(origin, origins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Expose-Headers", "Content-Disposition,"+RequestIDHeader)
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", cfg.AllowedMethods)
			c.Header("Access-Control-Allow-Headers", cfg.AllowedHeaders)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func isAllowedOrigin(origin string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
