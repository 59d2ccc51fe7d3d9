package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestLogger_Success(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	req.Header.Set(UserIDHeader, userID.String())

	serve(req, func(c *gin.Context) {
		c.Status(http.StatusOK)
	}, RequestID(), Identity(), Logger(logger))

	out := buf.String()
	for _, want := range []string{
		`"msg":"http.request"`,
		`"method":"GET"`,
		`"path":"/test"`,
		`"status":200`,
		`"duration"`,
		`"request_id":"req-1"`,
		`"user_id":"` + userID.String() + `"`,
		`"level":"INFO"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %s, got %q", want, out)
		}
	}
}

func TestLogger_ServerErrorLoggedAsError(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	serve(req, func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	}, Logger(logger))

	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Errorf("expected ERROR level for status 500, got %q", out)
	}
	if strings.Contains(out, "user_id") {
		t.Errorf("anonymous request must not log user_id, got %q", out)
	}
}
