package middleware

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve runs one request through an engine with mws installed globally and
// handler registered on GET /test.
func serve(req *http.Request, handler gin.HandlerFunc, mws ...gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(mws...)
	r.GET("/test", handler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
