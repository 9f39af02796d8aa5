package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logging.NewNop()
	r := gin.New()
	r.Use(RequestLogger(logger), ErrorHandler(logger))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/error", func(c *gin.Context) { _ = c.Error(errors.NotFound("student")) })
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func do(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestErrorHandler(t *testing.T) {
	r := setupRouter()

	w := do(r, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "boom")

	w = do(r, "/error")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	assert.Equal(t, http.StatusOK, do(r, "/ok").Code)
}
