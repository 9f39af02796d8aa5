package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func router(checker *HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHealthHandler(checker).RegisterRoutes(r)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestCheck_Statuses(t *testing.T) {
	ctx := context.Background()

	healthy := NewHealthChecker(Probe{Name: "database", Critical: true, Check: ok}).Check(ctx)
	assert.Equal(t, StatusHealthy, healthy.Status)
	assert.Equal(t, StatusHealthy, healthy.Services["database"].Status)

	degraded := NewHealthChecker(
		Probe{Name: "database", Critical: true, Check: ok},
		Probe{Name: "redis", Check: down},
	).Check(ctx)
	assert.Equal(t, StatusDegraded, degraded.Status)
	assert.Contains(t, degraded.Message, "redis")

	unhealthy := NewHealthChecker(
		Probe{Name: "database", Critical: true, Check: down},
		Probe{Name: "redis", Check: down},
	).Check(ctx)
	assert.Equal(t, StatusUnhealthy, unhealthy.Status)
}

func TestRoutes(t *testing.T) {
	healthy := router(NewHealthChecker(Probe{Name: "database", Critical: true, Check: ok}))
	assert.Equal(t, http.StatusOK, get(healthy, "/api/health").Code)
	assert.Equal(t, http.StatusOK, get(healthy, "/api/health/live").Code)
	assert.Equal(t, http.StatusOK, get(healthy, "/api/health/ready").Code)

	broken := router(NewHealthChecker(Probe{Name: "database", Critical: true, Check: down}))
	assert.Equal(t, http.StatusServiceUnavailable, get(broken, "/api/health").Code)
	assert.Equal(t, http.StatusOK, get(broken, "/api/health/live").Code)

	w := get(broken, "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}
