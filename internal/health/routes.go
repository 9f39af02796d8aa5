package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/api"
)

// HealthHandler provides health check endpoints
type HealthHandler struct {
	checker *HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker: checker,
	}
}

// RegisterRoutes registers health check endpoints
func (h *HealthHandler) RegisterRoutes(engine *gin.Engine) {
	health := engine.Group("/api/health")
	{
		health.GET("", h.handleHealthStatus)
		health.GET("/live", h.handleLiveness)
		health.GET("/ready", h.handleReadiness)
	}
}

// handleHealthStatus returns complete health status; degraded still answers 200
func (h *HealthHandler) handleHealthStatus(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())

	httpStatus := http.StatusOK
	if status.Status == StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	api.RespondWith(c, httpStatus, status)
}

func (h *HealthHandler) handleLiveness(c *gin.Context) {
	api.RespondWith(c, http.StatusOK, gin.H{
		"status":  "alive",
		"message": "Service is running",
	})
}

// handleReadiness checks if the service is ready to serve requests
func (h *HealthHandler) handleReadiness(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())

	if status.Status != StatusUnhealthy {
		api.RespondWith(c, http.StatusOK, gin.H{
			"status":  "ready",
			"message": "Service is ready to serve requests",
		})
		return
	}
	api.RespondWithError(c, api.NewError(
		api.ErrCodeInternalServer,
		"Service is not ready: "+status.Message,
		http.StatusServiceUnavailable,
	))
}
