package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/common/middleware"
	"github.com/wollisellis/vireiaestatistica-sub002/internal/health"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/metrics"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/engine"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/leaderboard"
	wssvc "github.com/wollisellis/vireiaestatistica-sub002/pkg/services/websocket"
)

// Dependencies are the services the HTTP surface is built from
type Dependencies struct {
	Engine             *engine.Engine
	Leaderboard        *leaderboard.Service
	Broadcaster        *wssvc.Broadcaster
	Health             *health.HealthChecker
	Metrics            *metrics.Metrics
	Logger             *logging.Logger
	MaxConflictRetries int
}

// NewRouter builds the service handler: a chi root router assigning request IDs and
// serving /metrics, with the gin API mounted below it.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	ginEngine := gin.New()
	ginEngine.Use(middleware.RequestLogger(logger.Named("http")), middleware.ErrorHandler(logger))

	if deps.Health != nil {
		health.NewHealthHandler(deps.Health).RegisterRoutes(ginEngine)
	}

	v1 := ginEngine.Group("/api/v1")
	NewProgressHandlers(deps.Engine, deps.MaxConflictRetries).RegisterRoutes(v1)
	NewLeaderboardHandlers(deps.Leaderboard, deps.Broadcaster).RegisterRoutes(v1)

	root := chi.NewRouter()
	root.Use(chimw.RequestID)
	root.Use(chimw.RealIP)
	if deps.Metrics != nil {
		root.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	root.Mount("/", ginEngine)
	return root
}
