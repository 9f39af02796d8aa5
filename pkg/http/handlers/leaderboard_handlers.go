package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/api"
	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/http/dto"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/leaderboard"
	wssvc "github.com/wollisellis/vireiaestatistica-sub002/pkg/services/websocket"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// leaderboards are read-only and carry no credentials
		return true
	},
}

// LeaderboardHandlers serves cohort leaderboards over HTTP and websocket
type LeaderboardHandlers struct {
	service     *leaderboard.Service
	broadcaster *wssvc.Broadcaster
}

// NewLeaderboardHandlers creates leaderboard handlers
func NewLeaderboardHandlers(service *leaderboard.Service, broadcaster *wssvc.Broadcaster) *LeaderboardHandlers {
	return &LeaderboardHandlers{service: service, broadcaster: broadcaster}
}

// RegisterRoutes registers the cohort routes on group
func (h *LeaderboardHandlers) RegisterRoutes(group *gin.RouterGroup) {
	cohorts := group.Group("/cohorts/:cohortID")
	{
		cohorts.GET("/leaderboard", h.GetLeaderboard)
		cohorts.GET("/leaderboard/ws", h.StreamLeaderboard)
	}
}

// GetLeaderboard returns the current ranking of a cohort
// GET /api/v1/cohorts/:cohortID/leaderboard
func (h *LeaderboardHandlers) GetLeaderboard(c *gin.Context) {
	var q dto.LeaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		api.RespondWithError(c, apperrors.Validation("invalid query", err.Error()))
		return
	}

	lb := *h.service.Leaderboard(c.Request.Context(), c.Param("cohortID"))
	if q.Limit > 0 && len(lb.Entries) > q.Limit {
		lb.Entries = lb.Entries[:q.Limit]
	}
	api.RespondWith(c, http.StatusOK, lb)
}

// StreamLeaderboard upgrades to a websocket and pushes every new ranking of the cohort
// GET /api/v1/cohorts/:cohortID/leaderboard/ws
func (h *LeaderboardHandlers) StreamLeaderboard(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote an HTTP error
		return
	}
	h.broadcaster.Serve(c.Request.Context(), conn, c.Param("cohortID"))
}
