package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/api"
	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/http/dto"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/repository"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/engine"
)

// ProgressHandlers serves submissions and student progress
type ProgressHandlers struct {
	engine     *engine.Engine
	maxRetries int
}

// NewProgressHandlers creates progress handlers. Submissions that lose an optimistic
// write race are replayed up to maxRetries times in total.
func NewProgressHandlers(e *engine.Engine, maxRetries int) *ProgressHandlers {
	return &ProgressHandlers{engine: e, maxRetries: maxRetries}
}

// RegisterRoutes registers the student and achievement routes on group
func (h *ProgressHandlers) RegisterRoutes(group *gin.RouterGroup) {
	students := group.Group("/students/:studentID")
	{
		students.POST("/exercises/:exerciseID/attempts", h.SubmitAttempt)
		students.GET("/progress", h.GetProgress)
		students.GET("/report", h.GetReport)
		students.POST("/recompute", h.Recompute)
	}
	group.GET("/achievements", h.ListAchievements)
}

// SubmitAttempt scores and records one exercise attempt
// POST /api/v1/students/:studentID/exercises/:exerciseID/attempts
func (h *ProgressHandlers) SubmitAttempt(c *gin.Context) {
	var req dto.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithError(c, apperrors.Validation("invalid request body", err.Error()))
		return
	}

	sub := engine.Submission{
		StudentID:      c.Param("studentID"),
		CohortID:       req.CohortID,
		ExerciseID:     c.Param("exerciseID"),
		Metrics:        req.Metrics,
		ElapsedSeconds: req.ElapsedSeconds,
	}

	var result *engine.SubmissionResult
	err := repository.WithConflictRetry(c.Request.Context(), h.maxRetries, func() error {
		var err error
		result, err = h.engine.SubmitExerciseAttempt(c.Request.Context(), sub)
		return err
	})
	if err != nil {
		api.RespondWithError(c, err)
		return
	}

	api.RespondWith(c, http.StatusCreated, result)
}

// GetProgress returns the aggregated progress of a student
// GET /api/v1/students/:studentID/progress
func (h *ProgressHandlers) GetProgress(c *gin.Context) {
	sp, err := h.engine.StudentProgress(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondWith(c, http.StatusOK, sp)
}

// GetReport returns the progress report of a student
// GET /api/v1/students/:studentID/report
func (h *ProgressHandlers) GetReport(c *gin.Context) {
	report, err := h.engine.Report(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondWith(c, http.StatusOK, report)
}

// Recompute rebuilds a student's aggregates from the stored exercise records
// POST /api/v1/students/:studentID/recompute
func (h *ProgressHandlers) Recompute(c *gin.Context) {
	var sp *models.StudentProgress
	err := repository.WithConflictRetry(c.Request.Context(), h.maxRetries, func() error {
		var err error
		sp, err = h.engine.Recompute(c.Request.Context(), c.Param("studentID"))
		return err
	})
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondWith(c, http.StatusOK, dto.RecomputeResponse{
		Student: *sp,
		Message: "progress recomputed from exercise records",
	})
}

// ListAchievements returns the achievement catalog, optionally filtered by rarity
// GET /api/v1/achievements
func (h *ProgressHandlers) ListAchievements(c *gin.Context) {
	var q dto.AchievementsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		api.RespondWithError(c, apperrors.Validation("invalid query", err.Error()))
		return
	}

	defs := h.engine.Catalog().Achievements
	if q.Rarity != "" {
		defs = h.engine.Catalog().AchievementsByRarity()[q.Rarity]
	}
	if defs == nil {
		defs = []models.AchievementDefinition{}
	}
	api.RespondWithList(c, defs, len(defs))
}
