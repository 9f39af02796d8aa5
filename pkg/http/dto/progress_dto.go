package dto

import (
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// SubmitAttemptRequest is the body of an exercise attempt submission; the student and
// exercise come from the path
type SubmitAttemptRequest struct {
	CohortID       string                  `json:"cohort_id" binding:"max=100"`
	Metrics        []models.QuestionMetric `json:"metrics"`
	ElapsedSeconds float64                 `json:"elapsed_seconds"`
}

// LeaderboardQuery filters a leaderboard response
type LeaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=1000"` // default: all entries
}

// AchievementsQuery filters the achievement catalog
type AchievementsQuery struct {
	Rarity string `form:"rarity" binding:"omitempty,oneof=common rare epic legendary"`
}

// RecomputeResponse is returned after a student's aggregates were rebuilt
type RecomputeResponse struct {
	Student models.StudentProgress `json:"student"`
	Message string                 `json:"message"`
}
