package models

import (
	"time"

	"github.com/google/uuid"
)

// Achievement rarities
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Achievement triggers understood by the evaluator
const (
	TriggerCompletionTime = "completion_time"
	TriggerFastCompletion = "fast_completion"
	TriggerExerciseCount  = "exercise_count"
	TriggerPerfectScore   = "perfect_score"
	TriggerScoreThreshold = "score_threshold"
	TriggerStreak         = "streak"
)

// AchievementCriteria describes when an achievement is earned
type AchievementCriteria struct {
	Trigger    string  `json:"trigger" yaml:"trigger"`
	Value      float64 `json:"value" yaml:"value"`
	MinScore   int     `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	ModuleID   string  `json:"module_id,omitempty" yaml:"module_id,omitempty"`
	ExerciseID string  `json:"exercise_id,omitempty" yaml:"exercise_id,omitempty"`
	AllModules bool    `json:"all_modules,omitempty" yaml:"all_modules,omitempty"`
}

// AchievementDefinition is static catalog data
type AchievementDefinition struct {
	ID          string              `json:"id" yaml:"id"`
	Title       string              `json:"title" yaml:"title"`
	Description string              `json:"description" yaml:"description"`
	Icon        string              `json:"icon,omitempty" yaml:"icon,omitempty"`
	Points      int                 `json:"points" yaml:"points"`
	Rarity      string              `json:"rarity" yaml:"rarity"`
	Category    string              `json:"category" yaml:"category"`
	Criteria    AchievementCriteria `json:"criteria" yaml:"criteria"`
}

// AchievementRecord is an append-only grant; one per (student, achievement)
type AchievementRecord struct {
	ID            string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	StudentID     string    `json:"student_id" gorm:"type:varchar(100);not null;uniqueIndex:idx_student_achievement"`
	AchievementID string    `json:"achievement_id" gorm:"type:varchar(100);not null;uniqueIndex:idx_student_achievement"`
	Points        int       `json:"points"`
	EarnedAt      time.Time `json:"earned_at" gorm:"index"`
}

// TableName specifies the table name for GORM
func (AchievementRecord) TableName() string {
	return "achievement_records"
}

// NewAchievementRecord creates a new grant for the given definition
func NewAchievementRecord(studentID string, def AchievementDefinition, earnedAt time.Time) AchievementRecord {
	return AchievementRecord{
		ID:            uuid.New().String(),
		StudentID:     studentID,
		AchievementID: def.ID,
		Points:        def.Points,
		EarnedAt:      earnedAt,
	}
}
