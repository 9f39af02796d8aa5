package models

import "time"

// Achievement levels, lowest first
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
	LevelExpert       = "Expert"
)

// ExerciseProgress tracks one student's attempts at one exercise.
// Attempts, BestScore and BestFinalScore never decrease.
type ExerciseProgress struct {
	StudentID         string     `json:"student_id" gorm:"type:varchar(100);primaryKey"`
	ExerciseID        string     `json:"exercise_id" gorm:"type:varchar(100);primaryKey"`
	ModuleID          string     `json:"module_id" gorm:"type:varchar(100);index"`
	Attempts          int        `json:"attempts" gorm:"default:0"`
	BestScore         int        `json:"best_score" gorm:"default:0"`
	LastScore         int        `json:"last_score" gorm:"default:0"`
	BestFinalScore    int        `json:"best_final_score" gorm:"default:0"`
	LastFinalScore    int        `json:"last_final_score" gorm:"default:0"`
	TimeSpentSeconds  float64    `json:"time_spent_seconds"`
	Completed         bool       `json:"completed"`
	Improvement       float64    `json:"improvement"`
	ImprovementStreak int        `json:"improvement_streak" gorm:"default:0"`
	FirstAttemptAt    *time.Time `json:"first_attempt_at,omitempty"`
	LastAttemptAt     *time.Time `json:"last_attempt_at,omitempty"`
	Version           int64      `json:"version" gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM
func (ExerciseProgress) TableName() string {
	return "exercise_progress"
}

// Attempted reports whether the record reflects at least one submission
func (e ExerciseProgress) Attempted() bool {
	return e.Attempts > 0
}

// ModuleProgress is re-derived from every exercise of a module on each submission
type ModuleProgress struct {
	StudentID            string             `json:"student_id" gorm:"type:varchar(100);primaryKey"`
	ModuleID             string             `json:"module_id" gorm:"type:varchar(100);primaryKey"`
	Exercises            []ExerciseProgress `json:"exercises" gorm:"-"`
	CompletionPercentage int                `json:"completion_percentage"`
	NormalizedScore      int                `json:"normalized_score"`
	TotalScore           int                `json:"total_score"`
	IsUnlocked           bool               `json:"is_unlocked"`
	IsCompleted          bool               `json:"is_completed"`
	StreakDays           int                `json:"streak_days"`
	PerfectExerciseCount int                `json:"perfect_exercise_count"`
	CompletedExercises   int                `json:"completed_exercises"`
	TotalExercises       int                `json:"total_exercises"`
	TimeSpentSeconds     float64            `json:"time_spent_seconds"`
	AverageAttempts      float64            `json:"average_attempts"`
	StartedAt            *time.Time         `json:"started_at,omitempty"`
	LastActivityAt       *time.Time         `json:"last_activity_at,omitempty"`
	Version              int64              `json:"version" gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM
func (ModuleProgress) TableName() string {
	return "module_progress"
}

// StudentProgress summarizes a student across every module
type StudentProgress struct {
	StudentID            string           `json:"student_id" gorm:"type:varchar(100);primaryKey"`
	CohortID             string           `json:"cohort_id" gorm:"type:varchar(100);index"`
	Modules              []ModuleProgress `json:"modules" gorm:"-"`
	TotalNormalizedScore int              `json:"total_normalized_score"`
	OverallProgress      int              `json:"overall_progress"`
	CompletedModules     int              `json:"completed_modules"`
	AchievementLevel     string           `json:"achievement_level" gorm:"type:varchar(20);default:'Beginner'"`
	Achievements         []string         `json:"achievements" gorm:"-"`
	AchievementPoints    int              `json:"achievement_points"`
	CurrentStreak        int              `json:"current_streak"`
	ImprovementStreak    int              `json:"improvement_streak"`
	AverageScore         int              `json:"average_score"`
	CompletedExercises   int              `json:"completed_exercises"`
	LastActivity         *time.Time       `json:"last_activity,omitempty" gorm:"index"`
	Version              int64            `json:"version" gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM
func (StudentProgress) TableName() string {
	return "student_progress"
}

// HasAchievement reports whether the achievement is already held
func (s StudentProgress) HasAchievement(id string) bool {
	for _, held := range s.Achievements {
		if held == id {
			return true
		}
	}
	return false
}

// Module returns the module progress with the given ID, if present
func (s StudentProgress) Module(moduleID string) (ModuleProgress, bool) {
	for _, m := range s.Modules {
		if m.ModuleID == moduleID {
			return m, true
		}
	}
	return ModuleProgress{}, false
}

// RankingScore is the value a student is ranked by on a leaderboard
func (s StudentProgress) RankingScore(includeAchievementPoints bool) int {
	if includeAchievementPoints {
		return s.TotalNormalizedScore + s.AchievementPoints
	}
	return s.TotalNormalizedScore
}
