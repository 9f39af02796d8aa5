package models

import "time"

// LeaderboardEntry is a derived, ranked view of one student in a cohort.
// It is cached, never stored as a source of truth.
type LeaderboardEntry struct {
	StudentID        string     `json:"student_id"`
	CohortID         string     `json:"cohort_id"`
	TotalScore       int        `json:"total_score"`
	Rank             int        `json:"rank"`
	Percentile       int        `json:"percentile"`
	AchievementLevel string     `json:"achievement_level"`
	LastActivity     *time.Time `json:"last_activity,omitempty"`
}

// Leaderboard is one full ranking of a cohort
type Leaderboard struct {
	CohortID    string             `json:"cohort_id"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
	// Degraded is set when the cohort could not be loaded and a stale or empty ranking is served
	Degraded bool `json:"degraded,omitempty"`
}
