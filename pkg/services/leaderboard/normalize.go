// Package leaderboard ranks the students of a cohort and streams rankings to subscribers
package leaderboard

import (
	"math"
	"sort"
	"time"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// Standing is one student's ranking input
type Standing struct {
	StudentID        string
	CohortID         string
	Score            int
	AchievementLevel string
	LastActivity     *time.Time
}

// StandingsFrom converts student progress into standings
func StandingsFrom(students []models.StudentProgress, includeAchievementPoints bool) []Standing {
	out := make([]Standing, 0, len(students))
	for _, sp := range students {
		out = append(out, Standing{
			StudentID:        sp.StudentID,
			CohortID:         sp.CohortID,
			Score:            sp.RankingScore(includeAchievementPoints),
			AchievementLevel: sp.AchievementLevel,
			LastActivity:     sp.LastActivity,
		})
	}
	return out
}

// Normalize ranks standings by score, highest first. Equal scores share a rank and the
// next distinct score takes the following rank (dense ranking). Among equal scores the
// earlier last activity is listed first, students without activity last, then by ID.
func Normalize(standings []Standing) []models.LeaderboardEntry {
	sorted := make([]Standing, len(standings))
	copy(sorted, standings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !sameInstant(a.LastActivity, b.LastActivity) {
			return activeEarlier(a.LastActivity, b.LastActivity)
		}
		return a.StudentID < b.StudentID
	})

	n := len(sorted)
	entries := make([]models.LeaderboardEntry, 0, n)
	rank := 0
	for i, s := range sorted {
		if i == 0 || s.Score != sorted[i-1].Score {
			rank++
		}
		entries = append(entries, models.LeaderboardEntry{
			StudentID:        s.StudentID,
			CohortID:         s.CohortID,
			TotalScore:       s.Score,
			Rank:             rank,
			Percentile:       percentile(rank, n),
			AchievementLevel: s.AchievementLevel,
			LastActivity:     s.LastActivity,
		})
	}
	return entries
}

func percentile(rank, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round((1 - float64(rank-1)/float64(n)) * 100))
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// activeEarlier orders a before b; nil sorts last
func activeEarlier(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}
