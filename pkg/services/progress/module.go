package progress

import (
	"math"
	"sort"
	"time"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// PerfectScoreThreshold is the best score at which an exercise counts as perfect
const PerfectScoreThreshold = 95

// AggregateModule re-derives module progress from the full exercise set of def.
// Exercises missing from the input are filled with placeholders; exercises of other
// modules are ignored. previous is consulted only for StartedAt and Version.
func AggregateModule(studentID string, def catalog.Module, exercises []models.ExerciseProgress, previous *models.ModuleProgress, unlocked bool) models.ModuleProgress {
	byID := make(map[string]models.ExerciseProgress, len(exercises))
	for _, e := range exercises {
		byID[e.ExerciseID] = e
	}

	mp := models.ModuleProgress{
		StudentID:      studentID,
		ModuleID:       def.ID,
		Exercises:      make([]models.ExerciseProgress, 0, len(def.Exercises)),
		IsUnlocked:     unlocked,
		TotalExercises: len(def.Exercises),
	}
	if previous != nil {
		mp.Version = previous.Version
		mp.StartedAt = copyTime(previous.StartedAt)
	}

	scoreSum := 0
	attemptSum := 0
	days := make(map[time.Time]bool)
	var earliest *time.Time

	for _, ex := range def.Exercises {
		ep, ok := byID[ex.ID]
		if !ok {
			ep = Placeholder(studentID, def.ID, ex.ID)
		}
		mp.Exercises = append(mp.Exercises, ep)

		if !ep.Completed {
			continue
		}
		mp.CompletedExercises++
		scoreSum += ep.BestScore
		attemptSum += ep.Attempts
		mp.TotalScore += ep.BestFinalScore
		mp.TimeSpentSeconds += ep.TimeSpentSeconds
		if ep.BestScore >= PerfectScoreThreshold {
			mp.PerfectExerciseCount++
		}
		if ep.LastAttemptAt != nil {
			days[calendarDay(*ep.LastAttemptAt)] = true
			mp.LastActivityAt = laterOf(mp.LastActivityAt, ep.LastAttemptAt)
		}
		if ep.FirstAttemptAt != nil && (earliest == nil || ep.FirstAttemptAt.Before(*earliest)) {
			earliest = ep.FirstAttemptAt
		}
	}

	if mp.TotalExercises > 0 {
		mp.CompletionPercentage = percent(mp.CompletedExercises, mp.TotalExercises)
	}
	if mp.CompletedExercises > 0 {
		mp.IsCompleted = true
		mp.NormalizedScore = roundMean(scoreSum, mp.CompletedExercises)
		mp.AverageAttempts = float64(attemptSum) / float64(mp.CompletedExercises)
	}
	if mp.StartedAt == nil {
		mp.StartedAt = copyTime(earliest)
	}
	mp.StreakDays = longestDayRun(days)

	return mp
}

// longestDayRun returns the longest run of consecutive calendar days in the set
func longestDayRun(days map[time.Time]bool) int {
	if len(days) == 0 {
		return 0
	}
	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Equal(sorted[i-1].AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func calendarDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// percent is part/whole as a rounded 0-100 integer
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func roundMean(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}

func laterOf(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		return copyTime(candidate)
	}
	return current
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
