// Package progress rolls exercise scores up into module and student progress.
// Every function here is pure: inputs are never mutated and a new value is returned.
package progress

import (
	"time"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// ExerciseAttempt is one scored submission of an exercise
type ExerciseAttempt struct {
	StudentID      string
	ExerciseID     string
	ModuleID       string
	Score          models.ScoreCalculation
	ElapsedSeconds float64
	At             time.Time
}

// TrackExercise folds one attempt into the previous progress record (nil on the first attempt).
// Applying the same attempt twice counts it twice; callers supply each submission once.
func TrackExercise(attempt ExerciseAttempt, previous *models.ExerciseProgress) models.ExerciseProgress {
	var prev models.ExerciseProgress
	if previous != nil {
		prev = *previous
	}

	at := attempt.At.UTC()
	normalized := attempt.Score.NormalizedScore

	next := models.ExerciseProgress{
		StudentID:        attempt.StudentID,
		ExerciseID:       attempt.ExerciseID,
		ModuleID:         attempt.ModuleID,
		Attempts:         prev.Attempts + 1,
		BestScore:        maxInt(prev.BestScore, normalized),
		LastScore:        normalized,
		BestFinalScore:   maxInt(prev.BestFinalScore, attempt.Score.FinalScore),
		LastFinalScore:   attempt.Score.FinalScore,
		TimeSpentSeconds: prev.TimeSpentSeconds + attempt.ElapsedSeconds,
		// any submission completes the exercise; quality lives in the score
		Completed:      true,
		FirstAttemptAt: prev.FirstAttemptAt,
		LastAttemptAt:  &at,
		Version:        prev.Version,
	}

	if next.FirstAttemptAt == nil {
		first := at
		next.FirstAttemptAt = &first
	}

	if prev.BestScore > 0 {
		next.Improvement = float64(normalized-prev.BestScore) / float64(prev.BestScore) * 100
	}

	switch {
	case !prev.Attempted():
		next.ImprovementStreak = 1
	case normalized > prev.BestScore:
		next.ImprovementStreak = prev.ImprovementStreak + 1
	default:
		next.ImprovementStreak = 1
	}

	return next
}

// Placeholder is the zero-valued record of an exercise nobody has attempted yet
func Placeholder(studentID, moduleID, exerciseID string) models.ExerciseProgress {
	return models.ExerciseProgress{
		StudentID:  studentID,
		ExerciseID: exerciseID,
		ModuleID:   moduleID,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
