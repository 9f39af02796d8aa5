package progress

import (
	"time"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

type levelTier struct {
	level    string
	progress int
	score    int
}

// highest tier first; both thresholds of a tier must hold
var levelTiers = []levelTier{
	{models.LevelExpert, 100, 350},
	{models.LevelAdvanced, 75, 250},
	{models.LevelIntermediate, 50, 150},
}

// ActivityWindow is how recently a student must have worked to count as active
const ActivityWindow = 7 * 24 * time.Hour

// Level maps overall progress and total normalized score onto an achievement level
func Level(overallProgress, totalNormalizedScore int) string {
	for _, tier := range levelTiers {
		if overallProgress >= tier.progress && totalNormalizedScore >= tier.score {
			return tier.level
		}
	}
	return models.LevelBeginner
}

// AggregateStudent summarizes module progress. Achievements, points and version are
// left for the caller to carry over from storage.
func AggregateStudent(studentID, cohortID string, modules []models.ModuleProgress, totalModules int) models.StudentProgress {
	sp := models.StudentProgress{
		StudentID: studentID,
		CohortID:  cohortID,
		Modules:   make([]models.ModuleProgress, len(modules)),
	}
	copy(sp.Modules, modules)

	scoreSum := 0
	for _, m := range modules {
		if m.IsCompleted {
			sp.CompletedModules++
			sp.TotalNormalizedScore += m.NormalizedScore
		}
		if m.StreakDays > sp.CurrentStreak {
			sp.CurrentStreak = m.StreakDays
		}
		for _, e := range m.Exercises {
			if !e.Completed {
				continue
			}
			sp.CompletedExercises++
			scoreSum += e.BestScore
			if e.ImprovementStreak > sp.ImprovementStreak {
				sp.ImprovementStreak = e.ImprovementStreak
			}
			sp.LastActivity = laterOf(sp.LastActivity, e.LastAttemptAt)
		}
	}

	sp.OverallProgress = percent(sp.CompletedModules, totalModules)
	sp.AverageScore = roundMean(scoreSum, sp.CompletedExercises)
	sp.AchievementLevel = Level(sp.OverallProgress, sp.TotalNormalizedScore)
	return sp
}

// IsActive reports whether the student worked within the activity window before now
func IsActive(sp models.StudentProgress, now time.Time) bool {
	if sp.LastActivity == nil {
		return false
	}
	return now.Sub(*sp.LastActivity) <= ActivityWindow
}
