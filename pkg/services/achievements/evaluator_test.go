package achievements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return NewEvaluator(cat)
}

func event(score int, elapsed float64, first bool) Event {
	return Event{
		StudentID:       "student-1",
		ExerciseID:      "exercise-1-1",
		ModuleID:        "module-1",
		Score:           models.ScoreCalculation{NormalizedScore: score},
		ElapsedSeconds:  elapsed,
		FirstCompletion: first,
	}
}

func TestEvaluate_FirstSubmissionGrantsFirstGame(t *testing.T) {
	e := newEvaluator(t)
	sp := models.StudentProgress{StudentID: "student-1", CompletedExercises: 1, AverageScore: 40, ImprovementStreak: 1}

	earned := e.Evaluate(event(40, 1200, true), sp)
	assert.Equal(t, []string{"first-game"}, earned)

	// second submission with first-game held does not re-issue it
	sp.Achievements = earned
	assert.Empty(t, e.Evaluate(event(40, 1200, false), sp))
}

func TestEvaluate_NeverReturnsHeld(t *testing.T) {
	e := newEvaluator(t)
	sp := models.StudentProgress{
		StudentID:          "student-1",
		CompletedExercises: 20,
		AverageScore:       100,
		ImprovementStreak:  9,
		Achievements:       []string{"first-game", "perfect-score", "quick-learner", "high-performer", "improvement-streak", "dedicated-learner"},
	}

	earned := e.Evaluate(event(100, 10, true), sp)
	for _, id := range earned {
		assert.False(t, sp.HasAchievement(id), id)
	}
}

func TestEvaluate_PerfectAndQuick(t *testing.T) {
	e := newEvaluator(t)
	sp := models.StudentProgress{StudentID: "student-1", CompletedExercises: 2, AverageScore: 70, Achievements: []string{"first-game"}}

	assert.ElementsMatch(t, []string{"perfect-score", "quick-learner"}, e.Evaluate(event(100, 300, false), sp))
	assert.Empty(t, e.Evaluate(event(99, 300, false), models.StudentProgress{Achievements: []string{"quick-learner"}}))
	assert.Empty(t, e.Evaluate(event(79, 300, false), sp), "quick learner needs 80")
	assert.Empty(t, e.Evaluate(event(85, 600, false), sp), "quick learner needs strictly under 600s")
}

func TestEvaluate_ScoreThresholdScopes(t *testing.T) {
	e := newEvaluator(t)
	sp := models.StudentProgress{
		StudentID:    "student-1",
		AverageScore: 86,
		Achievements: []string{"first-game"},
		Modules: []models.ModuleProgress{
			{ModuleID: "module-1", IsCompleted: true, NormalizedScore: 92},
			{ModuleID: "module-2", IsCompleted: true, NormalizedScore: 89},
		},
	}

	earned := e.Evaluate(event(70, 900, false), sp)
	assert.Equal(t, []string{"high-performer", "anthropometry-master"}, earned)
	assert.NotContains(t, earned, "clinical-expert")
	assert.NotContains(t, earned, "nutrition-scholar", "modules 3 and 4 not started")

	sp.Modules = append(sp.Modules,
		models.ModuleProgress{ModuleID: "module-3", IsCompleted: true, NormalizedScore: 85},
		models.ModuleProgress{ModuleID: "module-4", IsCompleted: true, NormalizedScore: 95},
	)
	assert.Contains(t, e.Evaluate(event(70, 900, false), sp), "nutrition-scholar")
}

func TestEvaluate_Streak(t *testing.T) {
	e := newEvaluator(t)
	sp := models.StudentProgress{ImprovementStreak: 2, Achievements: []string{"first-game"}}
	assert.NotContains(t, e.Evaluate(event(50, 900, false), sp), "improvement-streak")

	sp.ImprovementStreak = 3
	assert.Contains(t, e.Evaluate(event(50, 900, false), sp), "improvement-streak")
}

func TestEvaluate_UnknownTriggerNeverMatches(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	cat.Achievements = append(cat.Achievements, models.AchievementDefinition{
		ID:       "team-player",
		Criteria: models.AchievementCriteria{Trigger: "collaboration", Value: 0},
	})

	e := NewEvaluator(cat)
	assert.NotContains(t, e.Evaluate(event(100, 1, true), models.StudentProgress{CompletedExercises: 50}), "team-player")
}

func TestPoints(t *testing.T) {
	e := newEvaluator(t)
	assert.Equal(t, 35, e.Points([]string{"first-game", "perfect-score"}))
	assert.Equal(t, 0, e.Points([]string{"nope"}))
}

func TestNextTargets(t *testing.T) {
	e := newEvaluator(t)
	sp := models.StudentProgress{
		CompletedExercises: 5,
		AverageScore:       80,
		ImprovementStreak:  1,
		Achievements:       []string{"first-game"},
		Modules:            []models.ModuleProgress{{ModuleID: "module-1", IsCompleted: true, NormalizedScore: 81}},
	}

	targets := e.NextTargets(sp)
	require.NotEmpty(t, targets)
	assert.LessOrEqual(t, len(targets), 5)
	assert.Equal(t, "high-performer", targets[0].AchievementID)
	assert.Equal(t, 94, targets[0].Percent)
	for i := 1; i < len(targets); i++ {
		assert.GreaterOrEqual(t, targets[i-1].Percent, targets[i].Percent)
	}
}
