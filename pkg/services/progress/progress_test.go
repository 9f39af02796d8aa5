package progress

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

var day0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func attempt(exerciseID string, normalized int, at time.Time) ExerciseAttempt {
	return ExerciseAttempt{
		StudentID:      "student-1",
		ExerciseID:     exerciseID,
		ModuleID:       "module-x",
		Score:          models.ScoreCalculation{NormalizedScore: normalized, FinalScore: normalized * 10},
		ElapsedSeconds: 60,
		At:             at,
	}
}

func fiveExerciseModule() catalog.Module {
	m := catalog.Module{ID: "module-x", Title: "Module X", Order: 1}
	for i := 1; i <= 5; i++ {
		m.Exercises = append(m.Exercises, catalog.Exercise{ID: fmt.Sprintf("ex-%d", i), Order: i})
	}
	return m
}

func TestTrackExercise_FirstAttempt(t *testing.T) {
	ep := TrackExercise(attempt("ex-1", 40, day0), nil)

	assert.Equal(t, 1, ep.Attempts)
	assert.Equal(t, 40, ep.BestScore)
	assert.Equal(t, 400, ep.BestFinalScore)
	assert.True(t, ep.Completed)
	assert.Equal(t, 0.0, ep.Improvement)
	assert.Equal(t, 1, ep.ImprovementStreak)
	require.NotNil(t, ep.FirstAttemptAt)
	assert.Equal(t, day0, *ep.FirstAttemptAt)
}

func TestTrackExercise_BestScoreNeverRegresses(t *testing.T) {
	first := TrackExercise(attempt("ex-1", 60, day0), nil)
	second := TrackExercise(attempt("ex-1", 40, day0.Add(time.Hour)), &first)

	assert.Equal(t, 60, second.BestScore)
	assert.Equal(t, 40, second.LastScore)
	assert.Equal(t, 2, second.Attempts)
	assert.InDelta(t, -33.33, second.Improvement, 0.01)
	assert.Equal(t, 1, second.ImprovementStreak)
	assert.Equal(t, 120.0, second.TimeSpentSeconds)
	assert.Equal(t, day0, *second.FirstAttemptAt)

	// previous snapshot untouched
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, 60, first.LastScore)
}

func TestTrackExercise_MonotonicUnderAnyOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		var ep *models.ExerciseProgress
		best := 0
		for i := 0; i < 10; i++ {
			score := rng.Intn(101)
			next := TrackExercise(attempt("ex-1", score, day0.Add(time.Duration(i)*time.Minute)), ep)
			require.GreaterOrEqual(t, next.BestScore, best)
			best = next.BestScore
			ep = &next
		}
		assert.Equal(t, 10, ep.Attempts)
	}
}

func TestTrackExercise_ImprovementStreak(t *testing.T) {
	var ep *models.ExerciseProgress
	for i, score := range []int{50, 60, 70} {
		next := TrackExercise(attempt("ex-1", score, day0.Add(time.Duration(i)*time.Hour)), ep)
		ep = &next
	}
	assert.Equal(t, 3, ep.ImprovementStreak)

	next := TrackExercise(attempt("ex-1", 70, day0.Add(5*time.Hour)), ep)
	assert.Equal(t, 1, next.ImprovementStreak, "equal score breaks the run")
}

func TestAggregateModule_TwoOfFiveCompleted(t *testing.T) {
	a := TrackExercise(attempt("ex-2", 80, day0), nil)
	b := TrackExercise(attempt("ex-4", 100, day0.AddDate(0, 0, 1)), nil)

	mp := AggregateModule("student-1", fiveExerciseModule(), []models.ExerciseProgress{a, b}, nil, true)

	assert.Equal(t, 40, mp.CompletionPercentage)
	assert.Equal(t, 90, mp.NormalizedScore)
	assert.Equal(t, 1800, mp.TotalScore)
	assert.True(t, mp.IsCompleted)
	assert.Equal(t, 1, mp.PerfectExerciseCount)
	assert.Equal(t, 2, mp.StreakDays)
	assert.Len(t, mp.Exercises, 5)
	assert.Equal(t, "ex-1", mp.Exercises[0].ExerciseID)
	assert.False(t, mp.Exercises[0].Completed, "placeholder")
	require.NotNil(t, mp.StartedAt)
	assert.Equal(t, day0, *mp.StartedAt)
	assert.Equal(t, day0.AddDate(0, 0, 1), *mp.LastActivityAt)
}

func TestAggregateModule_AnyAttemptCompletes(t *testing.T) {
	// a failing score still completes the exercise and the module
	zero := TrackExercise(attempt("ex-1", 0, day0), nil)

	mp := AggregateModule("student-1", fiveExerciseModule(), []models.ExerciseProgress{zero}, nil, true)

	assert.True(t, mp.IsCompleted)
	assert.Equal(t, 20, mp.CompletionPercentage)
	assert.Equal(t, 0, mp.NormalizedScore)
}

func TestAggregateModule_OrderInvariant(t *testing.T) {
	def := fiveExerciseModule()
	var exercises []models.ExerciseProgress
	for i, score := range []int{33, 71, 95, 12} {
		exercises = append(exercises, TrackExercise(attempt(fmt.Sprintf("ex-%d", i+1), score, day0.AddDate(0, 0, i*2)), nil))
	}
	want := AggregateModule("student-1", def, exercises, nil, true)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.ExerciseProgress(nil), exercises...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := AggregateModule("student-1", def, shuffled, nil, true)
		assert.Equal(t, want, got)
	}
}

func TestAggregateModule_EmptyAndCarryOver(t *testing.T) {
	started := day0.AddDate(0, 0, -10)
	previous := &models.ModuleProgress{StartedAt: &started, Version: 4}

	mp := AggregateModule("student-1", fiveExerciseModule(), nil, previous, false)

	assert.Equal(t, 0, mp.CompletionPercentage)
	assert.Equal(t, 0, mp.NormalizedScore)
	assert.False(t, mp.IsCompleted)
	assert.False(t, mp.IsUnlocked)
	assert.Equal(t, 0, mp.StreakDays)
	assert.Equal(t, int64(4), mp.Version)
	assert.Equal(t, started, *mp.StartedAt)
}

func TestLongestDayRun_CollapsesDuplicateDays(t *testing.T) {
	days := map[time.Time]bool{}
	for _, ts := range []time.Time{
		day0, day0.Add(3 * time.Hour), day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 2),
		day0.AddDate(0, 0, 5), day0.AddDate(0, 0, 6),
	} {
		days[calendarDay(ts)] = true
	}
	assert.Equal(t, 3, longestDayRun(days))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, models.LevelExpert, Level(100, 350))
	assert.Equal(t, models.LevelAdvanced, Level(100, 349))
	assert.Equal(t, models.LevelAdvanced, Level(75, 250))
	assert.Equal(t, models.LevelIntermediate, Level(75, 249))
	assert.Equal(t, models.LevelBeginner, Level(49, 400), "both thresholds must hold")
	assert.Equal(t, models.LevelBeginner, Level(0, 0))
}

func TestAggregateStudent(t *testing.T) {
	def := fiveExerciseModule()
	var ep *models.ExerciseProgress
	for i, score := range []int{50, 70, 90} {
		next := TrackExercise(attempt("ex-1", score, day0.AddDate(0, 0, i)), ep)
		ep = &next
	}
	other := TrackExercise(attempt("ex-2", 70, day0.AddDate(0, 0, 1)), nil)
	m1 := AggregateModule("student-1", def, []models.ExerciseProgress{*ep, other}, nil, true)
	m2 := AggregateModule("student-1", catalog.Module{ID: "module-y", Exercises: []catalog.Exercise{{ID: "y-1"}}}, nil, nil, false)

	sp := AggregateStudent("student-1", "cohort-a", []models.ModuleProgress{m1, m2}, 4)

	assert.Equal(t, 80, sp.TotalNormalizedScore)
	assert.Equal(t, 1, sp.CompletedModules)
	assert.Equal(t, 25, sp.OverallProgress)
	assert.Equal(t, 80, sp.AverageScore)
	assert.Equal(t, 2, sp.CompletedExercises)
	assert.Equal(t, 3, sp.ImprovementStreak)
	assert.Equal(t, m1.StreakDays, sp.CurrentStreak)
	assert.Equal(t, models.LevelBeginner, sp.AchievementLevel)
	assert.Equal(t, day0.AddDate(0, 0, 2), *sp.LastActivity)
	assert.Equal(t, "cohort-a", sp.CohortID)
}

func TestIsActive(t *testing.T) {
	last := day0
	sp := models.StudentProgress{LastActivity: &last}

	assert.True(t, IsActive(sp, day0.AddDate(0, 0, 7)))
	assert.False(t, IsActive(sp, day0.AddDate(0, 0, 8)))
	assert.False(t, IsActive(models.StudentProgress{}, day0))
}

func TestCanAccessModule(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	modules := map[string]models.ModuleProgress{}
	assert.True(t, CanAccessModule(cat, "module-1", modules))
	assert.False(t, CanAccessModule(cat, "module-2", modules))
	assert.False(t, CanAccessModule(cat, "unknown", modules))

	modules["module-1"] = models.ModuleProgress{ModuleID: "module-1", IsCompleted: true}
	assert.True(t, CanAccessModule(cat, "module-2", modules))
	assert.Equal(t, []string{"module-1", "module-2"}, UnlockedModules(cat, modules))
}

func TestBuildReport(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	last := day0
	sp := models.StudentProgress{
		StudentID:        "student-1",
		CompletedModules: 1,
		OverallProgress:  25,
		AchievementLevel: models.LevelBeginner,
		LastActivity:     &last,
		Modules: []models.ModuleProgress{
			{ModuleID: "module-1", IsCompleted: true, TotalExercises: 4, CompletedExercises: 1},
		},
	}

	r := BuildReport(sp, cat, day0.Add(time.Hour))

	assert.True(t, r.IsActive)
	assert.Contains(t, r.Summary, "25%")
	assert.Equal(t, []string{"Focus on Clinical Indicators"}, r.Recommendations)
	assert.Equal(t, []string{"Complete 3 exercise(s) in Anthropometric Indicators"}, r.NextSteps)
	assert.Equal(t, []string{"1 module(s) started"}, r.Milestones)
}
