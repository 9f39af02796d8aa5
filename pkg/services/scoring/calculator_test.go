package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(config.Default().Scoring)
	require.NoError(t, err)
	return calc
}

func answers(pattern ...bool) []models.QuestionMetric {
	metrics := make([]models.QuestionMetric, len(pattern))
	for i, correct := range pattern {
		metrics[i] = models.QuestionMetric{
			QuestionID:       fmt.Sprintf("q-%d", i+1),
			Correct:          correct,
			TimeSpentSeconds: float64(10 * (i + 1)),
			Difficulty:       models.DifficultyMedium,
		}
	}
	return metrics
}

func TestCalculate_SevenQuestionsFiveCorrect(t *testing.T) {
	calc := newCalculator(t)

	score, err := calc.Calculate(answers(true, true, false, true, true, false, true), 120)
	require.NoError(t, err)

	assert.InDelta(t, 71.43, score.Breakdown.AccuracyExact, 0.01)
	assert.Equal(t, 71, score.Breakdown.Accuracy)
	assert.Equal(t, 71, score.NormalizedScore)
	assert.Equal(t, 714, score.BaseScore)
	assert.Equal(t, 714, score.FinalScore)
	assert.True(t, score.Passed, "70 or above passes")
	assert.Equal(t, "Good", score.PerformanceRating)
}

func TestCalculate_NormalizedEqualsAccuracy(t *testing.T) {
	calc := newCalculator(t)

	for total := 0; total <= 12; total++ {
		for correct := 0; correct <= total; correct++ {
			pattern := make([]bool, total)
			for i := 0; i < correct; i++ {
				pattern[i] = true
			}
			score, err := calc.Calculate(answers(pattern...), 30)
			require.NoError(t, err)
			assert.Equal(t, score.Breakdown.Accuracy, score.NormalizedScore, "%d/%d", correct, total)
			assert.GreaterOrEqual(t, score.FinalScore, 0)
		}
	}
}

func TestCalculate_EmptySubmissionScoresZero(t *testing.T) {
	calc := newCalculator(t)

	score, err := calc.Calculate(nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, score.NormalizedScore)
	assert.Equal(t, 0, score.BaseScore)
	assert.Equal(t, 0, score.Breakdown.TotalQuestions)
	assert.False(t, score.Passed)
	assert.Equal(t, "Needs support", score.PerformanceRating)
}

func TestCalculate_Streaks(t *testing.T) {
	calc := newCalculator(t)

	score, err := calc.Calculate(answers(true, true, true, false, true, true), 60)
	require.NoError(t, err)
	assert.Equal(t, 3, score.Breakdown.MaxStreak)
	assert.Equal(t, 2, score.Breakdown.CurrentStreak)

	score, err = calc.Calculate(answers(true, true, false), 60)
	require.NoError(t, err)
	assert.Equal(t, 2, score.Breakdown.MaxStreak)
	assert.Equal(t, 0, score.Breakdown.CurrentStreak)
}

func TestCalculate_TimingIgnoresUntimedAnswers(t *testing.T) {
	calc := newCalculator(t)
	metrics := []models.QuestionMetric{
		{QuestionID: "a", Correct: true, TimeSpentSeconds: 0, HintsUsed: 1, Attempts: 1},
		{QuestionID: "b", Correct: true, TimeSpentSeconds: 20, HintsUsed: 2, Attempts: 2},
		{QuestionID: "c", Correct: false, TimeSpentSeconds: 40, Attempts: 3},
	}

	score, err := calc.Calculate(metrics, 60)
	require.NoError(t, err)

	assert.Equal(t, 30.0, score.Breakdown.AverageTimeSeconds)
	assert.Equal(t, 20.0, score.Breakdown.FastestAnswerSeconds)
	assert.Equal(t, 40.0, score.Breakdown.SlowestAnswerSeconds)
	assert.Equal(t, 3, score.Breakdown.HintsUsed)
	assert.Equal(t, 6, score.Breakdown.AttemptsCount)
}

func TestCalculate_RejectsMalformedInput(t *testing.T) {
	calc := newCalculator(t)

	cases := map[string]struct {
		metrics []models.QuestionMetric
		elapsed float64
	}{
		"negative elapsed":       {answers(true), -1},
		"negative question time": {[]models.QuestionMetric{{QuestionID: "a", TimeSpentSeconds: -5}}, 10},
		"negative hints":         {[]models.QuestionMetric{{QuestionID: "a", HintsUsed: -1}}, 10},
		"missing question id":    {[]models.QuestionMetric{{Correct: true}}, 10},
		"unknown difficulty":     {[]models.QuestionMetric{{QuestionID: "a", Difficulty: "impossible"}}, 10},
		"duplicate question": {[]models.QuestionMetric{
			{QuestionID: "a", Correct: true},
			{QuestionID: "a", Correct: false},
		}, 10},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			score, err := calc.Calculate(tc.metrics, tc.elapsed)
			require.Error(t, err)
			assert.Nil(t, score)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
		})
	}
}

func TestRating_InclusiveLowerBounds(t *testing.T) {
	calc := newCalculator(t)

	assert.Equal(t, "Excellent", calc.Rating(100))
	assert.Equal(t, "Excellent", calc.Rating(90))
	assert.Equal(t, "Very good", calc.Rating(89))
	assert.Equal(t, "Very good", calc.Rating(80))
	assert.Equal(t, "Good", calc.Rating(70))
	assert.Equal(t, "Fair", calc.Rating(50))
	assert.Equal(t, "Needs support", calc.Rating(49))
	assert.Equal(t, "Needs support", calc.Rating(0))
}

func TestNewCalculator_RejectsBadBands(t *testing.T) {
	cfg := config.Default().Scoring
	cfg.Ratings = cfg.Ratings[:3]

	_, err := NewCalculator(cfg)
	assert.Error(t, err)
}
