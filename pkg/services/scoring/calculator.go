// Package scoring turns per-question outcomes into an exercise score
package scoring

import (
	"fmt"
	"math"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/internal/common/validation"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// Calculator scores exercise submissions. It holds configuration only and is safe for concurrent use.
type Calculator struct {
	maxPossibleScore int
	passingScore     int
	ratings          []config.RatingBand
}

// NewCalculator creates a calculator from scoring configuration
func NewCalculator(cfg config.ScoringConfig) (*Calculator, error) {
	if cfg.MaxPossibleScore <= 0 {
		return nil, fmt.Errorf("max possible score must be positive, got %d", cfg.MaxPossibleScore)
	}
	if err := config.ValidateRatings(cfg.Ratings); err != nil {
		return nil, err
	}
	ratings := make([]config.RatingBand, len(cfg.Ratings))
	copy(ratings, cfg.Ratings)

	return &Calculator{
		maxPossibleScore: cfg.MaxPossibleScore,
		passingScore:     cfg.PassingScore,
		ratings:          ratings,
	}, nil
}

// Calculate scores one submission. An empty metric list scores 0 and is not an error;
// malformed input is rejected rather than clamped.
func (c *Calculator) Calculate(metrics []models.QuestionMetric, elapsedSeconds float64) (*models.ScoreCalculation, error) {
	if err := validateMetrics(metrics, elapsedSeconds); err != nil {
		return nil, err
	}

	breakdown := Breakdown(metrics)
	if err := validation.ValidateIntRange(breakdown.Accuracy, 0, 100); err != nil {
		return nil, apperrors.Validation("accuracy out of range", err.Error())
	}

	base := 0
	if breakdown.TotalQuestions > 0 {
		ratio := float64(breakdown.CorrectAnswers) / float64(breakdown.TotalQuestions)
		base = int(math.Round(ratio * float64(c.maxPossibleScore)))
	}

	final := base
	if final < 0 {
		final = 0
	}

	return &models.ScoreCalculation{
		BaseScore:         base,
		FinalScore:        final,
		NormalizedScore:   breakdown.Accuracy,
		Breakdown:         breakdown,
		PerformanceRating: c.Rating(breakdown.Accuracy),
		Passed:            breakdown.Accuracy >= c.passingScore,
	}, nil
}

// Rating maps a 0-100 score onto the configured bands; lower bounds are inclusive
func (c *Calculator) Rating(score int) string {
	for _, band := range c.ratings {
		if score >= band.MinScore {
			return band.Label
		}
	}
	return c.ratings[len(c.ratings)-1].Label
}

// Breakdown derives the statistics of a metric list in submission order
func Breakdown(metrics []models.QuestionMetric) models.ScoreBreakdown {
	b := models.ScoreBreakdown{TotalQuestions: len(metrics)}

	run := 0
	timed := 0
	totalTime := 0.0
	for _, m := range metrics {
		if m.Correct {
			b.CorrectAnswers++
			run++
			if run > b.MaxStreak {
				b.MaxStreak = run
			}
		} else {
			run = 0
		}

		b.HintsUsed += m.HintsUsed
		b.AttemptsCount += m.Attempts

		if m.TimeSpentSeconds > 0 {
			if timed == 0 || m.TimeSpentSeconds < b.FastestAnswerSeconds {
				b.FastestAnswerSeconds = m.TimeSpentSeconds
			}
			if m.TimeSpentSeconds > b.SlowestAnswerSeconds {
				b.SlowestAnswerSeconds = m.TimeSpentSeconds
			}
			totalTime += m.TimeSpentSeconds
			timed++
		}
	}
	b.CurrentStreak = run

	if timed > 0 {
		b.AverageTimeSeconds = totalTime / float64(timed)
	}
	if b.TotalQuestions > 0 {
		b.AccuracyExact = float64(b.CorrectAnswers) / float64(b.TotalQuestions) * 100
		b.Accuracy = int(math.Round(b.AccuracyExact))
	}
	return b
}

func validateMetrics(metrics []models.QuestionMetric, elapsedSeconds float64) error {
	if elapsedSeconds < 0 || math.IsNaN(elapsedSeconds) || math.IsInf(elapsedSeconds, 0) {
		return apperrors.Validation("invalid elapsed time", fmt.Sprintf("elapsed seconds must be a non-negative number, got %v", elapsedSeconds))
	}

	seen := make(map[string]bool, len(metrics))
	for i, m := range metrics {
		if errs := validation.Validate(m); len(errs) > 0 {
			return apperrors.Validation("invalid question metric", fmt.Sprintf("metrics[%d]: %s", i, validation.Summary(errs)))
		}
		if math.IsNaN(m.TimeSpentSeconds) || math.IsInf(m.TimeSpentSeconds, 0) {
			return apperrors.Validation("invalid question metric", fmt.Sprintf("metrics[%d]: time spent is not a number", i))
		}
		if seen[m.QuestionID] {
			return apperrors.Validation("duplicate question", fmt.Sprintf("question %q submitted more than once", m.QuestionID))
		}
		seen[m.QuestionID] = true
	}
	return nil
}
