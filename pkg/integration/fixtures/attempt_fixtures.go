//go:build e2e
// +build e2e

package fixtures

import (
	"fmt"
	"math/rand"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// Attempt is the JSON body of one exercise submission
type Attempt struct {
	CohortID       string                  `json:"cohort_id"`
	Metrics        []models.QuestionMetric `json:"metrics"`
	ElapsedSeconds float64                 `json:"elapsed_seconds"`
}

// Correct returns how many questions of the attempt were answered correctly
func (a Attempt) Correct() int {
	n := 0
	for _, m := range a.Metrics {
		if m.Correct {
			n++
		}
	}
	return n
}

// AttemptGenerator builds reproducible exercise attempts for a simulated classroom
type AttemptGenerator struct {
	rand *rand.Rand
}

// NewAttemptGenerator creates a generator; equal seeds yield equal attempts
func NewAttemptGenerator(seed int64) *AttemptGenerator {
	return &AttemptGenerator{rand: rand.New(rand.NewSource(seed))}
}

// Exact builds an attempt with exactly correct of total questions right
func (g *AttemptGenerator) Exact(cohortID string, correct, total int) Attempt {
	metrics := make([]models.QuestionMetric, total)
	var elapsed float64
	for i := range metrics {
		spent := float64(10 + g.rand.Intn(50))
		metrics[i] = models.QuestionMetric{
			QuestionID:       fmt.Sprintf("q%02d", i+1),
			Correct:          i < correct,
			TimeSpentSeconds: spent,
			Attempts:         1,
		}
		elapsed += spent
	}
	return Attempt{CohortID: cohortID, Metrics: metrics, ElapsedSeconds: elapsed}
}

// Skilled builds an attempt whose questions are each answered correctly with
// probability skill (0-1)
func (g *AttemptGenerator) Skilled(cohortID string, skill float64, total int) Attempt {
	correct := 0
	for i := 0; i < total; i++ {
		if g.rand.Float64() < skill {
			correct++
		}
	}
	return g.Exact(cohortID, correct, total)
}

// Perfect builds a fast attempt with every question right
func (g *AttemptGenerator) Perfect(cohortID string, total int) Attempt {
	a := g.Exact(cohortID, total, total)
	a.ElapsedSeconds = float64(total * 20)
	return a
}
