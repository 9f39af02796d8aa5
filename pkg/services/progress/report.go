package progress

import (
	"fmt"
	"time"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// Report is a readable summary of a student's progress
type Report struct {
	StudentID       string    `json:"student_id"`
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations"`
	NextSteps       []string  `json:"next_steps"`
	Milestones      []string  `json:"milestones"`
	IsActive        bool      `json:"is_active"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// BuildReport summarizes a student and suggests what to work on next
func BuildReport(sp models.StudentProgress, cat *catalog.Catalog, now time.Time) Report {
	maxScore := 100 * cat.TotalModules()
	r := Report{
		StudentID: sp.StudentID,
		Summary: fmt.Sprintf("Overall progress: %d%% (%d/%d modules). Total score: %d/%d. Level: %s.",
			sp.OverallProgress, sp.CompletedModules, cat.TotalModules(), sp.TotalNormalizedScore, maxScore, sp.AchievementLevel),
		Recommendations: []string{},
		NextSteps:       []string{},
		Milestones:      []string{},
		IsActive:        IsActive(sp, now),
		GeneratedAt:     now,
	}

	modules := IndexModules(sp.Modules)

	// recommend the first module not yet started, in catalog order
	for _, m := range cat.Modules {
		if !modules[m.ID].IsCompleted {
			r.Recommendations = append(r.Recommendations, fmt.Sprintf("Focus on %s", m.Title))
			break
		}
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = append(r.Recommendations, "Revisit modules below 90% to raise your score")
	}

	for _, m := range cat.Modules {
		mp, ok := modules[m.ID]
		if !CanAccessModule(cat, m.ID, modules) {
			continue
		}
		remaining := len(m.Exercises)
		if ok {
			remaining = mp.TotalExercises - mp.CompletedExercises
		}
		if remaining > 0 {
			r.NextSteps = append(r.NextSteps, fmt.Sprintf("Complete %d exercise(s) in %s", remaining, m.Title))
			break
		}
	}

	if sp.CompletedModules > 0 {
		r.Milestones = append(r.Milestones, fmt.Sprintf("%d module(s) started", sp.CompletedModules))
	}
	if sp.TotalNormalizedScore >= 350 {
		r.Milestones = append(r.Milestones, "Elite score (350+)")
	}
	if sp.CurrentStreak >= 7 {
		r.Milestones = append(r.Milestones, "7+ day streak")
	}
	return r
}
