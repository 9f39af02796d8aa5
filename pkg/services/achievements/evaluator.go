// Package achievements decides which catalog achievements a progress update unlocks
package achievements

import (
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// Event describes the submission that triggered an evaluation
type Event struct {
	StudentID      string
	ExerciseID     string
	ModuleID       string
	Score          models.ScoreCalculation
	ElapsedSeconds float64
	// FirstCompletion is set when this submission completed the student's first exercise ever
	FirstCompletion bool
}

// predicate decides whether an unheld definition is earned by the event and updated progress
type predicate func(cat *catalog.Catalog, def models.AchievementDefinition, ev Event, sp models.StudentProgress) bool

var rules = map[string]predicate{
	models.TriggerCompletionTime: func(_ *catalog.Catalog, _ models.AchievementDefinition, ev Event, _ models.StudentProgress) bool {
		return ev.FirstCompletion
	},
	models.TriggerFastCompletion: func(_ *catalog.Catalog, def models.AchievementDefinition, ev Event, _ models.StudentProgress) bool {
		return inScope(def, ev) &&
			ev.ElapsedSeconds < def.Criteria.Value &&
			ev.Score.NormalizedScore >= def.Criteria.MinScore
	},
	models.TriggerExerciseCount: func(_ *catalog.Catalog, def models.AchievementDefinition, _ Event, sp models.StudentProgress) bool {
		return float64(sp.CompletedExercises) >= def.Criteria.Value
	},
	models.TriggerPerfectScore: func(_ *catalog.Catalog, def models.AchievementDefinition, ev Event, _ models.StudentProgress) bool {
		return inScope(def, ev) && float64(ev.Score.NormalizedScore) >= def.Criteria.Value
	},
	models.TriggerScoreThreshold: func(cat *catalog.Catalog, def models.AchievementDefinition, _ Event, sp models.StudentProgress) bool {
		return scoreFor(cat, def.Criteria, sp) >= def.Criteria.Value
	},
	models.TriggerStreak: func(_ *catalog.Catalog, def models.AchievementDefinition, _ Event, sp models.StudentProgress) bool {
		return float64(sp.ImprovementStreak) >= def.Criteria.Value
	},
}

// Evaluator matches the achievement catalog against progress updates
type Evaluator struct {
	catalog *catalog.Catalog
}

// NewEvaluator creates an evaluator over the given catalog
func NewEvaluator(cat *catalog.Catalog) *Evaluator {
	return &Evaluator{catalog: cat}
}

// Evaluate returns the IDs of achievements newly earned by the event, in catalog order.
// Achievements already held in sp are never returned; unknown triggers never match.
func (e *Evaluator) Evaluate(ev Event, sp models.StudentProgress) []string {
	held := make(map[string]bool, len(sp.Achievements))
	for _, id := range sp.Achievements {
		held[id] = true
	}

	var earned []string
	for _, def := range e.catalog.Achievements {
		if held[def.ID] {
			continue
		}
		match, ok := rules[def.Criteria.Trigger]
		if !ok {
			continue
		}
		if match(e.catalog, def, ev, sp) {
			earned = append(earned, def.ID)
		}
	}
	return earned
}

// Points sums the catalog points of the given achievement IDs; unknown IDs count 0
func (e *Evaluator) Points(ids []string) int {
	total := 0
	for _, id := range ids {
		if def, ok := e.catalog.Achievement(id); ok {
			total += def.Points
		}
	}
	return total
}

func inScope(def models.AchievementDefinition, ev Event) bool {
	if def.Criteria.ExerciseID != "" && def.Criteria.ExerciseID != ev.ExerciseID {
		return false
	}
	if def.Criteria.ModuleID != "" && def.Criteria.ModuleID != ev.ModuleID {
		return false
	}
	return true
}

// scoreFor resolves the aggregate a score threshold is measured against
func scoreFor(cat *catalog.Catalog, c models.AchievementCriteria, sp models.StudentProgress) float64 {
	switch {
	case c.AllModules:
		lowest := -1
		for _, m := range cat.Modules {
			mp, ok := sp.Module(m.ID)
			if !ok || !mp.IsCompleted {
				return 0
			}
			if lowest < 0 || mp.NormalizedScore < lowest {
				lowest = mp.NormalizedScore
			}
		}
		if lowest < 0 {
			return 0
		}
		return float64(lowest)
	case c.ModuleID != "":
		mp, ok := sp.Module(c.ModuleID)
		if !ok || !mp.IsCompleted {
			return 0
		}
		return float64(mp.NormalizedScore)
	default:
		return float64(sp.AverageScore)
	}
}
