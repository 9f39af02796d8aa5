package achievements

import (
	"math"
	"sort"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

const maxTargets = 5

// Target is progress toward an achievement the student does not hold yet
type Target struct {
	AchievementID string  `json:"achievement_id"`
	Title         string  `json:"title"`
	Current       float64 `json:"current"`
	Goal          float64 `json:"goal"`
	Percent       int     `json:"percent"`
	Points        int     `json:"points"`
}

// NextTargets lists the closest unheld threshold achievements, nearest first
func (e *Evaluator) NextTargets(sp models.StudentProgress) []Target {
	var targets []Target
	for _, def := range e.catalog.Achievements {
		if sp.HasAchievement(def.ID) || def.Criteria.Value <= 0 {
			continue
		}

		var current float64
		switch def.Criteria.Trigger {
		case models.TriggerScoreThreshold:
			current = scoreFor(e.catalog, def.Criteria, sp)
		case models.TriggerExerciseCount:
			current = float64(sp.CompletedExercises)
		case models.TriggerStreak:
			current = float64(sp.ImprovementStreak)
		default:
			continue
		}

		pct := int(math.Round(math.Min(current/def.Criteria.Value, 1) * 100))
		targets = append(targets, Target{
			AchievementID: def.ID,
			Title:         def.Title,
			Current:       current,
			Goal:          def.Criteria.Value,
			Percent:       pct,
			Points:        def.Points,
		})
	}

	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Percent > targets[j].Percent })
	if len(targets) > maxTargets {
		targets = targets[:maxTargets]
	}
	return targets
}
