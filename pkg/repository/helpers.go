package repository

import (
	"sort"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// withPlaceholders orders stored records by the module's catalog order and fills gaps
func withPlaceholders(studentID string, module catalog.Module, stored []models.ExerciseProgress) []models.ExerciseProgress {
	byID := make(map[string]models.ExerciseProgress, len(stored))
	for _, ep := range stored {
		byID[ep.ExerciseID] = ep
	}

	out := make([]models.ExerciseProgress, 0, len(module.Exercises))
	for _, ex := range module.Exercises {
		ep, ok := byID[ex.ID]
		if !ok {
			ep = models.ExerciseProgress{StudentID: studentID, ExerciseID: ex.ID, ModuleID: module.ID}
		}
		out = append(out, ep)
	}
	return out
}

// attachExercises hangs each exercise record off its module
func attachExercises(modules []models.ModuleProgress, exercises []models.ExerciseProgress) []models.ModuleProgress {
	byModule := make(map[string][]models.ExerciseProgress)
	for _, ep := range exercises {
		byModule[ep.ModuleID] = append(byModule[ep.ModuleID], ep)
	}
	for i := range modules {
		modules[i].Exercises = byModule[modules[i].ModuleID]
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].ModuleID < modules[j].ModuleID })
	return modules
}

func achievementIDs(records []models.AchievementRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.AchievementID)
	}
	return ids
}
