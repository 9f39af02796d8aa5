package progress

import (
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// CanAccessModule reports whether moduleID is unlocked: the first module always is,
// any other once the module before it has been completed.
func CanAccessModule(cat *catalog.Catalog, moduleID string, modules map[string]models.ModuleProgress) bool {
	prev, ok := cat.PreviousModule(moduleID)
	if !ok {
		_, known := cat.Module(moduleID)
		return known
	}
	return modules[prev.ID].IsCompleted
}

// UnlockedModules lists unlocked module IDs in catalog order
func UnlockedModules(cat *catalog.Catalog, modules map[string]models.ModuleProgress) []string {
	var unlocked []string
	for _, m := range cat.Modules {
		if CanAccessModule(cat, m.ID, modules) {
			unlocked = append(unlocked, m.ID)
		}
	}
	return unlocked
}

// IndexModules keys module progress by module ID
func IndexModules(modules []models.ModuleProgress) map[string]models.ModuleProgress {
	idx := make(map[string]models.ModuleProgress, len(modules))
	for _, m := range modules {
		idx[m.ModuleID] = m
	}
	return idx
}
