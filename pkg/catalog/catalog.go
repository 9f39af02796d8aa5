// Package catalog holds the static course structure and achievement definitions
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Exercise is one gradable unit inside a module
type Exercise struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Order int    `yaml:"order" json:"order"`
}

// Module is an ordered group of exercises
type Module struct {
	ID        string     `yaml:"id" json:"id"`
	Title     string     `yaml:"title" json:"title"`
	Order     int        `yaml:"order" json:"order"`
	Exercises []Exercise `yaml:"exercises" json:"exercises"`
}

// ExerciseIDs returns the module's exercise IDs in catalog order
func (m Module) ExerciseIDs() []string {
	ids := make([]string, len(m.Exercises))
	for i, e := range m.Exercises {
		ids[i] = e.ID
	}
	return ids
}

// Catalog is read-only reference data shared by every component
type Catalog struct {
	Modules      []Module                       `yaml:"modules" json:"modules"`
	Achievements []models.AchievementDefinition `yaml:"achievements" json:"achievements"`

	moduleIndex      map[string]int
	exerciseModule   map[string]string
	achievementIndex map[string]int
}

var knownTriggers = map[string]bool{
	models.TriggerCompletionTime: true,
	models.TriggerFastCompletion: true,
	models.TriggerExerciseCount:  true,
	models.TriggerPerfectScore:   true,
	models.TriggerScoreThreshold: true,
	models.TriggerStreak:         true,
}

var knownRarities = map[string]bool{
	models.RarityCommon:    true,
	models.RarityRare:      true,
	models.RarityEpic:      true,
	models.RarityLegendary: true,
}

// Default returns the embedded catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file; an empty path yields the embedded catalog
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and indexes a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if len(c.Modules) == 0 {
		return fmt.Errorf("catalog has no modules")
	}

	sort.SliceStable(c.Modules, func(i, j int) bool { return c.Modules[i].Order < c.Modules[j].Order })

	c.moduleIndex = make(map[string]int, len(c.Modules))
	c.exerciseModule = make(map[string]string)
	for i := range c.Modules {
		m := &c.Modules[i]
		if m.ID == "" {
			return fmt.Errorf("module at position %d has no id", i)
		}
		if _, dup := c.moduleIndex[m.ID]; dup {
			return fmt.Errorf("duplicate module id %q", m.ID)
		}
		if len(m.Exercises) == 0 {
			return fmt.Errorf("module %q has no exercises", m.ID)
		}
		c.moduleIndex[m.ID] = i

		sort.SliceStable(m.Exercises, func(a, b int) bool { return m.Exercises[a].Order < m.Exercises[b].Order })
		for _, e := range m.Exercises {
			if e.ID == "" {
				return fmt.Errorf("module %q has an exercise without id", m.ID)
			}
			if owner, dup := c.exerciseModule[e.ID]; dup {
				return fmt.Errorf("exercise %q appears in %q and %q", e.ID, owner, m.ID)
			}
			c.exerciseModule[e.ID] = m.ID
		}
	}

	c.achievementIndex = make(map[string]int, len(c.Achievements))
	for i, a := range c.Achievements {
		if a.ID == "" {
			return fmt.Errorf("achievement at position %d has no id", i)
		}
		if _, dup := c.achievementIndex[a.ID]; dup {
			return fmt.Errorf("duplicate achievement id %q", a.ID)
		}
		if !knownTriggers[a.Criteria.Trigger] {
			return fmt.Errorf("achievement %q has unknown trigger %q", a.ID, a.Criteria.Trigger)
		}
		if !knownRarities[a.Rarity] {
			return fmt.Errorf("achievement %q has unknown rarity %q", a.ID, a.Rarity)
		}
		if a.Points < 0 {
			return fmt.Errorf("achievement %q has negative points", a.ID)
		}
		if a.Criteria.ModuleID != "" {
			if _, ok := c.moduleIndex[a.Criteria.ModuleID]; !ok {
				return fmt.Errorf("achievement %q references unknown module %q", a.ID, a.Criteria.ModuleID)
			}
		}
		if a.Criteria.ExerciseID != "" {
			if _, ok := c.exerciseModule[a.Criteria.ExerciseID]; !ok {
				return fmt.Errorf("achievement %q references unknown exercise %q", a.ID, a.Criteria.ExerciseID)
			}
		}
		c.achievementIndex[a.ID] = i
	}
	return nil
}

// Module looks up a module by ID
func (c *Catalog) Module(id string) (Module, bool) {
	i, ok := c.moduleIndex[id]
	if !ok {
		return Module{}, false
	}
	return c.Modules[i], true
}

// ModuleForExercise returns the module that owns the exercise
func (c *Catalog) ModuleForExercise(exerciseID string) (Module, bool) {
	moduleID, ok := c.exerciseModule[exerciseID]
	if !ok {
		return Module{}, false
	}
	return c.Module(moduleID)
}

// PreviousModule returns the module ordered directly before id
func (c *Catalog) PreviousModule(id string) (Module, bool) {
	i, ok := c.moduleIndex[id]
	if !ok || i == 0 {
		return Module{}, false
	}
	return c.Modules[i-1], true
}

// NextModule returns the module ordered directly after id
func (c *Catalog) NextModule(id string) (Module, bool) {
	i, ok := c.moduleIndex[id]
	if !ok || i+1 >= len(c.Modules) {
		return Module{}, false
	}
	return c.Modules[i+1], true
}

func (c *Catalog) TotalModules() int {
	return len(c.Modules)
}

func (c *Catalog) TotalExercises() int {
	return len(c.exerciseModule)
}

// Achievement looks up an achievement definition by ID
func (c *Catalog) Achievement(id string) (models.AchievementDefinition, bool) {
	i, ok := c.achievementIndex[id]
	if !ok {
		return models.AchievementDefinition{}, false
	}
	return c.Achievements[i], true
}

// AchievementsByRarity groups definitions by rarity, preserving catalog order
func (c *Catalog) AchievementsByRarity() map[string][]models.AchievementDefinition {
	grouped := make(map[string][]models.AchievementDefinition)
	for _, a := range c.Achievements {
		grouped[a.Rarity] = append(grouped[a.Rarity], a)
	}
	return grouped
}
