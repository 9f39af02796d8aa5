package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

type memState struct {
	exercises map[string]models.ExerciseProgress
	modules   map[string]models.ModuleProgress
	students  map[string]models.StudentProgress
	grants    map[string]models.AchievementRecord
}

func newMemState() *memState {
	return &memState{
		exercises: make(map[string]models.ExerciseProgress),
		modules:   make(map[string]models.ModuleProgress),
		students:  make(map[string]models.StudentProgress),
		grants:    make(map[string]models.AchievementRecord),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.exercises {
		c.exercises[k] = v
	}
	for k, v := range s.modules {
		c.modules[k] = v
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.grants {
		c.grants[k] = v
	}
	return c
}

// writeLog records what a transaction wrote and the versions it read
type writeLog struct {
	exercises map[string]int64
	modules   map[string]int64
	students  map[string]int64
	grants    map[string]bool
}

func newWriteLog() *writeLog {
	return &writeLog{
		exercises: make(map[string]int64),
		modules:   make(map[string]int64),
		students:  make(map[string]int64),
		grants:    make(map[string]bool),
	}
}

// MemoryGateway is an in-process ProgressGateway. Transactions work on a private copy
// of the state and are validated against the live versions at commit.
type MemoryGateway struct {
	mu    *sync.Mutex
	state *memState
	log   *writeLog // nil outside a transaction
}

// NewMemoryGateway creates an empty in-memory gateway
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{mu: &sync.Mutex{}, state: newMemState()}
}

func key(parts ...string) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += "\x00"
		}
		k += p
	}
	return k
}

// view runs fn against the state, holding the lock only for the live gateway
func (g *MemoryGateway) view(fn func(s *memState)) {
	if g.log == nil {
		g.mu.Lock()
		defer g.mu.Unlock()
	}
	fn(g.state)
}

func (g *MemoryGateway) LoadExerciseProgress(_ context.Context, studentID, exerciseID string) (*models.ExerciseProgress, error) {
	var out *models.ExerciseProgress
	g.view(func(s *memState) {
		if ep, ok := s.exercises[key(studentID, exerciseID)]; ok {
			out = &ep
		}
	})
	return out, nil
}

func (g *MemoryGateway) LoadModuleExercises(_ context.Context, studentID string, module catalog.Module) ([]models.ExerciseProgress, error) {
	var stored []models.ExerciseProgress
	g.view(func(s *memState) {
		for _, id := range module.ExerciseIDs() {
			if ep, ok := s.exercises[key(studentID, id)]; ok {
				stored = append(stored, ep)
			}
		}
	})
	return withPlaceholders(studentID, module, stored), nil
}

func (g *MemoryGateway) LoadStudentExercises(_ context.Context, studentID string) ([]models.ExerciseProgress, error) {
	var out []models.ExerciseProgress
	g.view(func(s *memState) {
		for _, ep := range s.exercises {
			if ep.StudentID == studentID {
				out = append(out, ep)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModuleID != out[j].ModuleID {
			return out[i].ModuleID < out[j].ModuleID
		}
		return out[i].ExerciseID < out[j].ExerciseID
	})
	return out, nil
}

func (g *MemoryGateway) SaveExerciseProgress(_ context.Context, ep models.ExerciseProgress, expectedVersion int64) (int64, error) {
	k := key(ep.StudentID, ep.ExerciseID)
	var next int64
	var err error
	g.view(func(s *memState) {
		current, exists := s.exercises[k]
		if err = checkVersion("exercise progress", exists, current.Version, expectedVersion); err != nil {
			return
		}
		next = expectedVersion + 1
		ep.Version = next
		s.exercises[k] = ep
		if g.log != nil {
			if _, seen := g.log.exercises[k]; !seen {
				g.log.exercises[k] = expectedVersion
			}
		}
	})
	return next, err
}

func (g *MemoryGateway) LoadModuleProgress(_ context.Context, studentID, moduleID string) (*models.ModuleProgress, error) {
	var out *models.ModuleProgress
	g.view(func(s *memState) {
		if mp, ok := s.modules[key(studentID, moduleID)]; ok {
			mp.Exercises = nil
			out = &mp
		}
	})
	return out, nil
}

func (g *MemoryGateway) LoadStudentModules(ctx context.Context, studentID string) ([]models.ModuleProgress, error) {
	var modules []models.ModuleProgress
	g.view(func(s *memState) {
		for _, mp := range s.modules {
			if mp.StudentID == studentID {
				mp.Exercises = nil
				modules = append(modules, mp)
			}
		}
	})
	exercises, err := g.LoadStudentExercises(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return attachExercises(modules, exercises), nil
}

func (g *MemoryGateway) SaveModuleProgress(_ context.Context, mp models.ModuleProgress, expectedVersion int64) (int64, error) {
	k := key(mp.StudentID, mp.ModuleID)
	var next int64
	var err error
	g.view(func(s *memState) {
		current, exists := s.modules[k]
		if err = checkVersion("module progress", exists, current.Version, expectedVersion); err != nil {
			return
		}
		next = expectedVersion + 1
		mp.Version = next
		mp.Exercises = nil
		s.modules[k] = mp
		if g.log != nil {
			if _, seen := g.log.modules[k]; !seen {
				g.log.modules[k] = expectedVersion
			}
		}
	})
	return next, err
}

func (g *MemoryGateway) LoadStudentProgress(_ context.Context, studentID string) (*models.StudentProgress, error) {
	var out *models.StudentProgress
	g.view(func(s *memState) {
		sp, ok := s.students[studentID]
		if !ok {
			return
		}
		sp.Modules = nil
		sp.Achievements = achievementIDs(studentGrants(s, studentID))
		out = &sp
	})
	return out, nil
}

func (g *MemoryGateway) SaveStudentProgress(_ context.Context, sp models.StudentProgress, expectedVersion int64) (int64, error) {
	var next int64
	var err error
	g.view(func(s *memState) {
		current, exists := s.students[sp.StudentID]
		if err = checkVersion("student progress", exists, current.Version, expectedVersion); err != nil {
			return
		}
		next = expectedVersion + 1
		sp.Version = next
		sp.Modules = nil
		sp.Achievements = nil
		s.students[sp.StudentID] = sp
		if g.log != nil {
			if _, seen := g.log.students[sp.StudentID]; !seen {
				g.log.students[sp.StudentID] = expectedVersion
			}
		}
	})
	return next, err
}

func (g *MemoryGateway) LoadAchievements(_ context.Context, studentID string) ([]models.AchievementRecord, error) {
	var out []models.AchievementRecord
	g.view(func(s *memState) {
		out = studentGrants(s, studentID)
	})
	return out, nil
}

func (g *MemoryGateway) GrantAchievementIfAbsent(_ context.Context, rec models.AchievementRecord) (GrantResult, error) {
	k := key(rec.StudentID, rec.AchievementID)
	result := Granted
	g.view(func(s *memState) {
		if _, held := s.grants[k]; held {
			result = AlreadyHeld
			return
		}
		s.grants[k] = rec
		if g.log != nil {
			g.log.grants[k] = true
		}
	})
	return result, nil
}

func (g *MemoryGateway) LoadCohortStudents(_ context.Context, cohortID string) ([]models.StudentProgress, error) {
	var out []models.StudentProgress
	g.view(func(s *memState) {
		for _, sp := range s.students {
			if sp.CohortID == cohortID {
				out = append(out, sp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (g *MemoryGateway) ListStudentIDs(_ context.Context, cohortID string) ([]string, error) {
	seen := make(map[string]bool)
	g.view(func(s *memState) {
		if cohortID == "" {
			for _, ep := range s.exercises {
				seen[ep.StudentID] = true
			}
			return
		}
		for _, sp := range s.students {
			if sp.CohortID == cohortID {
				seen[sp.StudentID] = true
			}
		}
	})
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Atomically runs fn on a private copy of the state. At commit every record fn wrote
// must still be at the version fn read and every grant must still be absent; otherwise
// nothing is applied and a CONCURRENT_MODIFICATION error is returned.
func (g *MemoryGateway) Atomically(ctx context.Context, fn func(tx ProgressGateway) error) error {
	if g.log != nil {
		// already inside a transaction
		return fn(g)
	}

	g.mu.Lock()
	snapshot := g.state.clone()
	g.mu.Unlock()

	tx := &MemoryGateway{mu: g.mu, state: snapshot, log: newWriteLog()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.StorageUnavailable("commit", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.validate(tx.log); err != nil {
		return err
	}
	for k := range tx.log.exercises {
		g.state.exercises[k] = snapshot.exercises[k]
	}
	for k := range tx.log.modules {
		g.state.modules[k] = snapshot.modules[k]
	}
	for k := range tx.log.students {
		g.state.students[k] = snapshot.students[k]
	}
	for k := range tx.log.grants {
		g.state.grants[k] = snapshot.grants[k]
	}
	return nil
}

// validate must be called with the lock held
func (g *MemoryGateway) validate(log *writeLog) error {
	for k, read := range log.exercises {
		if g.state.exercises[k].Version != read {
			return apperrors.ConcurrentModification("exercise progress", ErrVersionConflict)
		}
	}
	for k, read := range log.modules {
		if g.state.modules[k].Version != read {
			return apperrors.ConcurrentModification("module progress", ErrVersionConflict)
		}
	}
	for k, read := range log.students {
		if g.state.students[k].Version != read {
			return apperrors.ConcurrentModification("student progress", ErrVersionConflict)
		}
	}
	for k := range log.grants {
		if _, held := g.state.grants[k]; held {
			return apperrors.ConcurrentModification("achievement grant", ErrVersionConflict)
		}
	}
	return nil
}

func (g *MemoryGateway) Ping(context.Context) error {
	return nil
}

func checkVersion(resource string, exists bool, stored, expected int64) error {
	if !exists && expected == 0 {
		return nil
	}
	if exists && stored == expected {
		return nil
	}
	return apperrors.ConcurrentModification(resource, fmt.Errorf("%w: stored %d, expected %d", ErrVersionConflict, stored, expected))
}

func studentGrants(s *memState, studentID string) []models.AchievementRecord {
	var out []models.AchievementRecord
	for _, rec := range s.grants {
		if rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].AchievementID < out[j].AchievementID
	})
	return out
}
