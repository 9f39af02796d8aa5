package repository

import (
	"context"
	"errors"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// ErrVersionConflict is wrapped by every optimistic-write rejection
var ErrVersionConflict = errors.New("stored version changed since read")

// GrantResult is the outcome of an insert-if-absent achievement grant
type GrantResult int

const (
	Granted GrantResult = iota + 1
	AlreadyHeld
)

func (r GrantResult) String() string {
	switch r {
	case Granted:
		return "granted"
	case AlreadyHeld:
		return "already_held"
	default:
		return "unknown"
	}
}

// ProgressGateway is the durable store behind the engine.
// Save methods take the version the caller read (0 when the record did not exist) and
// return the new stored version; a mismatch yields a CONCURRENT_MODIFICATION error
// wrapping ErrVersionConflict. Other failures surface as STORAGE_UNAVAILABLE.
type ProgressGateway interface {
	// LoadExerciseProgress returns nil when the student never attempted the exercise
	LoadExerciseProgress(ctx context.Context, studentID, exerciseID string) (*models.ExerciseProgress, error)

	// LoadModuleExercises returns one record per exercise of the module, in catalog
	// order, with zero-valued placeholders for unattempted exercises
	LoadModuleExercises(ctx context.Context, studentID string, module catalog.Module) ([]models.ExerciseProgress, error)

	// LoadStudentExercises returns every attempted exercise of the student
	LoadStudentExercises(ctx context.Context, studentID string) ([]models.ExerciseProgress, error)

	// SaveExerciseProgress writes the record if the stored version equals expectedVersion
	SaveExerciseProgress(ctx context.Context, ep models.ExerciseProgress, expectedVersion int64) (int64, error)

	// LoadModuleProgress returns nil when the module has no stored progress
	LoadModuleProgress(ctx context.Context, studentID, moduleID string) (*models.ModuleProgress, error)

	// LoadStudentModules returns stored module progress with attempted exercises attached
	LoadStudentModules(ctx context.Context, studentID string) ([]models.ModuleProgress, error)

	// SaveModuleProgress writes the record if the stored version equals expectedVersion
	SaveModuleProgress(ctx context.Context, mp models.ModuleProgress, expectedVersion int64) (int64, error)

	// LoadStudentProgress returns the summary row with held achievement IDs, or nil
	LoadStudentProgress(ctx context.Context, studentID string) (*models.StudentProgress, error)

	// SaveStudentProgress writes the record if the stored version equals expectedVersion
	SaveStudentProgress(ctx context.Context, sp models.StudentProgress, expectedVersion int64) (int64, error)

	// LoadAchievements returns a student's grants, oldest first
	LoadAchievements(ctx context.Context, studentID string) ([]models.AchievementRecord, error)

	// GrantAchievementIfAbsent inserts the record unless (student, achievement) already exists
	GrantAchievementIfAbsent(ctx context.Context, rec models.AchievementRecord) (GrantResult, error)

	// LoadCohortStudents returns the summary rows of every student in a cohort
	LoadCohortStudents(ctx context.Context, cohortID string) ([]models.StudentProgress, error)

	// ListStudentIDs lists students of a cohort; an empty cohort lists everyone with exercise progress
	ListStudentIDs(ctx context.Context, cohortID string) ([]string, error)

	// Atomically runs fn against a transactional view; nothing fn writes is visible
	// unless fn returns nil and the commit succeeds
	Atomically(ctx context.Context, fn func(tx ProgressGateway) error) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}
