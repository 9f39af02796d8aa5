package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// GormGateway implements ProgressGateway on a relational database
type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway creates a gateway over an open, migrated database.
// The connection should be opened with TranslateError enabled (see Open).
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

func (g *GormGateway) LoadExerciseProgress(ctx context.Context, studentID, exerciseID string) (*models.ExerciseProgress, error) {
	var ep models.ExerciseProgress
	err := g.db.WithContext(ctx).
		Where("student_id = ? AND exercise_id = ?", studentID, exerciseID).
		First(&ep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StorageUnavailable("load exercise progress", err)
	}
	return &ep, nil
}

func (g *GormGateway) LoadModuleExercises(ctx context.Context, studentID string, module catalog.Module) ([]models.ExerciseProgress, error) {
	var stored []models.ExerciseProgress
	err := g.db.WithContext(ctx).
		Where("student_id = ? AND exercise_id IN ?", studentID, module.ExerciseIDs()).
		Find(&stored).Error
	if err != nil {
		return nil, apperrors.StorageUnavailable("load module exercises", err)
	}
	return withPlaceholders(studentID, module, stored), nil
}

func (g *GormGateway) LoadStudentExercises(ctx context.Context, studentID string) ([]models.ExerciseProgress, error) {
	var stored []models.ExerciseProgress
	err := g.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("module_id, exercise_id").
		Find(&stored).Error
	if err != nil {
		return nil, apperrors.StorageUnavailable("load student exercises", err)
	}
	return stored, nil
}

func (g *GormGateway) SaveExerciseProgress(ctx context.Context, ep models.ExerciseProgress, expectedVersion int64) (int64, error) {
	return saveVersioned(g.db.WithContext(ctx), "exercise progress", &ep, &ep.Version, expectedVersion,
		"student_id = ? AND exercise_id = ?", ep.StudentID, ep.ExerciseID)
}

func (g *GormGateway) LoadModuleProgress(ctx context.Context, studentID, moduleID string) (*models.ModuleProgress, error) {
	var mp models.ModuleProgress
	err := g.db.WithContext(ctx).
		Where("student_id = ? AND module_id = ?", studentID, moduleID).
		First(&mp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StorageUnavailable("load module progress", err)
	}
	return &mp, nil
}

func (g *GormGateway) LoadStudentModules(ctx context.Context, studentID string) ([]models.ModuleProgress, error) {
	var modules []models.ModuleProgress
	if err := g.db.WithContext(ctx).Where("student_id = ?", studentID).Find(&modules).Error; err != nil {
		return nil, apperrors.StorageUnavailable("load student modules", err)
	}

	exercises, err := g.LoadStudentExercises(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return attachExercises(modules, exercises), nil
}

func (g *GormGateway) SaveModuleProgress(ctx context.Context, mp models.ModuleProgress, expectedVersion int64) (int64, error) {
	return saveVersioned(g.db.WithContext(ctx), "module progress", &mp, &mp.Version, expectedVersion,
		"student_id = ? AND module_id = ?", mp.StudentID, mp.ModuleID)
}

func (g *GormGateway) LoadStudentProgress(ctx context.Context, studentID string) (*models.StudentProgress, error) {
	var sp models.StudentProgress
	err := g.db.WithContext(ctx).Where("student_id = ?", studentID).First(&sp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StorageUnavailable("load student progress", err)
	}

	records, err := g.LoadAchievements(ctx, studentID)
	if err != nil {
		return nil, err
	}
	sp.Achievements = achievementIDs(records)
	return &sp, nil
}

func (g *GormGateway) SaveStudentProgress(ctx context.Context, sp models.StudentProgress, expectedVersion int64) (int64, error) {
	return saveVersioned(g.db.WithContext(ctx), "student progress", &sp, &sp.Version, expectedVersion,
		"student_id = ?", sp.StudentID)
}

func (g *GormGateway) LoadAchievements(ctx context.Context, studentID string) ([]models.AchievementRecord, error) {
	var records []models.AchievementRecord
	err := g.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("earned_at, achievement_id").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.StorageUnavailable("load achievements", err)
	}
	return records, nil
}

// GrantAchievementIfAbsent relies on the unique (student_id, achievement_id) index
func (g *GormGateway) GrantAchievementIfAbsent(ctx context.Context, rec models.AchievementRecord) (GrantResult, error) {
	result := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(&rec)
	if result.Error != nil {
		return 0, apperrors.StorageUnavailable("grant achievement", result.Error)
	}
	if result.RowsAffected == 0 {
		return AlreadyHeld, nil
	}
	return Granted, nil
}

func (g *GormGateway) LoadCohortStudents(ctx context.Context, cohortID string) ([]models.StudentProgress, error) {
	var students []models.StudentProgress
	if err := g.db.WithContext(ctx).Where("cohort_id = ?", cohortID).Find(&students).Error; err != nil {
		return nil, apperrors.StorageUnavailable("load cohort", err)
	}
	return students, nil
}

func (g *GormGateway) ListStudentIDs(ctx context.Context, cohortID string) ([]string, error) {
	var ids []string
	var err error
	if cohortID == "" {
		err = g.db.WithContext(ctx).Model(&models.ExerciseProgress{}).
			Distinct("student_id").Order("student_id").Pluck("student_id", &ids).Error
	} else {
		err = g.db.WithContext(ctx).Model(&models.StudentProgress{}).
			Where("cohort_id = ?", cohortID).Order("student_id").Pluck("student_id", &ids).Error
	}
	if err != nil {
		return nil, apperrors.StorageUnavailable("list students", err)
	}
	return ids, nil
}

// Atomically runs fn inside a database transaction
func (g *GormGateway) Atomically(ctx context.Context, fn func(tx ProgressGateway) error) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormGateway{db: tx})
	})
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.StorageUnavailable("commit", err)
}

func (g *GormGateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// saveVersioned inserts when expected is 0 and otherwise updates only the row still at
// the expected version. version points at the record's Version field.
func saveVersioned(db *gorm.DB, resource string, record interface{}, version *int64, expected int64, where string, keys ...interface{}) (int64, error) {
	next := expected + 1
	*version = next

	if expected == 0 {
		err := db.Create(record).Error
		if isDuplicateKey(err) {
			return 0, apperrors.ConcurrentModification(resource, ErrVersionConflict)
		}
		if err != nil {
			return 0, apperrors.StorageUnavailable("save "+resource, err)
		}
		return next, nil
	}

	args := append(append([]interface{}{}, keys...), expected)
	result := db.Model(record).
		Where(where+" AND version = ?", args...).
		Select("*").
		Updates(record)
	if result.Error != nil {
		return 0, apperrors.StorageUnavailable("save "+resource, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, apperrors.ConcurrentModification(resource, fmt.Errorf("%w: expected version %d", ErrVersionConflict, expected))
	}
	return next, nil
}

// isDuplicateKey recognizes unique violations whether or not the dialect translated them
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
