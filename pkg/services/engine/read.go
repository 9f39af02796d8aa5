package engine

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/repository"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/achievements"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/events"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/progress"
)

// DefaultRecomputeConcurrency bounds parallel recomputes in RecomputeCohort
const DefaultRecomputeConcurrency = 4

// recomputeAttempts is the conflict retry budget of one student in a bulk recompute
const recomputeAttempts = 3

// StudentReport is the progress report plus what is unlocked and within reach
type StudentReport struct {
	progress.Report
	Level           string                `json:"level"`
	UnlockedModules []string              `json:"unlocked_modules"`
	NextTargets     []achievements.Target `json:"next_targets"`
}

// RecomputeSummary is the outcome of a bulk recompute
type RecomputeSummary struct {
	Recomputed int               `json:"recomputed"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// StudentProgress loads a student with modules in catalog order and held achievements
func (e *Engine) StudentProgress(ctx context.Context, studentID string) (*models.StudentProgress, error) {
	sp, err := e.gateway.LoadStudentProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, apperrors.NotFound("student " + studentID)
	}
	modules, err := e.gateway.LoadStudentModules(ctx, studentID)
	if err != nil {
		return nil, err
	}
	sp.Modules = e.inCatalogOrder(modules)
	return sp, nil
}

// Report builds the progress report of a student
func (e *Engine) Report(ctx context.Context, studentID string) (*StudentReport, error) {
	sp, err := e.StudentProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}
	unlocked := progress.UnlockedModules(e.catalog, progress.IndexModules(sp.Modules))
	if unlocked == nil {
		unlocked = []string{}
	}
	targets := e.evaluator.NextTargets(*sp)
	if targets == nil {
		targets = []achievements.Target{}
	}
	return &StudentReport{
		Report:          progress.BuildReport(*sp, e.catalog, e.now()),
		Level:           sp.AchievementLevel,
		UnlockedModules: unlocked,
		NextTargets:     targets,
	}, nil
}

// Recompute re-derives every aggregate of a student from the stored exercise records.
// The result equals what incremental submissions maintain; achievements are not
// re-evaluated since several triggers depend on the submission that fired them.
func (e *Engine) Recompute(ctx context.Context, studentID string) (*models.StudentProgress, error) {
	var result models.StudentProgress
	err := e.gateway.Atomically(ctx, func(tx repository.ProgressGateway) error {
		exercises, err := tx.LoadStudentExercises(ctx, studentID)
		if err != nil {
			return err
		}
		previous, err := tx.LoadStudentProgress(ctx, studentID)
		if err != nil {
			return err
		}
		if len(exercises) == 0 && previous == nil {
			return apperrors.NotFound("student " + studentID)
		}

		stored, err := tx.LoadStudentModules(ctx, studentID)
		if err != nil {
			return err
		}
		storedIdx := progress.IndexModules(stored)
		touched := make(map[string]bool)
		for _, ep := range exercises {
			touched[ep.ModuleID] = true
		}

		recomputed := make(map[string]models.ModuleProgress)
		for _, module := range e.catalog.Modules {
			prev, exists := storedIdx[module.ID]
			if !exists && !touched[module.ID] {
				continue
			}
			moduleExercises, err := tx.LoadModuleExercises(ctx, studentID, module)
			if err != nil {
				return err
			}
			var previousModule *models.ModuleProgress
			if exists {
				previousModule = &prev
			}
			unlocked := progress.CanAccessModule(e.catalog, module.ID, recomputed)
			mp := progress.AggregateModule(studentID, module, moduleExercises, previousModule, unlocked)
			if mp.Version, err = tx.SaveModuleProgress(ctx, mp, versionOf(previousModule)); err != nil {
				return err
			}
			recomputed[module.ID] = mp
		}

		sp, err := e.rollUpStudent(ctx, tx, studentID, "", previous)
		if err != nil {
			return err
		}
		expected := int64(0)
		if previous != nil {
			expected = previous.Version
		}
		if sp.Version, err = tx.SaveStudentProgress(ctx, sp, expected); err != nil {
			return err
		}
		result = sp
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(events.ProgressEvent{
		Type:      events.TypeProgressRecomputed,
		StudentID: result.StudentID,
		CohortID:  result.CohortID,
		Timestamp: e.now(),
	})
	return &result, nil
}

// RecomputeCohort recomputes every student of a cohort, or every student with stored
// exercises when cohortID is empty. Per-student failures are collected; a storage
// failure stops the run.
func (e *Engine) RecomputeCohort(ctx context.Context, cohortID string, concurrency int) (*RecomputeSummary, error) {
	if concurrency <= 0 {
		concurrency = DefaultRecomputeConcurrency
	}
	ids, err := e.gateway.ListStudentIDs(ctx, cohortID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	summary := &RecomputeSummary{Failed: make(map[string]string)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := repository.WithConflictRetry(gctx, recomputeAttempts, func() error {
				_, err := e.Recompute(gctx, id)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Recomputed++
				return nil
			case apperrors.IsCode(err, apperrors.CodeStorageUnavailable):
				return err
			default:
				summary.Failed[id] = err.Error()
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	if len(summary.Failed) > 0 {
		failed := make([]string, 0, len(summary.Failed))
		for id := range summary.Failed {
			failed = append(failed, id)
		}
		sort.Strings(failed)
		e.logger.Warn("recompute finished with failures", zap.String("cohort_id", cohortID), zap.Strings("students", failed))
	}
	e.logger.Info("recompute finished", zap.String("cohort_id", cohortID), zap.Int("recomputed", summary.Recomputed))
	return summary, nil
}
