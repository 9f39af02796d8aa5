// Package engine is the single mutating entry point of the progress service. A submission
// is scored, folded into exercise, module and student progress, checked against the
// achievement catalog and persisted in one gateway transaction.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/internal/common/validation"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/metrics"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/repository"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/achievements"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/events"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/progress"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/scoring"
)

// Submission is one exercise attempt as received from a client
type Submission struct {
	StudentID      string                  `json:"student_id" validate:"required,max=100"`
	CohortID       string                  `json:"cohort_id,omitempty" validate:"max=100"`
	ExerciseID     string                  `json:"exercise_id" validate:"required"`
	Metrics        []models.QuestionMetric `json:"metrics"`
	ElapsedSeconds float64                 `json:"elapsed_seconds"`
}

// SubmissionResult is the committed outcome of a submission
type SubmissionResult struct {
	Score           models.ScoreCalculation `json:"score"`
	Exercise        models.ExerciseProgress `json:"exercise"`
	Module          models.ModuleProgress   `json:"module"`
	Student         models.StudentProgress  `json:"student"`
	NewAchievements []string                `json:"new_achievements"`
}

// Engine coordinates scoring, aggregation and achievements over a ProgressGateway
type Engine struct {
	catalog    *catalog.Catalog
	calculator *scoring.Calculator
	evaluator  *achievements.Evaluator
	gateway    repository.ProgressGateway
	bus        events.Bus
	metrics    *metrics.Metrics
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithBus publishes committed changes on bus
func WithBus(bus events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithMetrics records submission outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l.Named("engine") }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine
func New(cat *catalog.Catalog, calc *scoring.Calculator, gw repository.ProgressGateway, opts ...Option) *Engine {
	e := &Engine{
		catalog:    cat,
		calculator: calc,
		evaluator:  achievements.NewEvaluator(cat),
		gateway:    gw,
		bus:        events.NopBus{},
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the course and achievement catalog the engine evaluates against
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Evaluator returns the achievement evaluator
func (e *Engine) Evaluator() *achievements.Evaluator {
	return e.evaluator
}

// SubmitExerciseAttempt scores and records one attempt. Nothing is written unless every
// step succeeds. A CONCURRENT_MODIFICATION error means another writer committed first;
// the engine does not retry, see repository.WithConflictRetry.
func (e *Engine) SubmitExerciseAttempt(ctx context.Context, sub Submission) (*SubmissionResult, error) {
	start := e.now()
	result, err := e.submit(ctx, sub)
	e.metrics.ObserveSubmission(outcome(err), e.now().Sub(start))
	if err != nil {
		e.logger.Warn("submission rejected",
			zap.String("student_id", sub.StudentID),
			zap.String("exercise_id", sub.ExerciseID),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Info("submission recorded",
		zap.String("student_id", sub.StudentID),
		zap.String("exercise_id", sub.ExerciseID),
		zap.Int("score", result.Score.NormalizedScore),
		zap.Int("best_score", result.Exercise.BestScore),
		zap.Strings("new_achievements", result.NewAchievements),
	)
	e.publish(result)
	return result, nil
}

func (e *Engine) submit(ctx context.Context, sub Submission) (*SubmissionResult, error) {
	if errs := validation.Validate(sub); len(errs) > 0 {
		return nil, apperrors.Validation("invalid submission", validation.Summary(errs))
	}
	module, ok := e.catalog.ModuleForExercise(sub.ExerciseID)
	if !ok {
		return nil, apperrors.NotFound("exercise " + sub.ExerciseID)
	}

	score, err := e.calculator.Calculate(sub.Metrics, sub.ElapsedSeconds)
	if err != nil {
		return nil, err
	}

	at := e.now().UTC()
	var result *SubmissionResult
	err = e.gateway.Atomically(ctx, func(tx repository.ProgressGateway) error {
		// rebuilt on every call so a retried transaction starts clean
		result = &SubmissionResult{Score: *score, NewAchievements: []string{}}

		attempt := progress.ExerciseAttempt{
			StudentID:      sub.StudentID,
			ExerciseID:     sub.ExerciseID,
			ModuleID:       module.ID,
			Score:          *score,
			ElapsedSeconds: sub.ElapsedSeconds,
			At:             at,
		}
		exercise, err := e.recordExercise(ctx, tx, attempt)
		if err != nil {
			return err
		}
		result.Exercise = exercise

		stored, err := tx.LoadStudentModules(ctx, sub.StudentID)
		if err != nil {
			return err
		}
		mp, err := e.refreshModule(ctx, tx, sub.StudentID, module, progress.IndexModules(stored))
		if err != nil {
			return err
		}
		result.Module = mp

		previous, err := tx.LoadStudentProgress(ctx, sub.StudentID)
		if err != nil {
			return err
		}
		sp, err := e.rollUpStudent(ctx, tx, sub.StudentID, sub.CohortID, previous)
		if err != nil {
			return err
		}

		ev := achievements.Event{
			StudentID:       sub.StudentID,
			ExerciseID:      sub.ExerciseID,
			ModuleID:        module.ID,
			Score:           *score,
			ElapsedSeconds:  sub.ElapsedSeconds,
			FirstCompletion: (previous == nil || previous.CompletedExercises == 0) && sp.CompletedExercises > 0,
		}
		for _, id := range e.evaluator.Evaluate(ev, sp) {
			def, _ := e.catalog.Achievement(id)
			res, err := tx.GrantAchievementIfAbsent(ctx, models.NewAchievementRecord(sub.StudentID, def, at))
			if err != nil {
				return err
			}
			if res != repository.Granted {
				continue
			}
			sp.Achievements = append(sp.Achievements, id)
			sp.AchievementPoints += def.Points
			result.NewAchievements = append(result.NewAchievements, id)
		}

		expected := int64(0)
		if previous != nil {
			expected = previous.Version
		}
		version, err := tx.SaveStudentProgress(ctx, sp, expected)
		if err != nil {
			return err
		}
		sp.Version = version
		result.Student = sp
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range result.NewAchievements {
		if def, ok := e.catalog.Achievement(id); ok {
			e.metrics.AchievementGranted(id, def.Rarity)
		}
	}
	return result, nil
}

func (e *Engine) recordExercise(ctx context.Context, tx repository.ProgressGateway, attempt progress.ExerciseAttempt) (models.ExerciseProgress, error) {
	previous, err := tx.LoadExerciseProgress(ctx, attempt.StudentID, attempt.ExerciseID)
	if err != nil {
		return models.ExerciseProgress{}, err
	}
	next := progress.TrackExercise(attempt, previous)

	expected := int64(0)
	if previous != nil {
		expected = previous.Version
	}
	version, err := tx.SaveExerciseProgress(ctx, next, expected)
	if err != nil {
		return models.ExerciseProgress{}, err
	}
	next.Version = version
	return next, nil
}

// refreshModule re-aggregates module from its stored exercises and keeps the stored
// unlock flag of the following module in step with it.
func (e *Engine) refreshModule(ctx context.Context, tx repository.ProgressGateway, studentID string, module catalog.Module, stored map[string]models.ModuleProgress) (models.ModuleProgress, error) {
	exercises, err := tx.LoadModuleExercises(ctx, studentID, module)
	if err != nil {
		return models.ModuleProgress{}, err
	}

	var previous *models.ModuleProgress
	if mp, ok := stored[module.ID]; ok {
		previous = &mp
	}
	unlocked := progress.CanAccessModule(e.catalog, module.ID, stored)
	mp := progress.AggregateModule(studentID, module, exercises, previous, unlocked)

	version, err := tx.SaveModuleProgress(ctx, mp, versionOf(previous))
	if err != nil {
		return models.ModuleProgress{}, err
	}
	mp.Version = version
	stored[module.ID] = mp

	if next, ok := e.catalog.NextModule(module.ID); ok {
		if nm, exists := stored[next.ID]; exists && nm.IsUnlocked != mp.IsCompleted {
			nm.IsUnlocked = mp.IsCompleted
			nm.Exercises = nil
			if nm.Version, err = tx.SaveModuleProgress(ctx, nm, nm.Version); err != nil {
				return models.ModuleProgress{}, err
			}
		}
	}
	return mp, nil
}

// rollUpStudent aggregates the stored modules and carries over what only storage knows
func (e *Engine) rollUpStudent(ctx context.Context, tx repository.ProgressGateway, studentID, cohortID string, previous *models.StudentProgress) (models.StudentProgress, error) {
	modules, err := tx.LoadStudentModules(ctx, studentID)
	if err != nil {
		return models.StudentProgress{}, err
	}
	if cohortID == "" && previous != nil {
		cohortID = previous.CohortID
	}

	sp := progress.AggregateStudent(studentID, cohortID, e.inCatalogOrder(modules), e.catalog.TotalModules())
	if previous != nil {
		sp.Version = previous.Version
		sp.Achievements = append([]string(nil), previous.Achievements...)
		sp.AchievementPoints = e.evaluator.Points(previous.Achievements)
	}
	return sp, nil
}

func (e *Engine) inCatalogOrder(modules []models.ModuleProgress) []models.ModuleProgress {
	idx := progress.IndexModules(modules)
	ordered := make([]models.ModuleProgress, 0, len(modules))
	for _, m := range e.catalog.Modules {
		if mp, ok := idx[m.ID]; ok {
			ordered = append(ordered, mp)
		}
	}
	return ordered
}

func (e *Engine) publish(result *SubmissionResult) {
	e.bus.Publish(events.ProgressEvent{
		Type:            events.TypeAttemptRecorded,
		StudentID:       result.Student.StudentID,
		CohortID:        result.Student.CohortID,
		ExerciseID:      result.Exercise.ExerciseID,
		ModuleID:        result.Module.ModuleID,
		NormalizedScore: result.Score.NormalizedScore,
		Timestamp:       e.now(),
	})
	if len(result.NewAchievements) > 0 {
		e.bus.Publish(events.ProgressEvent{
			Type:         events.TypeAchievementGranted,
			StudentID:    result.Student.StudentID,
			CohortID:     result.Student.CohortID,
			Achievements: result.NewAchievements,
			Timestamp:    e.now(),
		})
	}
}

func versionOf(mp *models.ModuleProgress) int64 {
	if mp == nil {
		return 0
	}
	return mp.Version
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAccepted
	case apperrors.IsCode(err, apperrors.CodeValidation), apperrors.IsCode(err, apperrors.CodeNotFound):
		return metrics.OutcomeInvalid
	case apperrors.IsCode(err, apperrors.CodeConcurrentModification):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeFailed
	}
}
