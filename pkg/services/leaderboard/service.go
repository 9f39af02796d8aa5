package leaderboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/metrics"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/events"
)

// Build results reported to metrics
const (
	resultFresh    = "fresh"
	resultCached   = "cached"
	resultDegraded = "degraded"
)

// Store loads the students of a cohort
type Store interface {
	LoadCohortStudents(ctx context.Context, cohortID string) ([]models.StudentProgress, error)
}

// Cache holds computed leaderboards shared between instances
type Cache interface {
	Get(ctx context.Context, cohortID string) (*models.Leaderboard, bool)
	Set(ctx context.Context, lb *models.Leaderboard)
	Invalidate(ctx context.Context, cohortID string)
}

// Notifier tells other instances that a cohort changed
type Notifier interface {
	Publish(ctx context.Context, cohortID string) error
}

// Service computes cohort leaderboards on demand and pushes fresh rankings to subscribers.
// Concurrent reads of one cohort share a single computation.
type Service struct {
	store         Store
	includePoints bool
	interval      time.Duration
	cache         Cache
	notifier      Notifier
	logger        *logging.Logger
	metrics       *metrics.Metrics
	now           func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	last   map[string]*models.Leaderboard
	dirty  map[string]bool
	subs   map[string]map[int]chan *models.Leaderboard
	nextID int
}

// Option configures a Service
type Option func(*Service)

// WithCache shares computed leaderboards through c
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithNotifier announces cohort changes to other instances through n
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the service logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l.Named("leaderboard") }
}

// WithMetrics records leaderboard builds on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a leaderboard service over store
func NewService(store Store, cfg config.LeaderboardConfig, opts ...Option) *Service {
	s := &Service{
		store:         store,
		includePoints: cfg.IncludeAchievementPoints,
		interval:      cfg.RefreshInterval,
		logger:        logging.NewNop(),
		now:           time.Now,
		last:          make(map[string]*models.Leaderboard),
		dirty:         make(map[string]bool),
		subs:          make(map[string]map[int]chan *models.Leaderboard),
	}
	if s.interval <= 0 {
		s.interval = 5 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Leaderboard returns the ranking of a cohort. It never fails: when the cohort cannot be
// loaded the last good ranking, or an empty one, is returned marked as degraded.
func (s *Service) Leaderboard(ctx context.Context, cohortID string) *models.Leaderboard {
	if s.cache != nil {
		if lb, ok := s.cache.Get(ctx, cohortID); ok {
			s.metrics.LeaderboardBuilt(cohortID, resultCached, len(lb.Entries))
			return lb
		}
	}

	v, _, _ := s.group.Do(cohortID, func() (interface{}, error) {
		return s.compute(ctx, cohortID), nil
	})
	return v.(*models.Leaderboard)
}

func (s *Service) compute(ctx context.Context, cohortID string) *models.Leaderboard {
	students, err := s.store.LoadCohortStudents(ctx, cohortID)
	if err != nil {
		s.logger.Warn("cohort load failed, serving degraded leaderboard",
			zap.String("cohort_id", cohortID),
			zap.Error(err),
		)
		lb := s.degraded(cohortID)
		s.metrics.LeaderboardBuilt(cohortID, resultDegraded, len(lb.Entries))
		return lb
	}

	lb := &models.Leaderboard{
		CohortID:    cohortID,
		Entries:     Normalize(StandingsFrom(students, s.includePoints)),
		GeneratedAt: s.now(),
	}

	s.mu.Lock()
	s.last[cohortID] = lb
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Set(ctx, lb)
	}
	s.metrics.LeaderboardBuilt(cohortID, resultFresh, len(lb.Entries))
	return lb
}

func (s *Service) degraded(cohortID string) *models.Leaderboard {
	s.mu.Lock()
	prev := s.last[cohortID]
	s.mu.Unlock()

	lb := &models.Leaderboard{CohortID: cohortID, Entries: []models.LeaderboardEntry{}, GeneratedAt: s.now(), Degraded: true}
	if prev != nil {
		lb.Entries = prev.Entries
		lb.GeneratedAt = prev.GeneratedAt
	}
	return lb
}

// Subscribe streams rankings of a cohort: the current one immediately, then a new one
// after every change. Slow readers only ever see the latest ranking. The returned
// function ends the subscription and closes the channel.
func (s *Service) Subscribe(ctx context.Context, cohortID string) (<-chan *models.Leaderboard, func()) {
	ch := make(chan *models.Leaderboard, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.subs[cohortID] == nil {
		s.subs[cohortID] = make(map[int]chan *models.Leaderboard)
	}
	s.subs[cohortID][id] = ch
	s.mu.Unlock()

	lb := s.Leaderboard(ctx, cohortID)
	s.mu.Lock()
	// a refresh may already have delivered a newer ranking
	select {
	case ch <- lb:
	default:
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[cohortID], id)
			if len(s.subs[cohortID]) == 0 {
				delete(s.subs, cohortID)
			}
			close(ch)
			s.mu.Unlock()
		})
	}
}

// MarkDirty schedules a cohort for recomputation on the next refresh tick
func (s *Service) MarkDirty(cohortID string) {
	if s.cache != nil {
		s.cache.Invalidate(context.Background(), cohortID)
	}
	s.mu.Lock()
	s.dirty[cohortID] = true
	s.mu.Unlock()
}

// OnProgressEvent marks the event's cohort dirty and tells other instances about it
func (s *Service) OnProgressEvent(event events.ProgressEvent) {
	if event.CohortID == "" {
		return
	}
	s.MarkDirty(event.CohortID)
	if s.notifier != nil {
		if err := s.notifier.Publish(context.Background(), event.CohortID); err != nil {
			s.logger.Warn("cohort change notification failed", zap.String("cohort_id", event.CohortID), zap.Error(err))
		}
	}
}

// Run refreshes dirty cohorts that have subscribers until ctx is done
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh recomputes every dirty cohort that has subscribers and pushes the result
func (s *Service) Refresh(ctx context.Context) {
	s.mu.Lock()
	var cohorts []string
	for cohortID := range s.dirty {
		if len(s.subs[cohortID]) > 0 {
			cohorts = append(cohorts, cohortID)
		}
		delete(s.dirty, cohortID)
	}
	s.mu.Unlock()

	for _, cohortID := range cohorts {
		v, _, _ := s.group.Do(cohortID, func() (interface{}, error) {
			return s.compute(ctx, cohortID), nil
		})
		s.push(cohortID, v.(*models.Leaderboard))
	}
}

func (s *Service) push(cohortID string, lb *models.Leaderboard) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs[cohortID] {
		// replace an unread ranking with the newer one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- lb:
		default:
		}
	}
}
