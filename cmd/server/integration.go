package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wollisellis/vireiaestatistica-sub002/internal/health"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/metrics"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/repository"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/engine"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/events"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/leaderboard"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/scoring"
	wssvc "github.com/wollisellis/vireiaestatistica-sub002/pkg/services/websocket"
)

// eventBufferSize bounds queued progress events before publishers start dropping
const eventBufferSize = 1024

// Components holds all initialized services of the progress server
type Components struct {
	Registry    *repository.Registry
	Redis       *goredis.Client
	EventBus    *events.SimpleBus
	Metrics     *metrics.Metrics
	Engine      *engine.Engine
	Leaderboard *leaderboard.Service
	Broadcaster *wssvc.Broadcaster
	Health      *health.HealthChecker

	unsubscribe func()
}

// initializeComponents builds every service from configuration. Background loops are
// started by the caller through run.
func initializeComponents(cfg *config.Config, logger *logging.Logger) (*Components, error) {
	components := &Components{}

	// 1. Database and gateway
	logger.Info("initializing database", zap.String("type", cfg.Database.Type))
	db, err := repository.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	components.Registry = repository.NewRegistry(db)
	if err := components.Registry.Initialize(); err != nil {
		_ = components.Registry.Close()
		return nil, fmt.Errorf("failed to initialize repository registry: %w", err)
	}

	// 2. Catalog and scoring
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		_ = components.Registry.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	calc, err := scoring.NewCalculator(cfg.Scoring)
	if err != nil {
		_ = components.Registry.Close()
		return nil, fmt.Errorf("failed to create score calculator: %w", err)
	}
	logger.Info("catalog loaded",
		zap.Int("modules", cat.TotalModules()),
		zap.Int("exercises", cat.TotalExercises()),
		zap.Int("achievements", len(cat.Achievements)),
	)

	// 3. Engine
	components.EventBus = events.NewSimpleBus(eventBufferSize)
	components.Metrics = metrics.New()
	components.Engine = engine.New(cat, calc, components.Registry.Gateway,
		engine.WithBus(components.EventBus),
		engine.WithMetrics(components.Metrics),
		engine.WithLogger(logger),
	)

	// 4. Leaderboard, shared through redis when configured
	lbOpts := []leaderboard.Option{
		leaderboard.WithLogger(logger),
		leaderboard.WithMetrics(components.Metrics),
	}
	if cfg.Redis.Addr != "" {
		rdb, err := leaderboard.NewRedisClient(cfg.Redis)
		if err != nil {
			// rankings still work per instance without redis
			logger.Warn("redis unavailable, leaderboard cache disabled", zap.Error(err))
		} else {
			components.Redis = rdb
			lbOpts = append(lbOpts,
				leaderboard.WithCache(leaderboard.NewRedisCache(rdb, cfg.Redis.CacheTTL, logger)),
				leaderboard.WithNotifier(leaderboard.NewRedisNotifier(rdb, cfg.Redis.Channel, logger)),
			)
		}
	}
	components.Leaderboard = leaderboard.NewService(components.Registry.Gateway, cfg.Leaderboard, lbOpts...)
	components.unsubscribe = components.EventBus.Subscribe(components.Leaderboard)
	components.Broadcaster = wssvc.NewBroadcaster(components.Leaderboard,
		wssvc.WithLogger(logger),
		wssvc.WithMetrics(components.Metrics),
	)

	// 5. Health probes
	probes := []health.Probe{{Name: "database", Critical: true, Check: components.Registry.Gateway.Ping}}
	if components.Redis != nil {
		rdb := components.Redis
		probes = append(probes, health.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	components.Health = health.NewHealthChecker(probes...)

	return components, nil
}

// run starts the leaderboard refresh loop and, with redis, the cross-instance forwarder
func (c *Components) run(ctx context.Context, cfg *config.Config, logger *logging.Logger) {
	go c.Leaderboard.Run(ctx)

	if c.Redis == nil {
		return
	}
	notifier := leaderboard.NewRedisNotifier(c.Redis, cfg.Redis.Channel, logger)
	if err := notifier.StartForwarder(ctx, c.Leaderboard.MarkDirty); err != nil {
		logger.Warn("leaderboard change forwarding disabled", zap.Error(err))
	}
}

// shutdown stops background work and releases connections
func (c *Components) shutdown(logger *logging.Logger) {
	logger.Info("shutting down components")

	if c.Broadcaster != nil {
		c.Broadcaster.Stop()
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	if c.EventBus != nil {
		c.EventBus.Close()
		if dropped := c.EventBus.Dropped(); dropped > 0 {
			logger.Warn("progress events dropped", zap.Int64("count", dropped))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}
	if c.Registry != nil {
		if err := c.Registry.Close(); err != nil {
			logger.Warn("error closing registry", zap.Error(err))
		}
	}
}
