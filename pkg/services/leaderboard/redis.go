package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

const cacheKeyPrefix = "leaderboard:"

// NewRedisClient connects to the configured redis and verifies it answers
func NewRedisClient(cfg config.RedisConfig) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RedisCache stores computed leaderboards as JSON with a TTL. Redis errors are logged
// and treated as cache misses.
type RedisCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logging.Logger
}

// NewRedisCache creates a cache over rdb
func NewRedisCache(rdb *goredis.Client, ttl time.Duration, log *logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl, log: log.Named("leaderboard-cache")}
}

func (c *RedisCache) Get(ctx context.Context, cohortID string) (*models.Leaderboard, bool) {
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+cohortID).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("leaderboard cache read failed", zap.String("cohort_id", cohortID), zap.Error(err))
		}
		return nil, false
	}
	var lb models.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		c.log.Warn("bad cached leaderboard", zap.String("cohort_id", cohortID), zap.Error(err))
		return nil, false
	}
	return &lb, true
}

func (c *RedisCache) Set(ctx context.Context, lb *models.Leaderboard) {
	raw, err := json.Marshal(lb)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+lb.CohortID, raw, c.ttl).Err(); err != nil {
		c.log.Warn("leaderboard cache write failed", zap.String("cohort_id", lb.CohortID), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, cohortID string) {
	if err := c.rdb.Del(ctx, cacheKeyPrefix+cohortID).Err(); err != nil {
		c.log.Warn("leaderboard cache invalidation failed", zap.String("cohort_id", cohortID), zap.Error(err))
	}
}

// RedisNotifier fans cohort changes out to every instance over a pub/sub channel
type RedisNotifier struct {
	rdb     *goredis.Client
	channel string
	log     *logging.Logger
}

// NewRedisNotifier creates a notifier on channel
func NewRedisNotifier(rdb *goredis.Client, channel string, log *logging.Logger) *RedisNotifier {
	if channel == "" {
		channel = "leaderboard"
	}
	return &RedisNotifier{rdb: rdb, channel: channel, log: log.Named("leaderboard-notifier")}
}

// Publish announces that cohortID changed
func (n *RedisNotifier) Publish(ctx context.Context, cohortID string) error {
	return n.rdb.Publish(ctx, n.channel, cohortID).Err()
}

// StartForwarder subscribes to the channel and calls onCohort for every announced
// change until ctx is done.
func (n *RedisNotifier) StartForwarder(ctx context.Context, onCohort func(cohortID string)) error {
	if onCohort == nil {
		return fmt.Errorf("onCohort callback required")
	}

	sub := n.rdb.Subscribe(ctx, n.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				if m.Payload == "" {
					n.log.Warn("empty cohort change payload")
					continue
				}
				onCohort(m.Payload)
			}
		}
	}()

	return nil
}
