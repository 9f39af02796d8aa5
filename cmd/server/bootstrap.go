package main

import (
	"go.uber.org/zap"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
)

// logConfiguration logs the loaded configuration
func logConfiguration(logger *logging.Logger, cfg *config.Config) {
	catalogSource := cfg.CatalogPath
	if catalogSource == "" {
		catalogSource = "embedded"
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.Server.Env),
		zap.String("listen", serverAddr(cfg)),
		zap.String("database_type", cfg.Database.Type),
		zap.String("database", maskDatabaseURL(databaseTarget(cfg.Database))),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.String("catalog", catalogSource),
		zap.Int("passing_score", cfg.Scoring.PassingScore),
		zap.Int("max_conflict_retries", cfg.Submission.MaxConflictRetries),
		zap.Duration("leaderboard_refresh", cfg.Leaderboard.RefreshInterval),
		zap.Bool("leaderboard_achievement_points", cfg.Leaderboard.IncludeAchievementPoints),
	)
}

func databaseTarget(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return cfg.Path
}

// maskDatabaseURL masks sensitive information in database URL
func maskDatabaseURL(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:10] + "..." + dsn[len(dsn)-10:]
	}
	return "***"
}
