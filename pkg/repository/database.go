package repository

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
)

// Open connects to the configured database. Driver errors are translated so that
// unique violations surface as gorm.ErrDuplicatedKey on every backend.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path + "?_busy_timeout=5000&_journal_mode=WAL"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer
	if cfg.Type == "sqlite" {
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	} else {
		maxConns := cfg.MaxConnections
		if maxConns <= 0 {
			maxConns = 20
		}
		sqlDB.SetMaxIdleConns(maxConns / 2)
		sqlDB.SetMaxOpenConns(maxConns)
	}

	return db, nil
}

// Migrate creates or updates the progress tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ExerciseProgress{},
		&models.ModuleProgress{},
		&models.StudentProgress{},
		&models.AchievementRecord{},
	)
}
