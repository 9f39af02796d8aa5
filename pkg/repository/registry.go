// Package repository provides the persistence gateway behind the progress engine
package repository

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Registry owns the database connection and the gateway built on it
type Registry struct {
	Gateway ProgressGateway

	// Database connection
	db *gorm.DB

	mu sync.RWMutex
}

// NewRegistry creates a new repository registry
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		db: db,
	}
}

// Initialize migrates the schema and builds the gateway
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := Migrate(r.db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	r.Gateway = NewGormGateway(r.db)

	return nil
}

// GetDB returns the database connection
func (r *Registry) GetDB() *gorm.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}

// Close closes the registry and all resources
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database connection: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
