package database

import (
	"fmt"
	"os"
	"path/filepath"

	"auditflow/internal/compliance"
	"auditflow/internal/config"
)

// Store is a compliance.Repository whose schema can be migrated and checked.
type Store interface {
	compliance.Repository
	Migrate() error
	CheckMigrations() error

	// Rollback reverts the last steps migrations.
	Rollback(steps int) error
}

var (
	_ Store = (*SQLiteRepository)(nil)
	_ Store = (*PostgresRepository)(nil)
)

// DatabaseFileName is the SQLite file created under DataDir.
const DatabaseFileName = "auditflow.db"

// NewStoreFromConfig creates a Store based on the database config type.
// In-memory databases are migrated immediately since they start empty.
func NewStoreFromConfig(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteRepository(filepath.Join(cfg.DataDir, DatabaseFileName))
	case "memory":
		repo, err := NewSQLiteRepository(":memory:")
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(); err != nil {
			repo.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return repo, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres database")
		}
		return NewPostgresRepository(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
