package database

import (
	"os"
	"path/filepath"
	"testing"

	"auditflow/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory database is migrated", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		dir := t.TempDir()
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.Migrate(); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, DatabaseFileName)); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	tests := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{"sqlite database without data_dir", config.DatabaseConfig{Type: "sqlite"}},
		{"postgres database without dsn", config.DatabaseConfig{Type: "postgres"}},
		{"unknown database type", config.DatabaseConfig{Type: "unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreFromConfig(tt.cfg)
			if err == nil {
				t.Error("NewStoreFromConfig() expected error, got nil")
			}
			if got != nil {
				t.Error("NewStoreFromConfig() should return nil on error")
				got.Close()
			}
		})
	}
}
