package testutil

import (
	"testing"

	"auditflow/internal/database"
)

// NewTestRepository creates a new in-memory SQLite repository with every
// migration applied. It is closed when the test completes.
func NewTestRepository(t *testing.T) *database.SQLiteRepository {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	repo := database.NewSQLiteRepositoryFromDB(sqlDB)
	if err := repo.Migrate(); err != nil {
		repo.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}
