// Package migrations holds the SQLite schema of auditflow as embedded
// golang-migrate files.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// ErrNoVersion is returned by Check for a database that was never migrated.
var ErrNoVersion = errors.New("database has no schema version (needs migration)")

// Status describes where a database stands relative to the embedded files.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// UpToDate reports whether the schema matches the binary.
func (s Status) UpToDate() bool {
	return !s.Dirty && s.Current == s.Latest
}

// GetStatus reads the schema version of db and the latest embedded version.
// A never-migrated database reports Current 0.
func GetStatus(db *sql.DB) (Status, error) {
	m, err := newMigrate(db)
	if err != nil {
		return Status{}, err
	}
	// m is not closed: closing it would close db, which the caller owns.

	var st Status
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return Status{}, fmt.Errorf("reading schema version: %w", err)
	default:
		st.Current, st.Dirty = version, dirty
	}

	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return Status{}, fmt.Errorf("reading migration files: %w", err)
	}
	defer src.Close()

	st.Latest, err = latestVersion(src)
	if err != nil {
		return Status{}, fmt.Errorf("finding latest migration: %w", err)
	}
	return st, nil
}

// Check returns nil when db is at the latest schema version.
func Check(db *sql.DB) error {
	st, err := GetStatus(db)
	if err != nil {
		return err
	}
	switch {
	case st.Current == 0 && !st.Dirty:
		return ErrNoVersion
	case st.Dirty:
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", st.Current)
	case st.Current < st.Latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			st.Current, st.Latest, st.Latest-st.Current)
	case st.Current > st.Latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			st.Current, st.Latest)
	}
	return nil
}

// Up applies every pending migration. An up-to-date database is not an error.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Down rolls back steps migrations.
func Down(db *sql.DB, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("rolling back %d migrations: %w", steps, err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("creating source driver: %w", err)
	}

	drv, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

// latestVersion walks the source to its last migration.
func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
