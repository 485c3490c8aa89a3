package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	applog "budget/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the newest migration shipped in migrations/.
const SchemaVersion uint = 2

var (
	// ErrDirtySchema means an earlier migration stopped half way. The stored
	// transactions are left alone until someone repairs the database.
	ErrDirtySchema = errors.New("budget schema is dirty")
	// ErrSchemaTooNew means the file was written by a newer build.
	ErrSchemaTooNew = errors.New("budget schema is newer than this build")
)

// MigrateSchema brings the budget database at dbPath up to SchemaVersion and
// returns the version it ended on.
func MigrateSchema(dbPath string) (uint, error) {
	// Own connection: closing the migrator closes it.
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	from, err := schemaVersion(m)
	if err != nil {
		return 0, err
	}
	if from > SchemaVersion {
		return from, fmt.Errorf("%w: found %d, expected at most %d", ErrSchemaTooNew, from, SchemaVersion)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return from, fmt.Errorf("apply migrations from version %d: %w", from, err)
	}

	to, err := schemaVersion(m)
	if err != nil {
		return from, err
	}
	if to != from {
		slog.Info("Budget schema migrated",
			applog.FieldOperation, applog.OpStartup,
			"from", from,
			"to", to,
			"path", dbPath)
	}
	return to, nil
}

// schemaVersion reports 0 for a database no migration has touched yet.
func schemaVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}
