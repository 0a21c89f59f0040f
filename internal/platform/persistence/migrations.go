package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// RequiredSchemaVersion is the first migration that carries the append-only
// wallet_movements trigger, the non-negative balance check and wallet_corrections.
const RequiredSchemaVersion uint = 2

// RunMigrations brings the ledger schema up to date and returns the applied version.
// migrationsPath may be a plain directory or a file:// URL.
func RunMigrations(databaseURL string, migrationsPath string) (uint, error) {
	if migrationsPath == "" {
		return 0, errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return 0, errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(migrationSourceURL(migrationsPath), databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err := checkSchemaVersion(version, dirty, err); err != nil {
		return version, err
	}
	return version, nil
}

func migrationSourceURL(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

// checkSchemaVersion refuses to serve money movements on a half-applied or outdated schema
func checkSchemaVersion(version uint, dirty bool, err error) error {
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return errors.New("ledger schema has no applied migrations")
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return fmt.Errorf("ledger schema is dirty at version %d, fix it manually before starting", version)
	case version < RequiredSchemaVersion:
		return fmt.Errorf("ledger schema version %d is older than required %d", version, RequiredSchemaVersion)
	}
	return nil
}
