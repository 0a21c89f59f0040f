package persistence

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
)

func TestRunMigrations_InputValidation(t *testing.T) {
	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		_, err := RunMigrations("postgres://test", "")
		assert.EqualError(t, err, "migrations path cannot be empty")
	})

	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		_, err := RunMigrations("", "migrations/postgres")
		assert.EqualError(t, err, "database URL cannot be empty")
	})
}

func TestMigrationSourceURL(t *testing.T) {
	assert.Equal(t, "file://migrations/postgres", migrationSourceURL("migrations/postgres"))
	assert.Equal(t, "file://./migrations/postgres", migrationSourceURL("file://./migrations/postgres"))
}

func TestCheckSchemaVersion(t *testing.T) {
	assert.NoError(t, checkSchemaVersion(RequiredSchemaVersion, false, nil))
	assert.NoError(t, checkSchemaVersion(RequiredSchemaVersion+1, false, nil))

	assert.ErrorContains(t, checkSchemaVersion(0, false, migrate.ErrNilVersion), "no applied migrations")
	assert.ErrorContains(t, checkSchemaVersion(1, true, nil), "dirty at version 1")
	assert.ErrorContains(t, checkSchemaVersion(0, false, nil), "older than required")
	assert.ErrorContains(t, checkSchemaVersion(1, false, nil), "older than required")
	assert.ErrorContains(t, checkSchemaVersion(0, false, errors.New("conn reset")), "conn reset")
}
