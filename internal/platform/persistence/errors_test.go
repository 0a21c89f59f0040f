package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"SerializationFailure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"Deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"LockNotAvailable", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.LockNotAvailable}), true},
		{"UniqueViolation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"PlainError", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConflict(tt.err))
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(&pgconn.PgError{Code: pgerrcode.ConnectionFailure}))
	assert.True(t, IsUnavailable(&pgconn.PgError{Code: pgerrcode.AdminShutdown}))
	assert.False(t, IsUnavailable(&pgconn.PgError{Code: pgerrcode.CheckViolation}))
	assert.False(t, IsUnavailable(errors.New("no rows")))
	assert.False(t, IsUnavailable(nil))
}

func TestIsCheckViolation(t *testing.T) {
	err := &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "accounts_balance_non_negative"}

	assert.True(t, IsCheckViolation(err, ""))
	assert.True(t, IsCheckViolation(err, "accounts_balance_non_negative"))
	assert.False(t, IsCheckViolation(err, "other"))
	assert.False(t, IsCheckViolation(&pgconn.PgError{Code: pgerrcode.UniqueViolation}, ""))
}

func TestClassifyError(t *testing.T) {
	t.Run("Unavailable", func(t *testing.T) {
		err := ClassifyError("lock account", &pgconn.PgError{Code: pgerrcode.ConnectionException})
		assert.ErrorIs(t, err, shared.ErrStorageUnavailable{})
	})

	t.Run("Other", func(t *testing.T) {
		cause := errors.New("syntax error")
		err := ClassifyError("lock account", cause)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, shared.ErrStorageUnavailable{})
		assert.Contains(t, err.Error(), "failed to lock account")
	})

	t.Run("Nil", func(t *testing.T) {
		assert.NoError(t, ClassifyError("noop", nil))
	})
}
