package persistence

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
)

// pgCode extracts the SQLSTATE from a PostgreSQL error, or "" for any other error
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsConflict reports serialization failures, deadlocks and lock timeouts.
// Callers may retry the whole transaction.
func IsConflict(err error) bool {
	switch pgCode(err) {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return true
	}
	return false
}

// IsUnavailable reports connection loss, server shutdown and network failures
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	code := pgCode(err)
	if code != "" {
		return pgerrcode.IsConnectionException(code) ||
			code == pgerrcode.AdminShutdown ||
			code == pgerrcode.CrashShutdown ||
			code == pgerrcode.CannotConnectNow ||
			code == pgerrcode.TooManyConnections
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

// IsUniqueViolation reports a duplicate key error
func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgerrcode.UniqueViolation
}

// IsCheckViolation reports a CHECK constraint failure, optionally on a named constraint
func IsCheckViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.CheckViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// ClassifyError wraps infrastructure failures as shared.ErrStorageUnavailable and
// everything else with the operation name
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) {
		return shared.ErrStorageUnavailable{Op: op, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
