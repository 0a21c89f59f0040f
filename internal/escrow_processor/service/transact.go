package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

// IsRetryable reports whether a unit of work lost a race and may be re-run from scratch
func IsRetryable(err error) bool {
	return errors.Is(err, wallet.ErrConcurrentModification{})
}

// transact runs fn in one storage transaction, re-running it when it loses a concurrency race
func transact(ctx context.Context, db persistence.TxRunner, policy retry.Policy, logger *slog.Logger, op string, fn func(tx pgx.Tx) error) error {
	return retry.Do(ctx, policy, IsRetryable, func(err error, attempt int) {
		metrics.ConflictRetriesTotal.WithLabelValues(op).Inc()
		logger.Warn("Retrying after concurrent modification", "operation", op, "attempt", attempt, "error", err)
	}, func() error {
		return db.ExecuteTx(ctx, fn)
	})
}

// requestLogger scopes the logger to the correlation id carried by ctx
func requestLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if correlationID := shared.CorrelationIDFromContext(ctx); correlationID != "" {
		return logger.With("correlation_id", correlationID)
	}
	return logger
}
