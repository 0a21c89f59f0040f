package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

// MovementApplierImpl implements the MovementApplier interface
type MovementApplierImpl struct {
	db           persistence.TxRunner
	accountRepo  wallet.AccountRepository
	movementRepo wallet.MovementRepository
	policy       retry.Policy
	logger       *slog.Logger
}

// NewMovementApplier creates a new MovementApplierImpl
func NewMovementApplier(
	db persistence.TxRunner,
	accountRepo wallet.AccountRepository,
	movementRepo wallet.MovementRepository,
	policy retry.Policy,
	logger *slog.Logger,
) service.MovementApplier {
	return &MovementApplierImpl{
		db:           db,
		accountRepo:  accountRepo,
		movementRepo: movementRepo,
		policy:       policy,
		logger:       logger,
	}
}

// ApplyMovements locks every affected account in id order, projects the new balances,
// appends the movements and writes the balances back under a version guard.
// Nothing is written unless every account accepts its share of the batch.
func (a *MovementApplierImpl) ApplyMovements(ctx context.Context, tx pgx.Tx, batch wallet.Batch) (wallet.AccountSet, error) {
	started := time.Now()
	logger := a.logger
	if correlationID := shared.CorrelationIDFromContext(ctx); correlationID != "" {
		logger = a.logger.With("correlation_id", correlationID)
	}

	if err := batch.Validate(); err != nil {
		logger.Warn("Rejected movement batch", "error", err)
		return nil, err
	}

	accountRepoTx := a.accountRepo.WithTx(tx)
	movementRepoTx := a.movementRepo.WithTx(tx)

	order := batch.LockOrder()
	locked := make(map[uuid.UUID]*wallet.Account, len(order))
	for _, id := range order {
		acc, err := accountRepoTx.LockForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, wallet.ErrAccountNotFound{}) {
				logger.Warn("Account not found for movement", "account_id", id.String())
				return nil, err
			}
			return nil, fmt.Errorf("failed to lock account %s: %w", id, err)
		}
		locked[id] = acc
	}

	requests := make(map[uuid.UUID][]wallet.MovementRequest, len(order))
	for _, m := range batch.Movements {
		requests[m.AccountID] = append(requests[m.AccountID], m)
	}

	now := time.Now().UTC()
	type pending struct {
		account   *wallet.Account
		movements []*wallet.Movement
		balance   int64
	}
	plan := make([]pending, 0, len(order))
	for _, id := range order {
		acc := locked[id]
		if batch.Currency != "" && acc.Currency != batch.Currency {
			return nil, wallet.ErrInvalidMovement{
				Reason: fmt.Sprintf("account %s holds %s, batch is in %s", id, acc.Currency, batch.Currency),
			}
		}
		if acc.Disabled && !batch.AllowedOnDisabled(id) {
			logger.Warn("Movement rejected on disabled account", "account_id", id.String())
			return nil, wallet.ErrAccountDisabled{AccountID: id}
		}
		movements, balance, err := wallet.Project(acc, requests[id], now)
		if err != nil {
			logger.Info("Movement batch rejected", "account_id", id.String(), "balance", acc.Balance, "error", err)
			return nil, err
		}
		plan = append(plan, pending{account: acc, movements: movements, balance: balance})
	}

	affected := make(wallet.AccountSet, len(plan))
	for _, p := range plan {
		for _, m := range p.movements {
			if err := movementRepoTx.Create(ctx, m); err != nil {
				return nil, fmt.Errorf("failed to append movement for account %s: %w", p.account.ID, err)
			}
		}
		if err := accountRepoTx.UpdateBalance(ctx, p.account.ID, p.balance, p.account.Version); err != nil {
			if errors.Is(err, wallet.ErrConcurrentModification{}) {
				logger.Warn("Concurrent modification on balance update", "account_id", p.account.ID.String())
			}
			return nil, err
		}
		affected[p.account.ID] = struct{}{}
	}

	for _, m := range batch.Movements {
		metrics.MovementsAppliedTotal.WithLabelValues(string(m.Reason)).Inc()
	}
	metrics.MovementBatchDuration.Observe(time.Since(started).Seconds())

	logger.Debug("Movement batch applied", "accounts", len(affected), "movements", len(batch.Movements))
	return affected, nil
}

// Apply runs the batch in its own transaction. Concurrent modifications are retried
// with jittered backoff; every other error is returned on the first attempt.
func (a *MovementApplierImpl) Apply(ctx context.Context, batch wallet.Batch) (wallet.AccountSet, error) {
	var affected wallet.AccountSet
	err := retry.Do(ctx, a.policy, service.IsRetryable, func(err error, attempt int) {
		metrics.ConflictRetriesTotal.WithLabelValues("apply_movements").Inc()
		a.logger.Warn("Retrying movement batch after conflict", "attempt", attempt, "error", err)
	}, func() error {
		return a.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			var applyErr error
			affected, applyErr = a.ApplyMovements(ctx, tx, batch)
			return applyErr
		})
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}
