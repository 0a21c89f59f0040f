package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

type DisputeCoordinatorImpl struct {
	db            persistence.TxRunner
	escrowRepo    escrow.Repository
	applier       MovementApplier
	outboxManager OutboxManager
	policy        retry.Policy
	now           func() time.Time
	logger        *slog.Logger
}

func NewDisputeCoordinator(
	db persistence.TxRunner,
	escrowRepo escrow.Repository,
	applier MovementApplier,
	outboxManager OutboxManager,
	policy retry.Policy,
	logger *slog.Logger,
) *DisputeCoordinatorImpl {
	return &DisputeCoordinatorImpl{
		db:            db,
		escrowRepo:    escrowRepo,
		applier:       applier,
		outboxManager: outboxManager,
		policy:        policy,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// ResolveDispute pays out a disputed escrow according to the resolver's split.
// The split is validated before locking and again against the locked row.
func (c *DisputeCoordinatorImpl) ResolveDispute(ctx context.Context, escrowID uuid.UUID, resolution escrow.Resolution, actor shared.Actor) (*escrow.Escrow, error) {
	logger := requestLogger(ctx, c.logger)

	if !actor.CanResolveDisputes() {
		return nil, shared.ErrForbidden{Action: "resolve dispute"}
	}
	resolution.ResolverID = actor.ID

	current, err := c.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if err := resolution.Validate(current); err != nil {
		logger.Info("Rejected dispute resolution", "escrow_id", escrowID.String(), "error", err)
		return nil, err
	}

	var result *escrow.Escrow
	err = transact(ctx, c.db, c.policy, logger, "resolve_dispute", func(tx pgx.Tx) error {
		escrowRepoTx := c.escrowRepo.WithTx(tx)
		e, err := escrowRepoTx.LockForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}

		now := c.now()
		from := e.Status
		if err := e.Resolve(resolution, now); err != nil {
			return err
		}

		buyerShare := resolution.ShareFor(e.BuyerID)
		sellerShare := resolution.ShareFor(e.SellerID)
		if _, err := c.applier.ApplyMovements(ctx, tx, payoutBatch(e, buyerShare, sellerShare)); err != nil {
			return err
		}
		if err := escrowRepoTx.UpdateTransition(ctx, e, from); err != nil {
			return err
		}
		if err := c.outboxManager.Enqueue(ctx, tx, escrowEvent(ctx, e, shared.EventEscrowResolved, actor, buyerShare, sellerShare, now)); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(escrow.StatusResolved)).Inc()
	logger.Info("Dispute resolved",
		"escrow_id", escrowID.String(),
		"resolver_id", actor.ID.String(),
		"winner", result.Resolution.Winner(result),
	)
	return result, nil
}

// payoutBatch empties custody for the escrow into the buyer and seller shares. Zero shares are omitted.
func payoutBatch(e *escrow.Escrow, buyerShare, sellerShare int64) wallet.Batch {
	movements := []wallet.MovementRequest{
		{AccountID: wallet.CustodyAccountID(e.Currency), Amount: -e.Amount, Reason: wallet.ReasonEscrowRelease, ReferenceType: wallet.ReferenceEscrow, ReferenceID: e.ID},
	}
	if buyerShare > 0 {
		movements = append(movements, wallet.MovementRequest{
			AccountID: e.BuyerID, Amount: buyerShare, Reason: wallet.ReasonRefundCredit, ReferenceType: wallet.ReferenceEscrow, ReferenceID: e.ID,
		})
	}
	if sellerShare > 0 {
		movements = append(movements, wallet.MovementRequest{
			AccountID: e.SellerID, Amount: sellerShare, Reason: wallet.ReasonSaleCredit, ReferenceType: wallet.ReferenceEscrow, ReferenceID: e.ID,
		})
	}
	return wallet.Batch{Movements: movements, Balanced: true, Currency: e.Currency}
}

var _ DisputeCoordinator = (*DisputeCoordinatorImpl)(nil)
