package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

// EscrowServiceImpl implements EscrowService and EscrowActivator
type EscrowServiceImpl struct {
	db                persistence.TxRunner
	escrowRepo        escrow.Repository
	transactionRepo   payment.Repository
	accountRepo       wallet.AccountRepository
	movementRepo      wallet.MovementRepository
	applier           MovementApplier
	outboxManager     OutboxManager
	autoReleaseWindow time.Duration
	policy            retry.Policy
	now               func() time.Time
	logger            *slog.Logger
}

func NewEscrowService(
	db persistence.TxRunner,
	escrowRepo escrow.Repository,
	transactionRepo payment.Repository,
	accountRepo wallet.AccountRepository,
	movementRepo wallet.MovementRepository,
	applier MovementApplier,
	outboxManager OutboxManager,
	autoReleaseWindow time.Duration,
	policy retry.Policy,
	logger *slog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		db:                db,
		escrowRepo:        escrowRepo,
		transactionRepo:   transactionRepo,
		accountRepo:       accountRepo,
		movementRepo:      movementRepo,
		applier:           applier,
		outboxManager:     outboxManager,
		autoReleaseWindow: autoReleaseWindow,
		policy:            policy,
		now:               func() time.Time { return time.Now().UTC() },
		logger:            logger,
	}
}

// CreateEscrow opens the escrow for a Transaction, or returns the one that already exists.
// If the payment was confirmed before checkout finished, the escrow is activated immediately.
func (s *EscrowServiceImpl) CreateEscrow(ctx context.Context, transactionID uuid.UUID, actor shared.Actor) (*escrow.Escrow, error) {
	logger := requestLogger(ctx, s.logger)

	var result *escrow.Escrow
	err := transact(ctx, s.db, s.policy, logger, "create_escrow", func(tx pgx.Tx) error {
		transactionRepoTx := s.transactionRepo.WithTx(tx)
		escrowRepoTx := s.escrowRepo.WithTx(tx)

		txn, err := transactionRepoTx.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if actor.ID != txn.BuyerID && !actor.IsAdmin() {
			return shared.ErrForbidden{Action: "create escrow for another buyer's transaction"}
		}
		// serializes with payment intake for the same Transaction
		if txn, err = transactionRepoTx.LockByExternalRef(ctx, txn.ExternalRef); err != nil {
			return err
		}

		existing, err := escrowRepoTx.GetByTransactionID(ctx, txn.ID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, escrow.ErrEscrowNotFound{}) {
			return err
		}

		if txn.Status == payment.TransactionStatusFailed {
			return fmt.Errorf("cannot open escrow for transaction %s: %w", txn.ID, payment.ErrStatusFinal)
		}

		e := escrow.New(txn.ID, txn.BuyerID, txn.SellerID, txn.ProductID, txn.Amount, txn.Currency)
		if err := escrowRepoTx.Create(ctx, e); err != nil {
			return err
		}
		logger.Info("Escrow created", "escrow_id", e.ID.String(), "transaction_id", txn.ID.String())

		if txn.Status == payment.TransactionStatusCompleted {
			if err := s.activate(ctx, tx, e); err != nil {
				return err
			}
		}
		result = e
		return nil
	})
	if errors.Is(err, escrow.ErrDuplicateEscrow{TransactionID: transactionID}) {
		// lost the race to a concurrent create or payment confirmation
		return s.escrowRepo.GetByTransactionID(ctx, transactionID)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ActivateForTransaction gets or creates the escrow of a paid Transaction and activates it.
// The bool reports whether this call performed the activation.
func (s *EscrowServiceImpl) ActivateForTransaction(ctx context.Context, tx pgx.Tx, txn *payment.Transaction) (*escrow.Escrow, bool, error) {
	escrowRepoTx := s.escrowRepo.WithTx(tx)

	e, err := escrowRepoTx.GetByTransactionID(ctx, txn.ID)
	switch {
	case errors.Is(err, escrow.ErrEscrowNotFound{}):
		e = escrow.New(txn.ID, txn.BuyerID, txn.SellerID, txn.ProductID, txn.Amount, txn.Currency)
		if err := escrowRepoTx.Create(ctx, e); err != nil {
			return nil, false, err
		}
	case err != nil:
		return nil, false, err
	}

	if e.Status != escrow.StatusPending {
		return e, false, nil
	}
	if e, err = escrowRepoTx.LockForUpdate(ctx, e.ID); err != nil {
		return nil, false, err
	}
	if e.Status != escrow.StatusPending {
		return e, false, nil
	}
	if err := s.activate(ctx, tx, e); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// activate moves the paid amount into custody and starts the auto-release clock
func (s *EscrowServiceImpl) activate(ctx context.Context, tx pgx.Tx, e *escrow.Escrow) error {
	custody, err := s.accountRepo.WithTx(tx).EnsureCustody(ctx, e.Currency)
	if err != nil {
		return err
	}

	now := s.now()
	from := e.Status
	if err := e.Activate(now, s.autoReleaseWindow); err != nil {
		return err
	}

	batch := wallet.Batch{
		Currency: e.Currency,
		Movements: []wallet.MovementRequest{
			{AccountID: custody.ID, Amount: e.Amount, Reason: wallet.ReasonEscrowHold, ReferenceType: wallet.ReferenceEscrow, ReferenceID: e.ID},
		},
	}
	if _, err := s.applier.ApplyMovements(ctx, tx, batch); err != nil {
		return err
	}
	return s.commitTransition(ctx, tx, e, from, escrowEvent(ctx, e, shared.EventEscrowActivated, shared.SystemActor, e.Amount, 0, now))
}

// Confirm releases an active escrow to the seller at the buyer's request
func (s *EscrowServiceImpl) Confirm(ctx context.Context, escrowID uuid.UUID, actor shared.Actor) (*escrow.Escrow, error) {
	logger := requestLogger(ctx, s.logger)

	var result *escrow.Escrow
	err := transact(ctx, s.db, s.policy, logger, "confirm_escrow", func(tx pgx.Tx) error {
		e, err := s.escrowRepo.WithTx(tx).LockForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if actor.ID != e.BuyerID && !actor.IsAdmin() {
			return shared.ErrForbidden{Action: "confirm escrow"}
		}
		if err := s.release(ctx, tx, e, actor, s.now()); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		logger.Warn("Escrow confirmation failed", "escrow_id", escrowID.String(), "error", err)
		return nil, err
	}
	logger.Info("Escrow confirmed", "escrow_id", escrowID.String(), "seller_id", result.SellerID.String())
	return result, nil
}

// AutoRelease completes an active escrow whose deadline has passed. The deadline is
// re-checked under the row lock, so a dispute or confirm that committed first wins.
func (s *EscrowServiceImpl) AutoRelease(ctx context.Context, escrowID uuid.UUID, now time.Time) (*escrow.Escrow, error) {
	logger := requestLogger(ctx, s.logger)

	var result *escrow.Escrow
	err := transact(ctx, s.db, s.policy, logger, "auto_release", func(tx pgx.Tx) error {
		e, err := s.escrowRepo.WithTx(tx).LockForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if !e.DueForRelease(now) {
			return escrow.ErrInvalidTransition{EscrowID: e.ID, From: e.Status, To: escrow.StatusCompleted}
		}
		if err := s.release(ctx, tx, e, shared.SystemActor, now); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Escrow auto-released", "escrow_id", escrowID.String())
	return result, nil
}

// release pays the held amount to the seller
func (s *EscrowServiceImpl) release(ctx context.Context, tx pgx.Tx, e *escrow.Escrow, actor shared.Actor, now time.Time) error {
	from := e.Status
	if err := e.Complete(now); err != nil {
		return err
	}

	batch := wallet.Batch{
		Balanced: true,
		Currency: e.Currency,
		Movements: []wallet.MovementRequest{
			{AccountID: wallet.CustodyAccountID(e.Currency), Amount: -e.Amount, Reason: wallet.ReasonEscrowRelease, ReferenceType: wallet.ReferenceEscrow, ReferenceID: e.ID},
			{AccountID: e.SellerID, Amount: e.Amount, Reason: wallet.ReasonSaleCredit, ReferenceType: wallet.ReferenceEscrow, ReferenceID: e.ID},
		},
	}
	if _, err := s.applier.ApplyMovements(ctx, tx, batch); err != nil {
		return err
	}
	return s.commitTransition(ctx, tx, e, from, escrowEvent(ctx, e, shared.EventEscrowCompleted, actor, 0, e.Amount, now))
}

// OpenDispute freezes an active escrow. No funds move.
func (s *EscrowServiceImpl) OpenDispute(ctx context.Context, escrowID uuid.UUID, actor shared.Actor, reason string, evidenceRefs []string) (*escrow.Escrow, error) {
	logger := requestLogger(ctx, s.logger)

	var result *escrow.Escrow
	err := transact(ctx, s.db, s.policy, logger, "open_dispute", func(tx pgx.Tx) error {
		e, err := s.escrowRepo.WithTx(tx).LockForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if !e.IsParty(actor.ID) && !actor.IsAdmin() {
			return shared.ErrForbidden{Action: "dispute escrow"}
		}

		now := s.now()
		from := e.Status
		if err := e.OpenDispute(actor.ID, reason, evidenceRefs, now); err != nil {
			return err
		}
		if err := s.commitTransition(ctx, tx, e, from, escrowEvent(ctx, e, shared.EventEscrowDisputed, actor, 0, 0, now)); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Escrow disputed", "escrow_id", escrowID.String(), "opened_by", actor.ID.String())
	return result, nil
}

// commitTransition writes the status change guarded by its prior status, then the event
func (s *EscrowServiceImpl) commitTransition(ctx context.Context, tx pgx.Tx, e *escrow.Escrow, from escrow.Status, event *shared.DomainEvent) error {
	if err := s.escrowRepo.WithTx(tx).UpdateTransition(ctx, e, from); err != nil {
		return err
	}
	if err := s.outboxManager.Enqueue(ctx, tx, event); err != nil {
		return err
	}
	metrics.EscrowTransitionsTotal.WithLabelValues(string(e.Status)).Inc()
	return nil
}

func (s *EscrowServiceImpl) Get(ctx context.Context, escrowID uuid.UUID) (*escrow.Escrow, error) {
	return s.escrowRepo.GetByID(ctx, escrowID)
}

// ListMovements returns every wallet movement that references the escrow
func (s *EscrowServiceImpl) ListMovements(ctx context.Context, escrowID uuid.UUID) ([]*wallet.Movement, error) {
	if _, err := s.escrowRepo.GetByID(ctx, escrowID); err != nil {
		return nil, err
	}
	return s.movementRepo.ListByReference(ctx, escrowID)
}

var (
	_ EscrowService   = (*EscrowServiceImpl)(nil)
	_ EscrowActivator = (*EscrowServiceImpl)(nil)
)
