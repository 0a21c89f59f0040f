package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/history"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	ledger "github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

// WalletServiceImpl implements the WalletService interface
type WalletServiceImpl struct {
	db             persistence.TxRunner
	accountRepo    wallet.AccountRepository
	movementRepo   wallet.MovementRepository
	correctionRepo wallet.CorrectionRepository
	historyRepo    history.Repository
	applier        ledger.MovementApplier
	policy         retry.Policy
	logger         *slog.Logger
}

// NewWalletService creates a new wallet service. Balance changes go through the applier only.
func NewWalletService(
	logger *slog.Logger,
	db persistence.TxRunner,
	accountRepo wallet.AccountRepository,
	movementRepo wallet.MovementRepository,
	correctionRepo wallet.CorrectionRepository,
	historyRepo history.Repository,
	applier ledger.MovementApplier,
	policy retry.Policy,
) WalletService {
	return &WalletServiceImpl{
		db:             db,
		accountRepo:    accountRepo,
		movementRepo:   movementRepo,
		correctionRepo: correctionRepo,
		historyRepo:    historyRepo,
		applier:        applier,
		policy:         policy,
		logger:         logger,
	}
}

// Open creates an empty wallet. Users open their own wallet; admins may onboard anyone.
func (s *WalletServiceImpl) Open(ctx context.Context, accountID uuid.UUID, currency string, actor shared.Actor) (*wallet.Account, error) {
	if actor.ID != accountID && !actor.IsAdmin() {
		return nil, shared.ErrForbidden{Action: "open a wallet for another user"}
	}

	acc, err := wallet.NewAccount(accountID, currency)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("Wallet opened", "account_id", acc.ID.String(), "currency", acc.Currency)
	return acc, nil
}

// GetWallet retrieves a wallet by its ID, returns ErrAccountNotFound if not found
func (s *WalletServiceImpl) GetWallet(ctx context.Context, accountID uuid.UUID) (*wallet.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

// ListMovements retrieves a page of movements for a wallet
// Returns movements, total count, and any error
func (s *WalletServiceImpl) ListMovements(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*wallet.Movement, int64, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage

	movements, err := s.movementRepo.ListByAccount(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.movementRepo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// ListHistory retrieves a page of the event history for a wallet.
// The read model is eventually consistent with the movement log.
func (s *WalletServiceImpl) ListHistory(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*history.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.historyRepo.GetByAccountID(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.historyRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Reconcile recomputes the balance from the movement log
func (s *WalletServiceImpl) Reconcile(ctx context.Context, accountID uuid.UUID) (*Reconciliation, error) {
	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sum, err := s.movementRepo.SumByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	r := &Reconciliation{
		AccountID:   acc.ID,
		Balance:     acc.Balance,
		MovementSum: sum,
		Currency:    acc.Currency,
	}
	if !r.Consistent() {
		s.logger.Error("Wallet balance does not match movement log",
			"account_id", accountID.String(),
			"balance", r.Balance,
			"movement_sum", r.MovementSum,
		)
	}
	return r, nil
}

// Withdraw moves funds out of the ledger with a withdrawal_debit movement
func (s *WalletServiceImpl) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, actor shared.Actor) (*wallet.Account, error) {
	if actor.ID != accountID && !actor.IsAdmin() {
		return nil, shared.ErrForbidden{Action: "withdraw from another user's wallet"}
	}
	if amount <= 0 {
		return nil, wallet.ErrInvalidMovement{Reason: "withdrawal amount must be positive"}
	}

	withdrawalID := uuid.New()
	batch := wallet.Batch{Movements: []wallet.MovementRequest{{
		AccountID:     accountID,
		Amount:        -amount,
		Reason:        wallet.ReasonWithdrawalDebit,
		ReferenceType: wallet.ReferenceWithdrawal,
		ReferenceID:   withdrawalID,
	}}}
	if _, err := s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal applied",
		"account_id", accountID.String(),
		"withdrawal_id", withdrawalID.String(),
		"amount", amount,
	)
	return s.accountRepo.GetByID(ctx, accountID)
}

// Correct applies an admin adjustment. The movement and the correction record
// holding the note commit together.
func (s *WalletServiceImpl) Correct(ctx context.Context, accountID uuid.UUID, amount int64, note string, actor shared.Actor) (*wallet.Account, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden{Action: "apply wallet correction"}
	}
	correction, err := wallet.NewCorrection(accountID, amount, note, actor.ID)
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, s.policy, ledger.IsRetryable, nil, func() error {
		return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			if _, err := s.applier.ApplyMovements(ctx, tx, correction.Batch()); err != nil {
				return err
			}
			return s.correctionRepo.WithTx(tx).Create(ctx, correction)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Wallet correction applied",
		"account_id", accountID.String(),
		"correction_id", correction.ID.String(),
		"amount", amount,
		"note", correction.Note,
		"admin_id", actor.ID.String(),
	)
	return s.accountRepo.GetByID(ctx, accountID)
}

// Disable soft-disables a wallet
func (s *WalletServiceImpl) Disable(ctx context.Context, accountID uuid.UUID, actor shared.Actor) (*wallet.Account, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden{Action: "disable wallet"}
	}

	if err := s.accountRepo.SetDisabled(ctx, accountID, true); err != nil {
		return nil, err
	}

	s.logger.Warn("Wallet disabled", "account_id", accountID.String(), "admin_id", actor.ID.String())
	return s.accountRepo.GetByID(ctx, accountID)
}
