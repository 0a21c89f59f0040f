package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/history"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
)

// Reconciliation compares a wallet's materialized balance with the sum of its movements
type Reconciliation struct {
	AccountID   uuid.UUID
	Balance     int64
	MovementSum int64
	Currency    string
}

// Consistent reports whether the projection matches the log
func (r Reconciliation) Consistent() bool {
	return r.Balance == r.MovementSum
}

// WalletService defines the interface for wallet operations exposed over HTTP
type WalletService interface {
	// Open creates an empty wallet for a user
	// Returns ErrDuplicateAccount if the wallet already exists
	Open(ctx context.Context, accountID uuid.UUID, currency string, actor shared.Actor) (*wallet.Account, error)

	// GetWallet retrieves a wallet by its ID
	// Returns ErrAccountNotFound if the wallet doesn't exist
	GetWallet(ctx context.Context, accountID uuid.UUID) (*wallet.Account, error)

	// ListMovements returns a page of the append-only movement log and the total count
	ListMovements(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*wallet.Movement, int64, error)

	// ListHistory returns a page of the event history read model and the total count
	ListHistory(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*history.Entry, int64, error)

	Reconcile(ctx context.Context, accountID uuid.UUID) (*Reconciliation, error)

	// Withdraw debits the wallet; only the owner or an admin may withdraw
	Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, actor shared.Actor) (*wallet.Account, error)

	// Correct applies an admin correction of either sign
	Correct(ctx context.Context, accountID uuid.UUID, amount int64, note string, actor shared.Actor) (*wallet.Account, error)

	// Disable soft-disables a wallet; afterwards it takes corrections and escrow payouts only
	Disable(ctx context.Context, accountID uuid.UUID, actor shared.Actor) (*wallet.Account, error)
}
