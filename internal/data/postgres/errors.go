package postgres

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

// mapWriteError translates balance-affecting write failures into domain errors.
// The non-negative CHECK is the last line of defence behind the application check.
func mapWriteError(logger *slog.Logger, op string, accountID uuid.UUID, err error) error {
	switch {
	case persistence.IsCheckViolation(err, ""):
		return wallet.ErrInsufficientFunds{AccountID: accountID}
	case persistence.IsConflict(err):
		return wallet.ErrConcurrentModification{AccountID: accountID}
	}
	logger.Error("Failed to "+op, "account_id", accountID.String(), "error", err)
	return persistence.ClassifyError(op, err)
}
