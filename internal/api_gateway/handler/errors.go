package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
)

// badRequestErrors are validation failures raised by domain constructors
var badRequestErrors = []error{
	payment.ErrInvalidAmount,
	payment.ErrSameParty,
	payment.ErrMissingExternal,
	payment.ErrCurrencyMismatch,
	moneyrequest.ErrInvalidAmount,
	moneyrequest.ErrSelfRequest,
	wallet.ErrInvalidCurrencyFormat,
	wallet.ErrNilAccountID,
}

// RespondDomainError maps a service error to the HTTP status and error code clients rely on.
// Anything unrecognised is logged and returned as a 500.
func RespondDomainError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		insufficient wallet.ErrInsufficientFunds
		invalidSplit escrow.ErrInvalidSplit
		mismatch     payment.ErrAmountMismatch
		forbidden    shared.ErrForbidden
		disabled     wallet.ErrAccountDisabled
		unbalanced   wallet.ErrUnbalancedBatch
		invalidMove  wallet.ErrInvalidMovement
		dupAccount   wallet.ErrDuplicateAccount
		dupRef       payment.ErrDuplicateExternalRef
	)

	switch {
	case errors.Is(err, shared.ErrStorageUnavailable{}):
		logger.Error("Ledger storage unavailable", "path", c.FullPath(), "error", err)
		RespondUnavailable(c)
	case errors.As(err, &insufficient):
		RespondWithError(c, http.StatusUnprocessableEntity, CodeInsufficientFunds,
			fmt.Sprintf("Insufficient funds: balance %d cannot cover %d, top up or reduce the amount", insufficient.Balance, -insufficient.Delta))
	case errors.As(err, &invalidSplit):
		RespondWithError(c, http.StatusBadRequest, CodeInvalidSplit, invalidSplit.Error())
	case errors.Is(err, escrow.ErrInvalidTransition{}), errors.Is(err, moneyrequest.ErrInvalidTransition{}):
		RespondWithError(c, http.StatusConflict, CodeInvalidTransition, err.Error())
	case errors.Is(err, wallet.ErrConcurrentModification{}):
		RespondWithError(c, http.StatusConflict, CodeConcurrentModification, "The wallet was modified concurrently, please retry")
	case errors.Is(err, escrow.ErrEscrowNotFound{}):
		RespondNotFound(c, "Escrow not found")
	case errors.Is(err, payment.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.Is(err, wallet.ErrAccountNotFound{}):
		RespondNotFound(c, "Wallet not found")
	case errors.Is(err, moneyrequest.ErrRequestNotFound{}):
		RespondNotFound(c, "Money request not found")
	case errors.As(err, &mismatch):
		RespondWithError(c, http.StatusUnprocessableEntity, CodeAmountMismatch, mismatch.Error())
	case errors.As(err, &forbidden):
		RespondForbidden(c, "Not allowed to "+forbidden.Action)
	case errors.As(err, &disabled):
		RespondWithError(c, http.StatusConflict, CodeAccountDisabled, disabled.Error())
	case errors.As(err, &dupAccount):
		RespondConflict(c, "Wallet already exists")
	case errors.As(err, &dupRef):
		RespondConflict(c, "A transaction with this external reference already exists")
	case errors.Is(err, payment.ErrStatusFinal):
		RespondConflict(c, "Transaction is already final")
	case errors.As(err, &unbalanced), errors.As(err, &invalidMove):
		RespondBadRequest(c, err.Error())
	case isBadRequest(err):
		RespondBadRequest(c, err.Error())
	default:
		logger.Error("Unhandled service error", "path", c.FullPath(), "error", err)
		RespondInternalError(c)
	}
}

func isBadRequest(err error) bool {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
