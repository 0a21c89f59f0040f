package components

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
)

// PaymentValidatorImpl implements the PaymentValidator interface
type PaymentValidatorImpl struct {
	logger *slog.Logger
}

func NewPaymentValidator(logger *slog.Logger) service.PaymentValidator {
	return &PaymentValidatorImpl{logger: logger}
}

// Validate rejects confirmations the ledger must never act on
func (v *PaymentValidatorImpl) Validate(c payment.Confirmation) error {
	if !c.SignatureValid {
		v.logger.Warn("Confirmation failed upstream signature verification", "external_ref", c.ExternalRef)
		return payment.ErrSignatureInvalid{ExternalRef: c.ExternalRef}
	}
	if c.ExternalRef == "" {
		return payment.ErrTransactionNotFound{TransactionID: c.TransactionID}
	}
	return nil
}

// Match checks the confirmation against the locked Transaction it refers to
func (v *PaymentValidatorImpl) Match(c payment.Confirmation, txn *payment.Transaction) error {
	if c.TransactionID != uuid.Nil && c.TransactionID != txn.ID {
		v.logger.Warn("Confirmation names a different transaction than its reference",
			"external_ref", c.ExternalRef,
			"reported_transaction_id", c.TransactionID.String(),
			"transaction_id", txn.ID.String(),
		)
		return payment.ErrTransactionNotFound{ExternalRef: c.ExternalRef, TransactionID: c.TransactionID}
	}
	if c.Succeeded() && c.Amount != txn.Amount {
		return payment.ErrAmountMismatch{ExternalRef: c.ExternalRef, Expected: txn.Amount, Reported: c.Amount}
	}
	return nil
}
