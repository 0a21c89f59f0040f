package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages Transaction persistence
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*Transaction, error)

	// LockByExternalRef serializes concurrent deliveries of the same confirmation
	LockByExternalRef(ctx context.Context, externalRef string) (*Transaction, error)

	// UpdateStatus moves a pending Transaction to a final status
	UpdateStatus(ctx context.Context, txn *Transaction) error
	WithTx(tx pgx.Tx) Repository
}

// OutcomeRepository stores the webhook outcome audit log
type OutcomeRepository interface {
	Record(ctx context.Context, outcome *WebhookOutcome) error
	ListByExternalRef(ctx context.Context, externalRef string) ([]*WebhookOutcome, error)
}

// ErrTransactionNotFound indicates the gateway reported a reference the ledger never issued
type ErrTransactionNotFound struct {
	ExternalRef   string
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	if e.ExternalRef == "" {
		return "transaction not found: " + e.TransactionID.String()
	}
	return "transaction not found for external reference: " + e.ExternalRef
}

func (e ErrTransactionNotFound) Is(target error) bool {
	_, ok := target.(ErrTransactionNotFound)
	return ok
}

// ErrAmountMismatch indicates the reported amount differs from the expected amount
type ErrAmountMismatch struct {
	ExternalRef string
	Expected    int64
	Reported    int64
}

func (e ErrAmountMismatch) Error() string {
	return fmt.Sprintf("amount mismatch for %s: expected %d, reported %d", e.ExternalRef, e.Expected, e.Reported)
}

func (e ErrAmountMismatch) Is(target error) bool {
	_, ok := target.(ErrAmountMismatch)
	return ok
}

// ErrSignatureInvalid indicates the upstream verifier flagged the event as not authentic
type ErrSignatureInvalid struct {
	ExternalRef string
}

func (e ErrSignatureInvalid) Error() string {
	return "payment confirmation signature invalid: " + e.ExternalRef
}

// ErrDuplicateExternalRef indicates checkout was started twice with the same gateway reference
type ErrDuplicateExternalRef struct {
	ExternalRef string
}

func (e ErrDuplicateExternalRef) Error() string {
	return "transaction already exists for external reference: " + e.ExternalRef
}

// ErrRiskRejected indicates the risk hook refused the payment
type ErrRiskRejected struct {
	TransactionID uuid.UUID
	Reason        string
}

func (e ErrRiskRejected) Error() string {
	return "payment rejected by risk assessment: " + e.Reason
}
