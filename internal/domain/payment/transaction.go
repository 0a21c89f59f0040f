// Package payment models buyer payments and the verified confirmations the gateway sends for them.
package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrSameParty        = errors.New("buyer and seller must differ")
	ErrMissingExternal  = errors.New("external reference is required")
	ErrStatusFinal      = errors.New("transaction status is final")
	ErrCurrencyMismatch = errors.New("currency does not match the party's wallet")
)

// TransactionStatus defines payment states
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// IsFinal reports whether the status is immutable
func (s TransactionStatus) IsFinal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// Transaction is a buyer's attempt to pay for a product
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	SellerID    uuid.UUID         `json:"seller_id"`
	ProductID   uuid.UUID         `json:"product_id"`
	Amount      int64             `json:"amount"` // Expected amount in minor units
	Currency    string            `json:"currency"`
	ExternalRef string            `json:"external_ref"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewTransaction starts checkout for a product
func NewTransaction(buyerID, sellerID, productID uuid.UUID, amount int64, currency, externalRef string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if buyerID == sellerID {
		return nil, ErrSameParty
	}
	if externalRef == "" {
		return nil, ErrMissingExternal
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		SellerID:    sellerID,
		ProductID:   productID,
		Amount:      amount,
		Currency:    currency,
		ExternalRef: externalRef,
		Status:      TransactionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Complete marks a pending Transaction paid
func (t *Transaction) Complete(now time.Time) error {
	if t.Status.IsFinal() {
		return ErrStatusFinal
	}
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Fail marks a pending Transaction as failed at the gateway
func (t *Transaction) Fail(now time.Time) error {
	if t.Status.IsFinal() {
		return ErrStatusFinal
	}
	t.Status = TransactionStatusFailed
	t.UpdatedAt = now
	return nil
}

// ConfirmationStatus is the gateway-reported result of a payment
type ConfirmationStatus string

const (
	ConfirmationSucceeded ConfirmationStatus = "succeeded"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

// Confirmation is a pre-verified payment notification from the gateway
type Confirmation struct {
	ExternalRef    string             `json:"external_ref"`
	Amount         int64              `json:"amount"`
	TransactionID  uuid.UUID          `json:"transaction_id,omitempty"`
	SignatureValid bool               `json:"signature_valid"`
	Status         ConfirmationStatus `json:"status,omitempty"`
	CorrelationID  string             `json:"correlation_id,omitempty"`
}

// Succeeded treats a missing status as success, which is what confirmation events imply
func (c Confirmation) Succeeded() bool {
	return c.Status == "" || c.Status == ConfirmationSucceeded
}
