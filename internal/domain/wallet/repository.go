package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines wallet account persistence operations.
// Balances are written only through UpdateBalance, by the accounting unit.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// EnsureCustody creates the custody pseudo-account for a currency if it is missing
	EnsureCustody(ctx context.Context, currency string) (*Account, error)

	// LockForUpdate acquires a row lock for the rest of the transaction
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// UpdateBalance writes a new materialized balance guarded by the version read under lock
	UpdateBalance(ctx context.Context, id uuid.UUID, balance int64, version int) error
	SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error
	WithTx(tx pgx.Tx) AccountRepository
}

// MovementRepository appends and reads wallet movements. There is no update or delete.
type MovementRepository interface {
	Create(ctx context.Context, movement *Movement) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Movement, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	ListByReference(ctx context.Context, referenceID uuid.UUID) ([]*Movement, error)
	WithTx(tx pgx.Tx) MovementRepository
}

// ErrInsufficientFunds indicates a movement set would drive an account negative
type ErrInsufficientFunds struct {
	AccountID uuid.UUID
	Balance   int64
	Delta     int64
}

func (e ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: balance %d, requested change %d", e.AccountID, e.Balance, e.Delta)
}

// Is matches any ErrInsufficientFunds when the target carries no account id
func (e ErrInsufficientFunds) Is(target error) bool {
	t, ok := target.(ErrInsufficientFunds)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}

// ErrConcurrentModification indicates optimistic lock failure or a serialization conflict
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	if e.AccountID == uuid.Nil {
		return "concurrent modification detected"
	}
	return "concurrent modification detected for account: " + e.AccountID.String()
}

func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}

// ErrAccountDisabled indicates a soft-disabled wallet received a debit or a transfer
type ErrAccountDisabled struct {
	AccountID uuid.UUID
}

func (e ErrAccountDisabled) Error() string {
	return "account is disabled: " + e.AccountID.String()
}

// ErrDuplicateAccount indicates the wallet already exists
type ErrDuplicateAccount struct {
	AccountID uuid.UUID
}

func (e ErrDuplicateAccount) Error() string {
	return "account already exists: " + e.AccountID.String()
}

// ErrUnbalancedBatch indicates a transfer batch whose amounts do not net to zero
type ErrUnbalancedBatch struct {
	Net int64
}

func (e ErrUnbalancedBatch) Error() string {
	return fmt.Sprintf("movement batch is unbalanced by %d", e.Net)
}

// ErrInvalidMovement indicates a malformed movement request
type ErrInvalidMovement struct {
	Reason string
}

func (e ErrInvalidMovement) Error() string {
	return "invalid movement: " + e.Reason
}
