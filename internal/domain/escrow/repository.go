package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages escrow persistence. Transitions are written with UpdateTransition,
// which only succeeds if the stored status still equals the expected prior status.
type Repository interface {
	Create(ctx context.Context, e *Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*Escrow, error)
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Escrow, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Escrow, error)
	UpdateTransition(ctx context.Context, e *Escrow, from Status) error

	// ListDueForRelease returns ids of active escrows whose deadline has passed
	ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrInvalidTransition indicates the requested transition is not legal from the current status
type ErrInvalidTransition struct {
	EscrowID uuid.UUID
	From     Status
	To       Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid escrow transition for %s: %s -> %s", e.EscrowID, e.From, e.To)
}

func (e ErrInvalidTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidTransition)
	if !ok {
		return false
	}
	if t.EscrowID == uuid.Nil {
		return true
	}
	return e.EscrowID == t.EscrowID
}

// ErrInvalidSplit indicates a resolution that does not divide the held amount exactly
type ErrInvalidSplit struct {
	EscrowID uuid.UUID
	Reason   string
}

func (e ErrInvalidSplit) Error() string {
	return "invalid split for escrow " + e.EscrowID.String() + ": " + e.Reason
}

func (e ErrInvalidSplit) Is(target error) bool {
	_, ok := target.(ErrInvalidSplit)
	return ok
}

// ErrEscrowNotFound indicates missing escrow
type ErrEscrowNotFound struct {
	EscrowID uuid.UUID
}

func (e ErrEscrowNotFound) Error() string {
	return "escrow not found: " + e.EscrowID.String()
}

func (e ErrEscrowNotFound) Is(target error) bool {
	t, ok := target.(ErrEscrowNotFound)
	if !ok {
		return false
	}
	if t.EscrowID == uuid.Nil {
		return true
	}
	return e.EscrowID == t.EscrowID
}

// ErrDuplicateEscrow indicates an escrow already exists for the Transaction
type ErrDuplicateEscrow struct {
	TransactionID uuid.UUID
}

func (e ErrDuplicateEscrow) Error() string {
	return "escrow already exists for transaction: " + e.TransactionID.String()
}
