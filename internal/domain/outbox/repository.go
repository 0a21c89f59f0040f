package outbox

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
)

// Repository stores escrow domain events until the worker has delivered them
type Repository interface {
	// Create must run in the transaction of the escrow or money request transition
	Create(ctx context.Context, message *Message) error
	// GetPending returns undelivered events oldest first
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	// ListByAggregateID is the audit trail of one escrow or money request
	ListByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*Message, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

func (e ErrMessageNotFound) Is(target error) bool {
	_, ok := target.(ErrMessageNotFound)
	return ok
}

// ErrDuplicateMessage means the event was already enqueued; the transition that
// produced it is being replayed
type ErrDuplicateMessage struct {
	EventID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.EventID.String()
}

func (e ErrDuplicateMessage) Is(target error) bool {
	_, ok := target.(ErrDuplicateMessage)
	return ok
}
