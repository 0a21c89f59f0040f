package history

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages history entries with pagination support.
// Upsert is keyed by event id and account id so replays are harmless.
type Repository interface {
	Upsert(ctx context.Context, entry *Entry) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	GetByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*Entry, error)
}
