// Package history is the per-account read model projected from published domain events.
package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
)

// Entry is one account's view of a domain event
type Entry struct {
	EventID       uuid.UUID        `json:"event_id" bson:"event_id"`
	AccountID     uuid.UUID        `json:"account_id" bson:"account_id"`
	AggregateID   uuid.UUID        `json:"aggregate_id" bson:"aggregate_id"`
	TransactionID uuid.UUID        `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	EventType     shared.EventType `json:"event_type" bson:"event_type"`
	Role          string           `json:"role" bson:"role"`
	Amount        int64            `json:"amount" bson:"amount"` // Stored in cents/minor units
	Total         int64            `json:"total" bson:"total"`
	Currency      string           `json:"currency" bson:"currency"`
	Status        string           `json:"status" bson:"status"`
	CorrelationID string           `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at" bson:"occurred_at"`
	RecordedAt    time.Time        `json:"recorded_at" bson:"recorded_at"`
}

// EntriesFromEvent fans an event out to one entry per participant
func EntriesFromEvent(event *shared.DomainEvent) []*Entry {
	now := time.Now().UTC()
	entries := make([]*Entry, 0, len(event.Participants))
	for _, p := range event.Participants {
		entries = append(entries, &Entry{
			EventID:       event.EventID,
			AccountID:     p.AccountID,
			AggregateID:   event.AggregateID,
			TransactionID: event.TransactionID,
			EventType:     event.Type,
			Role:          p.Role,
			Amount:        p.Amount,
			Total:         event.Amount,
			Currency:      event.Currency,
			Status:        event.Status,
			CorrelationID: event.CorrelationID,
			OccurredAt:    event.OccurredAt,
			RecordedAt:    now,
		})
	}
	return entries
}
