package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event emitted through the outbox
type EventType string

const (
	EventEscrowActivated      EventType = "escrow.activated"
	EventEscrowCompleted      EventType = "escrow.completed"
	EventEscrowDisputed       EventType = "escrow.disputed"
	EventEscrowResolved       EventType = "escrow.resolved"
	EventMoneyRequestAccepted EventType = "money_request.accepted"
)

// Participant is one account touched by an event and the amount it received or held
type Participant struct {
	AccountID uuid.UUID `json:"account_id"`
	Role      string    `json:"role"` // buyer, seller, payer, requester
	Amount    int64     `json:"amount"`
}

// DomainEvent is the payload published to the events topic and projected into history
type DomainEvent struct {
	EventID       uuid.UUID     `json:"event_id"`
	Type          EventType     `json:"type"`
	AggregateID   uuid.UUID     `json:"aggregate_id"`
	TransactionID uuid.UUID     `json:"transaction_id,omitempty"`
	Status        string        `json:"status"`
	Amount        int64         `json:"amount"` // Stored in minor units
	Currency      string        `json:"currency"`
	Participants  []Participant `json:"participants"`
	ActorID       uuid.UUID     `json:"actor_id,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
