package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
)

var (
	ErrMissingEventID     = errors.New("outbox event needs an event id")
	ErrMissingAggregateID = errors.New("outbox event needs an aggregate id")
)

// Message carries a domain event committed alongside the state change that produced it.
// EventID is the consumers' dedupe key; AggregateID is the Kafka partition key.
type Message struct {
	ID            int64               `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	EventType     shared.EventType    `json:"event_type"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps an escrow or money request event in a pending outbox row
func NewMessage(event *shared.DomainEvent) (*Message, error) {
	if event.EventID == uuid.Nil {
		return nil, ErrMissingEventID
	}
	if event.AggregateID == uuid.Nil {
		return nil, ErrMissingAggregateID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:     event.EventID,
		EventType:   event.Type,
		AggregateID: event.AggregateID,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// PartitionKey keeps every event of one escrow on one partition
func (m *Message) PartitionKey() string {
	return m.AggregateID.String()
}

// GetEvent extracts the domain event from the payload
func (m *Message) GetEvent() (*shared.DomainEvent, error) {
	var event shared.DomainEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
