package outbox_poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/marketplace-escrow-ledger/internal/domain/history"
	"github.com/marketplace-escrow-ledger/internal/domain/outbox"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/logger"
	"github.com/marketplace-escrow-ledger/internal/platform/messaging/producers"
)

// EventPublisher delivers outbox messages to the events topic and the history read model
type EventPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// ErrUndeliverable marks a message that can never be published, however often it is retried
type ErrUndeliverable struct {
	OutboxID int64
	Err      error
}

func (e ErrUndeliverable) Error() string {
	return fmt.Sprintf("outbox message %d is undeliverable: %v", e.OutboxID, e.Err)
}

func (e ErrUndeliverable) Unwrap() error {
	return e.Err
}

type eventPublisher struct {
	outboxRepo  outbox.Repository
	historyRepo history.Repository
	producer    producers.EventPublisher
	logger      *slog.Logger
}

// NewEventPublisher wires the Kafka producer and the Mongo history projection
func NewEventPublisher(
	outboxRepo outbox.Repository,
	historyRepo history.Repository,
	producer producers.EventPublisher,
	logger *slog.Logger,
) EventPublisher {
	return &eventPublisher{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		producer:    producer,
		logger:      logger,
	}
}

// Publish sends the event keyed by its aggregate, projects it into per-account history
// and marks the message processed. Each step is idempotent on the event id, so a crash
// between steps only replays work already done.
func (p *eventPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	event, err := message.GetEvent()
	if err != nil {
		return ErrUndeliverable{OutboxID: message.ID, Err: err}
	}

	log := logger.WithCorrelationID(p.logger, event.CorrelationID).With(
		"outbox_id", message.ID,
		"event_id", event.EventID.String(),
		"event_type", string(event.Type),
	)

	if err := p.producer.Publish(ctx, message.PartitionKey(), json.RawMessage(message.Payload)); err != nil {
		return fmt.Errorf("publish event %s: %w", event.EventID, err)
	}

	entries := history.EntriesFromEvent(event)
	for _, entry := range entries {
		if err := p.historyRepo.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("project event %s for account %s: %w", event.EventID, entry.AccountID, err)
		}
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		return fmt.Errorf("mark outbox %d processed: %w", message.ID, err)
	}

	log.Info("Escrow event delivered", "aggregate_id", event.AggregateID.String(), "history_entries", len(entries))
	return nil
}
