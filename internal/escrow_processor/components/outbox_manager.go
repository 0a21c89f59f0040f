package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/outbox"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, logger *slog.Logger) service.OutboxManager {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Enqueue stores the event in the outbox within tx. The poller publishes it after commit.
func (m *OutboxManagerImpl) Enqueue(ctx context.Context, tx pgx.Tx, event *shared.DomainEvent) error {
	if event.CorrelationID == "" {
		event.CorrelationID = shared.CorrelationIDFromContext(ctx)
	}
	logger := m.logger
	if event.CorrelationID != "" {
		logger = m.logger.With("correlation_id", event.CorrelationID)
	}

	message, err := outbox.NewMessage(event)
	if err != nil {
		logger.Error("Failed to marshal outbox payload",
			"event_type", string(event.Type),
			"aggregate_id", event.AggregateID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for %s: %w", event.Type, err)
	}

	if err = m.outboxRepo.WithTx(tx).Create(ctx, message); err != nil {
		logger.Error("Failed to create outbox message",
			"event_type", string(event.Type),
			"aggregate_id", event.AggregateID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for %s %s: %w", event.Type, event.AggregateID, err)
	}

	logger.Info("Outbox message created",
		"event_type", string(event.Type),
		"aggregate_id", event.AggregateID.String(),
		"outbox_id", message.ID,
	)
	return nil
}
