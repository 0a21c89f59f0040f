package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/marketplace-escrow-ledger/internal/domain/outbox"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
)

// Poller drains pending outbox messages in creation order on every tick
type Poller struct {
	outboxRepo  outbox.Repository
	publisher   EventPublisher
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		logger:      logger.With("component", "outbox_poller"),
		interval:    cfg.PollingInterval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxRetryAttempts,
	}
}

// Start drains once immediately, then on every interval until ctx is cancelled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Outbox poller started",
		"interval", p.interval.String(),
		"batch_size", p.batchSize,
		"max_attempts", p.maxAttempts,
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.drain(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("Outbox drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// drain publishes one batch. A failed message stays PENDING with one more attempt
// recorded, and is parked as FAILED_TO_PUBLISH at the attempt limit or at once
// when it can never be delivered.
func (p *Poller) drain(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("fetch pending outbox messages: %w", err)
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := p.publisher.Publish(ctx, msg)
		if err == nil {
			metrics.OutboxPublishedTotal.WithLabelValues("published").Inc()
			continue
		}
		p.settleFailure(ctx, msg, err)
	}
	return nil
}

func (p *Poller) settleFailure(ctx context.Context, msg *outbox.Message, publishErr error) {
	log := p.logger.With("outbox_id", msg.ID, "event_id", msg.EventID.String(), "event_type", string(msg.EventType))

	var undeliverable ErrUndeliverable
	if errors.As(publishErr, &undeliverable) {
		log.Error("Parking undeliverable outbox message", "error", publishErr)
		p.park(ctx, log, msg)
		return
	}

	attempts := msg.Attempts + 1
	log.Warn("Outbox publish failed", "attempt", attempts, "max_attempts", p.maxAttempts, "error", publishErr)
	metrics.OutboxPublishedTotal.WithLabelValues("retry").Inc()

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		log.Error("Failed to record outbox attempt", "error", err)
		return
	}
	if attempts >= p.maxAttempts {
		log.Error("Outbox message exhausted its attempts", "attempts", attempts)
		p.park(ctx, log, msg)
	}
}

func (p *Poller) park(ctx context.Context, log *slog.Logger, msg *outbox.Message) {
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		log.Error("Failed to mark outbox message FAILED_TO_PUBLISH", "error", err)
		return
	}
	metrics.OutboxPublishedTotal.WithLabelValues("failed").Inc()
}
