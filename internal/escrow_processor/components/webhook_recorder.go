package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
)

// WebhookRecorderImpl writes one audit record per confirmation delivery
type WebhookRecorderImpl struct {
	outcomeRepo payment.OutcomeRepository
	timeout     time.Duration
	logger      *slog.Logger
}

func NewWebhookRecorder(outcomeRepo payment.OutcomeRepository, timeout time.Duration, logger *slog.Logger) service.OutcomeRecorder {
	return &WebhookRecorderImpl{
		outcomeRepo: outcomeRepo,
		timeout:     timeout,
		logger:      logger,
	}
}

// Record stores the outcome. A failed write is logged and swallowed so the
// delivery result never depends on the audit store.
func (r *WebhookRecorderImpl) Record(ctx context.Context, outcome *payment.WebhookOutcome) {
	metrics.WebhookOutcomesTotal.WithLabelValues(string(outcome.Outcome), string(outcome.Source)).Inc()

	logger := r.logger
	if outcome.CorrelationID != "" {
		logger = r.logger.With("correlation_id", outcome.CorrelationID)
	}
	if outcome.NeedsReview {
		logger.Warn("Payment confirmation flagged for manual review",
			"external_ref", outcome.ExternalRef,
			"outcome", string(outcome.Outcome),
			"detail", outcome.Detail,
		)
	}

	if r.outcomeRepo == nil {
		return
	}

	recordCtx := context.WithoutCancel(ctx)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(recordCtx, r.timeout)
		defer cancel()
	}

	if err := r.outcomeRepo.Record(recordCtx, outcome); err != nil {
		logger.Error("Failed to record webhook outcome",
			"external_ref", outcome.ExternalRef,
			"outcome", string(outcome.Outcome),
			"error", err,
		)
	}
}
