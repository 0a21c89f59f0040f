package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
	"github.com/marketplace-escrow-ledger/internal/platform/messaging/producers"
)

// PaymentEventHandler handles verified payment confirmations from Kafka
type PaymentEventHandler struct {
	intake   service.PaymentIntake
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

// NewPaymentEventHandler creates a new handler
func NewPaymentEventHandler(
	logger *slog.Logger,
	intake service.PaymentIntake,
	producer producers.DeadLetterPublisher,
) *PaymentEventHandler {
	return &PaymentEventHandler{
		intake:   intake,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage processes one confirmation. A nil return commits the offset;
// an error makes the consumer redeliver the same message.
func (h *PaymentEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var confirmation payment.Confirmation
	if err := json.Unmarshal(value, &confirmation); err != nil {
		h.logger.Error("Failed to unmarshal payment confirmation from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		h.intake.RecordUnreadable(ctx, payment.SourceKafka, "", err.Error())
		return h.deadLetter(ctx, key, value, fmt.Sprintf("unmarshal payment confirmation: %s", err.Error()))
	}

	logger := h.logger.With("external_ref", confirmation.ExternalRef)
	if confirmation.CorrelationID != "" {
		logger = logger.With("correlation_id", confirmation.CorrelationID)
	}

	logger.Info("Received payment confirmation",
		"transaction_id", confirmation.TransactionID.String(),
		"amount", confirmation.Amount,
		"status", string(confirmation.Status),
	)

	_, kind, err := h.intake.OnPaymentConfirmed(ctx, confirmation, payment.SourceKafka)
	switch {
	case err == nil:
		logger.Info("Payment confirmation handled", "outcome", string(kind))
		return nil
	case service.Rejected(kind):
		return h.deadLetter(ctx, key, value, err.Error())
	case kind == payment.OutcomeRiskRejected:
		// the Transaction was failed and the outcome recorded
		return nil
	default:
		return fmt.Errorf("handling payment confirmation %s failed: %w", confirmation.ExternalRef, err)
	}
}

// deadLetter parks a message that can never be applied. Without a DLQ the message is
// dropped after logging, since redelivering it would stall the partition.
func (h *PaymentEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string) error {
	if h.producer == nil {
		h.logger.Error("Dropping unprocessable message, no DLQ configured", "message_key", string(key), "reason", reason)
		return nil
	}

	err := h.producer.PublishToDLQ(ctx, string(key), value, reason)
	switch {
	case err == nil:
		h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
		return nil
	case errors.Is(err, producers.ErrDLQDisabled):
		h.logger.Error("Dropping unprocessable message, no DLQ configured", "message_key", string(key), "reason", reason)
		return nil
	default:
		h.logger.Error("Failed to publish message to DLQ", "dlq_error", err, "message_key", string(key))
		return fmt.Errorf("dead letter for message %s failed: %w", string(key), err)
	}
}
