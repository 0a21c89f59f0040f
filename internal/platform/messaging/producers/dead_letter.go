package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// ErrDLQDisabled is returned when no dead letter topic is configured
var ErrDLQDisabled = errors.New("dead letter queue is disabled")

// DeadLetter is the envelope written to the dead letter topic
type DeadLetter struct {
	SourceTopic   string    `json:"source_topic"`
	OriginalKey   string    `json:"original_key"`
	OriginalValue string    `json:"original_value"`
	Reason        string    `json:"dlq_reason"`
	ParkedAt      time.Time `json:"parked_at"`
}

// DLQProducer parks payment confirmations the ledger will never accept:
// bad payloads, unknown references, amount mismatches and invalid signatures.
// A nil *DLQProducer is valid and reports ErrDLQDisabled.
type DLQProducer struct {
	logger      *slog.Logger
	writer      KafkaWriter
	dlqTopic    string
	sourceTopic string
}

// NewDLQProducer returns a nil producer when KAFKA_DLQ_TOPIC is empty
func NewDLQProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Warn("KAFKA_DLQ_TOPIC is empty, rejected payment confirmations will only be logged")
		return nil, nil
	}

	writer, err := newTopicWriter(cfg, cfg.DLQTopic, &kafka.LeastBytes{}, logger)
	if err != nil {
		return nil, fmt.Errorf("dlq producer: %w", err)
	}

	return &DLQProducer{
		logger:      logger,
		writer:      writer,
		dlqTopic:    cfg.DLQTopic,
		sourceTopic: cfg.PaymentTopic,
	}, nil
}

// PublishToDLQ wraps the original message with the reason it was rejected
func (p *DLQProducer) PublishToDLQ(ctx context.Context, key string, original []byte, reason string) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	value, err := json.Marshal(DeadLetter{
		SourceTopic:   p.sourceTopic,
		OriginalKey:   key,
		OriginalValue: string(original),
		Reason:        reason,
		ParkedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "dlq-reason", Value: []byte(reason)},
			{Key: "source-topic", Value: []byte(p.sourceTopic)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.dlqTopic, err)
	}

	p.logger.Warn("Payment confirmation parked in DLQ", "topic", p.dlqTopic, "key", key, "reason", reason)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close dlq producer for %s: %w", p.dlqTopic, err)
	}
	return nil
}
