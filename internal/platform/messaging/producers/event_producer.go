package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// EventProducer publishes escrow domain events for downstream consumers
// (notifications, analytics). The hash balancer keeps one aggregate on one partition.
type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewEventProducer creates the events producer and ensures the topic exists
func NewEventProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, errors.New("kafka events topic is not configured")
	}

	writer, err := newTopicWriter(cfg, cfg.EventsTopic, &kafka.Hash{}, logger)
	if err != nil {
		return nil, fmt.Errorf("event producer: %w", err)
	}

	return &EventProducer{logger: logger, writer: writer, topic: cfg.EventsTopic}, nil
}

// Publish writes value keyed by key. []byte and json.RawMessage are sent as is,
// anything else is JSON encoded first.
func (p *EventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	payload, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", p.topic, err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		p.logger.Error("Kafka write failed", "topic", p.topic, "key", key, "error", err)
		return fmt.Errorf("publish event to %s: %w", p.topic, err)
	}
	return nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func (p *EventProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close event producer for %s: %w", p.topic, err)
	}
	p.logger.Info("Event producer closed", "topic", p.topic)
	return nil
}
