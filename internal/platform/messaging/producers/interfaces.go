package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// EventPublisher sends escrow domain events to the events topic. The key is the
// aggregate id so every event of one escrow lands on the same partition in order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher parks payment confirmations the worker cannot process
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the part of kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// topicAdmin is the subset of kafka.Conn used to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

var (
	_ EventPublisher      = (*EventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
	_ topicAdmin          = (*kafka.Conn)(nil)
)
