package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 10 * time.Second

// newTopicWriter provisions topic if needed and returns a synchronous writer for it.
// Writes wait for every in-sync replica so a returned nil means the broker has the message.
func newTopicWriter(cfg *config.KafkaConfig, topic string, balancer kafka.Balancer, log *slog.Logger) (*kafka.Writer, error) {
	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("dial kafka %s: %w", cfg.Brokers, err)
	}
	defer conn.Close()

	if err := createKafkaTopicIfNotExists(conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, log); err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     balancer,
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: writeTimeout,
	}, nil
}

// createKafkaTopicIfNotExists creates the topic unless its partitions can be read.
// Partition reads are retried briefly since a broker that just started may not answer yet.
func createKafkaTopicIfNotExists(conn topicAdmin, topic string, numPartitions, replicationFactor int, log *slog.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	var partitions []kafka.Partition
	err := backoff.RetryNotify(func() error {
		var readErr error
		partitions, readErr = conn.ReadPartitions(topic)
		return readErr
	}, backoff.WithMaxRetries(b, 4), func(err error, next time.Duration) {
		log.Warn("Kafka topic metadata unavailable, retrying", "topic", topic, "retry_in", next, "error", err)
	})
	if err == nil && len(partitions) > 0 {
		log.Debug("Kafka topic present", "topic", topic, "partitions", len(partitions))
		return nil
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	if err := conn.CreateTopics(topicConfig); err != nil {
		return fmt.Errorf("create kafka topic %s: %w", topic, err)
	}
	log.Info("Created Kafka topic", "topic", topic, "partitions", topicConfig.NumPartitions)
	return nil
}
