// Package config loads the settings shared by the HTTP gateway and the escrow worker:
// storage connections, Kafka topics, sweep cadence, escrow timing and retry policy.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config is the resolved configuration of one binary
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Escrow      EscrowConfig
	Retry       RetryConfig
}

type ApplicationConfig struct {
	Env  string
	Name string
}

type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration // Grace period for draining in-flight requests
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig covers the escrow events topic, the payment confirmation topic and its DLQ
type KafkaConfig struct {
	Brokers           string
	EventsTopic       string // Escrow domain events published from the outbox
	PaymentTopic      string // Verified payment confirmations consumed by the worker
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Unprocessable payment confirmations
}

// PostgresConfig describes the ledger store pool
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig describes the read model store (history, webhook outcomes)
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Publish attempts before a message is marked FAILED_TO_PUBLISH
}

type WorkerPoolConfig struct {
	Size int // Concurrent sweep workers
}

// EscrowConfig contains escrow lifecycle timing
type EscrowConfig struct {
	AutoReleaseWindow time.Duration // Time after activation before funds auto-release to the seller
	SweepInterval     time.Duration
	SweepBatchSize    int
	MoneyRequestTTL   time.Duration
}

// RetryConfig bounds local retries of concurrent-modification failures
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// problems accumulates every violation so one startup failure reports them all
type problems []string

func (p *problems) require(key, value string) {
	if value == "" {
		*p = append(*p, key+" is required")
	}
}

func (p *problems) positive(key string, value int64) {
	if value <= 0 {
		*p = append(*p, key+" must be greater than 0")
	}
}

func (p *problems) positiveDuration(key string, value time.Duration) {
	p.positive(key, int64(value))
}

func (p *problems) err() error {
	if len(*p) == 0 {
		return nil
	}
	return errors.New(strings.Join(*p, ", "))
}

func (c *Config) validate() error {
	var p problems

	p.positive("SERVER_PORT", int64(c.Server.Port))
	p.positiveDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	p.positiveDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	p.positiveDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	p.positiveDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)

	p.require("KAFKA_BROKERS", c.Kafka.Brokers)
	p.require("KAFKA_EVENTS_TOPIC", c.Kafka.EventsTopic)
	p.require("KAFKA_PAYMENT_TOPIC", c.Kafka.PaymentTopic)
	p.require("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)
	p.positive("KAFKA_CONSUMER_MIN_BYTES", int64(c.Kafka.MinBytes))
	p.positive("KAFKA_CONSUMER_MAX_BYTES", int64(c.Kafka.MaxBytes))
	p.positiveDuration("KAFKA_CONSUMER_MAX_WAIT", c.Kafka.MaxWait)
	if c.Kafka.DLQTopic != "" && c.Kafka.DLQTopic == c.Kafka.PaymentTopic {
		p = append(p, "KAFKA_DLQ_TOPIC must differ from KAFKA_PAYMENT_TOPIC")
	}

	p.require("POSTGRES_URL", c.Postgres.URL)
	p.positive("POSTGRES_MAX_CONNS", int64(c.Postgres.MaxConns))
	p.positive("POSTGRES_MIN_CONNS", int64(c.Postgres.MinConns))
	p.positiveDuration("POSTGRES_MAX_CONN_LIFETIME", c.Postgres.ConnMaxLifetime)
	p.positiveDuration("POSTGRES_MAX_CONN_IDLE_TIME", c.Postgres.ConnMaxIdleTime)
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		p = append(p, "POSTGRES_MIN_CONNS must not exceed POSTGRES_MAX_CONNS")
	}

	p.require("MONGO_URI", c.MongoDB.URI)
	p.require("MONGO_DATABASE", c.MongoDB.Database)
	p.positiveDuration("MONGO_TIMEOUT", c.MongoDB.Timeout)
	p.positive("MONGO_MAX_POOL_SIZE", int64(c.MongoDB.MaxPoolSize))
	p.positive("MONGO_MIN_POOL_SIZE", int64(c.MongoDB.MinPoolSize))
	p.positiveDuration("MONGO_MAX_CONN_IDLE_TIME", c.MongoDB.MaxConnIdleTime)

	p.positiveDuration("OUTBOX_POLLING_INTERVAL", c.Outbox.PollingInterval)
	p.positive("OUTBOX_BATCH_SIZE", int64(c.Outbox.BatchSize))
	p.positive("OUTBOX_MAX_RETRY_ATTEMPTS", int64(c.Outbox.MaxRetryAttempts))

	p.positive("WORKER_POOL_SIZE", int64(c.WorkerPool.Size))

	p.positiveDuration("ESCROW_AUTO_RELEASE_WINDOW", c.Escrow.AutoReleaseWindow)
	p.positiveDuration("ESCROW_SWEEP_INTERVAL", c.Escrow.SweepInterval)
	p.positive("ESCROW_SWEEP_BATCH_SIZE", int64(c.Escrow.SweepBatchSize))
	p.positiveDuration("MONEY_REQUEST_TTL", c.Escrow.MoneyRequestTTL)

	p.positive("RETRY_MAX_ATTEMPTS", int64(c.Retry.MaxAttempts))
	p.positiveDuration("RETRY_INITIAL_INTERVAL", c.Retry.InitialInterval)
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		p = append(p, "RETRY_MAX_INTERVAL must not be less than RETRY_INITIAL_INTERVAL")
	}

	return p.err()
}
