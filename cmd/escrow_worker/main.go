package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/marketplace-escrow-ledger/internal/data/mongo"
	"github.com/marketplace-escrow-ledger/internal/data/postgres"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/components"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/consumer"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/outbox_poller"
	"github.com/marketplace-escrow-ledger/internal/logger"
	"github.com/marketplace-escrow-ledger/internal/platform/messaging/consumers"
	"github.com/marketplace-escrow-ledger/internal/platform/messaging/producers"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const drainTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig("escrow_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	if err := run(cfg, log); err != nil {
		log.Error("Escrow worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Escrow worker stopped")
}

// closer releases one resource on the way out, in reverse start order
type closer struct {
	name  string
	close func() error
}

func run(cfg *config.Config, log *slog.Logger) error {
	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].close(); err != nil {
				log.Error("Shutdown step failed", "resource", closers[i].name, "error", err)
			}
		}
	}()

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	closers = append(closers, closer{"postgres", func() error { postgresDB.Close(); return nil }})

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	closers = append(closers, closer{"mongodb", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
		defer cancel()
		return mongoDB.Close(ctx)
	}})

	outcomeRepo := mongo.NewWebhookOutcomeRepository(log, mongoDB.Database())
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	if err := historyRepo.EnsureIndexes(appCtx); err != nil {
		return fmt.Errorf("history indexes: %w", err)
	}
	if err := outcomeRepo.EnsureIndexes(appCtx); err != nil {
		return fmt.Errorf("webhook outcome indexes: %w", err)
	}

	// nil when KAFKA_DLQ_TOPIC is empty; the handler then only logs rejections
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"dlq producer", dlqProducer.Close})

	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"event producer", eventProducer.Close})

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.PaymentTopic)
	closers = append(closers, closer{"payment consumer", kafkaConsumer.Close})

	repos := components.Repositories{
		Accounts:      postgres.NewAccountRepository(log, postgresDB),
		Movements:     postgres.NewMovementRepository(log, postgresDB),
		Escrows:       postgres.NewEscrowRepository(log, postgresDB),
		Transactions:  postgres.NewTransactionRepository(log, postgresDB),
		MoneyRequests: postgres.NewMoneyRequestRepository(log, postgresDB),
		Outbox:        postgres.NewOutboxRepository(log, postgresDB),
		Outcomes:      outcomeRepo,
	}
	services := components.CreateServices(postgresDB, repos, log, cfg)

	sweeper, err := components.CreateSweepService(services, repos, log, cfg)
	if err != nil {
		return fmt.Errorf("sweep service: %w", err)
	}
	closers = append(closers, closer{"sweep pool", func() error {
		log.Info("Releasing sweep workers", "running", sweeper.Running())
		sweeper.Shutdown()
		return nil
	}})

	paymentHandler := consumer.NewPaymentEventHandler(log, services.Payments, dlqProducer)
	poller := outbox_poller.NewPoller(&cfg.Outbox, repos.Outbox,
		outbox_poller.NewEventPublisher(repos.Outbox, historyRepo, eventProducer, log), log)

	if err := kafkaConsumer.Subscribe(appCtx, paymentHandler.HandleMessage); err != nil {
		return fmt.Errorf("subscribe to %s: %w", cfg.Kafka.PaymentTopic, err)
	}

	var wg sync.WaitGroup
	for _, loop := range []func(context.Context){poller.Start, sweeper.Start} {
		wg.Add(1)
		go func(start func(context.Context)) {
			defer wg.Done()
			start(appCtx)
		}(loop)
	}
	go metrics.StartPoolStatsCollector(appCtx, postgresDB.Pool(), 15*time.Second)

	log.Info("Escrow worker running",
		"payment_topic", cfg.Kafka.PaymentTopic,
		"events_topic", cfg.Kafka.EventsTopic,
		"sweep_interval", cfg.Escrow.SweepInterval.String(),
	)

	<-appCtx.Done()
	log.Info("Shutdown signal received, draining loops")

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		log.Warn("Loops still running after drain timeout, closing resources anyway")
	}
	return nil
}
