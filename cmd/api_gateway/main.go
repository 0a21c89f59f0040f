package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketplace-escrow-ledger/internal/api_gateway"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/service"
	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/marketplace-escrow-ledger/internal/data/mongo"
	"github.com/marketplace-escrow-ledger/internal/data/postgres"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/components"
	"github.com/marketplace-escrow-ledger/internal/logger"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

func main() {
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// no logger yet
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	if err := run(cfg, log); err != nil {
		log.Error("API gateway stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("API gateway stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer postgresDB.Close()

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
		defer cancel()
		if err := mongoDB.Close(closeCtx); err != nil {
			log.Error("Closing MongoDB failed", "error", err)
		}
	}()

	outcomeRepo := mongo.NewWebhookOutcomeRepository(log, mongoDB.Database())
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	if err := outcomeRepo.EnsureIndexes(appCtx); err != nil {
		// the worker creates the same indexes; webhooks still record without them
		log.Warn("Webhook outcome indexes not ensured", "error", err)
	}

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
	wallets := service.NewWalletService(log, postgresDB, repos.Accounts, repos.Movements,
		postgres.NewCorrectionRepository(log, postgresDB), historyRepo, services.Applier, retry.FromConfig(cfg.Retry))

	server := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Wallets:       wallets,
		Escrows:       services.Escrows,
		Disputes:      services.Disputes,
		Payments:      services.Payments,
		MoneyRequests: services.MoneyRequests,
		Health:        postgresDB,
	})

	go metrics.StartPoolStatsCollector(appCtx, postgresDB.Pool(), 15*time.Second)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "port", cfg.Server.Port, "env", cfg.Application.Env)
		serveErr <- server.Start()
	}()

	var runErr error
	select {
	case <-appCtx.Done():
		log.Info("Shutdown signal received")
	case runErr = <-serveErr:
		if runErr == nil {
			runErr = errors.New("HTTP server exited unexpectedly")
		}
	}

	// in-flight requests finish before the pools close (deferred above)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server did not drain cleanly", "error", err)
	}
	return runErr
}
