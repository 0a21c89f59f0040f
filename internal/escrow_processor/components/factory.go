package components

import (
	"log/slog"

	"github.com/marketplace-escrow-ledger/internal/config"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/domain/outbox"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

// Repositories groups the storage dependencies of the escrow services
type Repositories struct {
	Accounts      wallet.AccountRepository
	Movements     wallet.MovementRepository
	Escrows       escrow.Repository
	Transactions  payment.Repository
	MoneyRequests moneyrequest.Repository
	Outbox        outbox.Repository
	Outcomes      payment.OutcomeRepository
}

// Services is the wired escrow engine shared by the gateway and the worker
type Services struct {
	Applier       service.MovementApplier
	Escrows       *service.EscrowServiceImpl
	Disputes      *service.DisputeCoordinatorImpl
	Payments      *service.PaymentIntakeImpl
	MoneyRequests *service.MoneyRequestServiceImpl
}

// CreateServices creates the escrow services with all their dependencies.
func CreateServices(
	db persistence.TxRunner,
	repos Repositories,
	logger *slog.Logger,
	cfg *config.Config,
) *Services {
	policy := retry.FromConfig(cfg.Retry)

	applier := NewMovementApplier(db, repos.Accounts, repos.Movements, policy, logger.With("component", "movement_applier"))
	outboxManager := NewOutboxManager(repos.Outbox, logger)
	recorder := NewWebhookRecorder(repos.Outcomes, cfg.MongoDB.Timeout, logger)
	validator := NewPaymentValidator(logger)

	escrows := service.NewEscrowService(
		db,
		repos.Escrows,
		repos.Transactions,
		repos.Accounts,
		repos.Movements,
		applier,
		outboxManager,
		cfg.Escrow.AutoReleaseWindow,
		policy,
		logger,
	)

	return &Services{
		Applier: applier,
		Escrows: escrows,
		Disputes: service.NewDisputeCoordinator(
			db,
			repos.Escrows,
			applier,
			outboxManager,
			policy,
			logger,
		),
		Payments: service.NewPaymentIntake(
			db,
			repos.Transactions,
			repos.Escrows,
			repos.Accounts,
			escrows,
			validator,
			recorder,
			service.AllowAllRisk{},
			policy,
			logger,
		),
		MoneyRequests: service.NewMoneyRequestService(
			db,
			repos.MoneyRequests,
			repos.Accounts,
			applier,
			outboxManager,
			cfg.Escrow.MoneyRequestTTL,
			policy,
			logger,
		),
	}
}

// CreateSweepService creates the auto-release and expiry sweeper on top of the services.
func CreateSweepService(
	services *Services,
	repos Repositories,
	logger *slog.Logger,
	cfg *config.Config,
) (*service.SweepService, error) {
	sweeper, err := service.NewSweepService(
		repos.Escrows,
		repos.MoneyRequests,
		services.Escrows,
		services.MoneyRequests,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		cfg.Escrow.SweepInterval,
		cfg.Escrow.SweepBatchSize,
		logger.With("component", "sweeper"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Created sweep service", "pool_size", cfg.WorkerPool.Size)
	return sweeper, nil
}
