package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

type MoneyRequestServiceImpl struct {
	db            persistence.TxRunner
	requestRepo   moneyrequest.Repository
	accountRepo   wallet.AccountRepository
	applier       MovementApplier
	outboxManager OutboxManager
	ttl           time.Duration
	policy        retry.Policy
	now           func() time.Time
	logger        *slog.Logger
}

func NewMoneyRequestService(
	db persistence.TxRunner,
	requestRepo moneyrequest.Repository,
	accountRepo wallet.AccountRepository,
	applier MovementApplier,
	outboxManager OutboxManager,
	ttl time.Duration,
	policy retry.Policy,
	logger *slog.Logger,
) *MoneyRequestServiceImpl {
	return &MoneyRequestServiceImpl{
		db:            db,
		requestRepo:   requestRepo,
		accountRepo:   accountRepo,
		applier:       applier,
		outboxManager: outboxManager,
		ttl:           ttl,
		policy:        policy,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// Create records a pending request. Nothing is held until the payer accepts.
func (s *MoneyRequestServiceImpl) Create(ctx context.Context, requesterID, payerID uuid.UUID, amount int64, currency, note string) (*moneyrequest.MoneyRequest, error) {
	logger := requestLogger(ctx, s.logger)

	r, err := moneyrequest.New(requesterID, payerID, amount, currency, note, s.ttl)
	if err != nil {
		return nil, err
	}
	for _, party := range []uuid.UUID{requesterID, payerID} {
		acc, err := s.accountRepo.GetByID(ctx, party)
		if err != nil {
			return nil, err
		}
		if acc.Currency != currency {
			return nil, fmt.Errorf("wallet %s holds %s: %w", party, acc.Currency, payment.ErrCurrencyMismatch)
		}
	}

	if err := s.requestRepo.Create(ctx, r); err != nil {
		return nil, err
	}
	logger.Info("Money request created",
		"request_id", r.ID.String(),
		"requester_id", requesterID.String(),
		"payer_id", payerID.String(),
		"amount", amount,
	)
	return r, nil
}

// Accept transfers the requested amount from payer to requester
func (s *MoneyRequestServiceImpl) Accept(ctx context.Context, requestID uuid.UUID, actor shared.Actor) (*moneyrequest.MoneyRequest, error) {
	logger := requestLogger(ctx, s.logger)

	var result *moneyrequest.MoneyRequest
	err := transact(ctx, s.db, s.policy, logger, "accept_money_request", func(tx pgx.Tx) error {
		requestRepoTx := s.requestRepo.WithTx(tx)

		r, err := requestRepoTx.LockForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if actor.ID != r.PayerID {
			return shared.ErrForbidden{Action: "accept a money request addressed to another payer"}
		}

		now := s.now()
		if err := r.Accept(now); err != nil {
			return err
		}

		batch := wallet.Batch{
			Balanced: true,
			Currency: r.Currency,
			Movements: []wallet.MovementRequest{
				{AccountID: r.PayerID, Amount: -r.Amount, Reason: wallet.ReasonTransferDebit, ReferenceType: wallet.ReferenceMoneyRequest, ReferenceID: r.ID},
				{AccountID: r.RequesterID, Amount: r.Amount, Reason: wallet.ReasonTransferCredit, ReferenceType: wallet.ReferenceMoneyRequest, ReferenceID: r.ID},
			},
		}
		if _, err := s.applier.ApplyMovements(ctx, tx, batch); err != nil {
			return err
		}
		if err := requestRepoTx.UpdateStatus(ctx, r); err != nil {
			return err
		}
		if err := s.outboxManager.Enqueue(ctx, tx, moneyRequestEvent(ctx, r, shared.EventMoneyRequestAccepted, actor, now)); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		logger.Warn("Money request acceptance failed", "request_id", requestID.String(), "error", err)
		return nil, err
	}
	logger.Info("Money request accepted", "request_id", requestID.String(), "amount", result.Amount)
	return result, nil
}

// Decline closes the request without moving funds
func (s *MoneyRequestServiceImpl) Decline(ctx context.Context, requestID uuid.UUID, actor shared.Actor) (*moneyrequest.MoneyRequest, error) {
	return s.respond(ctx, requestID, "decline_money_request", func(r *moneyrequest.MoneyRequest, now time.Time) error {
		if actor.ID != r.PayerID {
			return shared.ErrForbidden{Action: "decline a money request addressed to another payer"}
		}
		return r.Decline(now)
	})
}

// Expire closes a pending request whose deadline has passed
func (s *MoneyRequestServiceImpl) Expire(ctx context.Context, requestID uuid.UUID, now time.Time) (*moneyrequest.MoneyRequest, error) {
	return s.respond(ctx, requestID, "expire_money_request", func(r *moneyrequest.MoneyRequest, _ time.Time) error {
		return r.Expire(now)
	})
}

func (s *MoneyRequestServiceImpl) respond(ctx context.Context, requestID uuid.UUID, op string, apply func(r *moneyrequest.MoneyRequest, now time.Time) error) (*moneyrequest.MoneyRequest, error) {
	logger := requestLogger(ctx, s.logger)

	var result *moneyrequest.MoneyRequest
	err := transact(ctx, s.db, s.policy, logger, op, func(tx pgx.Tx) error {
		requestRepoTx := s.requestRepo.WithTx(tx)

		r, err := requestRepoTx.LockForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := apply(r, s.now()); err != nil {
			return err
		}
		if err := requestRepoTx.UpdateStatus(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Money request closed", "request_id", requestID.String(), "status", string(result.Status))
	return result, nil
}

func (s *MoneyRequestServiceImpl) Get(ctx context.Context, requestID uuid.UUID) (*moneyrequest.MoneyRequest, error) {
	return s.requestRepo.GetByID(ctx, requestID)
}

func (s *MoneyRequestServiceImpl) ListForAccount(ctx context.Context, accountID uuid.UUID, direction moneyrequest.Direction, limit, offset int) ([]*moneyrequest.MoneyRequest, error) {
	return s.requestRepo.ListByAccount(ctx, accountID, direction, limit, offset)
}

var _ MoneyRequestService = (*MoneyRequestServiceImpl)(nil)
