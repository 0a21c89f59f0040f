package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/service"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/history"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/stretchr/testify/mock"
)

type MockEscrowService struct {
	mock.Mock
}

func (m *MockEscrowService) escrowResult(args mock.Arguments) (*escrow.Escrow, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrow.Escrow), args.Error(1)
}

func (m *MockEscrowService) CreateEscrow(ctx context.Context, transactionID uuid.UUID, actor shared.Actor) (*escrow.Escrow, error) {
	return m.escrowResult(m.Called(ctx, transactionID, actor))
}

func (m *MockEscrowService) Confirm(ctx context.Context, escrowID uuid.UUID, actor shared.Actor) (*escrow.Escrow, error) {
	return m.escrowResult(m.Called(ctx, escrowID, actor))
}

func (m *MockEscrowService) OpenDispute(ctx context.Context, escrowID uuid.UUID, actor shared.Actor, reason string, evidenceRefs []string) (*escrow.Escrow, error) {
	return m.escrowResult(m.Called(ctx, escrowID, actor, reason, evidenceRefs))
}

func (m *MockEscrowService) AutoRelease(ctx context.Context, escrowID uuid.UUID, now time.Time) (*escrow.Escrow, error) {
	return m.escrowResult(m.Called(ctx, escrowID, now))
}

func (m *MockEscrowService) Get(ctx context.Context, escrowID uuid.UUID) (*escrow.Escrow, error) {
	return m.escrowResult(m.Called(ctx, escrowID))
}

func (m *MockEscrowService) ListMovements(ctx context.Context, escrowID uuid.UUID) ([]*wallet.Movement, error) {
	args := m.Called(ctx, escrowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Movement), args.Error(1)
}

type MockDisputeCoordinator struct {
	mock.Mock
}

func (m *MockDisputeCoordinator) ResolveDispute(ctx context.Context, escrowID uuid.UUID, resolution escrow.Resolution, actor shared.Actor) (*escrow.Escrow, error) {
	args := m.Called(ctx, escrowID, resolution, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrow.Escrow), args.Error(1)
}

type MockPaymentIntake struct {
	mock.Mock
}

func (m *MockPaymentIntake) CreateTransaction(ctx context.Context, txn *payment.Transaction) (*payment.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockPaymentIntake) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockPaymentIntake) OnPaymentConfirmed(ctx context.Context, c payment.Confirmation, source payment.Source) (*escrow.Escrow, payment.OutcomeKind, error) {
	args := m.Called(ctx, c, source)
	var e *escrow.Escrow
	if args.Get(0) != nil {
		e = args.Get(0).(*escrow.Escrow)
	}
	return e, args.Get(1).(payment.OutcomeKind), args.Error(2)
}

func (m *MockPaymentIntake) RecordUnreadable(ctx context.Context, source payment.Source, correlationID, detail string) {
	m.Called(ctx, source, correlationID, detail)
}

type MockMoneyRequestService struct {
	mock.Mock
}

func (m *MockMoneyRequestService) requestResult(args mock.Arguments) (*moneyrequest.MoneyRequest, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*moneyrequest.MoneyRequest), args.Error(1)
}

func (m *MockMoneyRequestService) Create(ctx context.Context, requesterID, payerID uuid.UUID, amount int64, currency, note string) (*moneyrequest.MoneyRequest, error) {
	return m.requestResult(m.Called(ctx, requesterID, payerID, amount, currency, note))
}

func (m *MockMoneyRequestService) Accept(ctx context.Context, requestID uuid.UUID, actor shared.Actor) (*moneyrequest.MoneyRequest, error) {
	return m.requestResult(m.Called(ctx, requestID, actor))
}

func (m *MockMoneyRequestService) Decline(ctx context.Context, requestID uuid.UUID, actor shared.Actor) (*moneyrequest.MoneyRequest, error) {
	return m.requestResult(m.Called(ctx, requestID, actor))
}

func (m *MockMoneyRequestService) Get(ctx context.Context, requestID uuid.UUID) (*moneyrequest.MoneyRequest, error) {
	return m.requestResult(m.Called(ctx, requestID))
}

func (m *MockMoneyRequestService) Expire(ctx context.Context, requestID uuid.UUID, now time.Time) (*moneyrequest.MoneyRequest, error) {
	return m.requestResult(m.Called(ctx, requestID, now))
}

func (m *MockMoneyRequestService) ListForAccount(ctx context.Context, accountID uuid.UUID, direction moneyrequest.Direction, limit, offset int) ([]*moneyrequest.MoneyRequest, error) {
	args := m.Called(ctx, accountID, direction, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*moneyrequest.MoneyRequest), args.Error(1)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) accountResult(args mock.Arguments) (*wallet.Account, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

func (m *MockWalletService) Open(ctx context.Context, accountID uuid.UUID, currency string, actor shared.Actor) (*wallet.Account, error) {
	return m.accountResult(m.Called(ctx, accountID, currency, actor))
}

func (m *MockWalletService) GetWallet(ctx context.Context, accountID uuid.UUID) (*wallet.Account, error) {
	return m.accountResult(m.Called(ctx, accountID))
}

func (m *MockWalletService) ListMovements(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*wallet.Movement, int64, error) {
	args := m.Called(ctx, accountID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*wallet.Movement), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletService) ListHistory(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*history.Entry, int64, error) {
	args := m.Called(ctx, accountID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*history.Entry), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletService) Reconcile(ctx context.Context, accountID uuid.UUID) (*service.Reconciliation, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Reconciliation), args.Error(1)
}

func (m *MockWalletService) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, actor shared.Actor) (*wallet.Account, error) {
	return m.accountResult(m.Called(ctx, accountID, amount, actor))
}

func (m *MockWalletService) Correct(ctx context.Context, accountID uuid.UUID, amount int64, note string, actor shared.Actor) (*wallet.Account, error) {
	return m.accountResult(m.Called(ctx, accountID, amount, note, actor))
}

func (m *MockWalletService) Disable(ctx context.Context, accountID uuid.UUID, actor shared.Actor) (*wallet.Account, error) {
	return m.accountResult(m.Called(ctx, accountID, actor))
}
