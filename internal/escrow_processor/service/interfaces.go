package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
)

// EscrowService drives the escrow state machine. Every transition locks the escrow row,
// moves funds and records its event in one storage transaction.
type EscrowService interface {
	CreateEscrow(ctx context.Context, transactionID uuid.UUID, actor shared.Actor) (*escrow.Escrow, error)
	Confirm(ctx context.Context, escrowID uuid.UUID, actor shared.Actor) (*escrow.Escrow, error)
	OpenDispute(ctx context.Context, escrowID uuid.UUID, actor shared.Actor, reason string, evidenceRefs []string) (*escrow.Escrow, error)
	AutoRelease(ctx context.Context, escrowID uuid.UUID, now time.Time) (*escrow.Escrow, error)
	Get(ctx context.Context, escrowID uuid.UUID) (*escrow.Escrow, error)
	ListMovements(ctx context.Context, escrowID uuid.UUID) ([]*wallet.Movement, error)
}

// EscrowActivator activates the escrow of a paid Transaction inside the caller's transaction
type EscrowActivator interface {
	ActivateForTransaction(ctx context.Context, tx pgx.Tx, txn *payment.Transaction) (*escrow.Escrow, bool, error)
}

// DisputeCoordinator closes disputed escrows
type DisputeCoordinator interface {
	ResolveDispute(ctx context.Context, escrowID uuid.UUID, resolution escrow.Resolution, actor shared.Actor) (*escrow.Escrow, error)
}

// PaymentIntake turns verified gateway confirmations into escrow activations
type PaymentIntake interface {
	CreateTransaction(ctx context.Context, txn *payment.Transaction) (*payment.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)
	OnPaymentConfirmed(ctx context.Context, c payment.Confirmation, source payment.Source) (*escrow.Escrow, payment.OutcomeKind, error)
	RecordUnreadable(ctx context.Context, source payment.Source, correlationID, detail string)
}

// MoneyRequestService manages peer-to-peer balance requests
type MoneyRequestService interface {
	Create(ctx context.Context, requesterID, payerID uuid.UUID, amount int64, currency, note string) (*moneyrequest.MoneyRequest, error)
	Accept(ctx context.Context, requestID uuid.UUID, actor shared.Actor) (*moneyrequest.MoneyRequest, error)
	Decline(ctx context.Context, requestID uuid.UUID, actor shared.Actor) (*moneyrequest.MoneyRequest, error)
	Get(ctx context.Context, requestID uuid.UUID) (*moneyrequest.MoneyRequest, error)
	Expire(ctx context.Context, requestID uuid.UUID, now time.Time) (*moneyrequest.MoneyRequest, error)
	ListForAccount(ctx context.Context, accountID uuid.UUID, direction moneyrequest.Direction, limit, offset int) ([]*moneyrequest.MoneyRequest, error)
}

// MovementApplier is the only writer of wallet balances
type MovementApplier interface {
	// ApplyMovements applies the batch inside the caller's transaction
	ApplyMovements(ctx context.Context, tx pgx.Tx, batch wallet.Batch) (wallet.AccountSet, error)
	// Apply runs the batch in its own transaction, retrying concurrent modifications
	Apply(ctx context.Context, batch wallet.Batch) (wallet.AccountSet, error)
}

// OutboxManager writes domain events alongside the state change that produced them
type OutboxManager interface {
	Enqueue(ctx context.Context, tx pgx.Tx, event *shared.DomainEvent) error
}

// OutcomeRecorder writes the webhook audit log. Failures are logged, never returned.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome *payment.WebhookOutcome)
}

// PaymentValidator checks a confirmation before and after the Transaction is locked
type PaymentValidator interface {
	Validate(c payment.Confirmation) error
	Match(c payment.Confirmation, txn *payment.Transaction) error
}

// RiskHook is the fraud scoring hook point. A non-nil error rejects the payment.
type RiskHook interface {
	Assess(ctx context.Context, txn *payment.Transaction) error
}

// AllowAllRisk accepts every payment
type AllowAllRisk struct{}

func (AllowAllRisk) Assess(context.Context, *payment.Transaction) error { return nil }
