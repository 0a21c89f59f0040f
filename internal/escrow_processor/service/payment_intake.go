package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
	"github.com/marketplace-escrow-ledger/internal/platform/retry"
)

type PaymentIntakeImpl struct {
	db              persistence.TxRunner
	transactionRepo payment.Repository
	escrowRepo      escrow.Repository
	accountRepo     wallet.AccountRepository
	activator       EscrowActivator
	validator       PaymentValidator
	recorder        OutcomeRecorder
	risk            RiskHook
	policy          retry.Policy
	now             func() time.Time
	logger          *slog.Logger
}

func NewPaymentIntake(
	db persistence.TxRunner,
	transactionRepo payment.Repository,
	escrowRepo escrow.Repository,
	accountRepo wallet.AccountRepository,
	activator EscrowActivator,
	validator PaymentValidator,
	recorder OutcomeRecorder,
	risk RiskHook,
	policy retry.Policy,
	logger *slog.Logger,
) *PaymentIntakeImpl {
	if risk == nil {
		risk = AllowAllRisk{}
	}
	return &PaymentIntakeImpl{
		db:              db,
		transactionRepo: transactionRepo,
		escrowRepo:      escrowRepo,
		accountRepo:     accountRepo,
		activator:       activator,
		validator:       validator,
		recorder:        recorder,
		risk:            risk,
		policy:          policy,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          logger,
	}
}

// CreateTransaction starts checkout. Both parties must hold a wallet in the payment currency.
func (s *PaymentIntakeImpl) CreateTransaction(ctx context.Context, txn *payment.Transaction) (*payment.Transaction, error) {
	logger := requestLogger(ctx, s.logger)

	for _, party := range []uuid.UUID{txn.BuyerID, txn.SellerID} {
		acc, err := s.accountRepo.GetByID(ctx, party)
		if err != nil {
			return nil, err
		}
		if acc.Currency != txn.Currency {
			return nil, fmt.Errorf("wallet %s holds %s: %w", party, acc.Currency, payment.ErrCurrencyMismatch)
		}
	}

	if err := s.transactionRepo.Create(ctx, txn); err != nil {
		logger.Warn("Failed to create transaction", "external_ref", txn.ExternalRef, "error", err)
		return nil, err
	}
	logger.Info("Transaction created",
		"transaction_id", txn.ID.String(),
		"external_ref", txn.ExternalRef,
		"amount", txn.Amount,
	)
	return txn, nil
}

func (s *PaymentIntakeImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

// OnPaymentConfirmed applies a verified gateway confirmation. Every delivery, whatever
// its result, leaves exactly one outcome record.
func (s *PaymentIntakeImpl) OnPaymentConfirmed(ctx context.Context, c payment.Confirmation, source payment.Source) (*escrow.Escrow, payment.OutcomeKind, error) {
	if c.CorrelationID != "" {
		ctx = shared.ContextWithCorrelationID(ctx, c.CorrelationID)
	} else {
		c.CorrelationID = shared.CorrelationIDFromContext(ctx)
	}
	logger := requestLogger(ctx, s.logger).With("external_ref", c.ExternalRef, "source", string(source))

	e, kind, err := s.confirm(ctx, c)
	if err != nil && kind == "" {
		kind = outcomeFor(err)
	}

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	outcome := payment.NewWebhookOutcome(c, source, kind, detail)
	if e != nil {
		outcome.EscrowID = e.ID
		outcome.TransactionID = e.TransactionID
	}
	s.recorder.Record(ctx, outcome)

	switch {
	case kind == payment.OutcomeError:
		logger.Error("Payment confirmation failed", "error", err)
	case err != nil:
		logger.Warn("Payment confirmation rejected", "outcome", string(kind), "error", err)
	default:
		logger.Info("Payment confirmation handled", "outcome", string(kind))
	}
	return e, kind, err
}

// RecordUnreadable stores an error outcome for a delivery whose body could not
// be decoded, so it still shows up in the outcome history.
func (s *PaymentIntakeImpl) RecordUnreadable(ctx context.Context, source payment.Source, correlationID, detail string) {
	if correlationID == "" {
		correlationID = shared.CorrelationIDFromContext(ctx)
	} else {
		ctx = shared.ContextWithCorrelationID(ctx, correlationID)
	}
	outcome := payment.NewWebhookOutcome(payment.Confirmation{CorrelationID: correlationID}, source, payment.OutcomeError, detail)
	s.recorder.Record(ctx, outcome)
	requestLogger(ctx, s.logger).Warn("Unreadable payment confirmation recorded", "source", string(source), "detail", detail)
}

func (s *PaymentIntakeImpl) confirm(ctx context.Context, c payment.Confirmation) (*escrow.Escrow, payment.OutcomeKind, error) {
	if err := s.validator.Validate(c); err != nil {
		return nil, "", err
	}

	var (
		result  *escrow.Escrow
		kind    payment.OutcomeKind
		riskErr error
	)
	err := transact(ctx, s.db, s.policy, s.logger, "payment_confirmation", func(tx pgx.Tx) error {
		result, kind, riskErr = nil, "", nil
		transactionRepoTx := s.transactionRepo.WithTx(tx)

		txn, err := transactionRepoTx.LockByExternalRef(ctx, c.ExternalRef)
		if err != nil {
			return err
		}

		switch txn.Status {
		case payment.TransactionStatusFailed:
			kind = payment.OutcomeDuplicate
			return nil
		case payment.TransactionStatusCompleted:
			existing, err := s.escrowRepo.WithTx(tx).GetByTransactionID(ctx, txn.ID)
			if err == nil && existing.Status != escrow.StatusPending {
				result, kind = existing, payment.OutcomeDuplicate
				return nil
			}
			if err != nil && !errors.Is(err, escrow.ErrEscrowNotFound{}) {
				return err
			}
			// paid but never activated; finish the activation
			e, _, err := s.activator.ActivateForTransaction(ctx, tx, txn)
			if err != nil {
				return err
			}
			result, kind = e, payment.OutcomeActivated
			return nil
		}

		if err := s.validator.Match(c, txn); err != nil {
			return err
		}

		now := s.now()
		if err := s.risk.Assess(ctx, txn); err != nil {
			if fErr := txn.Fail(now); fErr != nil {
				return fErr
			}
			if uErr := transactionRepoTx.UpdateStatus(ctx, txn); uErr != nil {
				return uErr
			}
			riskErr = payment.ErrRiskRejected{TransactionID: txn.ID, Reason: err.Error()}
			kind = payment.OutcomeRiskRejected
			return nil
		}

		if !c.Succeeded() {
			if err := txn.Fail(now); err != nil {
				return err
			}
			if err := transactionRepoTx.UpdateStatus(ctx, txn); err != nil {
				return err
			}
			kind = payment.OutcomePaymentFailed
			return nil
		}

		if err := txn.Complete(now); err != nil {
			return err
		}
		if err := transactionRepoTx.UpdateStatus(ctx, txn); err != nil {
			return err
		}
		e, _, err := s.activator.ActivateForTransaction(ctx, tx, txn)
		if err != nil {
			return err
		}
		result, kind = e, payment.OutcomeActivated
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return result, kind, riskErr
}

// outcomeFor classifies a failed delivery for the audit log
func outcomeFor(err error) payment.OutcomeKind {
	var (
		signature payment.ErrSignatureInvalid
		notFound  payment.ErrTransactionNotFound
		mismatch  payment.ErrAmountMismatch
		risk      payment.ErrRiskRejected
	)
	switch {
	case errors.As(err, &signature):
		return payment.OutcomeRejectedSignature
	case errors.As(err, &notFound):
		return payment.OutcomeTransactionNotFound
	case errors.As(err, &mismatch):
		return payment.OutcomeAmountMismatch
	case errors.As(err, &risk):
		return payment.OutcomeRiskRejected
	default:
		return payment.OutcomeError
	}
}

// Rejected reports whether a confirmation can never succeed, so redelivery is pointless
func Rejected(kind payment.OutcomeKind) bool {
	switch kind {
	case payment.OutcomeRejectedSignature, payment.OutcomeTransactionNotFound, payment.OutcomeAmountMismatch:
		return true
	}
	return false
}

var _ PaymentIntake = (*PaymentIntakeImpl)(nil)
