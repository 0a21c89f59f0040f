package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const transactionColumns = `id, buyer_id, seller_id, product_id, amount, currency, external_ref, status, created_at, completed_at, updated_at`

// TransactionRepository implements payment.Repository for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *payment.Transaction) error {
	query := `
		INSERT INTO payment_transactions (id, buyer_id, seller_id, product_id, amount, currency, external_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		txn.ID,
		txn.BuyerID,
		txn.SellerID,
		txn.ProductID,
		txn.Amount,
		txn.Currency,
		txn.ExternalRef,
		txn.Status,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return payment.ErrDuplicateExternalRef{ExternalRef: txn.ExternalRef}
		}
		r.logger.Error("Failed to create transaction", "external_ref", txn.ExternalRef, "error", err)
		return persistence.ClassifyError("create transaction", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, persistence.ClassifyError("get transaction", err)
	}
	return txn, nil
}

func (r *TransactionRepository) GetByExternalRef(ctx context.Context, externalRef string) (*payment.Transaction, error) {
	return r.getByExternalRef(ctx, externalRef, false)
}

// LockByExternalRef returns the Transaction with its row locked, so redelivered
// confirmations for the same reference are processed one at a time
func (r *TransactionRepository) LockByExternalRef(ctx context.Context, externalRef string) (*payment.Transaction, error) {
	return r.getByExternalRef(ctx, externalRef, true)
}

func (r *TransactionRepository) getByExternalRef(ctx context.Context, externalRef string, lock bool) (*payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE external_ref = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{ExternalRef: externalRef}
		}
		r.logger.Error("Failed to get transaction by external reference", "external_ref", externalRef, "error", err)
		return nil, persistence.ClassifyError("get transaction by external reference", err)
	}
	return txn, nil
}

// UpdateStatus writes a final status. Rows that already left pending are never touched.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, txn *payment.Transaction) error {
	query := `
		UPDATE payment_transactions
		SET status = $1, completed_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query, txn.Status, txn.CompletedAt, txn.UpdatedAt, txn.ID, payment.TransactionStatusPending)
	if err != nil {
		r.logger.Error("Failed to update transaction status", "id", txn.ID.String(), "error", err)
		return persistence.ClassifyError("update transaction status", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrStatusFinal
	}
	return nil
}

func scanTransaction(row pgx.Row) (*payment.Transaction, error) {
	var txn payment.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.BuyerID,
		&txn.SellerID,
		&txn.ProductID,
		&txn.Amount,
		&txn.Currency,
		&txn.ExternalRef,
		&txn.Status,
		&txn.CreatedAt,
		&txn.CompletedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
