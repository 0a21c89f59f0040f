package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transactionRow(txn *payment.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "buyer_id", "seller_id", "product_id", "amount", "currency", "external_ref", "status", "created_at", "completed_at", "updated_at"}).
		AddRow(txn.ID, txn.BuyerID, txn.SellerID, txn.ProductID, txn.Amount, txn.Currency, txn.ExternalRef, txn.Status, txn.CreatedAt, txn.CompletedAt, txn.UpdatedAt)
}

func TestTransactionRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	txn, err := payment.NewTransaction(uuid.New(), uuid.New(), uuid.New(), 2000, "USD", "gw_abc")
	require.NoError(t, err)

	query := `INSERT INTO payment_transactions`

	mock.ExpectExec(query).
		WithArgs(txn.ID, txn.BuyerID, txn.SellerID, txn.ProductID, txn.Amount, txn.Currency, txn.ExternalRef, txn.Status, txn.CreatedAt, txn.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	assert.NoError(t, repo.Create(ctx, txn))

	mock.ExpectExec(query).
		WithArgs(txn.ID, txn.BuyerID, txn.SellerID, txn.ProductID, txn.Amount, txn.Currency, txn.ExternalRef, txn.Status, txn.CreatedAt, txn.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	err = repo.Create(ctx, txn)
	var dup payment.ErrDuplicateExternalRef
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "gw_abc", dup.ExternalRef)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_LockByExternalRef(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	txn, _ := payment.NewTransaction(uuid.New(), uuid.New(), uuid.New(), 2000, "USD", "gw_lock")

	query := `SELECT .* FROM payment_transactions WHERE external_ref = \$1 FOR UPDATE`

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("gw_lock").WillReturnRows(transactionRow(txn))

		got, err := repo.LockByExternalRef(ctx, "gw_lock")
		require.NoError(t, err)
		assert.Equal(t, txn.ID, got.ID)
		assert.Equal(t, payment.TransactionStatusPending, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown reference", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("gw_missing").WillReturnError(pgx.ErrNoRows)

		_, err := repo.LockByExternalRef(ctx, "gw_missing")
		var notFound payment.ErrTransactionNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "gw_missing", notFound.ExternalRef)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	txn, _ := payment.NewTransaction(uuid.New(), uuid.New(), uuid.New(), 2000, "USD", "gw_upd")
	require.NoError(t, txn.Complete(time.Now().UTC()))

	query := `UPDATE payment_transactions\s+SET status = \$1, completed_at = \$2, updated_at = \$3\s+WHERE id = \$4 AND status = \$5`

	mock.ExpectExec(query).
		WithArgs(payment.TransactionStatusCompleted, txn.CompletedAt, txn.UpdatedAt, txn.ID, payment.TransactionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	assert.NoError(t, repo.UpdateStatus(ctx, txn))

	mock.ExpectExec(query).
		WithArgs(payment.TransactionStatusCompleted, txn.CompletedAt, txn.UpdatedAt, txn.ID, payment.TransactionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, txn), payment.ErrStatusFinal)

	assert.NoError(t, mock.ExpectationsWereMet())
}
