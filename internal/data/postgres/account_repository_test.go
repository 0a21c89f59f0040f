package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var accountRowColumns = []string{"id", "kind", "balance", "currency", "version", "disabled", "created_at", "updated_at"}

func accountRow(acc *wallet.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountRowColumns).
		AddRow(acc.ID, acc.Kind, acc.Balance, acc.Currency, acc.Version, acc.Disabled, acc.CreatedAt, acc.UpdatedAt)
}

func newAccountMock(t *testing.T) (pgxmock.PgxPoolIface, *AccountRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, &AccountRepository{querier: mock, logger: newTestLogger()}
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	acc, err := wallet.NewAccount(uuid.New(), "USD")
	require.NoError(t, err)

	expectInsert := func(mock pgxmock.PgxPoolIface) *pgxmock.ExpectedExec {
		return mock.ExpectExec(regexp.QuoteMeta(insertAccountSQL)).
			WithArgs(acc.ID, acc.Kind, acc.Balance, acc.Currency, acc.Version, acc.Disabled, acc.CreatedAt, acc.UpdatedAt)
	}

	t.Run("opens the wallet", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		expectInsert(mock).WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, acc))
	})

	t.Run("second wallet for the same user", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		expectInsert(mock).WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		var dup wallet.ErrDuplicateAccount
		require.ErrorAs(t, repo.Create(ctx, acc), &dup)
		assert.Equal(t, acc.ID, dup.AccountID)
	})

	t.Run("driver error is wrapped", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		dbErr := errors.New("db error")
		expectInsert(mock).WillReturnError(dbErr)

		err := repo.Create(ctx, acc)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create account")
	})
}

func TestAccountRepository_Reads(t *testing.T) {
	ctx := context.Background()
	acc, err := wallet.NewAccount(uuid.New(), "EUR")
	require.NoError(t, err)
	acc.Balance = 2500
	acc.CreatedAt = time.Now().Add(-time.Hour)

	reads := []struct {
		name string
		sql  string
		read func(*AccountRepository, uuid.UUID) (*wallet.Account, error)
	}{
		{"GetByID", selectAccountSQL, func(r *AccountRepository, id uuid.UUID) (*wallet.Account, error) {
			return r.GetByID(ctx, id)
		}},
		{"LockForUpdate", lockAccountSQL, func(r *AccountRepository, id uuid.UUID) (*wallet.Account, error) {
			return r.LockForUpdate(ctx, id)
		}},
	}

	for _, rd := range reads {
		t.Run(rd.name, func(t *testing.T) {
			t.Run("found", func(t *testing.T) {
				mock, repo := newAccountMock(t)
				mock.ExpectQuery(regexp.QuoteMeta(rd.sql)).WithArgs(acc.ID).WillReturnRows(accountRow(acc))

				got, err := rd.read(repo, acc.ID)
				require.NoError(t, err)
				assert.Equal(t, acc.ID, got.ID)
				assert.Equal(t, int64(2500), got.Balance)
				assert.Equal(t, wallet.AccountKindUser, got.Kind)
				assert.Equal(t, acc.Version, got.Version)
			})

			t.Run("missing", func(t *testing.T) {
				mock, repo := newAccountMock(t)
				mock.ExpectQuery(regexp.QuoteMeta(rd.sql)).WithArgs(acc.ID).WillReturnError(pgx.ErrNoRows)

				_, err := rd.read(repo, acc.ID)
				assert.ErrorIs(t, err, wallet.ErrAccountNotFound{AccountID: acc.ID})
			})

			t.Run("lock wait exceeded", func(t *testing.T) {
				mock, repo := newAccountMock(t)
				mock.ExpectQuery(regexp.QuoteMeta(rd.sql)).WithArgs(acc.ID).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.LockNotAvailable})

				_, err := rd.read(repo, acc.ID)
				assert.ErrorIs(t, err, wallet.ErrConcurrentModification{AccountID: acc.ID})
			})

			t.Run("connection lost", func(t *testing.T) {
				mock, repo := newAccountMock(t)
				mock.ExpectQuery(regexp.QuoteMeta(rd.sql)).WithArgs(acc.ID).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.ConnectionFailure})

				_, err := rd.read(repo, acc.ID)
				assert.ErrorIs(t, err, shared.ErrStorageUnavailable{})
			})
		})
	}
}

func TestAccountRepository_EnsureCustody(t *testing.T) {
	mock, repo := newAccountMock(t)
	custody := wallet.NewCustodyAccount("USD")

	mock.ExpectExec(regexp.QuoteMeta(insertCustodySQL)).
		WithArgs(custody.ID, wallet.AccountKindCustody, "USD", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountSQL)).
		WithArgs(custody.ID).
		WillReturnRows(accountRow(custody))

	got, err := repo.EnsureCustody(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, wallet.CustodyAccountID("USD"), got.ID)
	assert.Equal(t, wallet.AccountKindCustody, got.Kind)
}

func TestAccountRepository_UpdateBalance(t *testing.T) {
	ctx := context.Background()
	accID := uuid.New()

	tests := []struct {
		name    string
		balance int64
		result  pgconn.CommandTag
		dbErr   error
		wantErr error
	}{
		{name: "written", balance: 500, result: pgxmock.NewResult("UPDATE", 1)},
		{name: "version moved on", balance: 500, result: pgxmock.NewResult("UPDATE", 0), wantErr: wallet.ErrConcurrentModification{AccountID: accID}},
		{name: "balance check", balance: -1, dbErr: &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "accounts_balance_non_negative"}, wantErr: wallet.ErrInsufficientFunds{}},
		{name: "serialization failure", balance: 500, dbErr: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, wantErr: wallet.ErrConcurrentModification{}},
		{name: "storage down", balance: 500, dbErr: &pgconn.PgError{Code: pgerrcode.AdminShutdown}, wantErr: shared.ErrStorageUnavailable{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newAccountMock(t)
			exp := mock.ExpectExec(regexp.QuoteMeta(updateBalanceSQL)).WithArgs(tt.balance, accID, 3)
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := repo.UpdateBalance(ctx, accID, tt.balance, 3)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("other driver errors keep the operation name", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		dbErr := errors.New("update balance db error")
		mock.ExpectExec(regexp.QuoteMeta(updateBalanceSQL)).WithArgs(int64(500), accID, 3).WillReturnError(dbErr)

		err := repo.UpdateBalance(ctx, accID, 500, 3)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to update account balance")
	})
}

func TestAccountRepository_SetDisabled(t *testing.T) {
	mock, repo := newAccountMock(t)
	ctx := context.Background()
	accID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(setDisabledSQL)).WithArgs(true, accID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	assert.NoError(t, repo.SetDisabled(ctx, accID, true))

	mock.ExpectExec(regexp.QuoteMeta(setDisabledSQL)).WithArgs(true, accID).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.SetDisabled(ctx, accID, true), wallet.ErrAccountNotFound{})
}

func TestAccountRepository_WithTx(t *testing.T) {
	repo := &AccountRepository{logger: newTestLogger()}

	var tx pgx.Tx
	bound, ok := repo.WithTx(tx).(*AccountRepository)
	require.True(t, ok)
	assert.Equal(t, tx, bound.querier)
}
