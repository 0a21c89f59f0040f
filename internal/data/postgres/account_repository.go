// Package postgres is the ledger store: accounts, movements, escrows, payment
// transactions, money requests and the event outbox, all on pgx.
// Driver failures are mapped onto the domain error types before they leave the package.
package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const (
	accountColumns = `id, kind, balance, currency, version, disabled, created_at, updated_at`

	insertAccountSQL = `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertCustodySQL = `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, 0, $3, 1, FALSE, $4, $4)
		ON CONFLICT (id) DO NOTHING`

	selectAccountSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	lockAccountSQL   = selectAccountSQL + ` FOR UPDATE`

	updateBalanceSQL = `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`

	setDisabledSQL = `
		UPDATE accounts
		SET disabled = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2`
)

// AccountRepository stores wallets and the per-currency custody accounts
type AccountRepository struct {
	querier persistence.Querier // pool, or the caller's pgx.Tx
	logger  *slog.Logger
}

func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.AccountRepository {
	return &AccountRepository{querier: db.Pool(), logger: logger}
}

func (r *AccountRepository) WithTx(tx pgx.Tx) wallet.AccountRepository {
	return &AccountRepository{querier: tx, logger: r.logger}
}

// Create opens a wallet. A user has at most one, a second attempt is ErrDuplicateAccount.
func (r *AccountRepository) Create(ctx context.Context, acc *wallet.Account) error {
	_, err := r.querier.Exec(ctx, insertAccountSQL,
		acc.ID, acc.Kind, acc.Balance, acc.Currency, acc.Version, acc.Disabled, acc.CreatedAt, acc.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case persistence.IsUniqueViolation(err):
		return wallet.ErrDuplicateAccount{AccountID: acc.ID}
	}
	r.logger.Error("Account insert failed", "account_id", acc.ID.String(), "error", err)
	return persistence.ClassifyError("create account", err)
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	return r.readOne(ctx, "get account", selectAccountSQL, id)
}

// EnsureCustody returns the custody account of currency, creating it on first use
func (r *AccountRepository) EnsureCustody(ctx context.Context, currency string) (*wallet.Account, error) {
	custody := wallet.NewCustodyAccount(currency)
	if _, err := r.querier.Exec(ctx, insertCustodySQL, custody.ID, custody.Kind, custody.Currency, custody.CreatedAt); err != nil {
		r.logger.Error("Custody account insert failed", "currency", currency, "error", err)
		return nil, persistence.ClassifyError("ensure custody account", err)
	}
	return r.GetByID(ctx, custody.ID)
}

// LockForUpdate holds the row lock until the surrounding transaction ends.
// A lock_timeout surfaces as ErrConcurrentModification.
func (r *AccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	return r.readOne(ctx, "lock account for update", lockAccountSQL, id)
}

// UpdateBalance fails with ErrConcurrentModification when version no longer matches
func (r *AccountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64, version int) error {
	tag, err := r.querier.Exec(ctx, updateBalanceSQL, balance, id, version)
	if err != nil {
		return mapWriteError(r.logger, "update account balance", id, err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrConcurrentModification{AccountID: id}
	}
	return nil
}

func (r *AccountRepository) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	tag, err := r.querier.Exec(ctx, setDisabledSQL, disabled, id)
	if err != nil {
		r.logger.Error("Account disable flag not written", "account_id", id.String(), "error", err)
		return persistence.ClassifyError("set account disabled", err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrAccountNotFound{AccountID: id}
	}
	return nil
}

func (r *AccountRepository) readOne(ctx context.Context, op, sql string, id uuid.UUID) (*wallet.Account, error) {
	var acc wallet.Account
	err := r.querier.QueryRow(ctx, sql, id).Scan(
		&acc.ID, &acc.Kind, &acc.Balance, &acc.Currency,
		&acc.Version, &acc.Disabled, &acc.CreatedAt, &acc.UpdatedAt,
	)
	switch {
	case err == nil:
		return &acc, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, wallet.ErrAccountNotFound{AccountID: id}
	case persistence.IsConflict(err):
		return nil, wallet.ErrConcurrentModification{AccountID: id}
	}
	r.logger.Error("Account read failed", "op", op, "account_id", id.String(), "error", err)
	return nil, persistence.ClassifyError(op, err)
}
