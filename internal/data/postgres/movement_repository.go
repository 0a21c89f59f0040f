package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const movementColumns = `id, account_id, amount, reason, reference_type, reference_id, balance_after, created_at`

// MovementRepository implements wallet.MovementRepository. It only ever inserts and reads.
type MovementRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewMovementRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.MovementRepository {
	return &MovementRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *MovementRepository) WithTx(tx pgx.Tx) wallet.MovementRepository {
	return &MovementRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends a movement
func (r *MovementRepository) Create(ctx context.Context, m *wallet.Movement) error {
	query := `
		INSERT INTO wallet_movements (id, account_id, amount, reason, reference_type, reference_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		m.ID,
		m.AccountID,
		m.Amount,
		m.Reason,
		m.ReferenceType,
		m.ReferenceID,
		m.BalanceAfter,
		m.CreatedAt,
	)
	if err != nil {
		return mapWriteError(r.logger, "create wallet movement", m.AccountID, err)
	}

	return nil
}

// ListByAccount returns the newest movements first
func (r *MovementRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*wallet.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM wallet_movements
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list wallet movements", "account_id", accountID.String(), "error", err)
		return nil, persistence.ClassifyError("list wallet movements", err)
	}
	return r.collect(rows)
}

func (r *MovementRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM wallet_movements WHERE account_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		r.logger.Error("Failed to count wallet movements", "account_id", accountID.String(), "error", err)
		return 0, persistence.ClassifyError("count wallet movements", err)
	}
	return count, nil
}

// SumByAccount recomputes the balance from the movement log for reconciliation
func (r *MovementRepository) SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM wallet_movements WHERE account_id = $1`

	var sum int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		r.logger.Error("Failed to sum wallet movements", "account_id", accountID.String(), "error", err)
		return 0, persistence.ClassifyError("sum wallet movements", err)
	}
	return sum, nil
}

// ListByReference returns every movement produced by one escrow, transaction or request
func (r *MovementRepository) ListByReference(ctx context.Context, referenceID uuid.UUID) ([]*wallet.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM wallet_movements
		WHERE reference_id = $1
		ORDER BY created_at ASC, id
	`

	rows, err := r.querier.Query(ctx, query, referenceID)
	if err != nil {
		r.logger.Error("Failed to list movements by reference", "reference_id", referenceID.String(), "error", err)
		return nil, persistence.ClassifyError("list movements by reference", err)
	}
	return r.collect(rows)
}

func (r *MovementRepository) collect(rows pgx.Rows) ([]*wallet.Movement, error) {
	defer rows.Close()

	movements := make([]*wallet.Movement, 0)
	for rows.Next() {
		var m wallet.Movement
		err := rows.Scan(
			&m.ID,
			&m.AccountID,
			&m.Amount,
			&m.Reason,
			&m.ReferenceType,
			&m.ReferenceID,
			&m.BalanceAfter,
			&m.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan wallet movement", "error", err)
			return nil, persistence.ClassifyError("scan wallet movement", err)
		}
		movements = append(movements, &m)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over wallet movements", "error", err)
		return nil, persistence.ClassifyError("iterate wallet movements", err)
	}
	return movements, nil
}
