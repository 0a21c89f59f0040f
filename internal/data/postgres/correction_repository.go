package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const insertCorrectionSQL = `
	INSERT INTO wallet_corrections (id, account_id, amount, note, admin_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// CorrectionRepository implements wallet.CorrectionRepository
type CorrectionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCorrectionRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.CorrectionRepository {
	return &CorrectionRepository{querier: db.Pool(), logger: logger}
}

func (r *CorrectionRepository) WithTx(tx pgx.Tx) wallet.CorrectionRepository {
	return &CorrectionRepository{querier: tx, logger: r.logger}
}

// Create records the note and admin behind a correction movement
func (r *CorrectionRepository) Create(ctx context.Context, c *wallet.Correction) error {
	_, err := r.querier.Exec(ctx, insertCorrectionSQL, c.ID, c.AccountID, c.Amount, c.Note, c.AdminID, c.CreatedAt)
	if persistence.IsConflict(err) {
		return wallet.ErrConcurrentModification{AccountID: c.AccountID}
	}
	if err != nil {
		r.logger.Error("Failed to record wallet correction",
			"correction_id", c.ID.String(),
			"account_id", c.AccountID.String(),
			"error", err,
		)
		return persistence.ClassifyError("create wallet correction", err)
	}
	return nil
}
