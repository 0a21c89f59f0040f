package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const moneyRequestColumns = `id, requester_id, payer_id, amount, currency, note, status, expires_at, created_at, responded_at`

// MoneyRequestRepository implements moneyrequest.Repository for PostgreSQL
type MoneyRequestRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewMoneyRequestRepository(logger *slog.Logger, db *persistence.PostgresDB) moneyrequest.Repository {
	return &MoneyRequestRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *MoneyRequestRepository) WithTx(tx pgx.Tx) moneyrequest.Repository {
	return &MoneyRequestRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *MoneyRequestRepository) Create(ctx context.Context, req *moneyrequest.MoneyRequest) error {
	query := `
		INSERT INTO money_requests (id, requester_id, payer_id, amount, currency, note, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		req.ID,
		req.RequesterID,
		req.PayerID,
		req.Amount,
		req.Currency,
		req.Note,
		req.Status,
		req.ExpiresAt,
		req.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create money request", "id", req.ID.String(), "error", err)
		return persistence.ClassifyError("create money request", err)
	}
	return nil
}

func (r *MoneyRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*moneyrequest.MoneyRequest, error) {
	return r.get(ctx, `SELECT `+moneyRequestColumns+` FROM money_requests WHERE id = $1`, id)
}

func (r *MoneyRequestRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*moneyrequest.MoneyRequest, error) {
	return r.get(ctx, `SELECT `+moneyRequestColumns+` FROM money_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *MoneyRequestRepository) get(ctx context.Context, query string, id uuid.UUID) (*moneyrequest.MoneyRequest, error) {
	req, err := scanMoneyRequest(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, moneyrequest.ErrRequestNotFound{RequestID: id}
		}
		r.logger.Error("Failed to get money request", "id", id.String(), "error", err)
		return nil, persistence.ClassifyError("get money request", err)
	}
	return req, nil
}

// UpdateStatus records the response. Only pending requests change.
func (r *MoneyRequestRepository) UpdateStatus(ctx context.Context, req *moneyrequest.MoneyRequest) error {
	query := `
		UPDATE money_requests
		SET status = $1, responded_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, req.Status, req.RespondedAt, req.ID, moneyrequest.StatusPending)
	if err != nil {
		r.logger.Error("Failed to update money request", "id", req.ID.String(), "error", err)
		return persistence.ClassifyError("update money request", err)
	}

	if result.RowsAffected() == 0 {
		return moneyrequest.ErrInvalidTransition{RequestID: req.ID, From: moneyrequest.StatusPending, To: req.Status}
	}
	return nil
}

// ListExpired returns pending requests whose deadline has passed
func (r *MoneyRequestRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM money_requests
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, moneyrequest.StatusPending, now, limit)
	if err != nil {
		r.logger.Error("Failed to list expired money requests", "error", err)
		return nil, persistence.ClassifyError("list expired money requests", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, persistence.ClassifyError("scan money request id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.ClassifyError("iterate expired money requests", err)
	}
	return ids, nil
}

// ListByAccount lists requests the account sent or received, newest first
func (r *MoneyRequestRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, direction moneyrequest.Direction, limit, offset int) ([]*moneyrequest.MoneyRequest, error) {
	column := "payer_id"
	if direction == moneyrequest.DirectionSent {
		column = "requester_id"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM money_requests
		WHERE %s = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, moneyRequestColumns, column)

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list money requests", "account_id", accountID.String(), "error", err)
		return nil, persistence.ClassifyError("list money requests", err)
	}
	defer rows.Close()

	requests := make([]*moneyrequest.MoneyRequest, 0)
	for rows.Next() {
		req, err := scanMoneyRequest(rows)
		if err != nil {
			r.logger.Error("Failed to scan money request", "error", err)
			return nil, persistence.ClassifyError("scan money request", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.ClassifyError("iterate money requests", err)
	}
	return requests, nil
}

func scanMoneyRequest(row pgx.Row) (*moneyrequest.MoneyRequest, error) {
	var req moneyrequest.MoneyRequest
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.PayerID,
		&req.Amount,
		&req.Currency,
		&req.Note,
		&req.Status,
		&req.ExpiresAt,
		&req.CreatedAt,
		&req.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
