package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const escrowColumns = `id, transaction_id, buyer_id, seller_id, product_id, amount, currency, status, auto_release_at,
		dispute_opened_by, dispute_reason, dispute_evidence, resolver_id, resolution_note, resolution_shares,
		created_at, activated_at, completed_at, disputed_at, resolved_at, updated_at`

// EscrowRepository implements escrow.Repository for PostgreSQL
type EscrowRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewEscrowRepository(logger *slog.Logger, db *persistence.PostgresDB) escrow.Repository {
	return &EscrowRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *EscrowRepository) WithTx(tx pgx.Tx) escrow.Repository {
	return &EscrowRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a pending escrow. The unique transaction_id keeps one escrow per Transaction.
func (r *EscrowRepository) Create(ctx context.Context, e *escrow.Escrow) error {
	query := `
		INSERT INTO escrow_transactions (id, transaction_id, buyer_id, seller_id, product_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		e.ID,
		e.TransactionID,
		e.BuyerID,
		e.SellerID,
		e.ProductID,
		e.Amount,
		e.Currency,
		e.Status,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return escrow.ErrDuplicateEscrow{TransactionID: e.TransactionID}
		}
		r.logger.Error("Failed to create escrow", "id", e.ID.String(), "transaction_id", e.TransactionID.String(), "error", err)
		return persistence.ClassifyError("create escrow", err)
	}

	return nil
}

func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions WHERE id = $1`

	e, err := scanEscrow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrEscrowNotFound{EscrowID: id}
		}
		r.logger.Error("Failed to get escrow", "id", id.String(), "error", err)
		return nil, persistence.ClassifyError("get escrow", err)
	}
	return e, nil
}

func (r *EscrowRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*escrow.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions WHERE transaction_id = $1`

	e, err := scanEscrow(r.querier.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrEscrowNotFound{}
		}
		r.logger.Error("Failed to get escrow by transaction", "transaction_id", transactionID.String(), "error", err)
		return nil, persistence.ClassifyError("get escrow by transaction", err)
	}
	return e, nil
}

// LockForUpdate serializes transitions on one escrow for the rest of the transaction
func (r *EscrowRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions WHERE id = $1 FOR UPDATE`

	e, err := scanEscrow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrEscrowNotFound{EscrowID: id}
		}
		if persistence.IsConflict(err) {
			return nil, escrow.ErrInvalidTransition{EscrowID: id}
		}
		r.logger.Error("Failed to lock escrow", "id", id.String(), "error", err)
		return nil, persistence.ClassifyError("lock escrow", err)
	}
	return e, nil
}

// UpdateTransition persists the escrow's new state only if the stored status still equals from.
// A lost race surfaces as ErrInvalidTransition.
func (r *EscrowRepository) UpdateTransition(ctx context.Context, e *escrow.Escrow, from escrow.Status) error {
	var (
		disputeOpenedBy *uuid.UUID
		disputeReason   *string
		disputeEvidence []string
		resolverID      *uuid.UUID
		resolutionNote  *string
		resolution      []byte
	)
	if e.Dispute != nil {
		disputeOpenedBy = &e.Dispute.OpenedBy
		disputeReason = &e.Dispute.Reason
		disputeEvidence = e.Dispute.EvidenceRefs
	}
	if e.Resolution != nil {
		shares, err := json.Marshal(e.Resolution.Shares)
		if err != nil {
			return fmt.Errorf("failed to marshal resolution shares: %w", err)
		}
		resolverID = &e.Resolution.ResolverID
		resolutionNote = &e.Resolution.Note
		resolution = shares
	}

	query := `
		UPDATE escrow_transactions
		SET status = $1, auto_release_at = $2, dispute_opened_by = $3, dispute_reason = $4, dispute_evidence = $5,
			resolver_id = $6, resolution_note = $7, resolution_shares = $8,
			activated_at = $9, completed_at = $10, disputed_at = $11, resolved_at = $12, updated_at = $13
		WHERE id = $14 AND status = $15
	`

	result, err := r.querier.Exec(ctx, query,
		e.Status,
		e.AutoReleaseAt,
		disputeOpenedBy,
		disputeReason,
		disputeEvidence,
		resolverID,
		resolutionNote,
		resolution,
		e.ActivatedAt,
		e.CompletedAt,
		e.DisputedAt,
		e.ResolvedAt,
		e.UpdatedAt,
		e.ID,
		from,
	)
	if err != nil {
		if persistence.IsConflict(err) {
			return escrow.ErrInvalidTransition{EscrowID: e.ID, From: from, To: e.Status}
		}
		r.logger.Error("Failed to update escrow", "id", e.ID.String(), "status", string(e.Status), "error", err)
		return persistence.ClassifyError("update escrow", err)
	}

	if result.RowsAffected() == 0 {
		return escrow.ErrInvalidTransition{EscrowID: e.ID, From: from, To: e.Status}
	}
	return nil
}

// ListDueForRelease returns active escrows whose deadline has passed, oldest deadline first
func (r *EscrowRepository) ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM escrow_transactions
		WHERE status = $1 AND auto_release_at <= $2
		ORDER BY auto_release_at ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, escrow.StatusActive, now, limit)
	if err != nil {
		r.logger.Error("Failed to list escrows due for release", "error", err)
		return nil, persistence.ClassifyError("list escrows due for release", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, persistence.ClassifyError("scan escrow id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.ClassifyError("iterate escrows due for release", err)
	}
	return ids, nil
}

func scanEscrow(row pgx.Row) (*escrow.Escrow, error) {
	var (
		e               escrow.Escrow
		disputeOpenedBy *uuid.UUID
		disputeReason   *string
		disputeEvidence []string
		resolverID      *uuid.UUID
		resolutionNote  *string
		resolution      []byte
	)

	err := row.Scan(
		&e.ID,
		&e.TransactionID,
		&e.BuyerID,
		&e.SellerID,
		&e.ProductID,
		&e.Amount,
		&e.Currency,
		&e.Status,
		&e.AutoReleaseAt,
		&disputeOpenedBy,
		&disputeReason,
		&disputeEvidence,
		&resolverID,
		&resolutionNote,
		&resolution,
		&e.CreatedAt,
		&e.ActivatedAt,
		&e.CompletedAt,
		&e.DisputedAt,
		&e.ResolvedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if disputeOpenedBy != nil {
		e.Dispute = &escrow.Dispute{OpenedBy: *disputeOpenedBy, EvidenceRefs: disputeEvidence}
		if disputeReason != nil {
			e.Dispute.Reason = *disputeReason
		}
	}
	if resolverID != nil {
		res := escrow.Resolution{ResolverID: *resolverID}
		if resolutionNote != nil {
			res.Note = *resolutionNote
		}
		if e.ResolvedAt != nil {
			res.ResolvedAt = *e.ResolvedAt
		}
		if len(resolution) > 0 {
			if err := json.Unmarshal(resolution, &res.Shares); err != nil {
				return nil, fmt.Errorf("failed to decode resolution shares: %w", err)
			}
		}
		e.Resolution = &res
	}
	return &e, nil
}
