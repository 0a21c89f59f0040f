package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/outbox"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/platform/persistence"
)

const (
	outboxColumns = `id, event_id, event_type, aggregate_id, payload, status, attempts, created_at, last_attempt_at`

	insertOutboxSQL = `
		INSERT INTO escrow_event_outbox (event_id, event_type, aggregate_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	pendingOutboxSQL = `
		SELECT ` + outboxColumns + `
		FROM escrow_event_outbox
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2`

	aggregateOutboxSQL = `
		SELECT ` + outboxColumns + `
		FROM escrow_event_outbox
		WHERE aggregate_id = $1
		ORDER BY created_at, id`

	markOutboxSQL = `
		UPDATE escrow_event_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3`

	bumpOutboxAttemptsSQL = `
		UPDATE escrow_event_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2`
)

// OutboxRepository keeps escrow and money request events in escrow_event_outbox
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{querier: db.Pool(), logger: logger}
}

// WithTx binds the repository to the transition's transaction
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{querier: tx, logger: r.logger}
}

func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	err := r.querier.QueryRow(ctx, insertOutboxSQL,
		message.EventID, message.EventType, message.AggregateID, message.Payload,
		message.Status, message.Attempts, message.CreatedAt,
	).Scan(&message.ID)
	if err == nil {
		return nil
	}
	if persistence.IsUniqueViolation(err) {
		return outbox.ErrDuplicateMessage{EventID: message.EventID}
	}
	r.logger.Error("Outbox insert failed",
		"event_id", message.EventID.String(),
		"event_type", string(message.EventType),
		"error", err,
	)
	return persistence.ClassifyError("create outbox message", err)
}

// GetPending returns the oldest undelivered events, at most limit of them
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return r.list(ctx, "get pending outbox messages", pendingOutboxSQL, shared.OutboxStatusPending, limit)
}

func (r *OutboxRepository) ListByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*outbox.Message, error) {
	return r.list(ctx, "list outbox messages by aggregate", aggregateOutboxSQL, aggregateID)
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return r.touch(ctx, "update outbox message status", id, markOutboxSQL, status, time.Now().UTC(), id)
}

func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	return r.touch(ctx, "increment outbox message attempts", id, bumpOutboxAttemptsSQL, time.Now().UTC(), id)
}

// touch runs a single-row UPDATE and reports a missing row as ErrMessageNotFound
func (r *OutboxRepository) touch(ctx context.Context, op string, id int64, sql string, args ...any) error {
	tag, err := r.querier.Exec(ctx, sql, args...)
	if err != nil {
		r.logger.Error("Outbox update failed", "op", op, "id", id, "error", err)
		return persistence.ClassifyError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}
	return nil
}

func (r *OutboxRepository) list(ctx context.Context, op, sql string, args ...any) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, sql, args...)
	if err != nil {
		r.logger.Error("Outbox query failed", "op", op, "error", err)
		return nil, persistence.ClassifyError(op, err)
	}

	messages, err := pgx.CollectRows(rows, scanOutboxMessage)
	if err != nil {
		r.logger.Error("Outbox rows unreadable", "op", op, "error", err)
		return nil, persistence.ClassifyError(op, err)
	}
	return messages, nil
}

func scanOutboxMessage(row pgx.CollectableRow) (*outbox.Message, error) {
	var m outbox.Message
	err := row.Scan(
		&m.ID, &m.EventID, &m.EventType, &m.AggregateID, &m.Payload,
		&m.Status, &m.Attempts, &m.CreatedAt, &m.LastAttemptAt,
	)
	return &m, err
}
