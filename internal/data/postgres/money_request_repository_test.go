package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moneyRequestRows(reqs ...*moneyrequest.MoneyRequest) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "requester_id", "payer_id", "amount", "currency", "note", "status", "expires_at", "created_at", "responded_at"})
	for _, r := range reqs {
		rows.AddRow(r.ID, r.RequesterID, r.PayerID, r.Amount, r.Currency, r.Note, r.Status, r.ExpiresAt, r.CreatedAt, r.RespondedAt)
	}
	return rows
}

func TestMoneyRequestRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &MoneyRequestRepository{querier: mock, logger: newTestLogger()}
	req, err := moneyrequest.New(uuid.New(), uuid.New(), 1500, "USD", "dinner", time.Hour)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO money_requests`).
		WithArgs(req.ID, req.RequesterID, req.PayerID, req.Amount, req.Currency, req.Note, req.Status, req.ExpiresAt, req.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(ctx, req))

	mock.ExpectQuery(`SELECT .* FROM money_requests WHERE id = \$1 FOR UPDATE`).
		WithArgs(req.ID).
		WillReturnRows(moneyRequestRows(req))
	got, err := repo.LockForUpdate(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Amount, got.Amount)
	assert.Equal(t, moneyrequest.StatusPending, got.Status)

	missing := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM money_requests WHERE id = \$1`).
		WithArgs(missing).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetByID(ctx, missing)
	assert.ErrorIs(t, err, moneyrequest.ErrRequestNotFound{})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyRequestRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &MoneyRequestRepository{querier: mock, logger: newTestLogger()}
	req, _ := moneyrequest.New(uuid.New(), uuid.New(), 1500, "USD", "", time.Hour)
	require.NoError(t, req.Decline(time.Now().UTC()))

	query := `UPDATE money_requests\s+SET status = \$1, responded_at = \$2\s+WHERE id = \$3 AND status = \$4`

	mock.ExpectExec(query).
		WithArgs(moneyrequest.StatusDeclined, req.RespondedAt, req.ID, moneyrequest.StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	assert.NoError(t, repo.UpdateStatus(ctx, req))

	mock.ExpectExec(query).
		WithArgs(moneyrequest.StatusDeclined, req.RespondedAt, req.ID, moneyrequest.StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, req), moneyrequest.ErrInvalidTransition{})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyRequestRepository_ListByAccount(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &MoneyRequestRepository{querier: mock, logger: newTestLogger()}
	accountID := uuid.New()
	sent, _ := moneyrequest.New(accountID, uuid.New(), 100, "USD", "", time.Hour)

	mock.ExpectQuery(`SELECT .* FROM money_requests\s+WHERE requester_id = \$1`).
		WithArgs(accountID, 10, 0).
		WillReturnRows(moneyRequestRows(sent))
	mock.ExpectQuery(`SELECT .* FROM money_requests\s+WHERE payer_id = \$1`).
		WithArgs(accountID, 10, 0).
		WillReturnRows(moneyRequestRows())

	got, err := repo.ListByAccount(ctx, accountID, moneyrequest.DirectionSent, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].ID)

	got, err = repo.ListByAccount(ctx, accountID, moneyrequest.DirectionReceived, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyRequestRepository_ListExpired(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &MoneyRequestRepository{querier: mock, logger: newTestLogger()}
	now := time.Now().UTC()
	id := uuid.New()

	mock.ExpectQuery(`SELECT id\s+FROM money_requests\s+WHERE status = \$1 AND expires_at <= \$2`).
		WithArgs(moneyrequest.StatusPending, now, 100).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

	ids, err := repo.ListExpired(ctx, now, 100)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
