package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Correction is the audit record behind an admin adjustment. Its ID is the
// reference id of the correction movement it produced.
type Correction struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Amount    int64
	Note      string
	AdminID   uuid.UUID
	CreatedAt time.Time
}

// NewCorrection validates an adjustment of either sign
func NewCorrection(accountID uuid.UUID, amount int64, note string, adminID uuid.UUID) (*Correction, error) {
	if amount == 0 {
		return nil, ErrInvalidMovement{Reason: "correction amount must be non-zero"}
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrInvalidMovement{Reason: "correction note is required"}
	}
	return &Correction{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Note:      note,
		AdminID:   adminID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Batch is the single correction movement
func (c *Correction) Batch() Batch {
	return Batch{Movements: []MovementRequest{{
		AccountID:     c.AccountID,
		Amount:        c.Amount,
		Reason:        ReasonCorrection,
		ReferenceType: ReferenceCorrection,
		ReferenceID:   c.ID,
	}}}
}

// CorrectionRepository stores correction records next to their movement
type CorrectionRepository interface {
	Create(ctx context.Context, correction *Correction) error
	WithTx(tx pgx.Tx) CorrectionRepository
}
