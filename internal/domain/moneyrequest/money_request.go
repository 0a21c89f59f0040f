// Package moneyrequest models peer-to-peer balance transfer requests.
package moneyrequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrSelfRequest   = errors.New("requester and payer must differ")
)

// Status is the lifecycle state of a money request
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// Direction selects sent or received requests when listing for an account
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// MoneyRequest asks the payer to transfer funds to the requester. It holds no funds until accepted.
type MoneyRequest struct {
	ID          uuid.UUID  `json:"id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	PayerID     uuid.UUID  `json:"payer_id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Note        string     `json:"note,omitempty"`
	Status      Status     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// New creates a pending request that expires after ttl
func New(requesterID, payerID uuid.UUID, amount int64, currency, note string, ttl time.Duration) (*MoneyRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if requesterID == payerID {
		return nil, ErrSelfRequest
	}

	now := time.Now().UTC()
	return &MoneyRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		PayerID:     payerID,
		Amount:      amount,
		Currency:    currency,
		Note:        note,
		Status:      StatusPending,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}, nil
}

func (r *MoneyRequest) respond(next Status, now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition{RequestID: r.ID, From: r.Status, To: next}
	}
	r.Status = next
	r.RespondedAt = &now
	return nil
}

// Accept marks the request accepted; an expired request cannot be accepted
func (r *MoneyRequest) Accept(now time.Time) error {
	if r.Status == StatusPending && !now.Before(r.ExpiresAt) {
		return ErrInvalidTransition{RequestID: r.ID, From: StatusExpired, To: StatusAccepted}
	}
	return r.respond(StatusAccepted, now)
}

// Decline marks the request declined
func (r *MoneyRequest) Decline(now time.Time) error {
	return r.respond(StatusDeclined, now)
}

// Expire marks a pending request past its deadline as expired
func (r *MoneyRequest) Expire(now time.Time) error {
	if now.Before(r.ExpiresAt) {
		return ErrInvalidTransition{RequestID: r.ID, From: r.Status, To: StatusExpired}
	}
	return r.respond(StatusExpired, now)
}

// Repository manages money request persistence
type Repository interface {
	Create(ctx context.Context, r *MoneyRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*MoneyRequest, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*MoneyRequest, error)

	// UpdateStatus writes the new status only if the stored status is still pending
	UpdateStatus(ctx context.Context, r *MoneyRequest) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, direction Direction, limit, offset int) ([]*MoneyRequest, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrRequestNotFound indicates missing money request
type ErrRequestNotFound struct {
	RequestID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "money request not found: " + e.RequestID.String()
}

func (e ErrRequestNotFound) Is(target error) bool {
	_, ok := target.(ErrRequestNotFound)
	return ok
}

// ErrInvalidTransition indicates the request is no longer pending
type ErrInvalidTransition struct {
	RequestID uuid.UUID
	From      Status
	To        Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid money request transition for %s: %s -> %s", e.RequestID, e.From, e.To)
}

func (e ErrInvalidTransition) Is(target error) bool {
	_, ok := target.(ErrInvalidTransition)
	return ok
}
