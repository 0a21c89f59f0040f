// Package escrow holds the custody record for a paid Transaction and the rules of its lifecycle.
package escrow

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an escrow
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDisputed  Status = "disputed"
	StatusResolved  Status = "resolved"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusActive},
	StatusActive:   {StatusCompleted, StatusDisputed},
	StatusDisputed: {StatusResolved},
}

// IsTerminal reports whether no further transition is permitted
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusResolved
}

// CanTransitionTo reports whether next is a legal successor of s
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Dispute is the metadata attached when a party contests an active escrow
type Dispute struct {
	OpenedBy     uuid.UUID `json:"opened_by"`
	Reason       string    `json:"reason"`
	EvidenceRefs []string  `json:"evidence_refs,omitempty"`
}

// Escrow is the custody record for one Transaction
type Escrow struct {
	ID            uuid.UUID   `json:"id"`
	TransactionID uuid.UUID   `json:"transaction_id"`
	BuyerID       uuid.UUID   `json:"buyer_id"`
	SellerID      uuid.UUID   `json:"seller_id"`
	ProductID     uuid.UUID   `json:"product_id"`
	Amount        int64       `json:"amount"` // Held amount in minor units
	Currency      string      `json:"currency"`
	Status        Status      `json:"status"`
	AutoReleaseAt *time.Time  `json:"auto_release_at,omitempty"`
	Dispute       *Dispute    `json:"dispute,omitempty"`
	Resolution    *Resolution `json:"resolution,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ActivatedAt   *time.Time  `json:"activated_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	DisputedAt    *time.Time  `json:"disputed_at,omitempty"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// New creates a pending escrow for a Transaction
func New(transactionID, buyerID, sellerID, productID uuid.UUID, amount int64, currency string) *Escrow {
	now := time.Now().UTC()
	return &Escrow{
		ID:            uuid.New(),
		TransactionID: transactionID,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ProductID:     productID,
		Amount:        amount,
		Currency:      currency,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (e *Escrow) transition(next Status, now time.Time) error {
	if !e.Status.CanTransitionTo(next) {
		return ErrInvalidTransition{EscrowID: e.ID, From: e.Status, To: next}
	}
	e.Status = next
	e.UpdatedAt = now
	return nil
}

// Activate marks funds as held in custody and starts the auto-release clock
func (e *Escrow) Activate(now time.Time, window time.Duration) error {
	if err := e.transition(StatusActive, now); err != nil {
		return err
	}
	releaseAt := now.Add(window)
	e.ActivatedAt = &now
	e.AutoReleaseAt = &releaseAt
	return nil
}

// Complete releases the escrow to the seller
func (e *Escrow) Complete(now time.Time) error {
	if err := e.transition(StatusCompleted, now); err != nil {
		return err
	}
	e.CompletedAt = &now
	return nil
}

// DueForRelease reports whether the auto-release deadline has passed for an active escrow
func (e *Escrow) DueForRelease(now time.Time) bool {
	return e.Status == StatusActive && e.AutoReleaseAt != nil && !now.Before(*e.AutoReleaseAt)
}

// OpenDispute freezes an active escrow pending resolution
func (e *Escrow) OpenDispute(openedBy uuid.UUID, reason string, evidence []string, now time.Time) error {
	if err := e.transition(StatusDisputed, now); err != nil {
		return err
	}
	e.DisputedAt = &now
	e.Dispute = &Dispute{OpenedBy: openedBy, Reason: reason, EvidenceRefs: evidence}
	return nil
}

// Resolve closes a disputed escrow with a validated split
func (e *Escrow) Resolve(res Resolution, now time.Time) error {
	if e.Status != StatusDisputed {
		return ErrInvalidTransition{EscrowID: e.ID, From: e.Status, To: StatusResolved}
	}
	if err := res.Validate(e); err != nil {
		return err
	}
	if err := e.transition(StatusResolved, now); err != nil {
		return err
	}
	res.ResolvedAt = now
	e.ResolvedAt = &now
	e.Resolution = &res
	return nil
}

// IsParty reports whether the user is the buyer or the seller
func (e *Escrow) IsParty(userID uuid.UUID) bool {
	return userID == e.BuyerID || userID == e.SellerID
}

// PartyRole names the role a user plays in this escrow
func (e *Escrow) PartyRole(userID uuid.UUID) string {
	switch userID {
	case e.BuyerID:
		return "buyer"
	case e.SellerID:
		return "seller"
	default:
		return ""
	}
}
