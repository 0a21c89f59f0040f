package wallet

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ReasonCode records why a balance changed
type ReasonCode string

const (
	ReasonSaleCredit      ReasonCode = "sale_credit"
	ReasonRefundCredit    ReasonCode = "refund_credit"
	ReasonWithdrawalDebit ReasonCode = "withdrawal_debit"
	ReasonFeeDebit        ReasonCode = "fee_debit"
	ReasonEscrowHold      ReasonCode = "escrow_hold"
	ReasonEscrowRelease   ReasonCode = "escrow_release"
	ReasonCorrection      ReasonCode = "correction"
	ReasonTransferDebit   ReasonCode = "transfer_debit"
	ReasonTransferCredit  ReasonCode = "transfer_credit"
)

// Valid reports whether the reason code is known
func (r ReasonCode) Valid() bool {
	switch r {
	case ReasonSaleCredit, ReasonRefundCredit, ReasonWithdrawalDebit, ReasonFeeDebit,
		ReasonEscrowHold, ReasonEscrowRelease, ReasonCorrection,
		ReasonTransferDebit, ReasonTransferCredit:
		return true
	}
	return false
}

// ReferenceType names the kind of record a movement originates from
type ReferenceType string

const (
	ReferenceEscrow       ReferenceType = "escrow"
	ReferenceTransaction  ReferenceType = "transaction"
	ReferenceMoneyRequest ReferenceType = "money_request"
	ReferenceWithdrawal   ReferenceType = "withdrawal"
	ReferenceCorrection   ReferenceType = "correction"
)

// Movement is an immutable, append-only ledger entry
type Movement struct {
	ID            uuid.UUID     `json:"id"`
	AccountID     uuid.UUID     `json:"account_id"`
	Amount        int64         `json:"amount"` // Signed, minor units
	Reason        ReasonCode    `json:"reason"`
	ReferenceType ReferenceType `json:"reference_type"`
	ReferenceID   uuid.UUID     `json:"reference_id"`
	BalanceAfter  int64         `json:"balance_after"`
	CreatedAt     time.Time     `json:"created_at"`
}

// MovementRequest asks the accounting unit to apply one signed delta
type MovementRequest struct {
	AccountID     uuid.UUID
	Amount        int64
	Reason        ReasonCode
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
}

// Batch is a set of movement requests applied all-or-nothing.
// Balanced batches model transfers between ledger accounts and must net to zero.
type Batch struct {
	Movements []MovementRequest
	Balanced  bool
	// Currency, when set, must match every affected account
	Currency string
}

// AccountSet is the set of accounts touched by an applied batch
type AccountSet map[uuid.UUID]struct{}

// Contains reports membership
func (s AccountSet) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Validate checks every request and, for balanced batches, the zero-sum rule
func (b Batch) Validate() error {
	if len(b.Movements) == 0 {
		return ErrInvalidMovement{Reason: "batch is empty"}
	}

	var net int64
	for _, m := range b.Movements {
		if m.AccountID == uuid.Nil {
			return ErrInvalidMovement{Reason: "account id is required"}
		}
		if m.Amount == 0 {
			return ErrInvalidMovement{Reason: "amount must be non-zero"}
		}
		if !m.Reason.Valid() {
			return ErrInvalidMovement{Reason: "unknown reason code " + string(m.Reason)}
		}
		if m.ReferenceID == uuid.Nil {
			return ErrInvalidMovement{Reason: "reference id is required"}
		}
		net += m.Amount
	}

	if b.Balanced && net != 0 {
		return ErrUnbalancedBatch{Net: net}
	}
	return nil
}

// Deltas sums the requested amounts per account
func (b Batch) Deltas() map[uuid.UUID]int64 {
	deltas := make(map[uuid.UUID]int64, len(b.Movements))
	for _, m := range b.Movements {
		deltas[m.AccountID] += m.Amount
	}
	return deltas
}

// LockOrder returns the affected account ids in ascending order.
// Every writer locks in this order so concurrent batches cannot deadlock.
func (b Batch) LockOrder() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(b.Movements))
	ids := make([]uuid.UUID, 0, len(b.Movements))
	for _, m := range b.Movements {
		if _, ok := seen[m.AccountID]; ok {
			continue
		}
		seen[m.AccountID] = struct{}{}
		ids = append(ids, m.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// AllowedOnDisabled reports whether a soft-disabled account may take every request
// the batch holds for it: corrections, and the escrow payout credits that settle
// funds already committed to the account before it was disabled.
func (b Batch) AllowedOnDisabled(accountID uuid.UUID) bool {
	for _, m := range b.Movements {
		if m.AccountID == accountID && !m.settlesOnDisabled() {
			return false
		}
	}
	return true
}

func (m MovementRequest) settlesOnDisabled() bool {
	switch m.Reason {
	case ReasonCorrection:
		return true
	case ReasonSaleCredit, ReasonRefundCredit:
		return m.Amount > 0 && m.ReferenceType == ReferenceEscrow
	}
	return false
}

// Project computes the balance after each movement for a locked account.
// It fails with ErrInsufficientFunds if the final balance would be negative.
func Project(acc *Account, requests []MovementRequest, now time.Time) ([]*Movement, int64, error) {
	var delta int64
	for _, r := range requests {
		delta += r.Amount
	}
	if _, err := acc.apply(delta); err != nil {
		return nil, acc.Balance, err
	}

	// credits first so no intermediate balance_after dips below zero
	ordered := make([]MovementRequest, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Amount > 0 && ordered[j].Amount < 0
	})

	running := acc.Balance
	movements := make([]*Movement, 0, len(ordered))
	for _, r := range ordered {
		running += r.Amount
		movements = append(movements, &Movement{
			ID:            uuid.New(),
			AccountID:     acc.ID,
			Amount:        r.Amount,
			Reason:        r.Reason,
			ReferenceType: r.ReferenceType,
			ReferenceID:   r.ReferenceID,
			BalanceAfter:  running,
			CreatedAt:     now,
		})
	}
	return movements, running, nil
}
