package escrow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Share is the portion of a held amount paid out to one account
type Share struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
}

// Resolution is the outcome of a dispute. Shares must sum exactly to the held amount.
type Resolution struct {
	ResolverID uuid.UUID `json:"resolver_id"`
	Shares     []Share   `json:"shares"`
	Note       string    `json:"note,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// NewSplit builds a two-party resolution in minor units
func NewSplit(e *Escrow, resolverID uuid.UUID, buyerShare, sellerShare int64) Resolution {
	return Resolution{
		ResolverID: resolverID,
		Shares: []Share{
			{AccountID: e.BuyerID, Amount: buyerShare},
			{AccountID: e.SellerID, Amount: sellerShare},
		},
	}
}

// NewPercentSplit converts a buyer percentage into an exact split.
// The buyer share rounds down; the seller receives the remainder so nothing is lost.
func NewPercentSplit(e *Escrow, resolverID uuid.UUID, buyerPercent string) (Resolution, error) {
	pct, err := decimal.NewFromString(buyerPercent)
	if err != nil {
		return Resolution{}, ErrInvalidSplit{EscrowID: e.ID, Reason: "buyer percent is not a number"}
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return Resolution{}, ErrInvalidSplit{EscrowID: e.ID, Reason: "buyer percent must be between 0 and 100"}
	}

	buyerShare := decimal.NewFromInt(e.Amount).Mul(pct).Div(decimal.NewFromInt(100)).Floor().IntPart()
	return NewSplit(e, resolverID, buyerShare, e.Amount-buyerShare), nil
}

// Validate checks the exact-sum invariant and that every share goes to a party
func (r Resolution) Validate(e *Escrow) error {
	if len(r.Shares) == 0 {
		return ErrInvalidSplit{EscrowID: e.ID, Reason: "no shares"}
	}

	var total int64
	for _, s := range r.Shares {
		if s.Amount < 0 {
			return ErrInvalidSplit{EscrowID: e.ID, Reason: "shares must not be negative"}
		}
		if !e.IsParty(s.AccountID) {
			return ErrInvalidSplit{EscrowID: e.ID, Reason: fmt.Sprintf("account %s is not a party to the escrow", s.AccountID)}
		}
		total += s.Amount
	}

	if total != e.Amount {
		return ErrInvalidSplit{
			EscrowID: e.ID,
			Reason:   fmt.Sprintf("shares total %d but held amount is %d", total, e.Amount),
		}
	}
	return nil
}

// ShareFor sums the shares paid to an account
func (r Resolution) ShareFor(accountID uuid.UUID) int64 {
	var total int64
	for _, s := range r.Shares {
		if s.AccountID == accountID {
			total += s.Amount
		}
	}
	return total
}

// Winner derives which party prevailed: buyer, seller or split
func (r Resolution) Winner(e *Escrow) string {
	buyer := r.ShareFor(e.BuyerID)
	seller := r.ShareFor(e.SellerID)
	switch {
	case seller == 0:
		return "buyer"
	case buyer == 0:
		return "seller"
	default:
		return "split"
	}
}
