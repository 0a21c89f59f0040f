package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
	ErrNilAccountID          = errors.New("account id is required")
)

// AccountKind distinguishes user wallets from platform pseudo-accounts
type AccountKind string

const (
	AccountKindUser    AccountKind = "user"
	AccountKindCustody AccountKind = "custody"
)

// custodyNamespace seeds deterministic custody account ids, one per currency
var custodyNamespace = uuid.MustParse("5b0c2e7a-9d41-4c1e-8f3a-e5c0d7a1b2c3")

// Account is a wallet. Its ID is the owning user's id; custody accounts use derived ids.
// Balance is a materialized projection of the account's movements.
type Account struct {
	ID        uuid.UUID   `json:"id"`
	Kind      AccountKind `json:"kind"`
	Balance   int64       `json:"balance"` // Stored in minor units
	Currency  string      `json:"currency"`
	Version   int         `json:"version"`
	Disabled  bool        `json:"disabled"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewAccount creates an empty user wallet. Wallets always open at zero;
// funds arrive only through movements.
func NewAccount(userID uuid.UUID, currency string) (*Account, error) {
	if userID == uuid.Nil {
		return nil, ErrNilAccountID
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}

	now := time.Now().UTC()
	return &Account{
		ID:        userID,
		Kind:      AccountKindUser,
		Balance:   0,
		Currency:  currency,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CustodyAccountID returns the escrow custody pseudo-account id for a currency
func CustodyAccountID(currency string) uuid.UUID {
	return uuid.NewSHA1(custodyNamespace, []byte(currency))
}

// NewCustodyAccount builds the custody pseudo-account for a currency
func NewCustodyAccount(currency string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        CustodyAccountID(currency),
		Kind:      AccountKindCustody,
		Currency:  currency,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// apply returns the balance after adding delta, or ErrInsufficientFunds
// when the result would be negative.
func (a *Account) apply(delta int64) (int64, error) {
	next := a.Balance + delta
	if next < 0 {
		return a.Balance, ErrInsufficientFunds{AccountID: a.ID, Balance: a.Balance, Delta: delta}
	}
	return next, nil
}
