package handler

import "encoding/json"

// CreateEscrowRequest represents a request to open the escrow for a paid checkout
type CreateEscrowRequest struct {
	TransactionID string `json:"transactionId" binding:"required,uuid"`
}

// OpenDisputeRequest represents a party contesting an active escrow
type OpenDisputeRequest struct {
	Reason       string   `json:"reason" binding:"required"`
	EvidenceRefs []string `json:"evidenceRefs"`
}

// ResolveDisputeRequest carries either an exact split in minor units or a buyer percentage
type ResolveDisputeRequest struct {
	BuyerShare   *int64      `json:"buyerShare"`
	SellerShare  *int64      `json:"sellerShare"`
	BuyerPercent json.Number `json:"buyerPercent"`
	Note         string      `json:"note"`
}

// EscrowResponse represents an escrow in API responses
type EscrowResponse struct {
	EscrowID      string          `json:"escrowId"`
	TransactionID string          `json:"transactionId"`
	BuyerID       string          `json:"buyerId"`
	SellerID      string          `json:"sellerId"`
	ProductID     string          `json:"productId"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	AutoReleaseAt string          `json:"autoReleaseAt,omitempty"`
	Dispute       *DisputeInfo    `json:"dispute,omitempty"`
	Resolution    *ResolutionInfo `json:"resolution,omitempty"`
	CreatedAt     string          `json:"createdAt"`
	UpdatedAt     string          `json:"updatedAt"`
}

// DisputeInfo represents dispute metadata in API responses
type DisputeInfo struct {
	OpenedBy     string   `json:"openedBy"`
	Reason       string   `json:"reason"`
	EvidenceRefs []string `json:"evidenceRefs,omitempty"`
}

// ResolutionInfo represents a dispute outcome in API responses
type ResolutionInfo struct {
	ResolverID  string `json:"resolverId"`
	BuyerShare  int64  `json:"buyerShare"`
	SellerShare int64  `json:"sellerShare"`
	Winner      string `json:"winner"`
	Note        string `json:"note,omitempty"`
}

// MovementResponse represents a ledger movement in API responses
type MovementResponse struct {
	ID            string `json:"id"`
	AccountID     string `json:"accountId"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
	ReferenceType string `json:"referenceType"`
	ReferenceID   string `json:"referenceId"`
	BalanceAfter  int64  `json:"balanceAfter"`
	CreatedAt     string `json:"createdAt"`
}

// EscrowMovementsResponse lists every movement of an escrow. Conserved holds when everything
// taken into custody is either still held or was paid out to a party.
type EscrowMovementsResponse struct {
	EscrowID       string             `json:"escrowId"`
	Movements      []MovementResponse `json:"movements"`
	Held           int64              `json:"held"`
	CustodyBalance int64              `json:"custodyBalance"`
	PaidOut        int64              `json:"paidOut"`
	Conserved      bool               `json:"conserved"`
}

// OpenWalletRequest represents wallet onboarding
type OpenWalletRequest struct {
	AccountID string `json:"accountId" binding:"required,uuid"`
	Currency  string `json:"currency" binding:"required,len=3"`
}

// WithdrawRequest represents a withdrawal in minor units
type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// CorrectionRequest represents an admin correction; the amount is signed
type CorrectionRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Note   string `json:"note" binding:"required"`
}

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
	Display   string `json:"display"`
	Disabled  bool   `json:"disabled"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// ReconciliationResponse compares the balance with the movement log
type ReconciliationResponse struct {
	AccountID   string `json:"accountId"`
	Balance     int64  `json:"balance"`
	MovementSum int64  `json:"movementSum"`
	Currency    string `json:"currency"`
	Consistent  bool   `json:"consistent"`
}

// HistoryEntryResponse represents one event in a wallet's history
type HistoryEntryResponse struct {
	EventID       string `json:"eventId"`
	EventType     string `json:"eventType"`
	AggregateID   string `json:"aggregateId"`
	TransactionID string `json:"transactionId,omitempty"`
	Role          string `json:"role"`
	Amount        int64  `json:"amount"`
	Total         int64  `json:"total"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurredAt"`
}

// CreateTransactionRequest represents checkout start. BuyerID defaults to the actor.
type CreateTransactionRequest struct {
	BuyerID     string `json:"buyerId" binding:"omitempty,uuid"`
	SellerID    string `json:"sellerId" binding:"required,uuid"`
	ProductID   string `json:"productId" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	ExternalRef string `json:"externalRef" binding:"required"`
}

// TransactionResponse represents a checkout transaction in API responses
type TransactionResponse struct {
	TransactionID string `json:"transactionId"`
	BuyerID       string `json:"buyerId"`
	SellerID      string `json:"sellerId"`
	ProductID     string `json:"productId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	ExternalRef   string `json:"externalRef"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
	CompletedAt   string `json:"completedAt,omitempty"`
}

// PaymentWebhookRequest is the pre-verified confirmation forwarded by the gateway integration
type PaymentWebhookRequest struct {
	ExternalRef    string `json:"externalRef"`
	Amount         int64  `json:"amount"`
	TransactionID  string `json:"transactionId"`
	SignatureValid bool   `json:"signatureValid"`
	Status         string `json:"status"`
}

// WebhookAck is returned for every webhook delivery
type WebhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
	EscrowID string `json:"escrowId,omitempty"`
}

// CreateMoneyRequestRequest asks the payer to transfer funds to the actor
type CreateMoneyRequestRequest struct {
	PayerID  string `json:"payerId" binding:"required,uuid"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"required,len=3"`
	Note     string `json:"note"`
}

// MoneyRequestResponse represents a money request in API responses
type MoneyRequestResponse struct {
	RequestID   string `json:"requestId"`
	RequesterID string `json:"requesterId"`
	PayerID     string `json:"payerId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Note        string `json:"note,omitempty"`
	Status      string `json:"status"`
	ExpiresAt   string `json:"expiresAt"`
	CreatedAt   string `json:"createdAt"`
	RespondedAt string `json:"respondedAt,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// MoneyRequestListParams selects sent or received requests
type MoneyRequestListParams struct {
	PaginationParams
	Direction string `form:"direction,default=received" binding:"oneof=sent received"`
}
