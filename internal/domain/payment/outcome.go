package payment

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind classifies what the ledger did with one confirmation delivery
type OutcomeKind string

const (
	OutcomeActivated           OutcomeKind = "activated"
	OutcomeDuplicate           OutcomeKind = "duplicate"
	OutcomePaymentFailed       OutcomeKind = "payment_failed"
	OutcomeRejectedSignature   OutcomeKind = "rejected_signature"
	OutcomeTransactionNotFound OutcomeKind = "transaction_not_found"
	OutcomeAmountMismatch      OutcomeKind = "amount_mismatch"
	OutcomeRiskRejected        OutcomeKind = "risk_rejected"
	OutcomeError               OutcomeKind = "error"
)

// NeedsReview reports whether the outcome must be looked at by an operator
func (k OutcomeKind) NeedsReview() bool {
	return k == OutcomeAmountMismatch || k == OutcomeError
}

// Source identifies the transport a confirmation arrived on
type Source string

const (
	SourceHTTP  Source = "http"
	SourceKafka Source = "kafka"
)

// WebhookOutcome is the audit record written for every confirmation delivery
type WebhookOutcome struct {
	ID             uuid.UUID   `json:"id" bson:"_id"`
	ExternalRef    string      `json:"external_ref" bson:"external_ref"`
	TransactionID  uuid.UUID   `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	EscrowID       uuid.UUID   `json:"escrow_id,omitempty" bson:"escrow_id,omitempty"`
	ReportedAmount int64       `json:"reported_amount" bson:"reported_amount"`
	Outcome        OutcomeKind `json:"outcome" bson:"outcome"`
	Detail         string      `json:"detail,omitempty" bson:"detail,omitempty"`
	NeedsReview    bool        `json:"needs_review" bson:"needs_review"`
	Source         Source      `json:"source" bson:"source"`
	CorrelationID  string      `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	ReceivedAt     time.Time   `json:"received_at" bson:"received_at"`
}

// NewWebhookOutcome builds the audit record for a delivery
func NewWebhookOutcome(c Confirmation, source Source, kind OutcomeKind, detail string) *WebhookOutcome {
	return &WebhookOutcome{
		ID:             uuid.New(),
		ExternalRef:    c.ExternalRef,
		TransactionID:  c.TransactionID,
		ReportedAmount: c.Amount,
		Outcome:        kind,
		Detail:         detail,
		NeedsReview:    kind.NeedsReview(),
		Source:         source,
		CorrelationID:  c.CorrelationID,
		ReceivedAt:     time.Now().UTC(),
	}
}
