package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/middleware"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	ledger "github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
)

// PaymentHandler handles checkout transactions and gateway webhooks
type PaymentHandler struct {
	intake ledger.PaymentIntake
	logger *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, intake ledger.PaymentIntake) *PaymentHandler {
	return &PaymentHandler{
		intake: intake,
		logger: logger,
	}
}

// CreateTransaction starts checkout for a product
func (h *PaymentHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)

	buyerID := actor.ID
	if req.BuyerID != "" {
		buyerID = uuid.MustParse(req.BuyerID)
	}
	if buyerID != actor.ID && !actor.IsAdmin() {
		RespondDomainError(c, h.logger, shared.ErrForbidden{Action: "start checkout for another buyer"})
		return
	}

	txn, err := payment.NewTransaction(buyerID, uuid.MustParse(req.SellerID), uuid.MustParse(req.ProductID), req.Amount, req.Currency, req.ExternalRef)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	created, err := h.intake.CreateTransaction(c.Request.Context(), txn)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(created))
}

// GetTransaction retrieves a checkout transaction by its ID
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Warn("Invalid transaction ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	txn, err := h.intake.GetTransaction(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// Webhook accepts a pre-verified payment confirmation. It always answers 200 so the
// gateway stops redelivering; the outcome is recorded for review instead.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Unreadable payment webhook", "error", err)
		h.intake.RecordUnreadable(c.Request.Context(), payment.SourceHTTP, middleware.GetCorrelationID(c), err.Error())
		RespondOK(c, WebhookAck{Received: true, Outcome: string(payment.OutcomeError)})
		return
	}

	confirmation := payment.Confirmation{
		ExternalRef:    req.ExternalRef,
		Amount:         req.Amount,
		SignatureValid: req.SignatureValid,
		Status:         payment.ConfirmationStatus(req.Status),
		CorrelationID:  middleware.GetCorrelationID(c),
	}
	if req.TransactionID != "" {
		// an unparseable id is left nil and the external ref decides
		if id, err := uuid.Parse(req.TransactionID); err == nil {
			confirmation.TransactionID = id
		}
	}

	// the intake records and logs the outcome, errors included
	e, kind, _ := h.intake.OnPaymentConfirmed(c.Request.Context(), confirmation, payment.SourceHTTP)

	ack := WebhookAck{Received: true, Outcome: string(kind)}
	if e != nil {
		ack.EscrowID = e.ID.String()
	}
	RespondWithData(c, http.StatusOK, ack)
}

// mapTransactionToResponse maps a transaction entity to a transaction response DTO
func mapTransactionToResponse(txn *payment.Transaction) TransactionResponse {
	response := TransactionResponse{
		TransactionID: txn.ID.String(),
		BuyerID:       txn.BuyerID.String(),
		SellerID:      txn.SellerID.String(),
		ProductID:     txn.ProductID.String(),
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		ExternalRef:   txn.ExternalRef,
		Status:        string(txn.Status),
		CreatedAt:     txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.CompletedAt != nil {
		response.CompletedAt = txn.CompletedAt.Format(time.RFC3339)
	}
	return response
}
