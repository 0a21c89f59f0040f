package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/middleware"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	ledger "github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
)

// MoneyRequestHandler handles peer-to-peer money requests
type MoneyRequestHandler struct {
	requests ledger.MoneyRequestService
	logger   *slog.Logger
}

// NewMoneyRequestHandler creates a new money request handler
func NewMoneyRequestHandler(logger *slog.Logger, requests ledger.MoneyRequestService) *MoneyRequestHandler {
	return &MoneyRequestHandler{
		requests: requests,
		logger:   logger,
	}
}

// Create asks the payer to send funds to the acting user
func (h *MoneyRequestHandler) Create(c *gin.Context) {
	var req CreateMoneyRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)

	r, err := h.requests.Create(c.Request.Context(), actor.ID, uuid.MustParse(req.PayerID), req.Amount, req.Currency, req.Note)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapMoneyRequestToResponse(r))
}

// GetByID retrieves a money request by its ID
func (h *MoneyRequestHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	r, err := h.requests.Get(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapMoneyRequestToResponse(r))
}

// Accept transfers the requested amount from the payer to the requester
func (h *MoneyRequestHandler) Accept(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	actor, _ := middleware.GetActor(c)

	r, err := h.requests.Accept(c.Request.Context(), id, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapMoneyRequestToResponse(r))
}

// Decline closes a pending request without moving funds
func (h *MoneyRequestHandler) Decline(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	actor, _ := middleware.GetActor(c)

	r, err := h.requests.Decline(c.Request.Context(), id, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapMoneyRequestToResponse(r))
}

// ListForAccount lists requests an account sent or received
func (h *MoneyRequestHandler) ListForAccount(c *gin.Context) {
	accountID, ok := parseAccountID(c, h.logger)
	if !ok {
		return
	}

	var params MoneyRequestListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Warn("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	offset := (params.Page - 1) * params.PerPage
	requests, err := h.requests.ListForAccount(c.Request.Context(), accountID, moneyrequest.Direction(params.Direction), params.PerPage, offset)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	response := make([]MoneyRequestResponse, 0, len(requests))
	for _, r := range requests {
		response = append(response, mapMoneyRequestToResponse(r))
	}
	RespondWithData(c, http.StatusOK, response)
}

func (h *MoneyRequestHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Warn("Invalid money request ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid money request ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapMoneyRequestToResponse maps a money request entity to a response DTO
func mapMoneyRequestToResponse(r *moneyrequest.MoneyRequest) MoneyRequestResponse {
	response := MoneyRequestResponse{
		RequestID:   r.ID.String(),
		RequesterID: r.RequesterID.String(),
		PayerID:     r.PayerID.String(),
		Amount:      r.Amount,
		Currency:    r.Currency,
		Note:        r.Note,
		Status:      string(r.Status),
		ExpiresAt:   r.ExpiresAt.Format(time.RFC3339),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.RespondedAt != nil {
		response.RespondedAt = r.RespondedAt.Format(time.RFC3339)
	}
	return response
}
