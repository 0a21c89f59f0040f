package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/middleware"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	ledger "github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
)

// EscrowHandler handles HTTP requests for escrow operations
type EscrowHandler struct {
	escrows  ledger.EscrowService
	disputes ledger.DisputeCoordinator
	logger   *slog.Logger
}

// NewEscrowHandler creates a new escrow handler
func NewEscrowHandler(logger *slog.Logger, escrows ledger.EscrowService, disputes ledger.DisputeCoordinator) *EscrowHandler {
	return &EscrowHandler{
		escrows:  escrows,
		disputes: disputes,
		logger:   logger,
	}
}

// Create opens the escrow for a checkout transaction. Repeating the call returns the same escrow.
func (h *EscrowHandler) Create(c *gin.Context) {
	var req CreateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)

	e, err := h.escrows.CreateEscrow(c.Request.Context(), uuid.MustParse(req.TransactionID), actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondWithData(c, http.StatusAccepted, mapEscrowToResponse(e))
}

// GetByID retrieves an escrow by its ID, returning 404 if not found
func (h *EscrowHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	e, err := h.escrows.Get(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapEscrowToResponse(e))
}

// Confirm releases the held funds to the seller on the buyer's confirmation of receipt
func (h *EscrowHandler) Confirm(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	actor, _ := middleware.GetActor(c)

	e, err := h.escrows.Confirm(c.Request.Context(), id, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapEscrowToResponse(e))
}

// Dispute freezes an active escrow until a resolver decides it
func (h *EscrowHandler) Dispute(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)

	e, err := h.escrows.OpenDispute(c.Request.Context(), id, actor, req.Reason, req.EvidenceRefs)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapEscrowToResponse(e))
}

// Resolve pays out a disputed escrow. The body holds either an exact split or a buyer percentage.
func (h *EscrowHandler) Resolve(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)
	if !actor.CanResolveDisputes() {
		RespondDomainError(c, h.logger, shared.ErrForbidden{Action: "resolve dispute"})
		return
	}

	current, err := h.escrows.Get(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	var resolution escrow.Resolution
	switch {
	case req.BuyerShare != nil && req.SellerShare != nil:
		resolution = escrow.NewSplit(current, actor.ID, *req.BuyerShare, *req.SellerShare)
	case req.BuyerPercent != "":
		resolution, err = escrow.NewPercentSplit(current, actor.ID, req.BuyerPercent.String())
		if err != nil {
			RespondDomainError(c, h.logger, err)
			return
		}
	default:
		RespondWithError(c, http.StatusBadRequest, CodeInvalidSplit, "Provide buyerShare and sellerShare, or buyerPercent")
		return
	}
	resolution.Note = req.Note

	e, err := h.disputes.ResolveDispute(c.Request.Context(), id, resolution, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapEscrowToResponse(e))
}

// Movements lists every ledger movement that references the escrow
func (h *EscrowHandler) Movements(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	movements, err := h.escrows.ListMovements(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	response := EscrowMovementsResponse{
		EscrowID:  id.String(),
		Movements: make([]MovementResponse, 0, len(movements)),
	}
	for _, m := range movements {
		response.Movements = append(response.Movements, mapMovementToResponse(m))
		switch m.Reason {
		case wallet.ReasonEscrowHold:
			response.Held += m.Amount
			response.CustodyBalance += m.Amount
		case wallet.ReasonEscrowRelease:
			response.CustodyBalance += m.Amount
		default:
			response.PaidOut += m.Amount
		}
	}
	response.Conserved = response.Held == response.CustodyBalance+response.PaidOut

	RespondOK(c, response)
}

func (h *EscrowHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Warn("Invalid escrow ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid escrow ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapEscrowToResponse maps an escrow entity to an escrow response DTO
func mapEscrowToResponse(e *escrow.Escrow) EscrowResponse {
	response := EscrowResponse{
		EscrowID:      e.ID.String(),
		TransactionID: e.TransactionID.String(),
		BuyerID:       e.BuyerID.String(),
		SellerID:      e.SellerID.String(),
		ProductID:     e.ProductID.String(),
		Amount:        e.Amount,
		Currency:      e.Currency,
		Status:        string(e.Status),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     e.UpdatedAt.Format(time.RFC3339),
	}

	if e.AutoReleaseAt != nil {
		response.AutoReleaseAt = e.AutoReleaseAt.Format(time.RFC3339)
	}
	if e.Dispute != nil {
		response.Dispute = &DisputeInfo{
			OpenedBy:     e.Dispute.OpenedBy.String(),
			Reason:       e.Dispute.Reason,
			EvidenceRefs: e.Dispute.EvidenceRefs,
		}
	}
	if e.Resolution != nil {
		response.Resolution = &ResolutionInfo{
			ResolverID:  e.Resolution.ResolverID.String(),
			BuyerShare:  e.Resolution.ShareFor(e.BuyerID),
			SellerShare: e.Resolution.ShareFor(e.SellerID),
			Winner:      e.Resolution.Winner(e),
			Note:        e.Resolution.Note,
		}
	}

	return response
}

// mapMovementToResponse maps a ledger movement to a movement response DTO
func mapMovementToResponse(m *wallet.Movement) MovementResponse {
	return MovementResponse{
		ID:            m.ID.String(),
		AccountID:     m.AccountID.String(),
		Amount:        m.Amount,
		Reason:        string(m.Reason),
		ReferenceType: string(m.ReferenceType),
		ReferenceID:   m.ReferenceID.String(),
		BalanceAfter:  m.BalanceAfter,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}
