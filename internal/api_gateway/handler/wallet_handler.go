package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/middleware"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/service"
	"github.com/marketplace-escrow-ledger/internal/domain/history"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places shown for every supported currency
const minorUnitExponent = 2

// WalletHandler handles HTTP requests for wallet operations
type WalletHandler struct {
	walletService service.WalletService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// Create onboards a new, empty wallet
func (h *WalletHandler) Create(c *gin.Context) {
	var req OpenWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)

	acc, err := h.walletService.Open(c.Request.Context(), uuid.MustParse(req.AccountID), req.Currency, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapWalletToResponse(acc))
}

// Balance returns the materialized balance with a display rendering
func (h *WalletHandler) Balance(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	acc, err := h.walletService.GetWallet(c.Request.Context(), accountID)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapWalletToResponse(acc))
}

// Movements returns a page of the wallet's append-only movement log
func (h *WalletHandler) Movements(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Warn("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	movements, total, err := h.walletService.ListMovements(c.Request.Context(), accountID, pagination.Page, pagination.PerPage)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	response := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		response = append(response, mapMovementToResponse(m))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, total)
}

// History returns a page of the wallet's event history read model
func (h *WalletHandler) History(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Warn("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.walletService.ListHistory(c.Request.Context(), accountID, pagination.Page, pagination.PerPage)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	response := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, mapHistoryEntryToResponse(e))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, total)
}

// Reconciliation compares the balance with the sum of the wallet's movements
func (h *WalletHandler) Reconciliation(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	r, err := h.walletService.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, ReconciliationResponse{
		AccountID:   r.AccountID.String(),
		Balance:     r.Balance,
		MovementSum: r.MovementSum,
		Currency:    r.Currency,
		Consistent:  r.Consistent(),
	})
}

// Withdraw debits the wallet
func (h *WalletHandler) Withdraw(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)

	acc, err := h.walletService.Withdraw(c.Request.Context(), accountID, req.Amount, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapWalletToResponse(acc))
}

// Correct applies an admin correction
func (h *WalletHandler) Correct(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	actor, _ := middleware.GetActor(c)

	acc, err := h.walletService.Correct(c.Request.Context(), accountID, req.Amount, req.Note, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapWalletToResponse(acc))
}

// Disable soft-disables the wallet
func (h *WalletHandler) Disable(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}
	actor, _ := middleware.GetActor(c)

	acc, err := h.walletService.Disable(c.Request.Context(), accountID, actor)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapWalletToResponse(acc))
}

func (h *WalletHandler) parseAccountID(c *gin.Context) (uuid.UUID, bool) {
	return parseAccountID(c, h.logger)
}

func parseAccountID(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	idParam := c.Param("accountId")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Warn("Invalid account ID", "account_id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return uuid.Nil, false
	}
	return id, true
}

// displayAmount renders minor units as a fixed-point string, e.g. 100050 -> "1000.50"
func displayAmount(minor int64) string {
	return decimal.New(minor, -minorUnitExponent).StringFixed(minorUnitExponent)
}

// mapWalletToResponse maps a wallet entity to a wallet response DTO
func mapWalletToResponse(acc *wallet.Account) WalletResponse {
	return WalletResponse{
		AccountID: acc.ID.String(),
		Balance:   acc.Balance,
		Currency:  acc.Currency,
		Display:   displayAmount(acc.Balance) + " " + acc.Currency,
		Disabled:  acc.Disabled,
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}

// mapHistoryEntryToResponse maps a history entry to a history response DTO
func mapHistoryEntryToResponse(e *history.Entry) HistoryEntryResponse {
	response := HistoryEntryResponse{
		EventID:     e.EventID.String(),
		EventType:   string(e.EventType),
		AggregateID: e.AggregateID.String(),
		Role:        e.Role,
		Amount:      e.Amount,
		Total:       e.Total,
		Currency:    e.Currency,
		Status:      e.Status,
		OccurredAt:  e.OccurredAt.Format(time.RFC3339),
	}
	if e.TransactionID != uuid.Nil {
		response.TransactionID = e.TransactionID.String()
	}
	return response
}
