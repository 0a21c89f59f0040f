package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/middleware"
)

// Machine-readable error codes; clients branch on these, messages may change
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeInvalidSplit           = "INVALID_SPLIT"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeAmountMismatch         = "AMOUNT_MISMATCH"
	CodeAccountDisabled        = "ACCOUNT_DISABLED"
	CodeStorageUnavailable     = "STORAGE_UNAVAILABLE"
	CodeInternal               = "INTERNAL_SERVER_ERROR"
)

// Response is the envelope of every ledger endpoint
type Response struct {
	Data          any        `json:"data,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo paginates movement, history and money request listings
type MetaInfo struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	TotalPages int64 `json:"total_pages,omitempty"`
	TotalItems int64 `json:"total_items,omitempty"`
}

func newPageMeta(page, perPage int, totalItems int64) *MetaInfo {
	meta := &MetaInfo{Page: page, PerPage: perPage, TotalItems: totalItems}
	if perPage > 0 {
		meta.TotalPages = (totalItems + int64(perPage) - 1) / int64(perPage)
	}
	return meta
}

func respond(c *gin.Context, status int, body Response) {
	body.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, body)
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

func RespondWithData(c *gin.Context, status int, data any) {
	respond(c, status, Response{Data: data})
}

func RespondWithError(c *gin.Context, status int, code, message string) {
	respond(c, status, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

// RespondWithPaginatedData sends one page of a listing together with its totals
func RespondWithPaginatedData(c *gin.Context, status int, data any, page, perPage int, totalItems int64) {
	respond(c, status, Response{Data: data, Meta: newPageMeta(page, perPage, totalItems)})
}

func RespondOK(c *gin.Context, data any)      { RespondWithData(c, http.StatusOK, data) }
func RespondCreated(c *gin.Context, data any) { RespondWithData(c, http.StatusCreated, data) }

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, CodeBadRequest, message)
}

func RespondForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, CodeForbidden, orDefault(message, "Forbidden"))
}

func RespondNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, CodeNotFound, orDefault(message, "Resource not found"))
}

func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, CodeConflict, message)
}

// RespondUnavailable is the generic retry-later answer while the ledger store is down
func RespondUnavailable(c *gin.Context) {
	RespondWithError(c, http.StatusServiceUnavailable, CodeStorageUnavailable, "The ledger is temporarily unavailable, please retry later")
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, CodeInternal, "An internal server error occurred")
}
