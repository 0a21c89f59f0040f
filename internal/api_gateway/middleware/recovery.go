package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
)

// Recovery turns a handler panic into a 500 envelope. Ledger mutations run inside
// database transactions, so a panic before commit leaves balances untouched.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			attrs := []any{
				"error", r,
				"stack", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"correlation_id", GetCorrelationID(c),
			}
			if actor, ok := GetActor(c); ok {
				attrs = append(attrs, "actor_id", actor.ID.String())
			}
			logger.Error("Panic recovered", attrs...)

			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metrics.PanicsRecoveredTotal.WithLabelValues(route).Inc()

			abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
		}()

		c.Next()
	}
}
