package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketplace-escrow-ledger/internal/logger"
)

// quietRoutes are polled by probes and scrapers and only logged when they fail
var quietRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Logger writes one line per request keyed by route pattern, so ledger ids in the
// path do not explode log cardinality. 4xx responses log at WARN and 5xx at ERROR.
func Logger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if quietRoutes[route] && status < 500 {
			return
		}
		if route == "" {
			route = "unmatched"
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		requestLogger := logger.WithCorrelationID(base, GetCorrelationID(c))
		if actor, ok := GetActor(c); ok {
			requestLogger = requestLogger.With("actor_id", actor.ID.String(), "actor_role", string(actor.Role))
		}

		requestLogger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}
