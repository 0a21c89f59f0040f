package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/handler"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/middleware"
	"github.com/marketplace-escrow-ledger/internal/platform/metrics"
)

type handlers struct {
	escrow       *handler.EscrowHandler
	wallet       *handler.WalletHandler
	payment      *handler.PaymentHandler
	moneyRequest *handler.MoneyRequestHandler
}

// HealthChecker reports whether the ledger store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

const healthProbeTimeout = 2 * time.Second

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers, health HealthChecker) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(metrics.Middleware())

	// the same routes are served bare and under /api/v1
	registerRoutes(&r.RouterGroup, h)
	registerRoutes(r.Group("/api/v1"), h)

	r.GET("/health", healthHandler(logger, health))
	r.GET("/metrics", metrics.Handler())

	r.NoRoute(func(c *gin.Context) {
		handler.RespondNotFound(c, "Route not found")
	})
}

// healthHandler answers 503 while the ledger store is unreachable
func healthHandler(logger *slog.Logger, health HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				logger.Error("Health probe failed", "error", err)
				handler.RespondUnavailable(c)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	}
}

// registerRoutes resolves the caller on every group except the payment webhook,
// which is called by the gateway and must answer 200 whatever headers it carries.
func registerRoutes(g *gin.RouterGroup, h handlers) {
	actor := middleware.Actor()
	authenticated := middleware.RequireActor()

	escrows := g.Group("/escrow", actor)
	{
		escrows.POST("", authenticated, h.escrow.Create)
		escrows.GET("/:id", h.escrow.GetByID)
		escrows.GET("/:id/movements", h.escrow.Movements)
		escrows.POST("/:id/confirm", authenticated, h.escrow.Confirm)
		escrows.POST("/:id/dispute", authenticated, h.escrow.Dispute)
		escrows.POST("/:id/resolve", authenticated, h.escrow.Resolve)
	}

	wallets := g.Group("/wallet", actor)
	{
		wallets.POST("", authenticated, h.wallet.Create)
		wallets.GET("/:accountId/balance", h.wallet.Balance)
		wallets.GET("/:accountId/movements", h.wallet.Movements)
		wallets.GET("/:accountId/history", h.wallet.History)
		wallets.GET("/:accountId/reconciliation", h.wallet.Reconciliation)
		wallets.GET("/:accountId/money-requests", h.moneyRequest.ListForAccount)
		wallets.POST("/:accountId/withdraw", authenticated, h.wallet.Withdraw)
		wallets.POST("/:accountId/corrections", authenticated, h.wallet.Correct)
		wallets.POST("/:accountId/disable", authenticated, h.wallet.Disable)
	}

	payments := g.Group("/payments")
	{
		transactions := payments.Group("/transactions", actor)
		transactions.POST("", authenticated, h.payment.CreateTransaction)
		transactions.GET("/:id", h.payment.GetTransaction)
		payments.POST("/webhook", h.payment.Webhook)
	}

	requests := g.Group("/money-requests", actor)
	{
		requests.POST("", authenticated, h.moneyRequest.Create)
		requests.GET("/:id", h.moneyRequest.GetByID)
		requests.POST("/:id/accept", authenticated, h.moneyRequest.Accept)
		requests.POST("/:id/decline", authenticated, h.moneyRequest.Decline)
	}
}
