package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/handler"
	"github.com/marketplace-escrow-ledger/internal/api_gateway/service"
	"github.com/marketplace-escrow-ledger/internal/config"
	ledger "github.com/marketplace-escrow-ledger/internal/escrow_processor/service"
)

// Services are the ledger operations exposed over HTTP. Health is optional;
// without it /health only reports that the process is up.
type Services struct {
	Wallets       service.WalletService
	Escrows       ledger.EscrowService
	Disputes      ledger.DisputeCoordinator
	Payments      ledger.PaymentIntake
	MoneyRequests ledger.MoneyRequestService
	Health        HealthChecker
}

// Server owns the gin engine and the net/http server in front of it
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	router     *gin.Engine
}

func NewServer(log *slog.Logger, cfg *config.Config, services Services) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	setupRouter(log, router, handlers{
		escrow:       handler.NewEscrowHandler(log, services.Escrows, services.Disputes),
		wallet:       handler.NewWalletHandler(log, services.Wallets),
		payment:      handler.NewPaymentHandler(log, services.Payments),
		moneyRequest: handler.NewMoneyRequestHandler(log, services.MoneyRequests),
	}, services.Health)

	return &Server{
		logger: log,
		router: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until Stop is called
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Stop stops accepting connections and waits for in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Draining HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	return nil
}
