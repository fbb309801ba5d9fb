// Package server assembles the HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/server/handler"
	"github.com/okozhin/icewheel/internal/server/middleware"
	"github.com/okozhin/icewheel/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// RateLimit caps requests per client IP per RateWindow. Zero disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	State    *handler.StateHandler
	Bets     *handler.BetHandler
	Balance  *handler.BalanceHandler
	Deposits *handler.DepositHandler
	Admin    *handler.AdminHandler
}

// Server is the public game API plus the admin surface.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain: CORS,
// request logging, and optional rate limiting on the public surface; the
// admin routes additionally sit behind the session-token check.
func NewServer(
	cfg Config,
	handlers Handlers,
	adminTokens middleware.TokenValidator,
	limiter domain.RateLimiter,
	wsHub *ws.Hub,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/state", handlers.State.GetState)

	mux.HandleFunc("POST /api/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("POST /api/bets/settle", handlers.Bets.Settle)

	mux.HandleFunc("GET /api/balance", handlers.Balance.GetBalance)

	mux.HandleFunc("POST /api/deposits", handlers.Deposits.CreateIntent)
	mux.HandleFunc("POST /api/deposits/confirm", handlers.Deposits.Confirm)
	mux.HandleFunc("POST /api/deposits/resume", handlers.Deposits.Resume)

	// Admin surface behind its own auth.
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/validate", handlers.Admin.Validate)
	adminMux.HandleFunc("GET /api/admin/balance", handlers.Admin.GetBalance)
	adminMux.HandleFunc("POST /api/admin/topup", handlers.Admin.Topup)
	adminMux.HandleFunc("POST /api/admin/adjust", handlers.Admin.Adjust)
	adminMux.HandleFunc("POST /api/admin/bind", handlers.Admin.Bind)
	mux.Handle("/api/admin/", middleware.AdminAuth(adminTokens, logger)(adminMux))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
