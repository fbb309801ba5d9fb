// Package app provides the top-level application lifecycle management for
// the icewheel backend. It wires together all dependencies (caches, the
// audit store, the TON ledger client, services, handlers, and notifications)
// and runs the HTTP/WebSocket server until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okozhin/icewheel/internal/config"
	"github.com/okozhin/icewheel/internal/server"
	"github.com/okozhin/icewheel/internal/server/handler"
	"github.com/okozhin/icewheel/internal/server/ws"
	"github.com/okozhin/icewheel/internal/service"
	"github.com/okozhin/icewheel/internal/wheel"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, assembles the
// services and the API server, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	clock := wheel.NewClock(
		a.cfg.Wheel.SpinDuration.Duration,
		a.cfg.Wheel.PostDuration.Duration,
		a.cfg.Wheel.CountActiveEndCompleted,
	)
	oracle := wheel.NewOracle(a.cfg.Wheel.Seed)

	historySvc := service.NewHistoryService(clock, oracle, deps.History, deps.Locks, a.cfg.Wheel.HistorySize, a.logger)
	betSvc := service.NewBetService(clock, deps.Balances, deps.BetBook, a.logger)
	settlementSvc := service.NewSettlementService(clock, oracle, deps.Balances, deps.BetBook, deps.Markers, deps.AuditStore, a.logger)
	depositSvc := service.NewDepositService(service.DepositConfig{
		Treasury:             a.cfg.Deposit.Treasury,
		DefaultNano:          a.cfg.Deposit.DefaultNano,
		IntentTTL:            a.cfg.Deposit.IntentTTL.Duration,
		MinObservation:       a.cfg.Deposit.MinObservation.Duration,
		MatchTolerance:       a.cfg.Deposit.MatchTolerance.Duration,
		AllowAmountOnlyMatch: a.cfg.Deposit.AllowAmountOnlyMatch,
	}, deps.Transfers, deps.Intents, deps.Markers, deps.Balances, deps.AuditStore, a.logger)
	balanceSvc := service.NewBalanceService(deps.Balances, deps.Identity, a.logger)
	adminSvc := service.NewAdminService(deps.AdminTokens, deps.Identity, a.logger)

	// A bootstrap token lets an operator reach the admin surface on a
	// fresh deployment. No expiry; rotate by changing the config.
	if a.cfg.Admin.BootstrapToken != "" {
		if err := deps.AdminTokens.Issue(ctx, a.cfg.Admin.BootstrapToken, 0); err != nil {
			return fmt.Errorf("app: issue bootstrap admin token: %w", err)
		}
		a.logger.InfoContext(ctx, "bootstrap admin token issued")
	}

	stateHandler := handler.NewStateHandler(clock, oracle, historySvc, a.logger)
	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		State:    stateHandler,
		Bets:     handler.NewBetHandler(betSvc, settlementSvc, deps.Notifier, a.cfg.Wheel.BigWinAlertNano, a.logger),
		Balance:  handler.NewBalanceHandler(balanceSvc, a.logger),
		Deposits: handler.NewDepositHandler(depositSvc, deps.Notifier, a.logger),
		Admin:    handler.NewAdminHandler(adminSvc, balanceSvc, deps.Notifier, a.logger),
	}

	hub := ws.NewHub(clock, stateHandler.Snapshot, a.logger)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.AdminTokens, deps.RateLimiter, hub, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
