package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/okozhin/icewheel/internal/cache/redis"
	"github.com/okozhin/icewheel/internal/config"
	"github.com/okozhin/icewheel/internal/domain"
	"github.com/okozhin/icewheel/internal/notify"
	"github.com/okozhin/icewheel/internal/platform/tonapi"
	"github.com/okozhin/icewheel/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application needs
// to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Redis-backed game state
	Balances    domain.BalanceLedger
	BetBook     domain.BetBook
	History     domain.HistoryStore
	Markers     domain.MarkerStore
	Intents     domain.IntentStore
	Identity    domain.IdentityStore
	AdminTokens domain.AdminTokenStore
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter

	// AuditStore is nil unless an audit database is configured.
	AuditStore domain.AuditStore

	// Transfers consults the external TON ledger.
	Transfers domain.TransferQuerier

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (the ledger; always required) ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Balances = redis.NewBalanceLedger(redisClient)
	deps.BetBook = redis.NewBetBook(redisClient)
	deps.History = redis.NewHistoryStore(redisClient)
	deps.Markers = redis.NewMarkerStore(redisClient)
	deps.Intents = redis.NewIntentStore(redisClient)
	deps.Identity = redis.NewIdentityStore(redisClient)
	deps.AdminTokens = redis.NewAdminTokenStore(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- PostgreSQL audit trail (optional) ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
	}

	// --- TON ledger client ---
	deps.Transfers = tonapi.NewClient(cfg.Deposit.TonapiBaseURL, cfg.Deposit.TonapiKey)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
