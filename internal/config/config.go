// Package config defines the top-level configuration for the icewheel
// server and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ICEWHEEL_* environment
// variables.
type Config struct {
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Wheel    WheelConfig    `toml:"wheel"`
	Deposit  DepositConfig  `toml:"deposit"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// RedisConfig holds Redis connection parameters. Redis is the shared ledger
// store; there is no in-process fallback.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds the optional audit-trail database parameters. When
// DSN and Host are both empty, auditing is disabled.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether an audit database is configured at all.
func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != "" || c.Host != ""
}

// WheelConfig holds the round timing and outcome parameters. Every process
// pointed at the same seed and timings computes identical outcomes.
type WheelConfig struct {
	// Seed keys the outcome HMAC. All instances must share it.
	Seed string `toml:"seed"`
	// SpinDuration is the active (betting) phase length.
	SpinDuration duration `toml:"spin_duration"`
	// PostDuration is the cooldown between spin end and the next round.
	PostDuration duration `toml:"post_duration"`
	// HistorySize is how many completed outcomes the history keeps.
	HistorySize int `toml:"history_size"`
	// CountActiveEndCompleted makes the current round settleable as soon
	// as its active phase ends, instead of only strictly previous rounds.
	CountActiveEndCompleted bool `toml:"count_active_end_completed"`
	// BigWinAlertNano is the settlement credit that triggers an operator
	// alert. Zero disables.
	BigWinAlertNano int64 `toml:"big_win_alert_nano"`
}

// DepositConfig holds the TON deposit reconciliation parameters.
type DepositConfig struct {
	// Treasury is the TON account users deposit to.
	Treasury string `toml:"treasury"`
	// TonapiBaseURL is the tonapi.io API root.
	TonapiBaseURL string `toml:"tonapi_base_url"`
	// TonapiKey is the bearer token for tonapi.io.
	TonapiKey string `toml:"tonapi_key"`
	// DefaultNano is the deposit amount offered when the user names none.
	DefaultNano int64 `toml:"default_nano"`
	// IntentTTL bounds how long an unconfirmed intent stays loadable.
	IntentTTL duration `toml:"intent_ttl"`
	// MinObservation is how long a confirm waits before querying the chain.
	MinObservation duration `toml:"min_observation"`
	// MatchTolerance allows a matched transfer's timestamp to precede the
	// intent by this much (clock skew).
	MatchTolerance duration `toml:"match_tolerance"`
	// AllowAmountOnlyMatch accepts commentless transfers on amount and
	// time alone. Reduced assurance.
	AllowAmountOnlyMatch bool `toml:"allow_amount_only_match"`
}

// duration wraps time.Duration for TOML string decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit caps requests per client IP per RateWindow. Zero disables.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// AdminConfig holds operator access parameters.
type AdminConfig struct {
	// BootstrapToken, when set, is issued as a session at startup so an
	// operator can reach the admin surface on a fresh deployment.
	BootstrapToken string `toml:"bootstrap_token"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "icewheel",
			User:          "icewheel",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Wheel: WheelConfig{
			SpinDuration:            duration{8600 * time.Millisecond},
			PostDuration:            duration{15000 * time.Millisecond},
			HistorySize:             18,
			CountActiveEndCompleted: true,
		},
		Deposit: DepositConfig{
			TonapiBaseURL:  "https://tonapi.io",
			DefaultNano:    200_000_000,
			IntentTTL:      duration{30 * time.Minute},
			MinObservation: duration{20 * time.Second},
			MatchTolerance: duration{90 * time.Second},
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   60,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"deposit_credited", "big_win", "balance_adjusted"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres (only when configured)
	if c.Postgres.Enabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty (or set postgres.dsn)")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Wheel
	if c.Wheel.Seed == "" {
		errs = append(errs, "wheel: seed must not be empty")
	}
	if c.Wheel.SpinDuration.Duration <= 0 {
		errs = append(errs, "wheel: spin_duration must be > 0")
	}
	if c.Wheel.PostDuration.Duration <= 0 {
		errs = append(errs, "wheel: post_duration must be > 0")
	}
	if c.Wheel.HistorySize < 1 {
		errs = append(errs, "wheel: history_size must be >= 1")
	}

	// Deposit
	if c.Deposit.Treasury == "" {
		errs = append(errs, "deposit: treasury must not be empty")
	}
	if c.Deposit.TonapiBaseURL == "" {
		errs = append(errs, "deposit: tonapi_base_url must not be empty")
	}
	if c.Deposit.DefaultNano <= 0 {
		errs = append(errs, "deposit: default_nano must be > 0")
	}
	if c.Deposit.IntentTTL.Duration <= 0 {
		errs = append(errs, "deposit: intent_ttl must be > 0")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}

	// Telegram token and chat id go together.
	nt := c.Notify.TelegramToken != ""
	nc := c.Notify.TelegramChatID != ""
	if nt != nc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
