package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ICEWHEEL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ICEWHEEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ICEWHEEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ICEWHEEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ICEWHEEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ICEWHEEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ICEWHEEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ICEWHEEL_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ICEWHEEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ICEWHEEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ICEWHEEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ICEWHEEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ICEWHEEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ICEWHEEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ICEWHEEL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ICEWHEEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ICEWHEEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ICEWHEEL_POSTGRES_RUN_MIGRATIONS")

	// ── Wheel ──
	setStr(&cfg.Wheel.Seed, "ICEWHEEL_WHEEL_SEED")
	setDuration(&cfg.Wheel.SpinDuration, "ICEWHEEL_WHEEL_SPIN_DURATION")
	setDuration(&cfg.Wheel.PostDuration, "ICEWHEEL_WHEEL_POST_DURATION")
	setInt(&cfg.Wheel.HistorySize, "ICEWHEEL_WHEEL_HISTORY_SIZE")
	setBool(&cfg.Wheel.CountActiveEndCompleted, "ICEWHEEL_WHEEL_COUNT_ACTIVE_END_COMPLETED")
	setInt64(&cfg.Wheel.BigWinAlertNano, "ICEWHEEL_WHEEL_BIG_WIN_ALERT_NANO")

	// ── Deposit ──
	setStr(&cfg.Deposit.Treasury, "ICEWHEEL_DEPOSIT_TREASURY")
	setStr(&cfg.Deposit.TonapiBaseURL, "ICEWHEEL_DEPOSIT_TONAPI_BASE_URL")
	setStr(&cfg.Deposit.TonapiKey, "ICEWHEEL_DEPOSIT_TONAPI_KEY")
	setInt64(&cfg.Deposit.DefaultNano, "ICEWHEEL_DEPOSIT_DEFAULT_NANO")
	setDuration(&cfg.Deposit.IntentTTL, "ICEWHEEL_DEPOSIT_INTENT_TTL")
	setDuration(&cfg.Deposit.MinObservation, "ICEWHEEL_DEPOSIT_MIN_OBSERVATION")
	setDuration(&cfg.Deposit.MatchTolerance, "ICEWHEEL_DEPOSIT_MATCH_TOLERANCE")
	setBool(&cfg.Deposit.AllowAmountOnlyMatch, "ICEWHEEL_DEPOSIT_ALLOW_AMOUNT_ONLY_MATCH")

	// ── Server ──
	setInt(&cfg.Server.Port, "ICEWHEEL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ICEWHEEL_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "ICEWHEEL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ICEWHEEL_SERVER_RATE_WINDOW")

	// ── Admin ──
	setStr(&cfg.Admin.BootstrapToken, "ICEWHEEL_ADMIN_BOOTSTRAP_TOKEN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ICEWHEEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ICEWHEEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "ICEWHEEL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ICEWHEEL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
