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
// built-in defaults, applies DICE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known DICE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "DICE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DICE_SERVER_CORS_ORIGINS")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "DICE_STORAGE_BACKEND")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DICE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DICE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DICE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DICE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DICE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DICE_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DICE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DICE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DICE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DICE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DICE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DICE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DICE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DICE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DICE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DICE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DICE_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DICE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DICE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DICE_S3_REGION")
	setStr(&cfg.S3.Bucket, "DICE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DICE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DICE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DICE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DICE_S3_FORCE_PATH_STYLE")

	// ── PriceFeed ──
	setStr(&cfg.PriceFeed.BaseURL, "DICE_PRICEFEED_BASE_URL")
	setDuration(&cfg.PriceFeed.Timeout, "DICE_PRICEFEED_TIMEOUT")
	setFloat64(&cfg.PriceFeed.MinLiquidity, "DICE_PRICEFEED_MIN_LIQUIDITY")
	setFloat64(&cfg.PriceFeed.MinVolume, "DICE_PRICEFEED_MIN_VOLUME")

	// ── Treasury ──
	setStr(&cfg.Treasury.BaseURL, "DICE_TREASURY_BASE_URL")
	setStr(&cfg.Treasury.APIKey, "DICE_TREASURY_API_KEY")
	setDuration(&cfg.Treasury.Timeout, "DICE_TREASURY_TIMEOUT")

	// ── Game ──
	setDuration(&cfg.Game.RoundDuration, "DICE_GAME_ROUND_DURATION")
	setDuration(&cfg.Game.StakingWindow, "DICE_GAME_STAKING_WINDOW")
	setDuration(&cfg.Game.PreviewWindow, "DICE_GAME_PREVIEW_WINDOW")
	setInt(&cfg.Game.TokensPerRound, "DICE_GAME_TOKENS_PER_ROUND")
	setFloat64(&cfg.Game.MinStake, "DICE_GAME_MIN_STAKE")
	setFloat64(&cfg.Game.MaxStake, "DICE_GAME_MAX_STAKE")
	setFloat64(&cfg.Game.FeeRate, "DICE_GAME_FEE_RATE")
	setFloat64(&cfg.Game.MinPayout, "DICE_GAME_MIN_PAYOUT")
	setDuration(&cfg.Game.PayoutDelay, "DICE_GAME_PAYOUT_DELAY")
	setDuration(&cfg.Game.AdvanceInterval, "DICE_GAME_ADVANCE_INTERVAL")
	setDuration(&cfg.Game.AdvanceLockTTL, "DICE_GAME_ADVANCE_LOCK_TTL")

	// ── Admin ──
	setStr(&cfg.Admin.Password, "DICE_ADMIN_PASSWORD")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "DICE_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
