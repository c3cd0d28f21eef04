// Package config defines the top-level configuration for the dice game
// backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DICE_* environment variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	PriceFeed PriceFeedConfig `toml:"pricefeed"`
	Treasury  TreasuryConfig  `toml:"treasury"`
	Game      GameConfig      `toml:"game"`
	Admin     AdminConfig     `toml:"admin"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StorageConfig selects the round store backend.
type StorageConfig struct {
	// Backend is "memory" or "redis".
	Backend string `toml:"backend"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds the optional settlement-history archive database.
// Leave DSN and Host empty to run without it.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// S3Config holds the optional S3-compatible cold storage for settled-round
// snapshots. Leave Bucket empty to run without it.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PriceFeedConfig holds the DexScreener discovery and price lookup client
// parameters.
type PriceFeedConfig struct {
	BaseURL      string   `toml:"base_url"`
	Timeout      duration `toml:"timeout"`
	MinLiquidity float64  `toml:"min_liquidity"`
	MinVolume    float64  `toml:"min_volume"`
}

// TreasuryConfig holds the payout transfer service parameters. Leave BaseURL
// empty to disable automated payouts; settlement then credits the
// leaderboard only and payouts are handled manually.
type TreasuryConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// GameConfig holds the round lifecycle and staking rule parameters.
type GameConfig struct {
	RoundDuration   duration `toml:"round_duration"`
	StakingWindow   duration `toml:"staking_window"`
	PreviewWindow   duration `toml:"preview_window"`
	TokensPerRound  int      `toml:"tokens_per_round"`
	MinStake        float64  `toml:"min_stake"`
	MaxStake        float64  `toml:"max_stake"`
	FeeRate         float64  `toml:"fee_rate"`
	MinPayout       float64  `toml:"min_payout"`
	PayoutDelay     duration `toml:"payout_delay"`
	AdvanceInterval duration `toml:"advance_interval"`
	AdvanceLockTTL  duration `toml:"advance_lock_ttl"`
}

// AdminConfig holds operator endpoint credentials.
type AdminConfig struct {
	Password string `toml:"password"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "15m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "dice",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "dice-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		PriceFeed: PriceFeedConfig{
			BaseURL:      "https://api.dexscreener.com",
			Timeout:      duration{15 * time.Second},
			MinLiquidity: 10_000,
			MinVolume:    50_000,
		},
		Treasury: TreasuryConfig{
			Timeout: duration{30 * time.Second},
		},
		Game: GameConfig{
			RoundDuration:   duration{15 * time.Minute},
			StakingWindow:   duration{2 * time.Minute},
			PreviewWindow:   duration{2 * time.Minute},
			TokensPerRound:  6,
			MinStake:        0.1,
			MaxStake:        5.0,
			FeeRate:         0.10,
			MinPayout:       0.001,
			PayoutDelay:     duration{500 * time.Millisecond},
			AdvanceInterval: duration{30 * time.Second},
			AdvanceLockTTL:  duration{60 * time.Second},
		},
		LogLevel: "info",
	}
}

// validBackends enumerates the accepted values for Storage.Backend.
var validBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Storage
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: memory, redis)", c.Storage.Backend))
	}
	if strings.ToLower(c.Storage.Backend) == "redis" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty for the redis backend")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// PriceFeed
	if c.PriceFeed.BaseURL == "" {
		errs = append(errs, "pricefeed: base_url must not be empty")
	}
	if c.PriceFeed.Timeout.Duration <= 0 {
		errs = append(errs, "pricefeed: timeout must be > 0")
	}

	// Game
	if c.Game.RoundDuration.Duration <= 0 {
		errs = append(errs, "game: round_duration must be > 0")
	}
	if c.Game.StakingWindow.Duration <= 0 {
		errs = append(errs, "game: staking_window must be > 0")
	}
	if c.Game.StakingWindow.Duration > c.Game.RoundDuration.Duration {
		errs = append(errs, "game: staking_window must not exceed round_duration")
	}
	if c.Game.PreviewWindow.Duration < 0 {
		errs = append(errs, "game: preview_window must be >= 0")
	}
	if c.Game.TokensPerRound < 2 {
		errs = append(errs, "game: tokens_per_round must be >= 2")
	}
	if c.Game.MinStake <= 0 {
		errs = append(errs, "game: min_stake must be > 0")
	}
	if c.Game.MaxStake < c.Game.MinStake {
		errs = append(errs, "game: max_stake must be >= min_stake")
	}
	if c.Game.FeeRate < 0 || c.Game.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("game: fee_rate must be in [0, 1), got %g", c.Game.FeeRate))
	}
	if c.Game.AdvanceInterval.Duration < 0 {
		errs = append(errs, "game: advance_interval must be >= 0 (0 disables the internal ticker)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
