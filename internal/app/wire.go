package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/degendice/backend/internal/blob/s3"
	"github.com/degendice/backend/internal/config"
	"github.com/degendice/backend/internal/domain"
	"github.com/degendice/backend/internal/platform/dexscreener"
	"github.com/degendice/backend/internal/platform/treasury"
	"github.com/degendice/backend/internal/service"
	"github.com/degendice/backend/internal/store/memory"
	"github.com/degendice/backend/internal/store/postgres"
	redisstore "github.com/degendice/backend/internal/store/redis"
)

// Dependencies bundles every domain-level dependency the application needs to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Store    domain.RoundStore
	Feed     domain.PriceFeed
	Treasury domain.Treasury

	Rounds   *service.RoundService
	Stakes   *service.StakeService
	Advancer *service.Advancer
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	policy := domain.WindowPolicy{
		RoundDuration: cfg.Game.RoundDuration.Duration,
		StakingWindow: cfg.Game.StakingWindow.Duration,
		PreviewWindow: cfg.Game.PreviewWindow.Duration,
	}

	deps := &Dependencies{}

	// --- Round store ---
	var locks domain.LockManager
	switch strings.ToLower(cfg.Storage.Backend) {
	case "redis":
		redisClient, err := redisstore.New(ctx, redisstore.ClientConfig{
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

		deps.Store = redisstore.NewRoundStore(redisClient, policy)
		locks = redisstore.NewLockManager(redisClient)
	default:
		// Single-process deployment; the advisory lock is unnecessary.
		deps.Store = memory.New(policy)
	}

	// --- Optional settlement-history archive (PostgreSQL) ---
	var history domain.HistoryArchive
	if cfg.Postgres.Enabled {
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
		history = postgres.NewHistoryStore(pgClient.Pool())
	}

	// --- Optional round snapshot archive (S3) ---
	var archiver domain.SnapshotArchiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Price feed ---
	deps.Feed = dexscreener.New(dexscreener.ClientConfig{
		BaseURL:      cfg.PriceFeed.BaseURL,
		Timeout:      cfg.PriceFeed.Timeout.Duration,
		MinLiquidity: cfg.PriceFeed.MinLiquidity,
		MinVolume:    cfg.PriceFeed.MinVolume,
	})

	// --- Treasury ---
	deps.Treasury = treasury.New(treasury.ClientConfig{
		BaseURL: cfg.Treasury.BaseURL,
		APIKey:  cfg.Treasury.APIKey,
		Timeout: cfg.Treasury.Timeout.Duration,
	})

	// --- Services ---
	deps.Rounds = service.NewRoundService(deps.Store, deps.Feed, policy)
	deps.Stakes = service.NewStakeService(deps.Store, cfg.Game.MinStake, cfg.Game.MaxStake, logger)

	payouts := service.NewPayoutProcessor(
		deps.Treasury,
		cfg.Game.MinPayout,
		cfg.Game.PayoutDelay.Duration,
		logger,
	)
	deps.Advancer = service.NewAdvancer(service.AdvancerConfig{
		Store:          deps.Store,
		Feed:           deps.Feed,
		Treasury:       deps.Treasury,
		Payouts:        payouts,
		Locks:          locks,
		History:        history,
		Archiver:       archiver,
		Log:            logger,
		Policy:         policy,
		TokensPerRound: cfg.Game.TokensPerRound,
		FeeRate:        cfg.Game.FeeRate,
		LockTTL:        cfg.Game.AdvanceLockTTL.Duration,
	})

	return deps, cleanup, nil
}
