// Package app provides the top-level application lifecycle for the dice game
// backend. It wires together the round store, price feed, treasury, archives,
// and services, then runs the HTTP server alongside the round advancement
// ticker until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/degendice/backend/internal/config"
	"github.com/degendice/backend/internal/server"
	"github.com/degendice/backend/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
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

// Run wires all dependencies, starts the HTTP server and the advancement
// ticker, and blocks until the context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("storage_backend", a.cfg.Storage.Backend),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		AdminPassword: a.cfg.Admin.Password,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Round:       handler.NewRoundHandler(deps.Rounds, a.logger),
		Stake:       handler.NewStakeHandler(deps.Stakes, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(deps.Rounds, a.logger),
		Advance:     handler.NewAdvanceHandler(deps.Advancer, a.logger),
		Admin:       handler.NewAdminHandler(deps.Advancer, deps.Rounds, deps.Treasury, a.logger),
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	g.Go(func() error {
		return a.runAdvanceLoop(ctx, deps)
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

// runAdvanceLoop drives the round lifecycle from inside the process. An
// external cron hitting /api/cron/advance is optional redundancy; both paths
// run the same idempotent advancement.
func (a *App) runAdvanceLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Game.AdvanceInterval.Duration
	if interval <= 0 {
		a.logger.InfoContext(ctx, "advance loop disabled, relying on external cron")
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "advance loop started",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			actions, err := deps.Advancer.Advance(ctx)
			if err != nil {
				a.logger.ErrorContext(ctx, "round advancement failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			for _, action := range actions {
				a.logger.InfoContext(ctx, "round advanced",
					slog.String("action", action),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
