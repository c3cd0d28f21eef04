// Package server exposes the game over HTTP: public read endpoints, the
// stake write endpoint, the cron trigger, and the password-gated operator
// surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/degendice/backend/internal/server/handler"
	"github.com/degendice/backend/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port          int
	CORSOrigins   []string
	AdminPassword string // if empty, admin endpoints are disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Round       *handler.RoundHandler
	Stake       *handler.StakeHandler
	Leaderboard *handler.LeaderboardHandler
	Advance     *handler.AdvanceHandler
	Admin       *handler.AdminHandler
}

// Server is the HTTP API server for the round engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered on the ServeMux and the
// middleware chain (logging, CORS, admin auth on operator routes) applied.
func New(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Public game state.
	mux.HandleFunc("GET /api/round", handlers.Round.GetRound)
	mux.HandleFunc("GET /api/prices", handlers.Round.GetPrices)
	mux.HandleFunc("GET /api/leaderboard", handlers.Leaderboard.GetLeaderboard)

	// Stake placement.
	mux.HandleFunc("POST /api/stake", handlers.Stake.PlaceStake)

	// Lifecycle trigger for external cron; idempotent, so left unauthenticated.
	mux.HandleFunc("GET /api/cron/advance", handlers.Advance.AdvanceRound)

	// Operator endpoints behind the admin password.
	adminAuth := middleware.Admin(cfg.AdminPassword)
	mux.Handle("POST /api/admin/start-round", adminAuth(http.HandlerFunc(handlers.Admin.StartRound)))
	mux.Handle("POST /api/admin/end-round", adminAuth(http.HandlerFunc(handlers.Admin.EndRound)))
	mux.Handle("GET /api/admin/history", adminAuth(http.HandlerFunc(handlers.Admin.History)))
	mux.Handle("POST /api/admin/payout-status", adminAuth(http.HandlerFunc(handlers.Admin.PayoutStatus)))

	var h http.Handler = mux
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

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
