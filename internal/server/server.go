// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/vistly/vistly/internal/config"
	"github.com/vistly/vistly/internal/handlers"
	"github.com/vistly/vistly/internal/metrics"
	"github.com/vistly/vistly/internal/middleware"
	"github.com/vistly/vistly/pkg/logger"
)

// Handlers bundles the request handlers the server routes to.
type Handlers struct {
	Health      *handlers.HealthHandler
	Feed        *handlers.FeedHandler
	Leaderboard *handlers.LeaderboardHandler
	Visit       *handlers.VisitHandler
	Social      *handlers.SocialHandler
	Signup      *handlers.SignupHandler
}

// Server represents the HTTP server.
type Server struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server
	handlers   Handlers
	listener   net.Listener
	running    bool
	mu         sync.RWMutex
}

// New creates a new Server instance.
func New(cfg *config.Config, log *logger.Logger, h Handlers) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		handlers: h,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.buildMiddlewareChain(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// buildMiddlewareChain creates the global middleware chain.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	chain := middleware.New(
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.ClientIP(s.cfg.Server.TrustProxy, nil),
	)

	return chain.Then(handler)
}

// registerRoutes sets up the HTTP routes. API routes additionally go
// through the version guard; all of them except the signup check require
// an authenticated user.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handlers.Health.Health)
	mux.HandleFunc("GET /ready", s.handlers.Health.Ready)
	mux.Handle("GET /metrics", metrics.Handler())

	api := middleware.New(middleware.Version(), middleware.Auth())
	mux.Handle("GET /api/v1/feed", api.ThenFunc(s.handlers.Feed.List))
	mux.Handle("GET /api/v1/leaderboard", api.ThenFunc(s.handlers.Leaderboard.List))
	mux.Handle("POST /api/v1/visits", api.ThenFunc(s.handlers.Visit.Create))
	mux.Handle("PATCH /api/v1/visits/{id}", api.ThenFunc(s.handlers.Visit.Update))
	mux.Handle("POST /api/v1/follows", api.ThenFunc(s.handlers.Social.Follow))
	mux.Handle("POST /api/v1/lists/{id}/items", api.ThenFunc(s.handlers.Social.AddListItem))

	// The signup check runs before an account exists, so no Auth here.
	anon := middleware.New(middleware.Version())
	mux.Handle("POST /api/v1/signup-check", anon.ThenFunc(s.handlers.Signup.Check))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	// Create listener first to get the actual address (important when port is 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	// Mark as not ready so load balancers drain us first.
	s.handlers.Health.SetReady(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
