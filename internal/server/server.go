// Package server exposes the account gateway over an authenticated JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rogeecn/vpsdash/internal/account"
	"github.com/rogeecn/vpsdash/internal/auth"
	"github.com/rogeecn/vpsdash/internal/config"
	"github.com/rs/zerolog/log"
)

// AccountService is the gateway surface the handlers use.
type AccountService interface {
	ListByType(ctx context.Context, tag string) ([]account.Account, error)
	Collection(ctx context.Context) (map[string]account.Account, error)
	Get(ctx context.Context, id string) (account.Account, error)
	Create(ctx context.Context, draft account.Account) (string, error)
	Update(ctx context.Context, id string, patch account.Patch) error
	Delete(ctx context.Context, id string) error
}

// SessionService issues and checks login sessions.
type SessionService interface {
	Issue(id auth.Identity) (auth.Session, error)
	Verify(token string) (*auth.Identity, error)
}

type Deps struct {
	Accounts AccountService
	Verifier auth.Verifier
	Sessions SessionService
}

type Server struct {
	config     *config.Config
	accounts   AccountService
	verifier   auth.Verifier
	sessions   SessionService
	httpServer *http.Server

	serveFn    func() error
	shutdownFn func(ctx context.Context) error
}

func New(cfg *config.Config, deps Deps) *Server {
	if cfg == nil {
		cfg = &config.Config{Host: "0.0.0.0", Port: 28000}
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 28000
	}

	s := &Server{
		config:   cfg,
		accounts: deps.Accounts,
		verifier: deps.Verifier,
		sessions: deps.Sessions,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serveFn = s.httpServer.ListenAndServe
	s.shutdownFn = s.httpServer.Shutdown

	return s
}

func (s *Server) Start() error {
	log.Info().
		Str("addr", s.httpServer.Addr).
		Msg("http server starting")

	if err := s.serveFn(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.shutdownFn(ctx); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}
