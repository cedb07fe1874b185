// Package gateway exposes the admin HTTP API: session lifecycle,
// store settings, catalog, conversation reads and manual sends.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vendazap/vendazap/internal/config"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/outbound"
	"github.com/vendazap/vendazap/internal/session"
	"github.com/vendazap/vendazap/internal/store"
)

// Deps are the collaborators the API surfaces.
type Deps struct {
	Sessions   *session.Manager
	Settings   *store.SettingsStore
	Contacts   *store.ContactStore
	Messages   *store.MessageStore
	Products   *store.ProductStore
	Dispatcher *outbound.Dispatcher
}

// Server is the admin HTTP server.
type Server struct {
	cfg  config.GatewayConfig
	deps Deps
	log  *logging.Logger

	startedAt   time.Time
	httpServer  *http.Server
	authLimiter *authRateLimiter
}

// New creates an admin server.
func New(cfg config.GatewayConfig, deps Deps, log *logging.Logger) *Server {
	return &Server{
		cfg:         cfg,
		deps:        deps,
		log:         log.Component("gateway"),
		authLimiter: newAuthRateLimiter(),
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins serving the admin API. It blocks until the context is
// cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.AuthToken == "" && s.cfg.Bind != "loopback" && s.cfg.Bind != "" {
		s.log.Warn().Msg("no auth token configured on a non-loopback bind")
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Msg("admin API ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down admin API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
