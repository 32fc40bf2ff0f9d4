// Package server exposes palette extraction and image editing over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/swatch/internal/colour"
	"github.com/jmylchreest/swatch/internal/config"
	"github.com/jmylchreest/swatch/internal/credential"
	"github.com/jmylchreest/swatch/internal/edit"
	imgutil "github.com/jmylchreest/swatch/internal/image"
	"github.com/jmylchreest/swatch/internal/security"
	"github.com/jmylchreest/swatch/internal/session"
	httputil "github.com/jmylchreest/swatch/internal/util/http"
)

const shutdownTimeout = 10 * time.Second

// Server wires the HTTP routes to the palette extractor, the edit
// orchestrator and the credential store.
type Server struct {
	cfg         config.Config
	edits       *edit.Orchestrator
	credentials *credential.Store
	palettes    *session.Tracker[*colour.Palette]
	loader      *imgutil.SmartLoader
	urlPolicy   security.URLPolicy
	logger      hclog.Logger
	handler     http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithURLPolicy controls which remote image URLs /api/palette may fetch.
func WithURLPolicy(p security.URLPolicy) Option {
	return func(s *Server) { s.urlPolicy = p }
}

// New creates a Server.
func New(cfg config.Config, edits *edit.Orchestrator, credentials *credential.Store, opts ...Option) *Server {
	s := &Server{
		cfg:         cfg,
		edits:       edits,
		credentials: credentials,
		palettes:    session.NewTracker[*colour.Palette](),
		logger:      hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = imgutil.NewSmartLoader(httputil.FetchOptions{
		Timeout:  cfg.Timeout,
		MaxBytes: cfg.MaxUpload,
		Client:   s.urlPolicy.Client(cfg.Timeout),
	})
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/palette", s.handlePalette)
	mux.HandleFunc("POST /api/edit", s.handleEdit)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /api/credential", s.handleCredentialStatus)
	mux.HandleFunc("PUT /api/credential", s.handleCredentialSet)
	mux.HandleFunc("DELETE /api/credential", s.handleCredentialForget)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)

	return s.withRequestID(s.withLogging(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          s.logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
