// Package api serves the read-only registry view and a rescan trigger over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
)

// Registry is the part of a repository the API reads from.
type Registry interface {
	Name() string
	Directory() string
	FindAll() []descriptor.Descriptor
	FindByName(name string) (descriptor.Descriptor, bool)
	Auxiliary() []string
	Trigger(ctx context.Context, force bool) error
}

// Options configures a Server.
type Options struct {
	Addr     string
	Registry Registry
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
}

// Server is the admin HTTP API.
type Server struct {
	Addr     string
	registry Registry
	router   *chi.Mux
	server   *http.Server
	errors   *ferrors.HTTPErrorAdapter
	logger   *slog.Logger
}

// NewServer creates a server; call Start to listen.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Addr:     opts.Addr,
		registry: opts.Registry,
		router:   chi.NewRouter(),
		errors:   ferrors.NewHTTPErrorAdapter(logger),
		logger:   logger,
	}
	s.setupRoutes(opts)

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/packages", s.handleListPackages)
	s.router.Get("/packages/{name}", s.handleGetPackage)
	s.router.Get("/auxiliary", s.handleAuxiliary)
	s.router.Post("/rescan", s.handleRescan)

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.Handle(path, opts.Metrics)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("Admin API listening", logfields.Addr(s.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "admin API failed").
			WithContext("addr", s.Addr).
			Build()
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "admin API failed").
			WithContext("addr", l.Addr().String()).
			Build()
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
