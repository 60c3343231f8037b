// Package server exposes the runtime page loader over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/astral/internal/config"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/runtime"
)

// HealthPath is served by the server itself rather than the project.
const HealthPath = "/_astral/health"

// PageLoader answers request URIs. *runtime.Loader implements it.
type PageLoader interface {
	Load(ctx context.Context, rawPath string) runtime.LoadResult
}

// Server is the development server of one project.
type Server struct {
	config  *config.Config
	loader  PageLoader
	logger  logging.Logger
	started time.Time

	serverMutex sync.RWMutex
	httpServer  *http.Server
	listener    net.Listener
	closed      bool
}

// New creates a server for cfg answering through loader.
func New(cfg *config.Config, loader PageLoader, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		config: cfg,
		loader: loader,
		logger: logger.WithComponent("server"),
	}
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc("/", s.handlePage)
	return chain(mux, recoverer(s.logger), accessLog(s.logger), securityHeaders)
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the configured address and serves until ctx is done or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.serverMutex.Lock()
	if s.closed {
		s.serverMutex.Unlock()
		ln.Close()
		return nil
	}
	s.started = time.Now()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Server started", "url", "http://"+ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, err, "Shutdown failed")
		}
	})
	defer stop()

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server. It is safe to call more than once
// and before Start, which then returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMutex.Lock()
	server := s.httpServer
	already := s.closed
	s.closed = true
	s.serverMutex.Unlock()
	if server == nil || already {
		return nil
	}
	s.logger.Info(ctx, "Shutting down server")
	return server.Shutdown(ctx)
}
