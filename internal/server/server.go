package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"cloudnest/pkg/config"
	"cloudnest/utils"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned by Listen when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	port        int
	portErr     error
	instanceID  string
	lockPath    string
	title       string
	environment string
	hostname    func() string
	indexTmpl   *template.Template

	mu       sync.Mutex
	listener net.Listener
	lock     *flock.Flock
	closed   bool
}

// Option customizes a Server built by New.
type Option func(*Server)

// WithHostnameFunc replaces the operating system host name lookup.
func WithHostnameFunc(fn func() string) Option {
	return func(s *Server) {
		s.hostname = fn
	}
}

// New creates a new server instance from server-specific configuration
func New(serverCfg *config.Config, appCfg *config.Config, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()
	httpServer := &http.Server{
		Handler:      normalizePath(mux),
		ReadTimeout:  serverCfg.GetSeconds("readTimeout", 15),
		WriteTimeout: serverCfg.GetSeconds("writeTimeout", 15),
		IdleTimeout:  serverCfg.GetSeconds("idleTimeout", 60),
	}

	port, portErr := serverCfg.GetPort("port", 4000)

	instanceID := uuid.NewString()
	srv := &Server{
		httpServer:  httpServer,
		logger:      logger.With("instance", instanceID),
		port:        port,
		portErr:     portErr,
		instanceID:  instanceID,
		lockPath:    serverCfg.GetStringWithDefault("lockFile", ""),
		title:       appCfg.GetStringWithDefault("title", "CloudNest v2 - CI Working"),
		environment: appCfg.GetStringWithDefault("environment", "Production"),
		hostname:    utils.LookupHostname,
		indexTmpl:   indexTemplate,
	}
	for _, opt := range opts {
		opt(srv)
	}
	httpServer.Addr = fmt.Sprintf(":%d", srv.port)

	srv.setupRoutes(mux)

	return srv
}

// setupRoutes configures all HTTP routes. Method checks happen inside the
// handlers so that unmatched methods get 404 rather than the mux's 405.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/{$}", s.indexHandler)
	mux.HandleFunc("/health", s.healthHandler)
}

// Listen binds the TCP listener. It must be called before Serve.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.portErr != nil {
		return s.portErr
	}
	if s.closed {
		return errors.New("server has been shut down")
	}
	if s.listener != nil {
		return fmt.Errorf("server already listening on %s", s.listener.Addr())
	}

	if s.lockPath != "" {
		if err := s.acquireLock(); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.releaseLock()
		return fmt.Errorf("failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = addr.Port
	}

	s.logger.Info(fmt.Sprintf("CloudNest running on port %d", s.port))
	return nil
}

// Serve answers requests on the bound listener until Shutdown is called.
// A clean shutdown returns nil, including one that happened before Serve ran.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil
	}
	if ln == nil {
		return errors.New("server is not listening")
	}
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start binds and serves, blocking until the server stops.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server gracefully")
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		// Already closed by Shutdown unless Serve never ran
		s.listener.Close()
		s.listener = nil
	}
	s.releaseLock()
	s.mu.Unlock()

	return err
}

// acquireLock takes the instance lock without blocking. Callers hold s.mu.
func (s *Server) acquireLock() error {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	fileLock := flock.New(s.lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock %s: %w", s.lockPath, err)
	}
	if !locked {
		return fmt.Errorf("%w: lock %s is held", ErrAlreadyRunning, s.lockPath)
	}
	s.lock = fileLock
	return nil
}

// releaseLock drops the instance lock if held. Callers hold s.mu.
func (s *Server) releaseLock() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("Failed to release instance lock", "file", s.lockPath, "error", err)
	}
	s.lock = nil
}

// Handler returns the route table, for use without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the server port. After Listen it is the bound port, which
// differs from the configured one when port 0 was requested.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// InstanceID identifies this server in logs.
func (s *Server) InstanceID() string {
	return s.instanceID
}
