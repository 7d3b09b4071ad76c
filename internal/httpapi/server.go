package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

// DefaultSecretKey signs tokens when no secret is configured
const DefaultSecretKey = "pshare-dev-secret-change-in-production"

// Server represents the HTTP admin API server
type Server struct {
	relay      relay.Relay
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	logger     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// Config holds server configuration
type Config struct {
	// Addr is the listen address, e.g. ":8080"
	Addr      string
	SecretKey string

	// NoAuth admits unauthenticated requests to non-admin endpoints
	NoAuth bool

	// Gatherer is served at /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

// NewServer creates a new HTTP API server for r
func NewServer(r relay.Relay, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("httpapi")

	secretKey := config.SecretKey
	if secretKey == "" {
		logger.Warn("no JWT secret configured, using the development default")
		secretKey = DefaultSecretKey
	}
	if config.NoAuth {
		logger.Warn("authentication disabled for non-admin endpoints")
	}

	jwtAuth := NewJWTAuth(secretKey)

	server := &Server{
		relay:      r,
		jwtAuth:    jwtAuth,
		handlers:   NewHandlers(r, jwtAuth, logger),
		middleware: NewMiddleware(jwtAuth, config.NoAuth, logger),
		logger:     logger,
	}

	gatherer := config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	server.server = &http.Server{
		Addr:              config.Addr,
		Handler:           server.setupRoutes(gatherer),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return server
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("http server already started")
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.listener = lis
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}(s.done)

	s.logger.Info("admin API listening", zap.Stringer("addr", lis.Addr()))
	return nil
}

// Addr returns the listening address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	err := s.server.Shutdown(ctx)
	if done != nil {
		<-done
	}
	return err
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.Recovery(
			s.middleware.Logging(
				s.middleware.CORS(
					s.middleware.ContentType(handler))))
	}

	// no auth
	mux.Handle("/api/v1/auth/login", withMiddleware(s.handlers.Login))
	mux.Handle("/api/v1/health", withMiddleware(s.handlers.Health))

	mux.Handle("/api/v1/routes", withMiddleware(s.middleware.AuthRequired(s.handlers.Routes)))
	mux.Handle("/api/v1/commands", withMiddleware(s.middleware.AdminRequired(s.handlers.Command)))

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.Handle("/", withMiddleware(s.handleRoot))

	return mux
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, "Not found", http.StatusNotFound)
		return
	}

	info := map[string]any{
		"service":     "pShare admin API",
		"description": "Inspect and reconfigure message relay routes",
		"endpoints": map[string]any{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"routes":   "GET /api/v1/routes",
			"commands": "POST /api/v1/commands (admin)",
			"health":   "GET /api/v1/health",
			"metrics":  "GET /metrics",
		},
		"authentication": "Bearer JWT token required for routes and commands",
	}

	writeJSON(w, info, http.StatusOK)
}
