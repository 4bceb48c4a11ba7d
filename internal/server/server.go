package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/assessor/internal/api"
	"github.com/jackzampolin/assessor/internal/assessment"
	"github.com/jackzampolin/assessor/internal/config"
	"github.com/jackzampolin/assessor/internal/providers"
	"github.com/jackzampolin/assessor/internal/recordstore"
	"github.com/jackzampolin/assessor/internal/server/endpoints"
	"github.com/jackzampolin/assessor/internal/svcctx"
	"github.com/jackzampolin/assessor/version"
)

// Server is the assessor HTTP server. It owns the extractor registry and
// rebuilds the processor whenever the config file changes.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	configMgr  *config.Manager
	logger     *slog.Logger

	processor atomic.Pointer[assessment.Processor]

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu       sync.RWMutex
	running  bool
	listener net.Listener
}

// Config holds server configuration.
type Config struct {
	// Host overrides server.host from the config file when set.
	Host string
	// Port overrides server.port from the config file when set.
	Port string
	// ConfigManager provides configuration with hot-reload support (required)
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	current := cfg.ConfigManager.Get()
	if err := current.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	host := cfg.Host
	if host == "" {
		host = current.Server.Host
	}
	port := cfg.Port
	if port == "" {
		port = strconv.Itoa(current.Server.Port)
	}

	registry, err := providers.NewRegistryFromConfig(context.Background(), current.ToExtractorConfig(), assessment.Bundle())
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	registry.SetLogger(cfg.Logger)

	s := &Server{
		registry:  registry,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}
	s.processor.Store(s.buildProcessor(current))

	// Watch for config changes
	cfg.ConfigManager.OnChange(s.reload)

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)
	s.logger.Debug("registered routes", "routes", s.endpointRegistry.Patterns())

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(host, port),
		Handler:      s.withRequestID(s.withServices(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(current),
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// writeTimeout covers one record fetch, one extraction and one record
// update, plus slack for the response itself.
func writeTimeout(c *config.Config) time.Duration {
	seconds := c.Extraction.TimeoutSeconds + 2*c.RecordStore.TimeoutSeconds + 30
	return time.Duration(seconds) * time.Second
}

func (s *Server) buildProcessor(c *config.Config) *assessment.Processor {
	pcfg := assessment.Config{
		Store:     recordstore.NewClient(c.ToRecordStoreConfig()),
		Extractor: s.registry,
		Logger:    s.logger,
	}
	if c.Extraction.ValidateOutput {
		pcfg.Validator = providers.NewSchemaValidator(assessment.Bundle().Schema)
	}
	return assessment.NewProcessor(pcfg)
}

// reload applies a changed config. An invalid config, or one whose
// extractor cannot be built, leaves the running setup untouched.
func (s *Server) reload(c *config.Config) {
	if err := c.Validate(); err != nil {
		s.logger.Error("ignoring invalid config change", "error", err)
		return
	}
	if err := s.registry.Reload(context.Background(), c.ToExtractorConfig()); err != nil {
		s.logger.Error("failed to reload extractor", "error", err)
		return
	}
	s.processor.Store(s.buildProcessor(c))
	s.logger.Info("processor reloaded from config")
}

// Start starts the server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.configMgr.WatchConfig()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"addr", ln.Addr().String(),
			"provider", s.registry.Name(),
			"table", s.configMgr.Get().RecordStore.Table,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown drains in-flight requests and releases the extractor.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.registry.Close(); err != nil {
		s.logger.Error("extractor close error", "error", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the extractor registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Processor returns the active processor.
func (s *Server) Processor() *assessment.Processor {
	return s.processor.Load()
}

// withRequestID tags each request with an id, taken from the
// X-Request-ID header when the caller sent one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(api.RequestIDHeader)
		if id == "" {
			id = assessment.NewRequestID()
		}
		w.Header().Set(api.RequestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(assessment.WithRequestID(r.Context(), id)))
		s.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", id,
			"duration", time.Since(start),
		)
	})
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), &svcctx.Services{
			Processor: s.processor.Load(),
			Registry:  s.registry,
			Config:    s.configMgr,
			Logger:    s.logger,
			Version:   version.GitRelease,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures a processor is available.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.processor.Load() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"success":false,"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
