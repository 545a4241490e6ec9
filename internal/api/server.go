package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/plantdoc/internal/api/middleware"
	v1 "github.com/tphakala/plantdoc/internal/api/v1"
	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/datastore"
	"github.com/tphakala/plantdoc/internal/logger"
	"github.com/tphakala/plantdoc/internal/observability"
)

// Server is the PlantDoc HTTP server. It owns the echo instance, the
// middleware stack and the v1 routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	dataStore datastore.Interface
	diagnoser v1.Diagnoser
	models    v1.ModelStatus
	metrics   *observability.Metrics
	buildInfo *buildinfo.Context

	apiController *v1.Controller

	mu       sync.Mutex
	serveErr chan error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDataStore sets the reference data store.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) { s.dataStore = ds }
}

// WithDiagnoser sets the prediction pipeline.
func WithDiagnoser(d v1.Diagnoser) ServerOption {
	return func(s *Server) { s.diagnoser = d }
}

// WithModels sets the classifier status reported by /health.
func WithModels(m v1.ModelStatus) ServerOption {
	return func(s *Server) { s.models = m }
}

// WithMetrics enables HTTP metrics and serves them at /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithBuildInfo sets the version reported by /health.
func WithBuildInfo(info *buildinfo.Context) ServerOption {
	return func(s *Server) { s.buildInfo = info }
}

// WithLogger replaces the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// New creates the HTTP server with the given settings and options. A data
// store and a diagnoser are required.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:   config,
		settings: settings,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dataStore == nil {
		return nil, fmt.Errorf("data store is required")
	}
	if s.diagnoser == nil {
		return nil, fmt.Errorf("diagnoser is required")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logger.NewEchoAdapter(s.log.Module("echo"))
	s.echo.Debug = config.Debug
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("body_limit", config.BodyLimit),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the echo middleware stack. Recover runs
// first so panics in later middleware are still logged.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())

	var httpMetrics mw.HTTPMetrics
	if s.metrics != nil {
		httpMetrics = s.metrics.HTTP
	}
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, httpMetrics, func(c echo.Context) bool {
		return c.Path() == "/metrics"
	}))

	s.echo.Use(mw.NewCORS(mw.SecurityConfig{AllowedOrigins: s.config.AllowedOrigins}))
	s.echo.Use(mw.NewSecureHeaders())
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
}

func (s *Server) setupRoutes() {
	opts := []v1.Option{v1.WithBuildInfo(s.buildInfo)}
	if s.metrics != nil {
		opts = append(opts, v1.WithMetricsHandler(s.metrics.Handler()))
	}
	s.apiController = v1.New(s.echo, s.dataStore, s.diagnoser, s.models, s.settings, opts...)
}

// Start begins serving in a background goroutine and returns once the
// listener is bound. Use Shutdown to stop the server.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serveErr != nil {
		return fmt.Errorf("server already started")
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	s.echo.Listener = ln

	s.serveErr = make(chan error, 1)
	go func() {
		err := s.echo.Start("")
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
	}()

	s.log.Info("HTTP server listening", logger.String("address", ln.Addr().String()))
	return nil
}

// Run starts the server and blocks until ctx is canceled or the server
// fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received, stopping HTTP server")
		return s.Shutdown()
	case err := <-s.serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// Shutdown waits up to the configured timeout for in-flight requests to
// finish and closes the listener.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("HTTP server shutdown complete", logger.Duration("duration", time.Since(start)))
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// APIController returns the v1 controller.
func (s *Server) APIController() *v1.Controller {
	return s.apiController
}
