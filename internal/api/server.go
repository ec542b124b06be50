package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/logging"
	"github.com/huntsman-telescope/huntsman-core/internal/journal"
	"github.com/huntsman-telescope/huntsman-core/internal/safety"
	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

const gracefulShutdownTimeout = 10 * time.Second

// Engine is the part of the state machine the API controls.
type Engine interface {
	Status() statemachine.Status
	StopStates()
}

// ConditionsSource reports sky conditions; safety.Monitor implements it.
type ConditionsSource interface {
	Conditions() safety.Conditions
}

// HealthCheck probes one component.
type HealthCheck func(ctx context.Context) error

// Deps holds the server's collaborators. Journal, Conditions and Metrics
// are optional; their routes answer 503 or are omitted without them.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Engine     Engine
	Conditions ConditionsSource
	Journal    journal.Repository
	Metrics    http.Handler
	Checks     map[string]HealthCheck
	Version    string
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	engine     Engine
	conditions ConditionsSource
	journal    journal.Repository
	metrics    http.Handler
	checks     map[string]HealthCheck
	version    string
	startTime  time.Time

	server *http.Server
}

// New validates deps and builds a server. Call Start to listen.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("%w: engine", ErrMissingDependency)
	}
	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger.Component("api"),
		engine:     deps.Engine,
		conditions: deps.Conditions,
		journal:    deps.Journal,
		metrics:    deps.Metrics,
		checks:     deps.Checks,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close shuts down the server, waiting for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
