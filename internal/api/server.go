package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthstead/hearth-core/internal/alerting"
	"github.com/hearthstead/hearth-core/internal/device"
	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
	"github.com/hearthstead/hearth-core/internal/infrastructure/logging"
	"github.com/hearthstead/hearth-core/internal/monitor"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests
// during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ProberFactory builds a probe adapter for a catalogue device. It
// returns false when no adapter handles the device's probe kind; such
// devices stay catalogued but unmonitored.
type ProberFactory func(d device.Device) (monitor.Prober, bool)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Monitor  *monitor.Monitor
	Alerts   *alerting.Service
	Probers  ProberFactory
	Version  string
}

// Server is the HTTP and WebSocket surface of the Hearth server. It
// exposes the device catalogue, health reports, the alert message
// buffer, and a metrics exposition. Created with New, started with
// Start, stopped with Close.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	registry *device.Registry
	monitor  *monitor.Monitor
	alerts   *alerting.Service
	probers  ProberFactory
	version  string
	started  time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("monitor is required")
	}
	if deps.Alerts == nil {
		return nil, fmt.Errorf("alerting service is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger.With("component", "api"),
		registry: deps.Registry,
		monitor:  deps.Monitor,
		alerts:   deps.Alerts,
		probers:  deps.Probers,
		version:  deps.Version,
	}, nil
}

// Hub returns the WebSocket hub. Nil until Start has run.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start launches the WebSocket hub and the HTTP listener in the
// background. Listen errors after startup are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.cfg.WebSocket, s.logger)
	go s.hub.Run(srvCtx)

	s.started = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	s.logger.Info("api server started", "address", s.server.Addr)
	return nil
}

// Close shuts the server down, waiting up to gracefulShutdownTimeout
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}
