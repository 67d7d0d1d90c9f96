package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/levlstudio/levl-core/internal/infrastructure/config"
	"github.com/levlstudio/levl-core/internal/infrastructure/logging"
	"github.com/levlstudio/levl-core/internal/job"
	"github.com/levlstudio/levl-core/internal/orchestrator"
)

// In-flight requests get this long to finish on shutdown.
const shutdownGrace = 10 * time.Second

// ComfyManager reports the state of a managed ComfyUI process.
// Satisfied by comfyd.Manager; kept as an interface so the API does
// not import process supervision.
type ComfyManager interface {
	IsRunning() bool
	HealthCheck(ctx context.Context) error
}

// Deps collects everything the server needs. Comfyd may be nil when
// the daemon does not manage ComfyUI itself.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Orch    *orchestrator.Orchestrator
	Tracker *job.Tracker
	Comfyd  ComfyManager
	Version string
}

// Server is the daemon's HTTP surface: the REST routes, their
// middleware chain and the WebSocket hub. Build with New, run with
// Start, stop with Close.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	orch    *orchestrator.Orchestrator
	tracker *job.Tracker
	comfyd  ComfyManager
	version string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New validates deps and builds an unstarted server.
//
// Parameters:
//   - deps: dependencies; Logger, Orch and Tracker are mandatory
//
// Returns:
//   - *Server: ready for Start
//   - error: when a mandatory dependency is missing
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Orch == nil:
		return nil, fmt.Errorf("orchestrator is required")
	case deps.Tracker == nil:
		return nil, fmt.Errorf("job tracker is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		orch:    deps.Orch,
		tracker: deps.Tracker,
		comfyd:  deps.Comfyd,
		version: deps.Version,
	}, nil
}

// Hub exposes the WebSocket hub; nil before Start.
func (s *Server) Hub() *Hub {
	return s.hub
}

// BroadcastJob pushes a job state change to WebSocket subscribers.
// Usable directly as a job.Listener.
func (s *Server) BroadcastJob(j *job.Job) {
	if s.hub == nil || j == nil {
		return
	}
	s.hub.Broadcast(ChannelJobState, j)
}

// Start spins up the hub and the HTTP listener. The listener runs in
// a background goroutine; Start itself returns immediately.
func (s *Server) Start(ctx context.Context) error {
	var hubCtx context.Context
	hubCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(hubCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close drains in-flight requests for up to shutdownGrace, then cuts
// the remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck confirms the listener has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
