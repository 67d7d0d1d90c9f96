package comfyd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/levlstudio/levl-core/internal/comfy"
	"github.com/levlstudio/levl-core/internal/process"
)

// healthCheckTimeout bounds a single watchdog probe.
const healthCheckTimeout = 5 * time.Second

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager owns the lifecycle of a ComfyUI server and hands out a
// client for it.
type Manager struct {
	config  Config
	client  *comfy.Client
	process *process.Manager
	logger  Logger

	mu      sync.Mutex
	started bool
}

// NewManager creates a manager for the configured server.
//
// Parameters:
//   - cfg: server configuration, validated before use
//
// Returns:
//   - *Manager: ready to Start
//   - error: non-nil if the configuration is invalid
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("comfyd: invalid config: %w", err)
	}

	m := &Manager{
		config: cfg,
		client: comfy.NewClient(cfg.BaseURL()),
		logger: noopLogger{},
	}

	if cfg.Managed {
		pc := process.Config{
			Name:                "comfyui",
			Binary:              cfg.Python,
			Args:                cfg.BuildArgs(),
			WorkDir:             cfg.Dir,
			RestartOnFailure:    cfg.RestartOnFailure,
			RestartDelay:        cfg.RestartDelay,
			MaxRestartAttempts:  cfg.MaxRestartAttempts,
			GracefulTimeout:     cfg.GracefulTimeout,
			HealthCheckInterval: cfg.HealthCheckInterval,
			HealthCheckFunc:     m.healthCheck,
		}
		m.process = process.NewManager(pc)
	}

	return m, nil
}

// SetLogger installs a logger on the manager and its supervised
// process. Passing nil restores the no-op logger.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
	m.client.SetLogger(logger)
	if m.process != nil {
		m.process.SetLogger(logger)
	}
}

// Client returns the HTTP client for the managed server. Valid before
// Start, but requests only succeed once the server is up.
func (m *Manager) Client() *comfy.Client {
	return m.client
}

// Start brings the server up. In managed mode it launches ComfyUI and
// waits for the API to answer; otherwise it only waits for the
// external server. Start returns once the API is reachable or the
// startup timeout expires.
//
// Parameters:
//   - ctx: cancels startup; does not bound the server's lifetime
//
// Returns:
//   - error: non-nil if launch or the readiness wait fails
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("comfyd: already started")
	}
	m.started = true
	m.mu.Unlock()

	if m.process != nil {
		m.logger.Info("starting managed comfyui",
			"python", m.config.Python,
			"dir", m.config.Dir,
			"url", m.config.BaseURL())
		if err := m.process.Start(ctx); err != nil {
			return fmt.Errorf("comfyd: launch: %w", err)
		}
	} else {
		m.logger.Info("using external comfyui", "url", m.config.BaseURL())
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.config.StartupTimeout)
	defer cancel()

	if err := m.client.WaitForReady(waitCtx, 2*time.Second); err != nil {
		if m.process != nil {
			m.process.Stop() //nolint:errcheck // startup already failed
		}
		return fmt.Errorf("comfyd: server not ready after %s: %w", m.config.StartupTimeout, err)
	}

	m.logger.Info("comfyui ready", "url", m.config.BaseURL())
	return nil
}

// Stop shuts the managed server down. For an external server this is
// a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()

	if m.process == nil {
		return nil
	}
	if err := m.process.Stop(); err != nil {
		return fmt.Errorf("comfyd: stop: %w", err)
	}
	return nil
}

// IsRunning reports whether the server process is running. An external
// server reports true once Start succeeded.
func (m *Manager) IsRunning() bool {
	if m.process != nil {
		return m.process.IsRunning()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stats returns supervision statistics for the managed process, or a
// zero value for an external server.
func (m *Manager) Stats() process.Stats {
	if m.process == nil {
		return process.Stats{}
	}
	return m.process.Stats()
}

// HealthCheck probes the server's /system_stats endpoint.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.client.HealthCheck(ctx)
}

func (m *Manager) healthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return m.client.HealthCheck(ctx)
}
