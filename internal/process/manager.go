package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Supervision defaults applied by NewManager for zero config values.
const (
	defaultRestartDelay  = 5 * time.Second
	defaultGracefulWait  = 10 * time.Second
	defaultProbeInterval = 30 * time.Second
)

// probeTimeout bounds a single health probe; maxFailedProbes is how
// many consecutive failures the watchdog tolerates before killing a
// hung process.
const (
	probeTimeout    = 5 * time.Second
	maxFailedProbes = 3
)

// maxLogLine caps the length of a captured output line. Model runners
// print progress bars that can grow without a newline.
const maxLogLine = 16 * 1024

// Status is the lifecycle state of a supervised process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Config describes a supervised subprocess such as the ComfyUI server.
type Config struct {
	// Name identifies the process in logs and stats.
	Name string

	// Binary and Args form the command line.
	Binary string
	Args   []string

	// Env entries are appended to the parent environment. GPU
	// placement variables for torchrun go here.
	Env []string

	// WorkDir is the working directory; empty inherits the daemon's.
	WorkDir string

	// RestartOnFailure relaunches the process after an unexpected
	// exit, waiting RestartDelay between attempts. MaxRestartAttempts
	// of 0 means unlimited.
	RestartOnFailure   bool
	RestartDelay       time.Duration
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before
	// escalating to SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheckFunc, when set, is probed every HealthCheckInterval.
	// A process that fails maxFailedProbes probes in a row is killed
	// and treated as an unexpected exit.
	HealthCheckFunc     func(ctx context.Context) error
	HealthCheckInterval time.Duration
}

// Logger is the minimal logging interface used by the supervisor.
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

// Stats is a snapshot of the supervised process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Manager supervises one long-lived subprocess: launch, watchdog,
// restart with backoff, process-group shutdown. One-shot invocations
// (Blender builds, torchrun) use Run instead.
type Manager struct {
	cfg    Config
	logger Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	status    Status
	restarts  int
	lastErr   error
	launched  time.Time
	stopping  bool
	superDone chan struct{}
}

// NewManager creates a supervisor. Zero durations in cfg pick up the
// package defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulWait
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = defaultProbeInterval
	}
	return &Manager{
		cfg:    cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// Start launches the process and begins supervising it. The context
// cancels supervision, not just startup.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusStarting || m.status == StatusRunning {
		m.mu.Unlock()
		return fmt.Errorf("process: %s already running", m.cfg.Name)
	}
	m.status = StatusStarting
	m.stopping = false
	m.superDone = make(chan struct{})
	m.mu.Unlock()

	if err := m.launch(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastErr = err
		close(m.superDone)
		m.mu.Unlock()
		return err
	}

	go m.supervise(ctx)
	return nil
}

// Stop terminates the process group: SIGTERM, a graceful wait, then
// SIGKILL. Safe to call when nothing is running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status != StatusRunning && m.status != StatusStarting {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	cmd := m.cmd
	done := m.superDone
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.cfg.Name, "pid", pid)

	// Negative pid signals the whole group (Setpgid at launch), so
	// children like torchrun workers go down with the leader.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("SIGTERM failed", "name", m.cfg.Name, "error", err)
	}

	select {
	case <-done:
		m.logger.Info("process stopped", "name", m.cfg.Name)
		return nil
	case <-time.After(m.cfg.GracefulTimeout):
		m.logger.Warn("graceful stop timed out, killing",
			"name", m.cfg.Name, "timeout", m.cfg.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("process: kill %s group: %w", m.cfg.Name, err)
	}
	<-done
	m.logger.Info("process killed", "name", m.cfg.Name)
	return nil
}

// IsRunning reports whether the process is up.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusRunning
}

// Stats returns a snapshot of the supervised process.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Name:         m.cfg.Name,
		Status:       m.status,
		RestartCount: m.restarts,
	}
	if m.cmd != nil && m.cmd.Process != nil {
		s.PID = m.cmd.Process.Pid
	}
	if m.status == StatusRunning {
		s.Uptime = time.Since(m.launched)
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// launch starts the subprocess and wires output capture.
func (m *Manager) launch(ctx context.Context) error {
	m.logger.Info("launching process",
		"name", m.cfg.Name, "binary", m.cfg.Binary, "args", m.cfg.Args)

	cmd := exec.CommandContext(ctx, m.cfg.Binary, m.cfg.Args...) //nolint:gosec // binary path comes from validated config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Dir = m.cfg.WorkDir
	if len(m.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), m.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("process: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("process: start %s: %w", m.cfg.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.launched = time.Now()
	m.mu.Unlock()

	go m.drain("stdout", stdout)
	go m.drain("stderr", stderr)

	m.logger.Info("process up", "name", m.cfg.Name, "pid", cmd.Process.Pid)
	return nil
}

// drain logs the process output line by line at debug level.
func (m *Manager) drain(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxLogLine)
	for sc.Scan() {
		m.logger.Debug("process output",
			"name", m.cfg.Name, "stream", stream, "line", sc.Text())
	}
}

// supervise waits for exits or watchdog kills and handles restarts.
func (m *Manager) supervise(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		close(m.superDone)
		m.mu.Unlock()
	}()

	for {
		m.mu.Lock()
		cmd := m.cmd
		m.mu.Unlock()
		if cmd == nil {
			return
		}

		err := m.awaitExit(ctx, cmd)

		m.mu.Lock()
		stopping := m.stopping
		m.mu.Unlock()
		if stopping {
			m.setStatus(StatusStopped, nil)
			m.logger.Info("process stopped as requested", "name", m.cfg.Name)
			return
		}

		m.setStatus(StatusFailed, err)
		m.logger.Warn("process exited unexpectedly", "name", m.cfg.Name, "error", err)

		if !m.cfg.RestartOnFailure {
			return
		}

		m.mu.Lock()
		m.restarts++
		attempt := m.restarts
		m.mu.Unlock()
		if m.cfg.MaxRestartAttempts > 0 && attempt > m.cfg.MaxRestartAttempts {
			m.logger.Error("restart budget exhausted",
				"name", m.cfg.Name, "attempts", attempt-1)
			return
		}

		m.logger.Info("restarting process",
			"name", m.cfg.Name, "attempt", attempt, "delay", m.cfg.RestartDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.RestartDelay):
		}

		m.mu.Lock()
		stopping = m.stopping
		m.mu.Unlock()
		if stopping {
			return
		}

		if err := m.launch(ctx); err != nil {
			m.logger.Error("restart failed", "name", m.cfg.Name, "error", err)
			// Loop again; the failed launch counts against the budget.
		}
	}
}

// awaitExit blocks until the process exits, the context is cancelled,
// or the watchdog gives up on it.
func (m *Manager) awaitExit(ctx context.Context, cmd *exec.Cmd) error {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if m.cfg.HealthCheckFunc == nil {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	probe := time.NewTicker(m.cfg.HealthCheckInterval)
	defer probe.Stop()

	failures := 0
	for {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-probe.C:
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := m.cfg.HealthCheckFunc(probeCtx)
		cancel()

		if err == nil {
			if failures > 0 {
				m.logger.Info("health probe recovered",
					"name", m.cfg.Name, "previous_failures", failures)
			}
			failures = 0
			continue
		}

		failures++
		m.logger.Warn("health probe failed",
			"name", m.cfg.Name, "error", err, "consecutive", failures)
		if failures < maxFailedProbes {
			continue
		}

		m.logger.Error("process unresponsive, killing",
			"name", m.cfg.Name, "failed_probes", failures)
		if cmd.Process != nil {
			cmd.Process.Kill() //nolint:errcheck // exit surfaces via Wait
		}
		select {
		case exitErr := <-exited:
			if exitErr != nil {
				return fmt.Errorf("process: killed after %d failed probes: %w", failures, exitErr)
			}
			return fmt.Errorf("process: killed after %d failed probes", failures)
		case <-time.After(probeTimeout):
			return fmt.Errorf("process: %s did not exit after kill", m.cfg.Name)
		}
	}
}

func (m *Manager) setStatus(s Status, err error) {
	m.mu.Lock()
	m.status = s
	if err != nil {
		m.lastErr = err
	}
	m.mu.Unlock()
}
