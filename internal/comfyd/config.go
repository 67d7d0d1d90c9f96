package comfyd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the configuration for the managed ComfyUI server.
type Config struct {
	// Managed indicates whether the server lifecycle is owned by this
	// process. If false, ComfyUI is expected to be running externally
	// and Start only waits for it to answer.
	Managed bool `yaml:"managed"`

	// Python is the interpreter used to launch ComfyUI.
	// Default: "python3"
	Python string `yaml:"python"`

	// Dir is the ComfyUI installation directory (contains main.py).
	Dir string `yaml:"dir"`

	// Host and Port are passed as --listen/--port and define where the
	// HTTP API answers.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// OutputDir is passed as --output-directory when set.
	OutputDir string `yaml:"output_dir"`

	// ExtraArgs are appended verbatim to the launch command, e.g.
	// "--lowvram".
	ExtraArgs []string `yaml:"extra_args"`

	// StartupTimeout is how long to wait for the API after launch.
	// Custom node packs make cold starts slow; allow minutes.
	// Default: 120s
	StartupTimeout time.Duration `yaml:"startup_timeout"`

	// RestartOnFailure enables automatic restart if the server crashes.
	// Default: true
	RestartOnFailure bool `yaml:"restart_on_failure"`

	// RestartDelay is the time to wait before restarting.
	// Default: 5s
	RestartDelay time.Duration `yaml:"restart_delay"`

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	// Default: 5
	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	// GracefulTimeout is how long to wait for graceful shutdown.
	// Default: 10s
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`

	// HealthCheckInterval is how often the watchdog probes
	// /system_stats. A hung server is killed and restarted after 3
	// consecutive failures.
	// Default: 30s
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// DefaultConfig returns a Config with sensible defaults for a locally
// installed ComfyUI.
func DefaultConfig() Config {
	return Config{
		Managed:             false,
		Python:              "python3",
		Host:                "127.0.0.1",
		Port:                8188,
		StartupTimeout:      120 * time.Second,
		RestartOnFailure:    true,
		RestartDelay:        5 * time.Second,
		MaxRestartAttempts:  5,
		GracefulTimeout:     10 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Validate checks the configuration for errors. Managed mode requires
// an installation directory containing main.py.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if !c.Managed {
		return nil
	}

	if c.Python == "" {
		return fmt.Errorf("python interpreter is required in managed mode")
	}
	if c.Dir == "" {
		return fmt.Errorf("dir is required in managed mode")
	}
	if _, err := os.Stat(filepath.Join(c.Dir, "main.py")); err != nil {
		return fmt.Errorf("dir does not look like a ComfyUI installation: %w", err)
	}
	return nil
}

// BaseURL returns the HTTP API base URL for the configured listen
// address.
func (c *Config) BaseURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// BuildArgs constructs the launch arguments for the ComfyUI process.
func (c *Config) BuildArgs() []string {
	args := []string{
		filepath.Join(c.Dir, "main.py"),
		"--listen", c.Host,
		"--port", fmt.Sprintf("%d", c.Port),
	}
	if c.OutputDir != "" {
		args = append(args, "--output-directory", c.OutputDir)
	}
	args = append(args, c.ExtraArgs...)
	return args
}
