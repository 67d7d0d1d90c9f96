package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Levl Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Daemon    DaemonConfig    `yaml:"daemon"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Comfy     ComfyConfig     `yaml:"comfy"`
	Blender   BlenderConfig   `yaml:"blender"`
	GameCraft GameCraftConfig `yaml:"gamecraft"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

// DaemonConfig contains daemon-level identity settings.
type DaemonConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	DataDir string `yaml:"data_dir"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	APIKey   string           `yaml:"api_key"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BridgeConfig contains file-drop bridge queue settings for the Unreal
// Engine watcher. The bridge root holds the inbox/ and outbox/ directories.
type BridgeConfig struct {
	// Root is the bridge directory containing inbox/ and outbox/.
	Root string `yaml:"root"`

	// PollInterval is how often the outbox is polled while awaiting a
	// result, and how often the dispatcher rescans the inbox.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ResultTimeout is the maximum time to wait for a command result.
	// Unreal renders are slow; allow minutes, not seconds.
	ResultTimeout time.Duration `yaml:"result_timeout"`

	// ServeLocal enables the in-process dispatcher that serves bridge
	// commands locally (Blender builds, workflow patching). Unreal-side
	// actions are always served by the editor watcher, never locally.
	ServeLocal bool `yaml:"serve_local"`
}

// ComfyConfig contains ComfyUI connection and managed-server settings.
type ComfyConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DefaultWorkflow string        `yaml:"default_workflow"`
	OutputDir       string        `yaml:"output_dir"`
	SubmitTimeout   time.Duration `yaml:"submit_timeout"`

	// Server configures the optionally managed ComfyUI process.
	Server ComfyServerConfig `yaml:"server"`
}

// ComfyServerConfig contains settings for managing the ComfyUI server process.
type ComfyServerConfig struct {
	// Managed indicates whether Levl Core should launch and supervise
	// ComfyUI itself. If false, ComfyUI is expected to be running already.
	Managed bool `yaml:"managed"`

	// Python is the interpreter used to launch ComfyUI.
	// Default: "python3"
	Python string `yaml:"python"`

	// Dir is the ComfyUI installation directory (contains main.py).
	Dir string `yaml:"dir"`

	// StartupTimeout is how long to wait for /system_stats after launch.
	// Default: 30s
	StartupTimeout time.Duration `yaml:"startup_timeout"`

	// RestartOnFailure enables automatic restart if ComfyUI crashes.
	RestartOnFailure bool `yaml:"restart_on_failure"`

	// RestartDelaySeconds is the time to wait before restarting (seconds).
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	// HealthCheckInterval is how often to probe /system_stats.
	// Default: 30s
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// BlenderConfig contains headless Blender invocation settings.
type BlenderConfig struct {
	// Binary is the path to the Blender executable.
	Binary string `yaml:"binary"`

	// ScriptDir is where scene-builder Python scripts live.
	ScriptDir string `yaml:"script_dir"`

	// Timeout bounds a single headless run.
	Timeout time.Duration `yaml:"timeout"`
}

// GameCraftConfig contains GameCraft model-runner settings.
type GameCraftConfig struct {
	// Dir is the Hunyuan-GameCraft installation directory.
	Dir string `yaml:"dir"`

	// WeightsDir is the model weights directory.
	// Default: <dir>/weights
	WeightsDir string `yaml:"weights_dir"`

	// GPUCount is the number of GPUs passed to torchrun.
	GPUCount int `yaml:"gpu_count"`

	// Timeout bounds a single generation run.
	Timeout time.Duration `yaml:"timeout"`
}

// AnalysisConfig contains video analysis pipeline settings.
type AnalysisConfig struct {
	// FFmpeg and FFprobe are the binaries used for frame extraction and
	// container probing.
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`

	// FrameStep analyses every Nth extracted frame. 1 analyses all frames.
	FrameStep int `yaml:"frame_step"`

	// MaxFrames caps the number of frames analysed per video. 0 = no cap.
	MaxFrames int `yaml:"max_frames"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LEVLCORE_SECTION_KEY
// For example: LEVLCORE_DATABASE_PATH, LEVLCORE_COMFY_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			ID:      "levlcore-001",
			Name:    "Levl Core",
			DataDir: "./data",
		},
		Database: DatabaseConfig{
			Path:        "./data/levlcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8765,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "levlcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bridge: BridgeConfig{
			Root:          "./UnrealBridge",
			PollInterval:  2 * time.Second,
			ResultTimeout: 10 * time.Minute,
		},
		Comfy: ComfyConfig{
			Host:            "127.0.0.1",
			Port:            8188,
			DefaultWorkflow: "./workflows/wan_depth_pose_canny.json",
			OutputDir:       "outputs",
			SubmitTimeout:   20 * time.Second,
			Server: ComfyServerConfig{
				Python:              "python3",
				StartupTimeout:      30 * time.Second,
				RestartOnFailure:    true,
				RestartDelaySeconds: 5,
				MaxRestartAttempts:  10,
				HealthCheckInterval: 30 * time.Second,
			},
		},
		Blender: BlenderConfig{
			Binary:  "blender",
			Timeout: 5 * time.Minute,
		},
		GameCraft: GameCraftConfig{
			GPUCount: 1,
			Timeout:  60 * time.Minute,
		},
		Analysis: AnalysisConfig{
			FFmpeg:    "ffmpeg",
			FFprobe:   "ffprobe",
			FrameStep: 1,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LEVLCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("LEVLCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("LEVLCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("LEVLCORE_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}

	// MQTT
	if v := os.Getenv("LEVLCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LEVLCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LEVLCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("LEVLCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Bridge
	if v := os.Getenv("LEVLCORE_BRIDGE_ROOT"); v != "" {
		cfg.Bridge.Root = v
	}

	// ComfyUI
	if v := os.Getenv("LEVLCORE_COMFY_HOST"); v != "" {
		cfg.Comfy.Host = v
	}
	if v := os.Getenv("LEVLCORE_COMFY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Comfy.Port = port
		}
	}

	// Blender
	if v := os.Getenv("LEVLCORE_BLENDER_BINARY"); v != "" {
		cfg.Blender.Binary = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Daemon.ID == "" {
		errs = append(errs, "daemon.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Bridge.Root == "" {
		errs = append(errs, "bridge.root is required")
	}
	if c.Bridge.PollInterval <= 0 {
		errs = append(errs, "bridge.poll_interval must be positive")
	}
	if c.Bridge.ResultTimeout <= 0 {
		errs = append(errs, "bridge.result_timeout must be positive")
	}

	if c.Comfy.Port < 1 || c.Comfy.Port > 65535 {
		errs = append(errs, "comfy.port must be between 1 and 65535")
	}
	if c.Comfy.Server.Managed && c.Comfy.Server.Dir == "" {
		errs = append(errs, "comfy.server.dir is required when comfy.server.managed is true")
	}

	if c.GameCraft.Dir != "" && c.GameCraft.GPUCount < 1 {
		errs = append(errs, "gamecraft.gpu_count must be at least 1")
	}

	if c.Analysis.FrameStep < 1 {
		errs = append(errs, "analysis.frame_step must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ComfyBaseURL returns the base URL of the ComfyUI HTTP API.
func (c *Config) ComfyBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Comfy.Host, c.Comfy.Port)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
