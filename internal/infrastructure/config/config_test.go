package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
daemon:
  id: "test-daemon"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 9000
bridge:
  root: "/tmp/bridge"
  poll_interval: 1s
  result_timeout: 2m
comfy:
  host: "comfy.local"
  port: 8188
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Daemon.ID != "test-daemon" {
		t.Errorf("Daemon.ID = %q, want %q", cfg.Daemon.ID, "test-daemon")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}

	if cfg.Bridge.PollInterval != time.Second {
		t.Errorf("Bridge.PollInterval = %v, want 1s", cfg.Bridge.PollInterval)
	}

	if cfg.Comfy.Host != "comfy.local" {
		t.Errorf("Comfy.Host = %q, want %q", cfg.Comfy.Host, "comfy.local")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/no/such/dir/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("daemon: [unclosed"), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for malformed YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
daemon:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8765
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty daemon.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// validBase returns a config that passes validation; each case
	// mutates one field.
	validBase := func() *Config {
		cfg := defaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing daemon ID",
			mutate:  func(c *Config) { c.Daemon.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid API port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid API port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing bridge root",
			mutate:  func(c *Config) { c.Bridge.Root = "" },
			wantErr: true,
		},
		{
			name:    "zero bridge poll interval",
			mutate:  func(c *Config) { c.Bridge.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "managed comfy without dir",
			mutate:  func(c *Config) { c.Comfy.Server.Managed = true },
			wantErr: true,
		},
		{
			name: "managed comfy with dir",
			mutate: func(c *Config) {
				c.Comfy.Server.Managed = true
				c.Comfy.Server.Dir = "/opt/ComfyUI"
			},
			wantErr: false,
		},
		{
			name: "gamecraft with zero GPUs",
			mutate: func(c *Config) {
				c.GameCraft.Dir = "/opt/gamecraft"
				c.GameCraft.GPUCount = 0
			},
			wantErr: true,
		},
		{
			name:    "zero analysis frame step",
			mutate:  func(c *Config) { c.Analysis.FrameStep = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 15, Write: 90, Idle: 150},
		},
	}

	if got := cfg.GetReadTimeout(); got != 15*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 15s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 90*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 90s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 150*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 150s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"LEVLCORE_DATABASE_PATH":  "/var/lib/levl/levl.db",
		"LEVLCORE_API_HOST":       "10.20.0.4",
		"LEVLCORE_API_KEY":        "env-api-key",
		"LEVLCORE_MQTT_HOST":      "broker.levl.internal",
		"LEVLCORE_MQTT_USERNAME":  "levl-daemon",
		"LEVLCORE_MQTT_PASSWORD":  "hunter2",
		"LEVLCORE_INFLUXDB_TOKEN": "env-influx-token",
		"LEVLCORE_BRIDGE_ROOT":    "/srv/unreal-bridge",
		"LEVLCORE_COMFY_HOST":     "gpu-box.levl.internal",
		"LEVLCORE_COMFY_PORT":     "8288",
		"LEVLCORE_BLENDER_BINARY": "/opt/blender/blender",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	got := map[string]string{
		"LEVLCORE_DATABASE_PATH":  cfg.Database.Path,
		"LEVLCORE_API_HOST":       cfg.API.Host,
		"LEVLCORE_API_KEY":        cfg.API.APIKey,
		"LEVLCORE_MQTT_HOST":      cfg.MQTT.Broker.Host,
		"LEVLCORE_MQTT_USERNAME":  cfg.MQTT.Auth.Username,
		"LEVLCORE_MQTT_PASSWORD":  cfg.MQTT.Auth.Password,
		"LEVLCORE_INFLUXDB_TOKEN": cfg.InfluxDB.Token,
		"LEVLCORE_BRIDGE_ROOT":    cfg.Bridge.Root,
		"LEVLCORE_COMFY_HOST":     cfg.Comfy.Host,
		"LEVLCORE_BLENDER_BINARY": cfg.Blender.Binary,
	}
	for key, want := range env {
		if key == "LEVLCORE_COMFY_PORT" {
			continue
		}
		if got[key] != want {
			t.Errorf("%s: got %q, want %q", key, got[key], want)
		}
	}
	if cfg.Comfy.Port != 8288 {
		t.Errorf("Comfy.Port = %d, want 8288", cfg.Comfy.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Daemon.ID == "" {
		t.Error("defaultConfig should have non-empty Daemon.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.API.Port != 8765 {
		t.Errorf("defaultConfig API.Port = %d, want 8765", cfg.API.Port)
	}

	if cfg.Comfy.Port != 8188 {
		t.Errorf("defaultConfig Comfy.Port = %d, want 8188", cfg.Comfy.Port)
	}

	if cfg.Bridge.PollInterval != 2*time.Second {
		t.Errorf("defaultConfig Bridge.PollInterval = %v, want 2s", cfg.Bridge.PollInterval)
	}
}

func TestComfyBaseURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Comfy.Host = "localhost"
	cfg.Comfy.Port = 8188

	if got := cfg.ComfyBaseURL(); got != "http://localhost:8188" {
		t.Errorf("ComfyBaseURL() = %q, want %q", got, "http://localhost:8188")
	}
}
