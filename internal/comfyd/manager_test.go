package comfyd

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// fakeInstall creates a directory that passes the main.py check.
func fakeInstall(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("# comfyui"), 0640); err != nil {
		t.Fatalf("write main.py: %v", err)
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Managed {
		t.Error("expected managed off by default")
	}
	if cfg.Port != 8188 {
		t.Errorf("expected default port 8188, got %d", cfg.Port)
	}
	if cfg.StartupTimeout != 120*time.Second {
		t.Errorf("expected 120s startup timeout, got %s", cfg.StartupTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "external mode needs no dir",
			mutate: func(c *Config) { c.Managed = false; c.Dir = "" },
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "managed without dir",
			mutate:  func(c *Config) { c.Managed = true; c.Dir = "" },
			wantErr: true,
		},
		{
			name:    "managed without interpreter",
			mutate:  func(c *Config) { c.Managed = true; c.Python = "" },
			wantErr: true,
		},
		{
			name:    "managed dir without main.py",
			mutate:  func(c *Config) { c.Managed = true; c.Dir = os.TempDir() },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateManagedInstall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Managed = true
	cfg.Dir = fakeInstall(t)

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid managed config, got %v", err)
	}
}

func TestConfig_BuildArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = "/opt/comfyui"
	cfg.Host = "0.0.0.0"
	cfg.Port = 8200
	cfg.OutputDir = "/renders"
	cfg.ExtraArgs = []string{"--lowvram"}

	args := cfg.BuildArgs()
	want := []string{
		"/opt/comfyui/main.py",
		"--listen", "0.0.0.0",
		"--port", "8200",
		"--output-directory", "/renders",
		"--lowvram",
	}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(args), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], args[i])
		}
	}
}

func TestConfig_BaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = 8188

	if got := cfg.BaseURL(); got != "http://127.0.0.1:8188" {
		t.Errorf("expected loopback URL for wildcard listen, got %q", got)
	}

	cfg.Host = "gpu-box"
	if got := cfg.BaseURL(); got != "http://gpu-box:8188" {
		t.Errorf("expected host preserved, got %q", got)
	}
}

func TestNewManager_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = -1

	if _, err := NewManager(cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestManager_ExternalServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.StartupTimeout = 5 * time.Second

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.IsRunning() {
		t.Error("expected IsRunning after Start")
	}
	if err := m.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := m.Start(ctx); err == nil {
		t.Error("expected error starting twice")
	}

	if err := m.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if m.IsRunning() {
		t.Error("expected stopped after Stop")
	}
}

func TestManager_ExternalServerUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.StartupTimeout = 100 * time.Millisecond

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if err := m.Start(context.Background()); err == nil {
		t.Error("expected error when server is unreachable")
	}
}
