package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig drops a config file in tmpDir and points LEVLCORE_CONFIG
// at it for the duration of the test.
func writeConfig(t *testing.T, tmpDir, body string) {
	t.Helper()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("LEVLCORE_CONFIG", path)
}

func TestRun_ConfigFileMissing(t *testing.T) {
	t.Setenv("LEVLCORE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the config file does not exist")
	}
}

func TestRun_RejectsEmptyDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
daemon:
  id: test-daemon
database:
  path: ""
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
logging:
  level: info
  format: text
  output: stdout
bridge:
  root: "`+filepath.Join(tmpDir, "bridge")+`"
api:
  host: "127.0.0.1"
  port: 8090
  timeouts:
    read: 30
    write: 60
    idle: 120
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should reject an empty database path")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("LEVLCORE_CONFIG", "")
		os.Unsetenv("LEVLCORE_CONFIG") //nolint:errcheck

		if got := getConfigPath(); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("LEVLCORE_CONFIG", "/custom/path/config.yaml")

		if got := getConfigPath(); got != "/custom/path/config.yaml" {
			t.Errorf("getConfigPath() = %q, want /custom/path/config.yaml", got)
		}
	})
}

// Startup smoke test with MQTT and InfluxDB off and the bridge served
// from a temp directory. run() exits when the context expires.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
daemon:
  id: test-daemon
database:
  path: "`+filepath.Join(tmpDir, "levl.db")+`"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
bridge:
  root: "`+filepath.Join(tmpDir, "bridge")+`"
  poll_interval: 200ms
  result_timeout: 2s
  serve_local: true
comfy:
  host: "127.0.0.1"
  port: 18188
api:
  host: "127.0.0.1"
  port: 18099
  timeouts:
    read: 30
    write: 60
    idle: 120
`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Logf("run() returned %v (port may be taken in this environment)", err)
	}
}
