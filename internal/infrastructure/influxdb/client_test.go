package influxdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/levlstudio/levl-core/internal/infrastructure/config"
	"github.com/levlstudio/levl-core/internal/infrastructure/influxdb"
)

func devConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "levl-dev-token",
		Org:           "levl",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// dialOrSkip connects to the local dev server, skipping the test when
// it is not running.
func dialOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(devConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := devConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect(t *testing.T) {
	client := dialOrSkip(t)
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteHelpers(t *testing.T) {
	client := dialOrSkip(t)
	defer client.Close()

	// Writes are async; Flush forces delivery so broken points fail loudly.
	client.WriteJobDuration("render", "render_scene", "done", 0)
	client.WriteBridgeQueueDepth(3, 1)
	client.WriteComfyProgress("p-1", 5, 20)
	client.Flush()
}

func TestClose_ZeroValue(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
