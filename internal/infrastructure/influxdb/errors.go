package influxdb

import "errors"

// Sentinels for metric sink failures. Batch write errors never surface
// here; they arrive through the SetOnError callback.
var (
	// ErrNotConnected: the client has been closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed: the startup ping was refused or timed out.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled: the influxdb section of config.yaml is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
