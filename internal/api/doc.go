// Package api implements the HTTP REST API and WebSocket server for Levl Core.
//
// This package provides:
//   - REST endpoints for job submission, inspection, and pipeline runs
//   - WebSocket hub broadcasting job state changes in real time
//   - Static API-key authentication for a single-operator deployment
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server sits between operator tooling (editor plugins, shell
// scripts, dashboards) and the orchestrator. Render requests flow to the
// Unreal file bridge, stylize requests to ComfyUI, and job state changes
// flow back out over the WebSocket hub and MQTT.
//
// # Graceful Degradation
//
// The server operates without MQTT or InfluxDB wired in. Only the
// orchestrator and job tracker are hard dependencies.
package api
