// Package events publishes job, pipeline, and ComfyUI progress updates
// to MQTT and records the matching metrics in InfluxDB.
//
// Publishing is best-effort. The emitter tolerates a nil broker or
// metrics writer, a disconnected broker, and publish failures: the
// daemon keeps working without observability rather than failing jobs
// because a broker is down.
//
// The emitter's JobChanged method satisfies job.Listener, so wiring it
// into the tracker broadcasts every state transition:
//
//	emitter := events.NewEmitter(mqttClient, influxClient)
//	tracker.SetListener(emitter.JobChanged)
package events
