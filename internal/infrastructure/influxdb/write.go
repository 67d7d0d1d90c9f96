package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// emit hands a point to the batched write API, dropping it silently
// when the client is closed. Metric loss on shutdown is acceptable.
func (c *Client) emit(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writes.WritePoint(p)
}

// WriteJobDuration records how long a terminal job took.
//
// Parameters:
//   - kind: job kind ("render", "comfy", "oneclick", "analysis")
//   - action: the job action ("render_scene", "submit_workflow", ...)
//   - status: terminal status ("done" or "failed")
//   - duration: wall-clock duration
func (c *Client) WriteJobDuration(kind, action, status string, duration time.Duration) {
	c.emit(write.NewPoint("job_duration",
		map[string]string{"kind": kind, "action": action, "status": status},
		map[string]interface{}{"duration_ms": duration.Milliseconds()},
		time.Now()))
}

// WriteBridgeQueueDepth records how many command files sit unprocessed
// in the file-drop bridge inbox and how many results are unconsumed in
// the outbox.
func (c *Client) WriteBridgeQueueDepth(inbox, outbox int) {
	c.emit(write.NewPoint("bridge_queue",
		nil,
		map[string]interface{}{"inbox": inbox, "outbox": outbox},
		time.Now()))
}

// WriteComfyProgress records ComfyUI sampler progress for a prompt.
//
// Parameters:
//   - promptID: ComfyUI prompt identifier
//   - value: current step
//   - max: total steps
func (c *Client) WriteComfyProgress(promptID string, value, max int) {
	c.emit(write.NewPoint("comfy_progress",
		map[string]string{"prompt_id": promptID},
		map[string]interface{}{"value": value, "max": max},
		time.Now()))
}

// WriteAnalysisTiming records one stage of the video analysis pipeline.
//
// Parameters:
//   - stage: "probe", "extract_frames", "analyse_frames", ...
//   - frames: frames processed in the stage, 0 when not applicable
//   - duration: stage duration
func (c *Client) WriteAnalysisTiming(stage string, frames int, duration time.Duration) {
	c.emit(write.NewPoint("analysis_timing",
		map[string]string{"stage": stage},
		map[string]interface{}{"frames": frames, "duration_ms": duration.Milliseconds()},
		time.Now()))
}

// WritePoint records a custom measurement stamped with the current
// time. Keep tag cardinality low; tags are indexed.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.emit(write.NewPoint(measurement, tags, fields, time.Now()))
}

// WritePointWithTime is WritePoint with an explicit timestamp, for
// replayed or backfilled data.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.emit(write.NewPoint(measurement, tags, fields, timestamp))
}
