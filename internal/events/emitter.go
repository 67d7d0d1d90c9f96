package events

import (
	"encoding/json"
	"time"

	"github.com/levlstudio/levl-core/internal/infrastructure/mqtt"
	"github.com/levlstudio/levl-core/internal/job"
)

// Logger is the minimal logging interface required by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Broker is the publishing subset of the MQTT client.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MetricsWriter is the recording subset of the InfluxDB client.
type MetricsWriter interface {
	WriteJobDuration(kind, action, status string, duration time.Duration)
	WriteComfyProgress(promptID string, value, max int)
	WriteBridgeQueueDepth(inbox, outbox int)
}

// Emitter fans job and pipeline state changes out to MQTT and InfluxDB.
// Either sink may be nil.
type Emitter struct {
	broker  Broker
	metrics MetricsWriter
	topics  mqtt.Topics
	logger  Logger
}

// NewEmitter creates an emitter.
//
// Parameters:
//   - broker: MQTT publisher, may be nil
//   - metrics: InfluxDB writer, may be nil
func NewEmitter(broker Broker, metrics MetricsWriter) *Emitter {
	return &Emitter{
		broker:  broker,
		metrics: metrics,
		logger:  noopLogger{},
	}
}

// SetLogger configures logging. Passing nil restores the no-op logger.
func (e *Emitter) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// jobStatePayload is the wire format published on the job state topic.
type jobStatePayload struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	TS         int64  `json:"ts"`
}

// JobChanged publishes a job state transition. Terminal transitions
// additionally publish the result payload and record the job duration.
// Satisfies job.Listener.
func (e *Emitter) JobChanged(j *job.Job) {
	if j == nil {
		return
	}

	e.publishJSON(e.topics.JobState(j.ID), jobStatePayload{
		ID:         j.ID,
		Kind:       j.Kind,
		Action:     j.Action,
		Status:     string(j.Status),
		Error:      j.Error,
		DurationMS: j.DurationMS,
		TS:         time.Now().Unix(),
	})

	if !j.Status.Terminal() {
		return
	}

	if j.Result != nil {
		e.publishJSON(e.topics.JobResult(j.ID), j.Result)
	}
	if e.metrics != nil {
		e.metrics.WriteJobDuration(j.Kind, j.Action, string(j.Status),
			time.Duration(j.DurationMS)*time.Millisecond)
	}
}

// PipelineStage publishes a pipeline stage transition.
func (e *Emitter) PipelineStage(pipelineID, stage, status string) {
	e.publishJSON(e.topics.PipelineStage(pipelineID), map[string]interface{}{
		"pipeline": pipelineID,
		"stage":    stage,
		"status":   status,
		"ts":       time.Now().Unix(),
	})
}

// ComfyProgress publishes ComfyUI execution progress and records it.
func (e *Emitter) ComfyProgress(promptID string, value, max int) {
	e.publishJSON(e.topics.ComfyProgress(promptID), map[string]interface{}{
		"prompt_id": promptID,
		"value":     value,
		"max":       max,
	})
	if e.metrics != nil {
		e.metrics.WriteComfyProgress(promptID, value, max)
	}
}

// QueueDepth records bridge inbox and outbox depth.
func (e *Emitter) QueueDepth(inbox, outbox int) {
	if e.metrics != nil {
		e.metrics.WriteBridgeQueueDepth(inbox, outbox)
	}
}

func (e *Emitter) publishJSON(topic string, payload interface{}) {
	if e.broker == nil || !e.broker.IsConnected() {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("failed to marshal event payload", "topic", topic, "error", err)
		return
	}
	if err := e.broker.Publish(topic, data, 0, false); err != nil {
		e.logger.Warn("failed to publish event", "topic", topic, "error", err)
		return
	}
	e.logger.Debug("event published", "topic", topic)
}
