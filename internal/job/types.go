package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job kinds.
const (
	KindBridge    = "bridge"
	KindComfy     = "comfy"
	KindBlender   = "blender"
	KindGameCraft = "gamecraft"
	KindAnalysis  = "analysis"
	KindOneClick  = "oneclick"
)

// Job is one unit of pipeline work.
type Job struct {
	// ID is a UUID assigned at creation.
	ID string `json:"id"`

	// Kind classifies the job, see the Kind constants.
	Kind string `json:"kind"`

	// Action names the specific operation, e.g. a bridge action or a
	// workflow name.
	Action string `json:"action"`

	Status Status `json:"status"`

	// Payload is the request that started the job.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Result is set when the job completes.
	Result map[string]interface{} `json:"result,omitempty"`

	// Error is set when the job fails.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// DurationMS is the run time in milliseconds, set on completion.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// New creates a queued job.
//
// Parameters:
//   - kind: job kind, see the Kind constants
//   - action: operation name
//   - payload: request data, may be nil
func New(kind, action string, payload map[string]interface{}) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Action:    action,
		Status:    StatusQueued,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// DeepCopy returns an independent copy of the job.
func (j *Job) DeepCopy() *Job {
	cp := *j
	cp.Payload = deepCopyMap(j.Payload)
	cp.Result = deepCopyMap(j.Result)
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, entry := range t {
			out[i] = deepCopyValue(entry)
		}
		return out
	default:
		return t
	}
}
