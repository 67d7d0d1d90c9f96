package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/levlstudio/levl-core/internal/job"
)

type fakeBroker struct {
	connected bool
	published map[string][]byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{connected: true, published: map[string][]byte{}}
}

func (b *fakeBroker) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.published[topic] = payload
	return nil
}

func (b *fakeBroker) IsConnected() bool { return b.connected }

type fakeMetrics struct {
	durations int
	progress  int
	depths    int
}

func (m *fakeMetrics) WriteJobDuration(string, string, string, time.Duration) { m.durations++ }
func (m *fakeMetrics) WriteComfyProgress(string, int, int)                    { m.progress++ }
func (m *fakeMetrics) WriteBridgeQueueDepth(int, int)                         { m.depths++ }

func TestJobChanged_PublishesState(t *testing.T) {
	broker := newFakeBroker()
	emitter := NewEmitter(broker, nil)

	j := job.New(job.KindComfy, "submit", nil)
	emitter.JobChanged(j)

	topic := "levl/job/" + j.ID + "/state"
	data, ok := broker.published[topic]
	if !ok {
		t.Fatalf("expected publish on %s, got %v", topic, broker.published)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["status"] != "queued" || payload["kind"] != "comfy" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestJobChanged_TerminalPublishesResultAndMetrics(t *testing.T) {
	broker := newFakeBroker()
	metrics := &fakeMetrics{}
	emitter := NewEmitter(broker, metrics)

	j := job.New(job.KindOneClick, "render_and_stylize", nil)
	j.Status = job.StatusDone
	j.Result = map[string]interface{}{"movie_path": "/out.mp4"}
	j.DurationMS = 4200
	emitter.JobChanged(j)

	if _, ok := broker.published["levl/job/"+j.ID+"/result"]; !ok {
		t.Error("expected result topic publish for terminal job")
	}
	if metrics.durations != 1 {
		t.Errorf("expected 1 duration metric, got %d", metrics.durations)
	}
}

func TestJobChanged_NonTerminalSkipsMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	emitter := NewEmitter(newFakeBroker(), metrics)

	j := job.New(job.KindBridge, "ping", nil)
	j.Status = job.StatusRunning
	emitter.JobChanged(j)

	if metrics.durations != 0 {
		t.Errorf("expected no duration metric, got %d", metrics.durations)
	}
}

func TestJobChanged_DisconnectedBroker(t *testing.T) {
	broker := newFakeBroker()
	broker.connected = false
	emitter := NewEmitter(broker, nil)

	emitter.JobChanged(job.New(job.KindBridge, "ping", nil))

	if len(broker.published) != 0 {
		t.Errorf("expected no publishes while disconnected, got %v", broker.published)
	}
}

func TestJobChanged_NilSinks(t *testing.T) {
	emitter := NewEmitter(nil, nil)

	// Must not panic.
	emitter.JobChanged(job.New(job.KindBridge, "ping", nil))
	emitter.JobChanged(nil)
	emitter.PipelineStage("p1", "render", "running")
	emitter.ComfyProgress("abc", 1, 10)
	emitter.QueueDepth(1, 2)
}

func TestPipelineStage(t *testing.T) {
	broker := newFakeBroker()
	emitter := NewEmitter(broker, nil)

	emitter.PipelineStage("p1", "stylize", "done")

	data, ok := broker.published["levl/pipeline/p1/stage"]
	if !ok {
		t.Fatalf("expected stage publish, got %v", broker.published)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["stage"] != "stylize" || payload["status"] != "done" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestComfyProgress(t *testing.T) {
	broker := newFakeBroker()
	metrics := &fakeMetrics{}
	emitter := NewEmitter(broker, metrics)

	emitter.ComfyProgress("prompt-1", 5, 20)

	if _, ok := broker.published["levl/comfy/progress/prompt-1"]; !ok {
		t.Error("expected progress publish")
	}
	if metrics.progress != 1 {
		t.Errorf("expected 1 progress metric, got %d", metrics.progress)
	}
}

func TestQueueDepth(t *testing.T) {
	metrics := &fakeMetrics{}
	emitter := NewEmitter(nil, metrics)

	emitter.QueueDepth(3, 1)

	if metrics.depths != 1 {
		t.Errorf("expected 1 depth metric, got %d", metrics.depths)
	}
}
