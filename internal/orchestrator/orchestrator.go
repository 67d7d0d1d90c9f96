package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/levlstudio/levl-core/internal/bridge"
	"github.com/levlstudio/levl-core/internal/comfy"
	"github.com/levlstudio/levl-core/internal/job"
	"github.com/levlstudio/levl-core/internal/workflow"
)

// ActionBuildAndRender is the bridge action handled by the Unreal
// watcher for the one-click flow.
const ActionBuildAndRender = "oneclick_build_and_render"

// Pipeline stage names as published on the event sink.
const (
	StageRender  = "ue_render"
	StageStylize = "comfy_stylize"
)

// Logger is the minimal logging interface required by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventSink receives pipeline stage and progress notifications.
type EventSink interface {
	PipelineStage(pipelineID, stage, status string)
	ComfyProgress(promptID string, value, max int)
	QueueDepth(inbox, outbox int)
}

// Config contains orchestrator settings.
type Config struct {
	// WorkflowPath is the default ComfyUI workflow template.
	WorkflowPath string

	// OutputDir is the default output directory for stylized frames.
	OutputDir string

	// ResultTimeout bounds the bridge round trip for the render stage.
	ResultTimeout time.Duration

	// MonitorProgress enables a background websocket monitor that
	// forwards ComfyUI progress events after a successful submit.
	MonitorProgress bool
}

// Orchestrator runs the one-click flow and individual bridge actions
// under job tracking.
type Orchestrator struct {
	queue   *bridge.Queue
	comfy   *comfy.Client
	tracker *job.Tracker
	cfg     Config

	events EventSink
	logger Logger
	wg     sync.WaitGroup
}

// New creates an orchestrator.
//
// Parameters:
//   - queue: the Unreal file bridge queue
//   - client: the ComfyUI client
//   - tracker: job lifecycle tracker
//   - cfg: orchestrator settings
func New(queue *bridge.Queue, client *comfy.Client, tracker *job.Tracker, cfg Config) *Orchestrator {
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		queue:   queue,
		comfy:   client,
		tracker: tracker,
		cfg:     cfg,
		logger:  noopLogger{},
	}
}

// SetLogger configures logging. Passing nil restores the no-op logger.
func (o *Orchestrator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	o.logger = logger
}

// SetEvents installs the event sink. May be nil.
func (o *Orchestrator) SetEvents(sink EventSink) {
	o.events = sink
}

// Wait blocks until all background flows have finished. Call during
// shutdown after the listeners stop accepting new work.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Request describes a one-click render-and-stylize run.
type Request struct {
	// LevelPath is the Unreal level to load. Required.
	LevelPath string `json:"level_path"`

	// BlueprintPath is an optional actor blueprint to spawn.
	BlueprintPath string `json:"bp_path,omitempty"`

	// SpawnLocation and SpawnRotation place the spawned actor.
	SpawnLocation [3]float64 `json:"spawn_location"`
	SpawnRotation [3]float64 `json:"spawn_rotation"`

	// SequenceName names the level sequence driving the render.
	SequenceName string `json:"sequence_name,omitempty"`

	// OutputMoviePath is where the watcher should write the movie.
	OutputMoviePath string `json:"output_movie_path,omitempty"`

	// Resolution is the render width and height.
	Resolution [2]int `json:"resolution,omitempty"`

	// FPS is the render frame rate.
	FPS int `json:"fps,omitempty"`

	// StyleImagePath is the reference image for the stylize stage.
	StyleImagePath string `json:"style_image_path,omitempty"`

	// WorkflowPath overrides the configured workflow template.
	WorkflowPath string `json:"workflow_path,omitempty"`

	// OutputDir overrides the configured stylize output directory.
	OutputDir string `json:"output_dir,omitempty"`
}

func (r *Request) applyDefaults() {
	if r.SequenceName == "" {
		r.SequenceName = "LevlOneClickSeq"
	}
	if r.Resolution[0] <= 0 || r.Resolution[1] <= 0 {
		r.Resolution = [2]int{1280, 720}
	}
	if r.FPS <= 0 {
		r.FPS = 24
	}
}

func (r *Request) validate() error {
	if r.LevelPath == "" {
		return ErrMissingLevel
	}
	return nil
}

func (r *Request) bridgePayload() map[string]interface{} {
	payload := map[string]interface{}{
		"level_path":     r.LevelPath,
		"spawn_location": []float64{r.SpawnLocation[0], r.SpawnLocation[1], r.SpawnLocation[2]},
		"spawn_rotation": []float64{r.SpawnRotation[0], r.SpawnRotation[1], r.SpawnRotation[2]},
		"sequence_name":  r.SequenceName,
		"resolution":     []int{r.Resolution[0], r.Resolution[1]},
		"fps":            r.FPS,
	}
	if r.BlueprintPath != "" {
		payload["bp_path"] = r.BlueprintPath
	}
	if r.OutputMoviePath != "" {
		payload["output_movie_path"] = r.OutputMoviePath
	}
	return payload
}

// RenderAndStylize runs the full one-click flow synchronously.
//
// Parameters:
//   - ctx: Context bounding the whole run
//   - req: flow parameters
//
// Returns:
//   - *job.Job: the terminal job record, also on stage failure
//   - error: the stage error when the flow failed, nil on success
func (o *Orchestrator) RenderAndStylize(ctx context.Context, req Request) (*job.Job, error) {
	req.applyDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	j, err := o.tracker.Create(ctx, job.KindOneClick, "render_and_stylize", req.bridgePayload())
	if err != nil {
		return nil, err
	}
	return o.run(ctx, j, req)
}

// Submit starts the one-click flow on a background goroutine and
// returns the queued job immediately.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*job.Job, error) {
	req.applyDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	j, err := o.tracker.Create(ctx, job.KindOneClick, "render_and_stylize", req.bridgePayload())
	if err != nil {
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		runCtx, cancel := context.WithTimeout(context.Background(), o.runBudget())
		defer cancel()
		if _, err := o.run(runCtx, j, req); err != nil {
			o.logger.Warn("one-click flow failed", "job", j.ID, "error", err)
		}
	}()
	return j, nil
}

// RunBridgeAction enqueues a single bridge command under job tracking
// and awaits its result on a background goroutine.
//
// Parameters:
//   - ctx: Context for job creation
//   - action: the bridge action name
//   - payload: action parameters, may be nil
//
// Returns:
//   - *job.Job: the queued job
//   - error: if the job could not be created
func (o *Orchestrator) RunBridgeAction(ctx context.Context, action string, payload map[string]interface{}) (*job.Job, error) {
	j, err := o.tracker.Create(ctx, job.KindBridge, action, payload)
	if err != nil {
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		runCtx, cancel := context.WithTimeout(context.Background(), o.runBudget())
		defer cancel()

		if _, err := o.tracker.Start(runCtx, j.ID); err != nil {
			o.logger.Error("failed to start bridge job", "job", j.ID, "error", err)
			return
		}

		res, err := o.queue.Do(runCtx, action, payload, o.cfg.ResultTimeout)
		if err == nil {
			err = res.Err()
		}
		if err != nil {
			o.failJob(runCtx, j.ID, err)
			return
		}
		o.completeJob(runCtx, j.ID, res.Data)
	}()
	return j, nil
}

// StylizeRequest describes a direct ComfyUI submission.
type StylizeRequest struct {
	// VideoPath is the input video for the workflow.
	VideoPath string `json:"video_path"`

	// StyleImagePath is the reference image. Optional.
	StyleImagePath string `json:"style_image_path,omitempty"`

	// WorkflowPath overrides the configured workflow template.
	WorkflowPath string `json:"workflow_path,omitempty"`

	// OutputDir overrides the configured output directory.
	OutputDir string `json:"output_dir,omitempty"`
}

// StylizeVideo submits a workflow for an existing video without the
// render stage. The returned job is terminal.
func (o *Orchestrator) StylizeVideo(ctx context.Context, req StylizeRequest) (*job.Job, error) {
	j, err := o.tracker.Create(ctx, job.KindComfy, "submit", map[string]interface{}{
		"video_path":       req.VideoPath,
		"style_image_path": req.StyleImagePath,
	})
	if err != nil {
		return nil, err
	}
	if _, err := o.tracker.Start(ctx, j.ID); err != nil {
		return nil, err
	}

	resp, err := o.submitWorkflow(ctx, req.VideoPath, req.StyleImagePath,
		req.WorkflowPath, req.OutputDir)
	if err != nil {
		return o.failJob(ctx, j.ID, err), err
	}
	return o.completeJob(ctx, j.ID, map[string]interface{}{
		"prompt_id": resp.PromptID,
		"client_id": o.comfy.ClientID(),
	}), nil
}

// run executes the two-stage flow for an already created job.
func (o *Orchestrator) run(ctx context.Context, j *job.Job, req Request) (*job.Job, error) {
	if _, err := o.tracker.Start(ctx, j.ID); err != nil {
		return nil, err
	}

	o.stage(j.ID, StageRender, "running")
	o.logger.Info("one-click render stage started", "job", j.ID, "level", req.LevelPath)

	res, err := o.queue.Do(ctx, ActionBuildAndRender, req.bridgePayload(), o.cfg.ResultTimeout)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		o.stage(j.ID, StageRender, "failed")
		return o.failJob(ctx, j.ID, fmt.Errorf("render stage: %w", err)), err
	}

	moviePath := res.DataString("movie_path")
	if moviePath == "" {
		o.stage(j.ID, StageRender, "failed")
		return o.failJob(ctx, j.ID, ErrNoMoviePath), ErrNoMoviePath
	}
	o.stage(j.ID, StageRender, "done")

	o.stage(j.ID, StageStylize, "running")
	o.logger.Info("one-click stylize stage started", "job", j.ID, "movie", moviePath)

	resp, err := o.submitWorkflow(ctx, moviePath, req.StyleImagePath,
		req.WorkflowPath, req.OutputDir)
	if err != nil {
		o.stage(j.ID, StageStylize, "failed")
		err = fmt.Errorf("stylize stage: %w", err)
		return o.failJob(ctx, j.ID, err), err
	}
	o.stage(j.ID, StageStylize, "done")

	if o.cfg.MonitorProgress {
		o.monitorPrompt(resp.PromptID)
	}

	return o.completeJob(ctx, j.ID, map[string]interface{}{
		"movie_path": moviePath,
		"prompt_id":  resp.PromptID,
		"client_id":  o.comfy.ClientID(),
	}), nil
}

// submitWorkflow loads, normalizes, parameterizes, and submits the
// workflow template.
func (o *Orchestrator) submitWorkflow(ctx context.Context, videoPath, styleImage, workflowPath, outputDir string) (comfy.PromptResponse, error) {
	if workflowPath == "" {
		workflowPath = o.cfg.WorkflowPath
	}
	if workflowPath == "" {
		return comfy.PromptResponse{}, ErrNoWorkflow
	}
	if outputDir == "" {
		outputDir = o.cfg.OutputDir
	}

	g, err := workflow.Load(workflowPath)
	if err != nil {
		return comfy.PromptResponse{}, fmt.Errorf("loading workflow: %w", err)
	}
	g.Normalize()
	g.SetDynamicOverrides(workflow.DynamicOverrides{
		VideoPath:      videoPath,
		StyleImagePath: styleImage,
		OutputDir:      outputDir,
	})
	g = g.ApplyPlaceholders(workflow.Placeholders{
		InputPath:  videoPath,
		RefImage:   styleImage,
		OutputPath: outputDir,
	})

	return o.comfy.SubmitPrompt(ctx, g)
}

// monitorPrompt forwards websocket progress for a submitted prompt to
// the event sink until the prompt finishes.
func (o *Orchestrator) monitorPrompt(promptID string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.runBudget())
		defer cancel()

		err := o.comfy.WaitForPrompt(ctx, promptID, func(ev comfy.Event) {
			if o.events != nil && ev.Type == comfy.EventProgress {
				o.events.ComfyProgress(promptID, ev.Value, ev.Max)
			}
		})
		if err != nil {
			o.logger.Warn("prompt monitor ended", "prompt", promptID, "error", err)
		}
	}()
}

// Status summarizes subsystem health for the status endpoint.
type Status struct {
	Bridge      bridge.QueueStats  `json:"bridge"`
	BridgeError string             `json:"bridge_error,omitempty"`
	ComfyOK     bool               `json:"comfy_reachable"`
	ComfyError  string             `json:"comfy_error,omitempty"`
	Jobs        map[job.Status]int `json:"jobs"`
}

// CheckStatus probes the bridge queue and the ComfyUI server.
func (o *Orchestrator) CheckStatus(ctx context.Context) Status {
	st := Status{Jobs: o.tracker.Counts()}

	stats, err := o.queue.Stats()
	if err != nil {
		st.BridgeError = err.Error()
	} else {
		st.Bridge = stats
		if o.events != nil {
			o.events.QueueDepth(stats.Inbox, stats.Outbox)
		}
	}

	if err := o.comfy.HealthCheck(ctx); err != nil {
		st.ComfyError = err.Error()
	} else {
		st.ComfyOK = true
	}
	return st
}

// runBudget is the background deadline for one async flow, leaving
// headroom beyond the bridge timeout for the stylize submit.
func (o *Orchestrator) runBudget() time.Duration {
	return o.cfg.ResultTimeout + time.Minute
}

func (o *Orchestrator) stage(jobID, stage, status string) {
	if o.events != nil {
		o.events.PipelineStage(jobID, stage, status)
	}
}

func (o *Orchestrator) failJob(ctx context.Context, id string, cause error) *job.Job {
	j, err := o.tracker.Fail(ctx, id, cause)
	if err != nil {
		o.logger.Error("failed to record job failure", "job", id, "error", err)
		return nil
	}
	return j
}

func (o *Orchestrator) completeJob(ctx context.Context, id string, result map[string]interface{}) *job.Job {
	j, err := o.tracker.Complete(ctx, id, result)
	if err != nil {
		o.logger.Error("failed to record job completion", "job", id, "error", err)
		return nil
	}
	return j
}
