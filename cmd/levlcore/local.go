package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/levlstudio/levl-core/internal/analysis"
	"github.com/levlstudio/levl-core/internal/blender"
	"github.com/levlstudio/levl-core/internal/bridge"
	"github.com/levlstudio/levl-core/internal/gamecraft"
	"github.com/levlstudio/levl-core/internal/infrastructure/config"
	"github.com/levlstudio/levl-core/internal/infrastructure/logging"
	"github.com/levlstudio/levl-core/internal/workflow"
)

// buildLocalDispatcher wires the in-process bridge dispatcher with
// handlers for local tooling: Blender builds, GameCraft generation,
// video analysis, and workflow patching. Unreal-side actions are never
// registered here; the editor watcher owns those.
func buildLocalDispatcher(cfg *config.Config, queue *bridge.Queue, log *logging.Logger) (*bridge.Dispatcher, error) {
	dispatcher := bridge.NewDispatcher(queue, cfg.Bridge.PollInterval)
	dispatcher.SetLogger(log)

	processor := analysis.NewProcessor(cfg.Analysis.FFmpeg, cfg.Analysis.FFprobe,
		cfg.Analysis.FrameStep, cfg.Analysis.MaxFrames)
	processor.SetLogger(log)

	handlers := map[string]bridge.Handler{
		"workflow_patch": handleWorkflowPatch,
		"analyze_video":  analyzeVideoHandler(processor),
	}

	if cfg.Blender.Binary != "" {
		runner := blender.NewRunner(cfg.Blender.Binary, cfg.Blender.ScriptDir, cfg.Blender.Timeout)
		runner.SetLogger(log)
		handlers["blender_run_script"] = blenderHandler(runner)
	} else {
		log.Info("blender actions disabled, no binary configured")
	}

	if cfg.GameCraft.Dir != "" {
		runner, err := gamecraft.NewRunner(cfg.GameCraft.Dir, cfg.GameCraft.WeightsDir,
			cfg.GameCraft.GPUCount, cfg.GameCraft.Timeout)
		if err != nil {
			return nil, fmt.Errorf("gamecraft runner: %w", err)
		}
		runner.SetLogger(log)

		pipeline := gamecraft.NewPipeline(runner, processor, cfg.Comfy.OutputDir)
		pipeline.SetLogger(log)

		handlers["gamecraft_generate"] = gamecraftHandler(runner)
		handlers["gamecraft_pipeline"] = gamecraftPipelineHandler(pipeline)
	} else {
		log.Info("gamecraft actions disabled, no installation configured")
	}

	for action, handler := range handlers {
		if err := dispatcher.Register(action, handler); err != nil {
			return nil, err
		}
	}
	return dispatcher, nil
}

// decodePayload maps a loose bridge payload onto a request struct.
func decodePayload(payload map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

// handleWorkflowPatch normalizes a workflow file in place and reports
// the node and link counts after repair.
func handleWorkflowPatch(_ context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	var req struct {
		Path   string `json:"path"`
		Output string `json:"output,omitempty"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if req.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if req.Output == "" {
		req.Output = req.Path
	}

	g, err := workflow.Load(req.Path)
	if err != nil {
		return nil, err
	}
	g.Normalize()
	if err := g.Save(req.Output); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"output": req.Output,
		"nodes":  len(g.Nodes()),
	}, nil
}

// blenderHandler runs a headless Blender script and returns the parsed
// result marker data.
func blenderHandler(runner *blender.Runner) bridge.Handler {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		var req struct {
			Script string   `json:"script"`
			Args   []string `json:"args,omitempty"`
		}
		if err := decodePayload(payload, &req); err != nil {
			return nil, err
		}
		if req.Script == "" {
			return nil, fmt.Errorf("script is required")
		}

		res, err := runner.Run(ctx, req.Script, req.Args)
		if err != nil {
			return nil, err
		}
		return res.Data, nil
	}
}

// gamecraftHandler generates a single world video.
func gamecraftHandler(runner *gamecraft.Runner) bridge.Handler {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		req, err := gamecraftRequest(payload)
		if err != nil {
			return nil, err
		}

		res, err := runner.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"video_path":       res.VideoPath,
			"duration_seconds": res.DurationSeconds,
		}, nil
	}
}

// gamecraftPipelineHandler generates a world and analyses the result.
func gamecraftPipelineHandler(pipeline *gamecraft.Pipeline) bridge.Handler {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		req, err := gamecraftRequest(payload)
		if err != nil {
			return nil, err
		}
		name, _ := payload["name"].(string) //nolint:errcheck // empty name gets a generated one

		res, err := pipeline.Run(ctx, req, name)
		if err != nil {
			return nil, err
		}

		out := map[string]interface{}{}
		data, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encoding pipeline result: %w", err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decoding pipeline result: %w", err)
		}
		return out, nil
	}
}

// gamecraftRequest builds a generation request from a bridge payload,
// resolving a world preset when one is named.
func gamecraftRequest(payload map[string]interface{}) (gamecraft.Request, error) {
	if preset, ok := payload["preset"].(string); ok && preset != "" {
		return gamecraft.PresetRequest(preset)
	}

	var req gamecraft.Request
	if err := decodePayload(payload, &req); err != nil {
		return gamecraft.Request{}, err
	}
	if req.Prompt == "" {
		return gamecraft.Request{}, fmt.Errorf("prompt or preset is required")
	}
	return req, nil
}

// analyzeVideoHandler runs the frame-analysis pipeline on a video.
func analyzeVideoHandler(processor *analysis.Processor) bridge.Handler {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		var req struct {
			VideoPath string `json:"video_path"`
			OutputDir string `json:"output_dir,omitempty"`
		}
		if err := decodePayload(payload, &req); err != nil {
			return nil, err
		}
		if req.VideoPath == "" {
			return nil, fmt.Errorf("video_path is required")
		}

		resultsPath, err := processor.AnalyzeVideo(ctx, req.VideoPath, req.OutputDir)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"results_path": resultsPath}, nil
	}
}
