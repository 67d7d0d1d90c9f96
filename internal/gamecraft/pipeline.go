package gamecraft

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stage names reported in pipeline results.
const (
	StageGeneration = "generation"
	StageAnalysis   = "analysis"
)

// Analyzer turns a generated video into reconstruction data. The
// analysis package provides the production implementation.
type Analyzer interface {
	// AnalyzeVideo processes a video and writes its results under
	// outputDir, returning the path of the results document.
	AnalyzeVideo(ctx context.Context, videoPath, outputDir string) (string, error)
}

// StageResult records one completed pipeline stage.
type StageResult struct {
	Status          string  `json:"status"`
	Output          string  `json:"output"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PipelineResult is the outcome of a full pipeline run.
type PipelineResult struct {
	Name         string                 `json:"name"`
	Dir          string                 `json:"dir"`
	VideoPath    string                 `json:"video_path"`
	AnalysisPath string                 `json:"analysis_path,omitempty"`
	Stages       map[string]StageResult `json:"stages"`
}

// Pipeline chains generation with analysis under one output directory
// per run.
type Pipeline struct {
	runner     *Runner
	analyzer   Analyzer
	outputBase string
	logger     Logger
}

// NewPipeline creates a pipeline.
//
// Parameters:
//   - runner: generation runner
//   - analyzer: optional; nil skips the analysis stage
//   - outputBase: base directory receiving one subdirectory per run
func NewPipeline(runner *Runner, analyzer Analyzer, outputBase string) *Pipeline {
	return &Pipeline{
		runner:     runner,
		analyzer:   analyzer,
		outputBase: outputBase,
		logger:     noopLogger{},
	}
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (p *Pipeline) SetLogger(logger Logger) {
	if logger == nil {
		p.logger = noopLogger{}
		return
	}
	p.logger = logger
}

// Run executes the pipeline for a request.
//
// Parameters:
//   - req: generation request
//   - name: run name; "" derives one from the current time
//
// Returns:
//   - *PipelineResult: per-stage outcomes; partial on error
//   - error: the first stage failure
func (p *Pipeline) Run(ctx context.Context, req Request, name string) (*PipelineResult, error) {
	if name == "" {
		name = fmt.Sprintf("world_%d", time.Now().Unix())
	}

	dir := filepath.Join(p.outputBase, name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("gamecraft: create pipeline dir: %w", err)
	}

	result := &PipelineResult{
		Name:   name,
		Dir:    dir,
		Stages: map[string]StageResult{},
	}
	p.logger.Info("starting pipeline", "name", name, "prompt", req.Prompt)

	// Stage 1: video generation.
	start := time.Now()
	req.OutputDir = filepath.Join(dir, "video")
	gen, err := p.runner.Generate(ctx, req)
	if err != nil {
		result.Stages[StageGeneration] = StageResult{
			Status:          "failed",
			DurationSeconds: time.Since(start).Seconds(),
		}
		return result, err
	}
	result.VideoPath = gen.VideoPath
	result.Stages[StageGeneration] = StageResult{
		Status:          "completed",
		Output:          gen.VideoPath,
		DurationSeconds: gen.DurationSeconds,
	}

	// Stage 2: video analysis.
	if p.analyzer != nil {
		start = time.Now()
		analysisPath, err := p.analyzer.AnalyzeVideo(ctx, gen.VideoPath, filepath.Join(dir, "analysis"))
		if err != nil {
			result.Stages[StageAnalysis] = StageResult{
				Status:          "failed",
				DurationSeconds: time.Since(start).Seconds(),
			}
			return result, fmt.Errorf("gamecraft: analysis stage: %w", err)
		}
		result.AnalysisPath = analysisPath
		result.Stages[StageAnalysis] = StageResult{
			Status:          "completed",
			Output:          analysisPath,
			DurationSeconds: time.Since(start).Seconds(),
		}
	}

	p.logger.Info("pipeline finished", "name", name, "video", result.VideoPath)
	return result, nil
}
