package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// resultsFilename is the analysis document written per run.
const resultsFilename = "analysis_results.json"

// Logger is the minimal logging interface used by the processor.
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

// Processor runs video analysis.
type Processor struct {
	ffmpeg    string
	ffprobe   string
	frameStep int
	maxFrames int
	logger    Logger
}

// NewProcessor creates a processor.
//
// Parameters:
//   - ffmpeg, ffprobe: binary paths; "" uses the names from PATH
//   - frameStep: analyse every Nth frame, minimum 1
//   - maxFrames: cap on analysed frames, 0 for no cap
func NewProcessor(ffmpeg, ffprobe string, frameStep, maxFrames int) *Processor {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if frameStep < 1 {
		frameStep = 1
	}
	return &Processor{
		ffmpeg:    ffmpeg,
		ffprobe:   ffprobe,
		frameStep: frameStep,
		maxFrames: maxFrames,
		logger:    noopLogger{},
	}
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (p *Processor) SetLogger(logger Logger) {
	if logger == nil {
		p.logger = noopLogger{}
		return
	}
	p.logger = logger
}

// ProcessVideo analyses a video and writes analysis_results.json under
// outputDir.
//
// Parameters:
//   - videoPath: input video
//   - outputDir: receives frames/ and the results document; "" derives
//     a sibling directory from the video name
//
// Returns:
//   - *Results: the full analysis
//   - error: ErrVideoNotFound, ErrProbeFailed, ErrExtractFailed or
//     ErrNoFrames
func (p *Processor) ProcessVideo(ctx context.Context, videoPath, outputDir string) (*Results, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, videoPath)
	}
	if outputDir == "" {
		base := filepath.Base(videoPath)
		stem := base[:len(base)-len(filepath.Ext(base))]
		outputDir = filepath.Join(filepath.Dir(videoPath), stem+"_analysis")
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("analysis: create output dir: %w", err)
	}

	p.logger.Info("processing video", "video", videoPath, "output", outputDir)

	info, err := probeVideo(ctx, p.ffprobe, videoPath)
	if err != nil {
		return nil, err
	}

	framePaths, err := extractFrames(ctx, p.ffmpeg, videoPath, filepath.Join(outputDir, "frames"))
	if err != nil {
		return nil, err
	}

	frames, grids, err := p.analyzeFrames(ctx, framePaths, info.FPS)
	if err != nil {
		return nil, err
	}

	results := &Results{
		VideoInfo:         info,
		Frames:            frames,
		CameraMotion:      analyzeCameraMotion(grids),
		EnvironmentLayout: buildEnvironmentLayout(frames),
		Metadata: Metadata{
			FrameStep:      p.frameStep,
			FramesAnalysed: len(frames),
			OutputDir:      outputDir,
		},
	}

	if err := saveResults(results, filepath.Join(outputDir, resultsFilename)); err != nil {
		return nil, err
	}

	p.logger.Info("video analysis complete",
		"frames_analysed", len(frames),
		"suitable_for_3d", results.EnvironmentLayout.Hints.SuitableFor3D)
	return results, nil
}

// AnalyzeVideo runs ProcessVideo and returns the results document
// path. It satisfies the pipeline analyzer contract.
func (p *Processor) AnalyzeVideo(ctx context.Context, videoPath, outputDir string) (string, error) {
	results, err := p.ProcessVideo(ctx, videoPath, outputDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(results.Metadata.OutputDir, resultsFilename), nil
}

// analyzeFrames samples the extracted frames per the configured step
// and cap.
func (p *Processor) analyzeFrames(ctx context.Context, framePaths []string, fps float64) ([]FrameAnalysis, []lumaGrid, error) {
	var (
		frames []FrameAnalysis
		grids  []lumaGrid
	)
	for i := 0; i < len(framePaths); i += p.frameStep {
		if p.maxFrames > 0 && len(frames) >= p.maxFrames {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("analysis: cancelled: %w", err)
		}

		timestamp := float64(i)
		if fps > 0 {
			timestamp = float64(i) / fps
		}
		fa, grid, err := analyzeFrame(framePaths[i], i, timestamp)
		if err != nil {
			return nil, nil, err
		}
		frames = append(frames, fa)
		grids = append(grids, grid)

		if len(frames)%50 == 0 {
			p.logger.Debug("analysed frames", "count", len(frames))
		}
	}
	return frames, grids, nil
}

// saveResults writes the results document atomically.
func saveResults(results *Results, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("analysis: encode results: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("analysis: write results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("analysis: rename results: %w", err)
	}
	return nil
}
