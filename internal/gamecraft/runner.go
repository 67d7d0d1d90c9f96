package gamecraft

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/levlstudio/levl-core/internal/process"
)

// Installation files every GameCraft checkout carries.
var requiredFiles = []string{
	"hymm_sp/sample_batch.py",
	"requirements.txt",
}

// Prompt suffixes appended to every generation. These mirror the
// upstream sampling defaults.
const (
	posPrompt = "Realistic, High-quality."
	negPrompt = "overexposed, low quality, deformation, bad composition, bad hands, bad teeth, bad eyes, bad limbs, distortion, blurring, text, subtitles, static, picture, black border."
)

// defaultTimeout bounds a generation run when none is configured.
const defaultTimeout = time.Hour

// Logger is the minimal logging interface used by the runner.
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

// Runner executes GameCraft inference runs.
type Runner struct {
	dir        string
	weightsDir string
	gpuCount   int
	timeout    time.Duration
	torchrun   string
	logger     Logger
}

// NewRunner creates a runner for the installation at dir.
//
// Parameters:
//   - dir: Hunyuan-GameCraft installation directory
//   - weightsDir: model weights directory; "" defaults to <dir>/weights
//   - gpuCount: GPUs passed to torchrun, minimum 1
//   - timeout: hard limit per run; 0 applies the default
//
// Returns:
//   - *Runner: validated runner
//   - error: ErrInstallInvalid when required files are missing
func NewRunner(dir, weightsDir string, gpuCount int, timeout time.Duration) (*Runner, error) {
	for _, f := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("%w: missing %s", ErrInstallInvalid, f)
		}
	}

	if weightsDir == "" {
		weightsDir = filepath.Join(dir, "weights")
	}
	if gpuCount < 1 {
		gpuCount = 1
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Runner{
		dir:        dir,
		weightsDir: weightsDir,
		gpuCount:   gpuCount,
		timeout:    timeout,
		torchrun:   "torchrun",
		logger:     noopLogger{},
	}, nil
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (r *Runner) SetLogger(logger Logger) {
	if logger == nil {
		r.logger = noopLogger{}
		return
	}
	r.logger = logger
}

// AvailableModels lists the checkpoint files present in the weights
// directory.
func (r *Runner) AvailableModels() []string {
	matches, err := filepath.Glob(filepath.Join(r.weightsDir, "gamecraft_models", "*.pt"))
	if err != nil {
		return nil
	}
	models := make([]string, 0, len(matches))
	for _, m := range matches {
		models = append(models, filepath.Base(m))
	}
	return models
}

// Generate runs inference for a request and returns the generated
// video path.
//
// Parameters:
//   - req: generation request; zero fields receive defaults
//
// Returns:
//   - Result: video path and timing
//   - error: ErrActionMismatch, ErrCheckpointMissing,
//     ErrGenerationFailed, process.ErrTimeout or ErrNoVideo
func (r *Runner) Generate(ctx context.Context, req Request) (Result, error) {
	req.applyDefaults()
	if len(req.Actions) != len(req.ActionSpeeds) {
		return Result{}, ErrActionMismatch
	}

	checkpoint := filepath.Join(r.weightsDir, "gamecraft_models", checkpointName(req.UseDistilled))
	if _, err := os.Stat(checkpoint); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrCheckpointMissing, checkpoint)
	}

	if req.OutputDir == "" {
		req.OutputDir = filepath.Join(r.dir, "results")
	}
	if err := os.MkdirAll(req.OutputDir, 0750); err != nil {
		return Result{}, fmt.Errorf("gamecraft: create output dir: %w", err)
	}

	args := r.buildArgs(req, checkpoint)
	r.logger.Info("starting gamecraft generation",
		"prompt", req.Prompt,
		"actions", req.Actions,
		"gpus", r.gpuCount,
		"distilled", req.UseDistilled)

	res, err := process.Run(ctx, process.RunSpec{
		Name:    "gamecraft",
		Binary:  r.torchrun,
		Args:    args,
		WorkDir: r.dir,
		Timeout: r.timeout,
	})
	if err != nil {
		if ctx.Err() != nil || res.ExitCode < 0 {
			return Result{}, fmt.Errorf("gamecraft: %w", err)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	video, err := findLatestVideo(req.OutputDir)
	if err != nil {
		return Result{}, err
	}

	r.logger.Info("gamecraft generation finished", "video", video, "duration", res.Duration)
	return Result{
		VideoPath:       video,
		DurationSeconds: res.Duration.Seconds(),
	}, nil
}

// buildArgs constructs the torchrun invocation for sample_batch.py.
func (r *Runner) buildArgs(req Request, checkpoint string) []string {
	args := []string{
		"--nnodes=1",
		fmt.Sprintf("--nproc_per_node=%d", r.gpuCount),
		"--master_port", "29605",
		"hymm_sp/sample_batch.py",
	}

	if req.ImagePath != "" {
		args = append(args, "--image-path", req.ImagePath, "--image-start")
	}

	args = append(args,
		"--prompt", req.Prompt,
		"--add-pos-prompt", posPrompt,
		"--add-neg-prompt", negPrompt,
		"--ckpt", checkpoint,
		"--video-size", strconv.Itoa(req.VideoWidth), strconv.Itoa(req.VideoHeight),
		"--cfg-scale", formatFloat(req.CfgScale),
		"--action-list",
	)
	args = append(args, req.Actions...)
	args = append(args, "--action-speed-list")
	for _, s := range req.ActionSpeeds {
		args = append(args, formatFloat(s))
	}
	args = append(args,
		"--seed", strconv.Itoa(req.Seed),
		"--infer-steps", strconv.Itoa(req.InferenceSteps),
		"--flow-shift-eval-video", "5.0",
		"--save-path", req.OutputDir,
	)

	if req.UseFP8 {
		args = append(args, "--use-fp8")
	}
	// The distilled checkpoint expects its own sampling settings; the
	// later flags override the ones above.
	if req.UseDistilled {
		args = append(args, "--cfg-scale", "1.0", "--infer-steps", "8")
	}

	return args
}

func checkpointName(distilled bool) string {
	if distilled {
		return checkpointDistilled
	}
	return checkpointFull
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// findLatestVideo returns the most recently modified video file in dir.
func findLatestVideo(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoVideo, err)
	}

	var (
		latest     string
		latestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".mp4", ".avi", ".mov", ".mkv":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = filepath.Join(dir, entry.Name())
			latestTime = info.ModTime()
		}
	}

	if latest == "" {
		return "", ErrNoVideo
	}
	return latest, nil
}
