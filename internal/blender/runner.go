package blender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/levlstudio/levl-core/internal/process"
)

// resultMarker prefixes the JSON result line a build script prints.
const resultMarker = "LEVL_RESULT:"

// defaultTimeout bounds a build when the configuration gives none.
const defaultTimeout = 10 * time.Minute

var (
	// ErrScriptNotFound indicates the build script does not exist.
	ErrScriptNotFound = errors.New("blender: script not found")

	// ErrRunFailed indicates Blender exited with a non-zero status.
	ErrRunFailed = errors.New("blender: run failed")

	// ErrNoResult indicates the script never printed a result line.
	ErrNoResult = errors.New("blender: no result marker in output")

	// ErrBadResult indicates the result line is not valid JSON.
	ErrBadResult = errors.New("blender: malformed result marker")
)

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

// Result is the outcome of one build.
type Result struct {
	// Data is the decoded result marker printed by the script.
	Data map[string]interface{}

	// Stdout and Stderr hold Blender's full output.
	Stdout string
	Stderr string

	// Duration is the wall-clock run time.
	Duration time.Duration
}

// String returns the value of a string field in the result data, or
// "" when absent.
func (r *Result) String(key string) string {
	s, _ := r.Data[key].(string)
	return s
}

// Runner executes headless Blender builds.
type Runner struct {
	binary    string
	scriptDir string
	timeout   time.Duration
	logger    Logger
}

// NewRunner creates a runner.
//
// Parameters:
//   - binary: path to the Blender executable
//   - scriptDir: directory holding build scripts; relative script
//     names resolve against it
//   - timeout: hard limit per build; 0 applies the default
func NewRunner(binary, scriptDir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		binary:    binary,
		scriptDir: scriptDir,
		timeout:   timeout,
		logger:    noopLogger{},
	}
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (r *Runner) SetLogger(logger Logger) {
	if logger == nil {
		r.logger = noopLogger{}
		return
	}
	r.logger = logger
}

// Run executes a build script and returns its result.
//
// Parameters:
//   - script: script path, absolute or relative to the script dir
//   - args: passed to the script after the "--" separator
//
// Returns:
//   - *Result: decoded result with captured output
//   - error: ErrScriptNotFound, ErrRunFailed, process.ErrTimeout,
//     ErrNoResult or ErrBadResult
func (r *Runner) Run(ctx context.Context, script string, args []string) (*Result, error) {
	path := script
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.scriptDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}

	cmdArgs := append([]string{"--background", "--python", path, "--"}, args...)
	r.logger.Info("starting blender build", "script", path, "args", args)

	res, err := process.Run(ctx, process.RunSpec{
		Name:    "blender",
		Binary:  r.binary,
		Args:    cmdArgs,
		Timeout: r.timeout,
	})

	out := &Result{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	}
	if err != nil {
		if errors.Is(err, process.ErrTimeout) {
			return out, fmt.Errorf("%w: after %s", process.ErrTimeout, r.timeout)
		}
		return out, fmt.Errorf("%w: %v: %s", ErrRunFailed, err, tail(res.Stderr, 512))
	}

	data, err := extractResult(res.Stdout)
	if err != nil {
		return out, err
	}
	out.Data = data

	r.logger.Info("blender build finished", "script", path, "duration", out.Duration)
	return out, nil
}

// RunScene writes a scene descriptor to a temporary JSON file and runs
// the script with "--scene <path>" prepended to args. The file is
// removed when the build finishes.
//
// Parameters:
//   - script: script path, absolute or relative to the script dir
//   - scene: descriptor handed to the script
//   - args: additional script arguments
func (r *Runner) RunScene(ctx context.Context, script string, scene map[string]interface{}, args []string) (*Result, error) {
	data, err := json.Marshal(scene)
	if err != nil {
		return nil, fmt.Errorf("blender: encode scene: %w", err)
	}

	f, err := os.CreateTemp("", "levl-scene-*.json")
	if err != nil {
		return nil, fmt.Errorf("blender: scene file: %w", err)
	}
	defer os.Remove(f.Name()) //nolint:errcheck // best effort cleanup

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("blender: write scene: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("blender: write scene: %w", err)
	}

	return r.Run(ctx, script, append([]string{"--scene", f.Name()}, args...))
}

// Version reports the installed Blender version string.
func (r *Runner) Version(ctx context.Context) (string, error) {
	res, err := process.Run(ctx, process.RunSpec{
		Name:    "blender-version",
		Binary:  r.binary,
		Args:    []string{"--version"},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRunFailed, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return strings.TrimSpace(line), nil
}

// extractResult finds the last result marker in the output and decodes
// its JSON payload. The last marker wins so scripts may log
// intermediate results.
func extractResult(stdout string) (map[string]interface{}, error) {
	var payload string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, resultMarker) {
			payload = strings.TrimPrefix(line, resultMarker)
		}
	}
	if payload == "" {
		return nil, ErrNoResult
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResult, err)
	}
	return data, nil
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
