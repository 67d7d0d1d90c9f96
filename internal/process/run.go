package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrTimeout is returned by Run when the process exceeded its deadline.
var ErrTimeout = errors.New("process: run timed out")

// RunSpec describes a one-shot subprocess invocation.
//
// Unlike Manager, Run waits for the process to finish and captures its
// complete output. It is used for Blender builds, GameCraft generation
// runs and ffmpeg/ffprobe invocations.
type RunSpec struct {
	// Name is a human-readable identifier for logging and errors.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// Timeout bounds the run. 0 means no timeout beyond ctx.
	Timeout time.Duration
}

// RunResult holds the outcome of a one-shot subprocess invocation.
type RunResult struct {
	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// ExitCode is the process exit code. 0 on success.
	ExitCode int

	// Duration is the wall-clock run time.
	Duration time.Duration
}

// Run executes a subprocess to completion and captures its output.
//
// The process is placed in its own process group so that the whole tree
// is killed on timeout or cancellation. A non-zero exit code is returned
// as an error alongside the populated RunResult; callers that need the
// output of failed runs can still inspect it.
//
// Parameters:
//   - ctx: Context for cancellation
//   - spec: Invocation details
//
// Returns:
//   - RunResult: Captured output, exit code and duration (valid even on error)
//   - error: ErrTimeout on deadline, or a wrapped error for start/exit failures
func Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec // Binary path comes from validated config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Kill the whole process group, not just the direct child
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%w: %s after %v", ErrTimeout, spec.Name, result.Duration)
		}
		return result, fmt.Errorf("running %s: %w", spec.Name, err)
	}

	return result, nil
}
