package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	result, err := Run(context.Background(), RunSpec{
		Name:   "echo",
		Binary: "/bin/echo",
		Args:   []string{"hello"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(result.Stdout, "hello") {
		t.Errorf("Stdout = %q, want to contain %q", result.Stdout, "hello")
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	result, err := Run(context.Background(), RunSpec{
		Name:   "false",
		Binary: "/bin/false",
	})
	if err == nil {
		t.Fatal("Run() expected error for non-zero exit")
	}
	if result.ExitCode == 0 {
		t.Errorf("ExitCode = 0, want non-zero")
	}
}

func TestRun_MissingBinary(t *testing.T) {
	_, err := Run(context.Background(), RunSpec{
		Name:   "missing",
		Binary: "/nonexistent/binary",
	})
	if err == nil {
		t.Fatal("Run() expected error for missing binary")
	}
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), RunSpec{
		Name:    "sleeper",
		Binary:  "/bin/sleep",
		Args:    []string{"10"},
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Run() took %v, timeout did not fire", elapsed)
	}
}

func TestRun_CapturesStderr(t *testing.T) {
	result, err := Run(context.Background(), RunSpec{
		Name:   "stderr",
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo oops >&2"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(result.Stderr, "oops") {
		t.Errorf("Stderr = %q, want to contain %q", result.Stderr, "oops")
	}
}

func TestRun_WorkDir(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := Run(context.Background(), RunSpec{
		Name:    "pwd",
		Binary:  "/bin/sh",
		Args:    []string{"-c", "pwd"},
		WorkDir: tmpDir,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(result.Stdout, tmpDir) {
		t.Errorf("Stdout = %q, want to contain %q", result.Stdout, tmpDir)
	}
}
