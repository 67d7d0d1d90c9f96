package gamecraft

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakeInstall creates a directory tree that passes installation
// validation, including a downloaded full checkpoint.
func fakeInstall(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	for _, f := range []string{
		"hymm_sp/sample_batch.py",
		"requirements.txt",
		"weights/gamecraft_models/" + checkpointFull,
	} {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0640); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	return dir
}

// fakeTorchrun writes an executable shell script that drops a video
// file into the --save-path directory.
func fakeTorchrun(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "torchrun")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0750); err != nil {
		t.Fatalf("write fake torchrun: %v", err)
	}
	return path
}

const saveVideoScript = `
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--save-path" ]; then out="$a"; fi
  prev="$a"
done
touch "$out/world.mp4"
`

func TestNewRunner_InvalidInstall(t *testing.T) {
	if _, err := NewRunner(t.TempDir(), "", 1, time.Minute); !errors.Is(err, ErrInstallInvalid) {
		t.Errorf("expected ErrInstallInvalid, got %v", err)
	}
}

func TestNewRunner_Defaults(t *testing.T) {
	dir := fakeInstall(t)
	r, err := NewRunner(dir, "", 0, 0)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	if r.weightsDir != filepath.Join(dir, "weights") {
		t.Errorf("expected default weights dir, got %q", r.weightsDir)
	}
	if r.gpuCount != 1 {
		t.Errorf("expected gpu count clamped to 1, got %d", r.gpuCount)
	}
	if r.timeout != defaultTimeout {
		t.Errorf("expected default timeout, got %s", r.timeout)
	}
}

func TestAvailableModels(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	models := r.AvailableModels()
	if len(models) != 1 || models[0] != checkpointFull {
		t.Errorf("expected [%s], got %v", checkpointFull, models)
	}
}

func TestPresetRequest(t *testing.T) {
	req, err := PresetRequest("medieval_village")
	if err != nil {
		t.Fatalf("PresetRequest() error = %v", err)
	}
	if req.Prompt == "" || len(req.Actions) != len(req.ActionSpeeds) {
		t.Errorf("unexpected preset request %+v", req)
	}
	if req.VideoWidth != 704 || req.Seed == 0 {
		t.Error("expected defaults applied to preset request")
	}

	if _, err := PresetRequest("atlantis"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 2, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	req := Request{
		Prompt:    "a quiet harbour town",
		ImagePath: "/tmp/start.png",
		OutputDir: "/tmp/out",
		UseFP8:    true,
	}
	req.applyDefaults()

	args := r.buildArgs(req, "/weights/model.pt")

	assertContains := func(want string) {
		t.Helper()
		for _, a := range args {
			if a == want {
				return
			}
		}
		t.Errorf("expected %q in args: %v", want, args)
	}

	assertContains("--nproc_per_node=2")
	assertContains("hymm_sp/sample_batch.py")
	assertContains("a quiet harbour town")
	assertContains("--image-start")
	assertContains("--use-fp8")
	assertContains("/weights/model.pt")
	assertContains("/tmp/out")
}

func TestBuildArgs_DistilledOverrides(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	req := Request{Prompt: "x", UseDistilled: true}
	req.applyDefaults()
	args := r.buildArgs(req, "/weights/model.pt")

	tail := args[len(args)-4:]
	if tail[0] != "--cfg-scale" || tail[1] != "1.0" || tail[2] != "--infer-steps" || tail[3] != "8" {
		t.Errorf("expected distilled overrides at the end, got %v", tail)
	}
}

func TestGenerate(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.torchrun = fakeTorchrun(t, saveVideoScript)

	out := t.TempDir()
	res, err := r.Generate(context.Background(), Request{
		Prompt:    "a quiet harbour town",
		OutputDir: out,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if filepath.Base(res.VideoPath) != "world.mp4" {
		t.Errorf("expected generated video path, got %q", res.VideoPath)
	}
	if res.DurationSeconds <= 0 {
		t.Error("expected positive duration")
	}
}

func TestGenerate_ActionMismatch(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	_, err = r.Generate(context.Background(), Request{
		Prompt:       "x",
		Actions:      []string{"w", "s"},
		ActionSpeeds: []float64{0.2},
	})
	if !errors.Is(err, ErrActionMismatch) {
		t.Errorf("expected ErrActionMismatch, got %v", err)
	}
}

func TestGenerate_MissingCheckpoint(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	_, err = r.Generate(context.Background(), Request{Prompt: "x", UseDistilled: true})
	if !errors.Is(err, ErrCheckpointMissing) {
		t.Errorf("expected ErrCheckpointMissing, got %v", err)
	}
}

func TestGenerate_Failure(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.torchrun = fakeTorchrun(t, `echo "CUDA out of memory" >&2; exit 1`)

	_, err = r.Generate(context.Background(), Request{Prompt: "x", OutputDir: t.TempDir()})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerate_NoVideoProduced(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.torchrun = fakeTorchrun(t, `exit 0`)

	_, err = r.Generate(context.Background(), Request{Prompt: "x", OutputDir: t.TempDir()})
	if !errors.Is(err, ErrNoVideo) {
		t.Errorf("expected ErrNoVideo, got %v", err)
	}
}

type stubAnalyzer struct {
	path string
	err  error
}

func (s stubAnalyzer) AnalyzeVideo(_ context.Context, _, outputDir string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, "analysis_results.json")
	if err := os.WriteFile(path, []byte("{}"), 0640); err != nil {
		return "", err
	}
	return path, nil
}

func TestPipeline_Run(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.torchrun = fakeTorchrun(t, saveVideoScript)

	p := NewPipeline(r, stubAnalyzer{}, t.TempDir())
	result, err := p.Run(context.Background(), Request{Prompt: "x"}, "test-run")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Name != "test-run" {
		t.Errorf("expected run name preserved, got %q", result.Name)
	}
	if result.Stages[StageGeneration].Status != "completed" {
		t.Errorf("expected generation completed, got %+v", result.Stages[StageGeneration])
	}
	if result.Stages[StageAnalysis].Status != "completed" {
		t.Errorf("expected analysis completed, got %+v", result.Stages[StageAnalysis])
	}
	if result.AnalysisPath == "" {
		t.Error("expected analysis path in result")
	}
}

func TestPipeline_AnalysisFailure(t *testing.T) {
	r, err := NewRunner(fakeInstall(t), "", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.torchrun = fakeTorchrun(t, saveVideoScript)

	p := NewPipeline(r, stubAnalyzer{err: errors.New("boom")}, t.TempDir())
	result, err := p.Run(context.Background(), Request{Prompt: "x"}, "")
	if err == nil {
		t.Fatal("expected analysis error")
	}
	if result.Stages[StageAnalysis].Status != "failed" {
		t.Errorf("expected failed analysis stage, got %+v", result.Stages[StageAnalysis])
	}
	if result.Stages[StageGeneration].Status != "completed" {
		t.Error("expected generation stage preserved on later failure")
	}
}
