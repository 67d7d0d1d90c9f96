package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/levlstudio/levl-core/internal/infrastructure/database"
	_ "github.com/levlstudio/levl-core/migrations" // register embedded migrations
)

// openTestRepo creates a migrated SQLite repository in a temp dir.
func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestNew(t *testing.T) {
	j := New(KindBridge, "build_level", map[string]interface{}{"size": 10})

	if j.ID == "" {
		t.Error("expected generated id")
	}
	if j.Status != StatusQueued {
		t.Errorf("expected queued status, got %s", j.Status)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected created timestamp")
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusQueued.Terminal() || StatusRunning.Terminal() {
		t.Error("queued and running must not be terminal")
	}
	if !StatusDone.Terminal() || !StatusFailed.Terminal() {
		t.Error("done and failed must be terminal")
	}
}

func TestJob_DeepCopy(t *testing.T) {
	j := New(KindComfy, "submit", map[string]interface{}{
		"nested": map[string]interface{}{"key": "value"},
	})

	cp := j.DeepCopy()
	cp.Payload["nested"].(map[string]interface{})["key"] = "changed"

	if j.Payload["nested"].(map[string]interface{})["key"] != "value" {
		t.Error("expected deep copy to isolate nested maps")
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	j := New(KindOneClick, "render_and_stylize", map[string]interface{}{"style": "noir"})
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Kind != KindOneClick || got.Action != "render_and_stylize" {
		t.Errorf("unexpected job %+v", got)
	}
	if got.Payload["style"] != "noir" {
		t.Errorf("expected payload round trip, got %v", got.Payload)
	}
	if got.StartedAt != nil || got.FinishedAt != nil {
		t.Error("expected nil optional timestamps")
	}
}

func TestRepository_CreateMissingKind(t *testing.T) {
	repo := openTestRepo(t)

	j := New("", "x", nil)
	if err := repo.Create(context.Background(), j); !errors.Is(err, ErrMissingKind) {
		t.Errorf("expected ErrMissingKind, got %v", err)
	}
}

func TestRepository_GetMissing(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_Update(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	j := New(KindBlender, "build_scene", nil)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	now := time.Now().UTC()
	j.Status = StatusDone
	j.Result = map[string]interface{}{"blend_path": "/tmp/x.blend"}
	j.StartedAt = &now
	j.FinishedAt = &now
	j.DurationMS = 1500
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusDone || got.DurationMS != 1500 {
		t.Errorf("unexpected job after update: %+v", got)
	}
	if got.Result["blend_path"] != "/tmp/x.blend" {
		t.Errorf("expected result round trip, got %v", got.Result)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("expected timestamps after update")
	}
}

func TestRepository_UpdateMissing(t *testing.T) {
	repo := openTestRepo(t)

	j := New(KindComfy, "x", nil)
	if err := repo.Update(context.Background(), j); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_ListByStatus(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		j := New(KindBridge, "ping", nil)
		if i == 0 {
			j.Status = StatusDone
		}
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	queued, err := repo.ListByStatus(ctx, StatusQueued, 0)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(queued) != 2 {
		t.Errorf("expected 2 queued jobs, got %d", len(queued))
	}
}

func TestRepository_DeleteOlderThan(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	old := New(KindComfy, "x", nil)
	old.Status = StatusDone
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	running := New(KindComfy, "y", nil)
	running.Status = StatusRunning
	running.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := repo.Create(ctx, running); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted job, got %d", deleted)
	}

	if _, err := repo.GetByID(ctx, running.ID); err != nil {
		t.Error("expected running job to survive cleanup")
	}
}

func TestTracker_Lifecycle(t *testing.T) {
	tracker := NewTracker(openTestRepo(t))
	ctx := context.Background()

	var events []Status
	tracker.SetListener(func(j *Job) {
		events = append(events, j.Status)
	})

	j, err := tracker.Create(ctx, KindOneClick, "render_and_stylize", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := tracker.Start(ctx, j.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done, err := tracker.Complete(ctx, j.ID, map[string]interface{}{"movie": "/out.mp4"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if done.Status != StatusDone || done.FinishedAt == nil {
		t.Errorf("unexpected completed job %+v", done)
	}
	if done.Result["movie"] != "/out.mp4" {
		t.Errorf("expected result stored, got %v", done.Result)
	}

	want := []Status{StatusQueued, StatusRunning, StatusDone}
	if len(events) != len(want) {
		t.Fatalf("expected %d listener events, got %d", len(want), len(events))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}

func TestTracker_InvalidTransitions(t *testing.T) {
	tracker := NewTracker(openTestRepo(t))
	ctx := context.Background()

	j, err := tracker.Create(ctx, KindComfy, "submit", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Cannot complete a job that never started.
	if _, err := tracker.Complete(ctx, j.ID, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := tracker.Fail(ctx, j.ID, errors.New("boom")); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	// Terminal jobs cannot fail again.
	if _, err := tracker.Fail(ctx, j.ID, errors.New("again")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTracker_UnknownJob(t *testing.T) {
	tracker := NewTracker(openTestRepo(t))
	if _, err := tracker.Start(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTracker_RefreshCacheMarksInterrupted(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	j := New(KindGameCraft, "generate", nil)
	j.Status = StatusRunning
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tracker := NewTracker(repo)
	if err := tracker.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	got, err := tracker.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusFailed || got.Error == "" {
		t.Errorf("expected interrupted job marked failed, got %+v", got)
	}
}

func TestTracker_ListAndCounts(t *testing.T) {
	tracker := NewTracker(openTestRepo(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := tracker.Create(ctx, KindBridge, "ping", nil); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	jobs := tracker.List(ctx, 2)
	if len(jobs) != 2 {
		t.Fatalf("expected limit applied, got %d jobs", len(jobs))
	}
	if jobs[0].CreatedAt.Before(jobs[1].CreatedAt) {
		t.Error("expected newest first ordering")
	}

	counts := tracker.Counts()
	if counts[StatusQueued] != 3 {
		t.Errorf("expected 3 queued, got %v", counts)
	}
}
