package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener receives job state changes, e.g. for MQTT publishing.
type Listener func(j *Job)

// Tracker manages the job lifecycle. It wraps a Repository and keeps
// an in-memory cache so status lookups never hit the database on the
// hot path.
//
// All public methods are thread-safe. Returned jobs are deep copies.
type Tracker struct {
	repo     Repository
	cache    map[string]*Job
	cacheMu  sync.RWMutex
	logger   Logger
	listener Listener
}

// NewTracker creates a job tracker.
func NewTracker(repo Repository) *Tracker {
	return &Tracker{
		repo:   repo,
		cache:  make(map[string]*Job),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	t.logger = logger
}

// SetListener installs a state-change listener. The listener runs on
// the caller's goroutine with a deep copy of the job.
func (t *Tracker) SetListener(fn Listener) {
	t.listener = fn
}

// RefreshCache reloads recent jobs from the repository. Call on
// startup; jobs left running by a crash are marked failed.
func (t *Tracker) RefreshCache(ctx context.Context) error {
	jobs, err := t.repo.List(ctx, 500)
	if err != nil {
		return fmt.Errorf("loading jobs: %w", err)
	}

	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	t.cache = make(map[string]*Job, len(jobs))
	recovered := 0
	for i := range jobs {
		j := jobs[i]
		if j.Status == StatusRunning || j.Status == StatusQueued {
			j.Status = StatusFailed
			j.Error = "interrupted by restart"
			now := time.Now().UTC()
			j.FinishedAt = &now
			if err := t.repo.Update(ctx, &j); err != nil {
				t.logger.Warn("failed to mark interrupted job", "id", j.ID, "error", err)
			}
			recovered++
		}
		t.cache[j.ID] = j.DeepCopy()
	}

	t.logger.Info("job cache refreshed", "count", len(jobs), "interrupted", recovered)
	return nil
}

// Create persists a new queued job.
//
// Parameters:
//   - kind: job kind, see the Kind constants
//   - action: operation name
//   - payload: request data, may be nil
//
// Returns:
//   - *Job: deep copy of the created job
//   - error: ErrMissingKind or a persistence error
func (t *Tracker) Create(ctx context.Context, kind, action string, payload map[string]interface{}) (*Job, error) {
	j := New(kind, action, payload)
	if err := t.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	t.cacheMu.Lock()
	t.cache[j.ID] = j.DeepCopy()
	t.cacheMu.Unlock()

	t.logger.Info("job created", "id", j.ID, "kind", kind, "action", action)
	t.notify(j)
	return j.DeepCopy(), nil
}

// Start moves a queued job to running.
func (t *Tracker) Start(ctx context.Context, id string) (*Job, error) {
	return t.transition(ctx, id, func(j *Job) error {
		if j.Status != StatusQueued {
			return fmt.Errorf("%w: %s -> running", ErrInvalidTransition, j.Status)
		}
		now := time.Now().UTC()
		j.Status = StatusRunning
		j.StartedAt = &now
		return nil
	})
}

// Complete moves a running job to done and records its result.
func (t *Tracker) Complete(ctx context.Context, id string, result map[string]interface{}) (*Job, error) {
	return t.transition(ctx, id, func(j *Job) error {
		if j.Status != StatusRunning {
			return fmt.Errorf("%w: %s -> done", ErrInvalidTransition, j.Status)
		}
		j.Status = StatusDone
		j.Result = result
		finish(j)
		return nil
	})
}

// Fail moves a queued or running job to failed and records the error.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) (*Job, error) {
	return t.transition(ctx, id, func(j *Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("%w: %s -> failed", ErrInvalidTransition, j.Status)
		}
		j.Status = StatusFailed
		if cause != nil {
			j.Error = cause.Error()
		}
		finish(j)
		return nil
	})
}

// Get retrieves a job by id, consulting the cache first.
func (t *Tracker) Get(ctx context.Context, id string) (*Job, error) {
	t.cacheMu.RLock()
	cached, ok := t.cache[id]
	t.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}
	return t.repo.GetByID(ctx, id)
}

// List returns cached jobs, newest first.
func (t *Tracker) List(_ context.Context, limit int) []Job {
	t.cacheMu.RLock()
	defer t.cacheMu.RUnlock()

	jobs := make([]Job, 0, len(t.cache))
	for _, j := range t.cache {
		jobs = append(jobs, *j.DeepCopy())
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

// Counts returns the number of cached jobs per status.
func (t *Tracker) Counts() map[Status]int {
	t.cacheMu.RLock()
	defer t.cacheMu.RUnlock()

	counts := map[Status]int{}
	for _, j := range t.cache {
		counts[j.Status]++
	}
	return counts
}

// transition applies a mutation to a job under the cache lock, then
// persists and broadcasts it.
func (t *Tracker) transition(ctx context.Context, id string, mutate func(*Job) error) (*Job, error) {
	t.cacheMu.Lock()
	j, ok := t.cache[id]
	if !ok {
		t.cacheMu.Unlock()
		return nil, ErrNotFound
	}
	if err := mutate(j); err != nil {
		t.cacheMu.Unlock()
		return nil, err
	}
	cp := j.DeepCopy()
	t.cacheMu.Unlock()

	if err := t.repo.Update(ctx, cp); err != nil {
		return nil, err
	}

	t.logger.Debug("job transitioned", "id", id, "status", cp.Status)
	t.notify(cp)
	return cp.DeepCopy(), nil
}

func (t *Tracker) notify(j *Job) {
	if t.listener != nil {
		t.listener(j.DeepCopy())
	}
}

func finish(j *Job) {
	now := time.Now().UTC()
	j.FinishedAt = &now
	start := j.CreatedAt
	if j.StartedAt != nil {
		start = *j.StartedAt
	}
	j.DurationMS = now.Sub(start).Milliseconds()
}
