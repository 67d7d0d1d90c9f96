package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Directory and file permission modes for bridge artefacts.
const (
	dirPermissions  = 0750
	filePermissions = 0644
)

// defaultPollInterval is used when a Queue is built with a zero interval.
const defaultPollInterval = 2 * time.Second

// Queue is the producer side of a file-drop bridge.
//
// It enqueues commands into inbox/ and collects results from outbox/.
// A Queue may be used concurrently from multiple goroutines; each command
// has its own files so there is no shared state beyond the directories.
type Queue struct {
	root         string
	inbox        string
	outbox       string
	pollInterval time.Duration
}

// QueueStats reports the current depth of a bridge queue.
type QueueStats struct {
	// Inbox is the number of pending command files.
	Inbox int `json:"inbox"`

	// Outbox is the number of unconsumed result files.
	Outbox int `json:"outbox"`
}

// NewQueue opens (and creates if necessary) a bridge rooted at root.
//
// Parameters:
//   - root: Bridge directory; inbox/ and outbox/ are created beneath it
//   - pollInterval: How often Await checks for results (0 = 2s default)
//
// Returns:
//   - *Queue: Ready-to-use queue
//   - error: If the directories cannot be created
func NewQueue(root string, pollInterval time.Duration) (*Queue, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	q := &Queue{
		root:         root,
		inbox:        filepath.Join(root, "inbox"),
		outbox:       filepath.Join(root, "outbox"),
		pollInterval: pollInterval,
	}

	for _, dir := range []string{q.inbox, q.outbox} {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("creating bridge directory: %w", err)
		}
	}

	return q, nil
}

// Root returns the bridge root directory.
func (q *Queue) Root() string {
	return q.root
}

// InboxDir returns the inbox directory path.
func (q *Queue) InboxDir() string {
	return q.inbox
}

// OutboxDir returns the outbox directory path.
func (q *Queue) OutboxDir() string {
	return q.outbox
}

// Enqueue writes a command into the inbox.
//
// The file is written to a temporary name and renamed into place so that
// consumers never observe a partially written command.
//
// Parameters:
//   - cmd: The command to enqueue; ID must be set (use NewCommand)
//
// Returns:
//   - error: If marshalling or the write fails
func (q *Queue) Enqueue(cmd Command) error {
	if cmd.ID == "" {
		return fmt.Errorf("bridge: command has empty ID")
	}
	if cmd.Action == "" {
		return ErrEmptyAction
	}

	data, err := json.MarshalIndent(cmd, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	final := filepath.Join(q.inbox, cmd.ID+".json")
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing command file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("publishing command file: %w", err)
	}

	return nil
}

// Fetch attempts to consume the result for a command ID.
//
// On success the result file is deleted so each result is observed once.
//
// Parameters:
//   - id: The command ID to look up
//
// Returns:
//   - Result: The decoded result (zero value if not found)
//   - bool: true if a result was found and consumed
//   - error: If the file exists but cannot be read or decoded
func (q *Queue) Fetch(id string) (Result, bool, error) {
	path := filepath.Join(q.outbox, id+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("reading result file: %w", err)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, false, fmt.Errorf("decoding result %s: %w", id, err)
	}

	// Consume: result files are one-shot
	os.Remove(path) //nolint:errcheck // Stale result files are harmless

	return res, true, nil
}

// Await blocks until the result for a command ID appears or the timeout
// elapses.
//
// Parameters:
//   - ctx: Context for cancellation
//   - id: The command ID to wait for
//   - timeout: Maximum wait; renders can take minutes
//
// Returns:
//   - Result: The consumed result
//   - error: ErrTimeout, ctx.Err(), or a read failure
func (q *Queue) Await(ctx context.Context, id string, timeout time.Duration) (Result, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		res, found, err := q.Fetch(id)
		if err != nil {
			return Result{}, err
		}
		if found {
			return res, nil
		}

		if time.Now().After(deadline) {
			return Result{}, fmt.Errorf("%w: command %s after %v", ErrTimeout, id, timeout)
		}

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("awaiting result for %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Do enqueues a command and waits for its result.
//
// This is the common round-trip used by the orchestrator: drop a command
// for the Unreal watcher, block until the watcher answers.
//
// Parameters:
//   - ctx: Context for cancellation
//   - action: The action name
//   - payload: Action parameters (may be nil)
//   - timeout: Maximum wait for the result
//
// Returns:
//   - Result: The consumed result (check Result.OK)
//   - error: If enqueue fails or no result arrives in time
func (q *Queue) Do(ctx context.Context, action string, payload map[string]interface{}, timeout time.Duration) (Result, error) {
	cmd := NewCommand(action, payload)
	if err := q.Enqueue(cmd); err != nil {
		return Result{}, err
	}
	return q.Await(ctx, cmd.ID, timeout)
}

// Stats counts pending commands and unconsumed results.
//
// Temporary and quarantined files are excluded.
func (q *Queue) Stats() (QueueStats, error) {
	var stats QueueStats

	inbox, err := countJSONFiles(q.inbox)
	if err != nil {
		return stats, fmt.Errorf("counting inbox: %w", err)
	}
	outbox, err := countJSONFiles(q.outbox)
	if err != nil {
		return stats, fmt.Errorf("counting outbox: %w", err)
	}

	stats.Inbox = inbox
	stats.Outbox = outbox
	return stats, nil
}

// countJSONFiles counts *.json entries in a directory.
func countJSONFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return count, nil
}
