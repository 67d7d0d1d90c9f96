package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler executes a bridge action.
//
// Handlers receive the command payload and return the result data.
// A returned error produces an ok:false result; the dispatcher never
// drops a command without answering it.
type Handler func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)

// Logger defines the logging interface for the dispatcher.
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

// Dispatcher is the consumer side of a file-drop bridge.
//
// It watches the inbox for command files, executes registered handlers
// and writes exactly one result per command to the outbox. Commands with
// unknown actions or handler failures still receive an ok:false result.
//
// Inbox wakeups come from fsnotify; a periodic rescan covers events lost
// to editor-style atomic saves and network filesystems.
type Dispatcher struct {
	queue  *Queue
	logger Logger

	rescanInterval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates a dispatcher serving the given queue.
//
// Parameters:
//   - queue: The bridge queue whose inbox is served
//   - rescanInterval: Fallback inbox scan period (0 = queue poll interval)
func NewDispatcher(queue *Queue, rescanInterval time.Duration) *Dispatcher {
	if rescanInterval <= 0 {
		rescanInterval = queue.pollInterval
	}

	return &Dispatcher{
		queue:          queue,
		logger:         noopLogger{},
		rescanInterval: rescanInterval,
		handlers:       make(map[string]Handler),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Register binds a handler to an action name.
//
// Returns:
//   - error: ErrDuplicateAction if the action is already registered
func (d *Dispatcher) Register(action string, handler Handler) error {
	if action == "" {
		return ErrEmptyAction
	}
	if handler == nil {
		return fmt.Errorf("bridge: nil handler for action %q", action)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[action]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, action)
	}
	d.handlers[action] = handler
	return nil
}

// Actions returns the sorted list of registered action names.
func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	actions := make([]string, 0, len(d.handlers))
	for action := range d.handlers {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

// Run serves the inbox until the context is cancelled.
//
// It drains any commands already present, then processes new ones as
// they arrive. Wakeups are edge-triggered via fsnotify with a periodic
// rescan as backstop, so a missed event delays a command by at most one
// rescan interval.
//
// Returns:
//   - error: ctx.Err() on shutdown, or a watcher setup failure
func (d *Dispatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.queue.inbox); err != nil {
		return fmt.Errorf("watching inbox: %w", err)
	}

	ticker := time.NewTicker(d.rescanInterval)
	defer ticker.Stop()

	d.logger.Info("bridge dispatcher started",
		"inbox", d.queue.inbox,
		"actions", d.Actions(),
	)

	// Drain commands that arrived before we started watching
	d.scanInbox(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("bridge dispatcher stopping")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("inbox watcher closed")
			}
			// Renames are how Enqueue publishes; creates cover plain writers
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if strings.HasSuffix(event.Name, ".json") {
					d.scanInbox(ctx)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("inbox watcher closed")
			}
			d.logger.Warn("inbox watcher error", "error", err)

		case <-ticker.C:
			d.scanInbox(ctx)
		}
	}
}

// scanInbox processes every pending command file in ID order.
func (d *Dispatcher) scanInbox(ctx context.Context) {
	entries, err := os.ReadDir(d.queue.inbox)
	if err != nil {
		d.logger.Error("reading inbox", "error", err)
		return
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	// The millisecond ID prefix makes lexical order chronological
	sort.Strings(names)

	for _, name := range names {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.processFile(ctx, name)
	}
}

// processFile handles a single command file end to end.
//
// Invariant: every consumed command file produces exactly one outbox
// result before the command file is deleted. Only files whose ID
// cannot be recovered (undecodable JSON or no id field) are
// quarantined with a .bad suffix; anything with an ID gets answered,
// even when the action is missing or unknown.
func (d *Dispatcher) processFile(ctx context.Context, name string) {
	path := filepath.Join(d.queue.inbox, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Another consumer got there first
			return
		}
		d.logger.Error("reading command file", "file", name, "error", err)
		return
	}

	cmd, err := parseCommand(data)
	if err != nil {
		d.logger.Warn("quarantining malformed command", "file", name, "error", err)
		d.quarantine(path)
		return
	}

	d.logger.Debug("executing command", "id", cmd.ID, "action", cmd.Action)

	result := d.execute(ctx, cmd)

	if err := d.writeResult(result); err != nil {
		// Leave the command in place: the next scan retries it
		d.logger.Error("writing result", "id", cmd.ID, "error", err)
		return
	}

	os.Remove(path) //nolint:errcheck // Command already answered; stale files are reprocessed harmlessly

	d.logger.Info("command completed",
		"id", cmd.ID,
		"action", cmd.Action,
		"ok", result.OK,
	)
}

// execute runs the handler for a command with panic recovery.
func (d *Dispatcher) execute(ctx context.Context, cmd Command) (result Result) {
	result = Result{ID: cmd.ID}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic recovered",
				"id", cmd.ID,
				"action", cmd.Action,
				"panic", r,
			)
			result.OK = false
			result.Data = nil
			result.Error = fmt.Sprintf("handler panic: %v", r)
		}
	}()

	if cmd.Action == "" {
		result.Error = ErrEmptyAction.Error()
		return result
	}

	d.mu.RLock()
	handler, exists := d.handlers[cmd.Action]
	d.mu.RUnlock()

	if !exists {
		result.Error = fmt.Sprintf("%v: %s", ErrUnknownAction, cmd.Action)
		return result
	}

	data, err := handler(ctx, cmd.Payload)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.OK = true
	result.Data = data
	return result
}

// writeResult publishes a result file atomically.
func (d *Dispatcher) writeResult(res Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}

	final := filepath.Join(d.queue.outbox, res.ID+".json")
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing result file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("publishing result file: %w", err)
	}

	return nil
}

// quarantine renames an unparseable command file so it is not retried.
func (d *Dispatcher) quarantine(path string) {
	if err := os.Rename(path, path+".bad"); err != nil {
		d.logger.Error("quarantining command file", "file", path, "error", err)
	}
}
