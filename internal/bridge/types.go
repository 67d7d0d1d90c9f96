package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Command is a unit of work dropped into a bridge inbox.
type Command struct {
	// ID is the unique command identifier, "<unix-millis>_<8-hex>".
	// It doubles as the inbox and outbox filename stem.
	ID string `json:"id"`

	// Action names the operation to perform (e.g. "render_scene").
	Action string `json:"action"`

	// Payload carries action-specific parameters.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// TS is the enqueue time as a unix timestamp in seconds.
	TS float64 `json:"ts"`
}

// Result is the outcome of a command, written to the bridge outbox.
type Result struct {
	// OK indicates whether the action succeeded.
	OK bool `json:"ok"`

	// ID matches the command ID this result answers.
	ID string `json:"id"`

	// Data carries action-specific output on success.
	Data map[string]interface{} `json:"data,omitempty"`

	// Error describes the failure when OK is false.
	Error string `json:"error,omitempty"`
}

// NewCommandID generates a command identifier.
//
// The millisecond prefix keeps inbox listings in enqueue order; the hex
// suffix disambiguates commands enqueued in the same millisecond.
func NewCommandID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), suffix)
}

// NewCommand creates a Command with a fresh ID and current timestamp.
func NewCommand(action string, payload map[string]interface{}) Command {
	return Command{
		ID:      NewCommandID(),
		Action:  action,
		Payload: payload,
		TS:      float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// DataString extracts a string field from a result's data, or "" if absent.
func (r Result) DataString(key string) string {
	if r.Data == nil {
		return ""
	}
	if s, ok := r.Data[key].(string); ok {
		return s
	}
	return ""
}

// Err converts a failed result into an error, or nil if the result is OK.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("bridge: command %s failed", r.ID)
	}
	return fmt.Errorf("bridge: command %s failed: %s", r.ID, r.Error)
}

// parseCommand decodes a command file. A command is answerable as long
// as its ID is recoverable; a missing or empty action is reported back
// through the outbox at dispatch, not treated as a parse failure.
func parseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}
	if cmd.ID == "" {
		return Command{}, fmt.Errorf("%w: missing id", ErrMalformedCommand)
	}
	return cmd, nil
}
