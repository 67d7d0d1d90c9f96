package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Event message types emitted by the ComfyUI websocket.
const (
	EventStatus    = "status"
	EventProgress  = "progress"
	EventExecuting = "executing"
	EventExecuted  = "executed"
)

// Event is a single execution update from the server.
type Event struct {
	Type     string
	PromptID string
	Node     string
	Value    int
	Max      int
}

// wsMessage mirrors the server's envelope. Binary preview frames are
// skipped before decoding.
type wsMessage struct {
	Type string `json:"type"`
	Data struct {
		PromptID string      `json:"prompt_id"`
		Node     interface{} `json:"node"`
		Value    int         `json:"value"`
		Max      int         `json:"max"`
	} `json:"data"`
}

// Monitor connects to the server's websocket and delivers execution
// events to fn until the context is cancelled or the connection
// drops. The connection uses the client's id, so events for prompts
// submitted by this client carry their prompt id.
//
// Parameters:
//   - fn: invoked for every decoded event, on the monitor goroutine
//
// Returns:
//   - error: nil on context cancellation, ErrMonitorClosed otherwise
func (c *Client) Monitor(ctx context.Context, fn func(Event)) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrUnavailable, wsURL, err)
	}
	defer conn.Close() //nolint:errcheck

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() //nolint:errcheck
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrMonitorClosed, err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("unparseable websocket message", "error", err)
			continue
		}

		ev := Event{
			Type:     msg.Type,
			PromptID: msg.Data.PromptID,
			Value:    msg.Data.Value,
			Max:      msg.Data.Max,
		}
		if node, ok := msg.Data.Node.(string); ok {
			ev.Node = node
		}
		fn(ev)
	}
}

// WaitForPrompt monitors the websocket until the given prompt finishes
// executing. The server signals completion with an "executing" event
// whose node is null. Progress events for the prompt are forwarded to
// progress when non-nil.
func (c *Client) WaitForPrompt(ctx context.Context, promptID string, progress func(Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	finished := false
	err := c.Monitor(ctx, func(ev Event) {
		if ev.PromptID != promptID {
			return
		}
		if progress != nil {
			progress(ev)
		}
		if ev.Type == EventExecuting && ev.Node == "" {
			finished = true
			cancel()
		}
	})

	if finished {
		return nil
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("comfy: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = "clientId=" + url.QueryEscape(c.clientID)
	return u.String(), nil
}
