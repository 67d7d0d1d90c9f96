package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/levlstudio/levl-core/internal/workflow"
)

// defaultTimeout bounds individual HTTP requests. Prompt execution
// itself is asynchronous, so requests stay short.
const defaultTimeout = 30 * time.Second

// Logger is the minimal logging interface used by the package.
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

// Client talks to a single ComfyUI server.
type Client struct {
	baseURL  string
	clientID string
	httpc    *http.Client
	logger   Logger
}

// PromptResponse is the server's answer to a prompt submission.
type PromptResponse struct {
	PromptID   string                 `json:"prompt_id"`
	Number     int                    `json:"number"`
	NodeErrors map[string]interface{} `json:"node_errors"`
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://127.0.0.1:8188". A random client id is generated; the same
// id is used for prompt submission and progress monitoring so the
// server correlates the two.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: "levl-" + uuid.NewString()[:8],
		httpc:    &http.Client{Timeout: defaultTimeout},
		logger:   noopLogger{},
	}
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		c.logger = noopLogger{}
		return
	}
	c.logger = logger
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ClientID returns the id sent with prompt submissions.
func (c *Client) ClientID() string {
	return c.clientID
}

// SystemStats fetches /system_stats, the cheapest liveness signal the
// server offers.
func (c *Client) SystemStats(ctx context.Context) (map[string]interface{}, error) {
	return c.getJSON(ctx, "/system_stats")
}

// ObjectInfo fetches /object_info. The endpoint only answers once all
// custom nodes are loaded, which makes it the readiness signal.
func (c *Client) ObjectInfo(ctx context.Context) (map[string]interface{}, error) {
	return c.getJSON(ctx, "/object_info")
}

// HealthCheck probes the server. It is compatible with process
// supervisor health check callbacks.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.SystemStats(ctx)
	return err
}

// WaitForReady polls /object_info until the server answers or the
// context expires.
//
// Parameters:
//   - interval: delay between probes
//
// Returns:
//   - error: ErrNotReady wrapped with the last probe error, or nil
func (c *Client) WaitForReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if _, lastErr = c.ObjectInfo(ctx); lastErr == nil {
			return nil
		}
		c.logger.Debug("comfy not ready yet", "error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v (last probe: %v)", ErrNotReady, ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

// SubmitPrompt posts a workflow graph to /prompt for execution.
//
// Parameters:
//   - g: the graph to execute
//
// Returns:
//   - PromptResponse: prompt id assigned by the server
//   - error: ErrRejected when the server reports node errors or a
//     non-success status
func (c *Client) SubmitPrompt(ctx context.Context, g workflow.Graph) (PromptResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"prompt":    g,
		"client_id": c.clientID,
	})
	if err != nil {
		return PromptResponse{}, fmt.Errorf("comfy: encode prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return PromptResponse{}, fmt.Errorf("comfy: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return PromptResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PromptResponse{}, fmt.Errorf("comfy: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return PromptResponse{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, truncate(data, 256))
	}

	var pr PromptResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return PromptResponse{}, fmt.Errorf("comfy: decode response: %w", err)
	}
	if len(pr.NodeErrors) > 0 {
		return pr, fmt.Errorf("%w: %d node errors", ErrRejected, len(pr.NodeErrors))
	}

	c.logger.Info("prompt submitted", "prompt_id", pr.PromptID, "number", pr.Number)
	return pr, nil
}

// History fetches the execution record for a prompt id. The result is
// empty until the prompt has finished.
func (c *Client) History(ctx context.Context, promptID string) (map[string]interface{}, error) {
	return c.getJSON(ctx, "/history/"+promptID)
}

func (c *Client) getJSON(ctx context.Context, path string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("comfy: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadStatus, path, resp.StatusCode)
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("comfy: decode %s: %w", path, err)
	}
	return out, nil
}

func truncate(data []byte, max int) string {
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
