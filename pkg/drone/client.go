// Package drone manages the long-lived connection to the external
// drone-control tool endpoint: a child process speaking the Model
// Context Protocol over stdio. It discovers and caches the tool catalog,
// invokes tools with per-tool timeout policy, and recovers transport
// failures with a single jittered-backoff retry.
package drone

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os/exec"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Timeout policy constants. MissionToolName uses the long ceiling; every
// other tool uses DefaultToolTimeout.
const (
	DefaultToolTimeout = 30 * time.Second
	DefaultMissionTimeout = 30 * time.Minute
	MissionToolName       = "drone.run_mission"

	MaxRetries      = 1
	RetryBackoffMin = 250 * time.Millisecond
	RetryBackoffMax = 750 * time.Millisecond
)

// Tool is a discovered tool descriptor.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Client owns the single connection to the drone tool endpoint.
type Client struct {
	command string
	args    []string

	mu      sync.RWMutex
	session *mcpsdk.ClientSession

	toolCacheMu sync.RWMutex
	toolCache   []Tool

	missionTimeout time.Duration
	logger         *slog.Logger
}

// NewClient creates a Client that launches command/args as the tool
// endpoint child process on first use. missionTimeout of 0 selects
// DefaultMissionTimeout.
func NewClient(command string, args []string, missionTimeout time.Duration, logger *slog.Logger) *Client {
	if missionTimeout <= 0 {
		missionTimeout = DefaultMissionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		command:        command,
		args:           args,
		missionTimeout: missionTimeout,
		logger:         logger,
	}
}

// Connect lazily establishes the session on first call; subsequent calls
// are no-ops if already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	connected := c.session != nil
	c.mu.RUnlock()
	if connected {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil
	}

	cmd := exec.Command(c.command, c.args...)
	var transport mcpsdk.Transport = &mcpsdk.CommandTransport{Command: cmd}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "missionctl-executor", Version: "0.1.0"}, nil)
	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return fmt.Errorf("connecting to drone tool endpoint: %w", err)
	}
	c.session = session
	c.logger.Info("drone tool endpoint connected", "command", c.command)
	return nil
}

// ListTools refreshes and returns the cached tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, DefaultToolTimeout)
	defer cancel()

	result, err := session.ListTools(opCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	tools := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		var schema map[string]any
		if t.InputSchema != nil {
			schema = map[string]any{"raw": t.InputSchema}
		}
		tools = append(tools, Tool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}

	c.toolCacheMu.Lock()
	c.toolCache = tools
	c.toolCacheMu.Unlock()
	return tools, nil
}

// CachedTools returns the last discovered catalog without a round trip.
func (c *Client) CachedTools() []Tool {
	c.toolCacheMu.RLock()
	defer c.toolCacheMu.RUnlock()
	out := make([]Tool, len(c.toolCache))
	copy(out, c.toolCache)
	return out
}

// HasTool reports whether name is present in the cached catalog.
func (c *Client) HasTool(name string) bool {
	c.toolCacheMu.RLock()
	defer c.toolCacheMu.RUnlock()
	for _, t := range c.toolCache {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (c *Client) toolTimeout(name string) time.Duration {
	if name == MissionToolName {
		return c.missionTimeout
	}
	return DefaultToolTimeout
}

// CallTool invokes a single tool. Mission-class tools get the long
// timeout ceiling instead of DefaultToolTimeout. The ceiling is fixed
// for the whole call: progress notifications do not reset the deadline.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	result, err := c.callOnce(ctx, name, args)
	if err == nil {
		return result, nil
	}

	action := ClassifyError(err)
	if action == NoRetry {
		return nil, err
	}

	c.logger.Info("drone tool call failed, retrying", "tool", name, "error", err)
	backoff := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if action == RetryNewSession {
		if err := c.recreateSession(ctx); err != nil {
			return nil, fmt.Errorf("recreating drone session: %w", err)
		}
	}
	return c.callOnce(ctx, name, args)
}

func (c *Client) callOnce(ctx context.Context, name string, args map[string]any) (*Result, error) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("drone tool endpoint not connected")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.toolTimeout(name))
	defer cancel()

	raw, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("calling tool %q: %w", name, err)
	}
	return parseResult(raw), nil
}

func (c *Client) recreateSession(ctx context.Context) error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return c.Connect(ctx)
}

// Close releases the underlying connection and terminates the child
// process.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}
