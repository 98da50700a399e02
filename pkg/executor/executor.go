// Package executor implements the Executor agent: it owns the single
// connection to the drone tool endpoint, discovers and caches its tool
// catalog, and runs plans step by step against it.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/skydeck/missionctl/pkg/drone"
)

// ErrKind values surfaced on Step/Result failures.
const (
	ErrKindUnknownTool       = "UnknownTool"
	ErrKindMissingTool       = "MissingTool"
	ErrKindToolInvocation    = "ToolInvocationError"
	ErrKindNoToolsAvailable  = "NoToolsAvailable"
)

// DroneState is a read-only snapshot of the drone's reported state.
type DroneState struct {
	Position    Position `json:"position"`
	IsActive    bool     `json:"is_active"`
	QueueLength int      `json:"queue_length"`
}

// Position is a 3D coordinate in the drone's reference frame
// (+X right, +Z down, +Y up).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Step is a single planned tool invocation.
type Step struct {
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args"`
	Description string         `json:"description,omitempty"`
}

// StepResult records the outcome of executing one Step.
type StepResult struct {
	Index      int            `json:"index"`
	Tool       string         `json:"tool"`
	Args       map[string]any `json:"args"`
	Success    bool           `json:"success"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// ExecutionResult is the outcome of running a full ordered plan.
type ExecutionResult struct {
	Results        []StepResult `json:"results"`
	AllSuccess     bool         `json:"all_success"`
	CompletedSteps int          `json:"completed_steps"`
	TotalSteps     int          `json:"total_steps"`
	TotalDurationMs int64       `json:"total_duration_ms"`
}

const getStateToolName = "drone.get_state"

// ToolRunner abstracts the drone tool endpoint connection so Executor
// logic can be tested without a real MCP child process. *drone.Client
// satisfies this interface.
type ToolRunner interface {
	ListTools(ctx context.Context) ([]drone.Tool, error)
	CachedTools() []drone.Tool
	HasTool(name string) bool
	CallTool(ctx context.Context, name string, args map[string]any) (*drone.Result, error)
}

// Executor runs plans against a single ToolRunner.
type Executor struct {
	client ToolRunner
}

// New creates an Executor around client.
func New(client ToolRunner) *Executor {
	return &Executor{client: client}
}

// ListTools refreshes and returns the tool catalog.
func (e *Executor) ListTools(ctx context.Context) ([]drone.Tool, error) {
	return e.client.ListTools(ctx)
}

// GetDroneState calls the drone.get_state tool after verifying its
// presence in the cache, attempting one automatic catalog refresh if it
// is missing.
func (e *Executor) GetDroneState(ctx context.Context) (*DroneState, error) {
	if !e.client.HasTool(getStateToolName) {
		if _, err := e.client.ListTools(ctx); err != nil {
			return nil, fmt.Errorf("refreshing tool cache: %w", err)
		}
		if !e.client.HasTool(getStateToolName) {
			return nil, fmt.Errorf("%s: %s", ErrKindMissingTool, getStateToolName)
		}
	}

	result, err := e.client.CallTool(ctx, getStateToolName, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrKindToolInvocation, err)
	}

	state := &DroneState{}
	if pos, ok := result.JSON["position"].(map[string]any); ok {
		state.Position = Position{
			X: toFloat(pos["x"]),
			Y: toFloat(pos["y"]),
			Z: toFloat(pos["z"]),
		}
	}
	if active, ok := result.JSON["is_active"].(bool); ok {
		state.IsActive = active
	}
	if ql, ok := result.JSON["queue_length"].(float64); ok {
		state.QueueLength = int(ql)
	}
	return state, nil
}

func toFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

// Execute runs steps in order, stopping early on the first failure when
// stopOnError is true.
func (e *Executor) Execute(ctx context.Context, steps []Step, stopOnError bool) (*ExecutionResult, error) {
	if len(e.client.CachedTools()) == 0 {
		if _, err := e.client.ListTools(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", ErrKindNoToolsAvailable, err)
		}
	}

	out := &ExecutionResult{TotalSteps: len(steps), AllSuccess: true}
	start := time.Now()

	for i, step := range steps {
		sr := e.executeStep(ctx, i, step)
		out.Results = append(out.Results, sr)
		if sr.Success {
			out.CompletedSteps++
		} else {
			out.AllSuccess = false
			if stopOnError {
				break
			}
		}
	}

	out.TotalDurationMs = time.Since(start).Milliseconds()
	return out, nil
}

func (e *Executor) executeStep(ctx context.Context, index int, step Step) StepResult {
	sr := StepResult{Index: index, Tool: step.Tool, Args: step.Args}
	start := time.Now()

	if !e.client.HasTool(step.Tool) {
		if _, err := e.client.ListTools(ctx); err != nil {
			sr.Error = fmt.Sprintf("%s: refreshing catalog: %s", ErrKindUnknownTool, err)
			sr.DurationMs = time.Since(start).Milliseconds()
			return sr
		}
		if !e.client.HasTool(step.Tool) {
			sr.Error = fmt.Sprintf("%s: %s", ErrKindUnknownTool, step.Tool)
			sr.DurationMs = time.Since(start).Milliseconds()
			return sr
		}
	}

	result, err := e.client.CallTool(ctx, step.Tool, step.Args)
	sr.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		sr.Error = fmt.Sprintf("%s: %s", ErrKindToolInvocation, err.Error())
		return sr
	}
	if result.IsErr {
		sr.Error = fmt.Sprintf("%s: %s", ErrKindToolInvocation, result.Text)
		return sr
	}
	sr.Success = true
	sr.Result = result.JSON
	return sr
}
