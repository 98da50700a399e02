package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skydeck/missionctl/pkg/a2a"
)

// Skill IDs exposed by the Executor agent.
const (
	SkillListTools     = "list_tools"
	SkillGetDroneState = "get_drone_state"
	SkillExecute       = "execute"
)

// Card builds the agent card advertised at
// GET /.well-known/agent.json.
func Card(url string) a2a.Card {
	return a2a.Card{
		Name:    "executor",
		URL:     url,
		Version: "0.1.0",
		Skills: []a2a.Skill{
			{ID: SkillListTools, Description: "refresh and return the drone tool catalog"},
			{ID: SkillGetDroneState, Description: "read the current drone state"},
			{ID: SkillExecute, Description: "run an ordered sequence of tool invocations"},
		},
		Capabilities: a2a.Capabilities{Streaming: false},
	}
}

// RegisterSkills wires this Executor's skills onto an a2a.Server.
func RegisterSkills(server *a2a.Server, exec *Executor) {
	server.Register(SkillListTools, handleListTools(exec))
	server.Register(SkillGetDroneState, handleGetDroneState(exec))
	server.Register(SkillExecute, handleExecute(exec))
}

func handleListTools(exec *Executor) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		tools, err := exec.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(map[string]any{"tools": tools})
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}

func handleGetDroneState(exec *Executor) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		state, err := exec.GetDroneState(ctx)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(state)
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}

type executeInput struct {
	Steps       []Step `json:"steps"`
	StopOnError *bool  `json:"stop_on_error,omitempty"`
}

func handleExecute(exec *Executor) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		var in executeInput
		if err := json.Unmarshal(task.Input, &in); err != nil {
			return nil, fmt.Errorf("decoding execute input: %w", err)
		}
		stopOnError := true
		if in.StopOnError != nil {
			stopOnError = *in.StopOnError
		}

		start := time.Now()
		result, err := exec.Execute(ctx, in.Steps, stopOnError)
		if err != nil {
			return nil, err
		}

		output, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{
			TaskID:      task.ID,
			Success:     true,
			Output:      output,
			DurationMs:  time.Since(start).Milliseconds(),
			CompletedAt: time.Now().UTC(),
		}, nil
	}
}
