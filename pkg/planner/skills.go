package planner

import (
	"context"
	"encoding/json"

	"github.com/skydeck/missionctl/pkg/a2a"
)

// Skill IDs exposed by the Planner agent.
const (
	SkillPlan    = "plan"
	SkillReflect = "reflect"
)

// Card builds the agent card advertised at
// GET /.well-known/agent.json.
func Card(url string) a2a.Card {
	return a2a.Card{
		Name:    "planner",
		URL:     url,
		Version: "0.1.0",
		Skills: []a2a.Skill{
			{ID: SkillPlan, Description: "generate a tool-schema-grounded plan"},
			{ID: SkillReflect, Description: "evaluate execution outcome and propose remediation"},
		},
		Capabilities: a2a.Capabilities{Streaming: false},
	}
}

// RegisterSkills wires this Planner's skills onto an a2a.Server.
func RegisterSkills(server *a2a.Server, p *Planner) {
	server.Register(SkillPlan, handlePlan(p))
	server.Register(SkillReflect, handleReflect(p))
}

type planInput struct {
	UserRequest    string             `json:"user_request"`
	RAGHits        []Hit              `json:"rag_hits"`
	DroneState     *DroneState        `json:"drone_state,omitempty"`
	AvailableTools []ToolCatalogEntry `json:"available_tools"`
}

func handlePlan(p *Planner) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		var in planInput
		if err := json.Unmarshal(task.Input, &in); err != nil {
			return nil, err
		}
		plan, err := p.Plan(ctx, in.UserRequest, in.RAGHits, in.DroneState, in.AvailableTools)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(plan)
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}

type reflectInput struct {
	OriginalRequest string             `json:"original_request"`
	PreviousPlan    *Plan              `json:"previous_plan"`
	ExecutionResult map[string]any     `json:"execution_result"`
	CurrentState    *DroneState        `json:"current_drone_state"`
	RAGHits         []Hit              `json:"rag_hits"`
	AvailableTools  []ToolCatalogEntry `json:"available_tools"`
}

func handleReflect(p *Planner) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		var in reflectInput
		if err := json.Unmarshal(task.Input, &in); err != nil {
			return nil, err
		}
		reflection, err := p.Reflect(ctx, in.OriginalRequest, in.PreviousPlan, in.ExecutionResult, in.CurrentState, in.RAGHits, in.AvailableTools)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(reflection)
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}
