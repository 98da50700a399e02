// Package planner implements the Planner agent: strict-JSON,
// tool-schema-grounded plan generation and post-execution reflection.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skydeck/missionctl/pkg/llm"
)

// ErrKindModelError tags a wrapped error as an underlying language-model
// call failure (bad response, unparseable JSON), as opposed to a plan
// the Planner legitimately declines to produce (see NeedsClarification).
const ErrKindModelError = "ModelError"

// ToolCatalogEntry is the subset of a discovered tool needed to ground
// the model's plan in valid calls.
type ToolCatalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Hit mirrors retriever.Hit without importing that package, keeping the
// Planner decoupled from retrieval internals.
type Hit struct {
	ChunkText       string  `json:"chunk_text"`
	SimilarityScore float64 `json:"similarity_score"`
}

// DroneState mirrors executor.DroneState for the same reason.
type DroneState struct {
	Position    map[string]float64 `json:"position"`
	IsActive    bool               `json:"is_active"`
	QueueLength int                `json:"queue_length"`
}

// Step is a single planned tool invocation.
type Step struct {
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args"`
	Description string         `json:"description,omitempty"`
}

// Plan is the Planner's output for the plan skill.
type Plan struct {
	Reasoning            string   `json:"reasoning"`
	NeedsClarification   bool     `json:"needs_clarification"`
	ClarificationQuestion string  `json:"clarification_question,omitempty"`
	MissingLocations     []string `json:"missing_locations"`
	Steps                []Step   `json:"steps"`
}

// Reflection is the Planner's output for the reflect skill.
type Reflection struct {
	Observation string   `json:"observation"`
	Reasoning   string   `json:"reasoning"`
	GoalAchieved bool    `json:"goal_achieved"`
	Confidence  float64  `json:"confidence"`
	NextSteps   []Step   `json:"next_steps"`
	Summary     string   `json:"summary"`
}

// Planner turns (request, context) into plans and reflections via the
// language model.
type Planner struct {
	llm llm.Client
}

// New creates a Planner.
func New(llmClient llm.Client) *Planner {
	return &Planner{llm: llmClient}
}

const planTemperature = 0.2

const planSystemPreamble = `You are a flight planner for a quadrotor drone. Rules:
- Use only tool names listed in available_tools; arguments must match each tool's input schema exactly.
- Coordinate frame: +X right, +Z down, +Y up.
- Default flight altitude is 1.0 when unspecified.
- Default side length for an unspecified shape is 2.0.
- The drone must take off before any move command.
Respond with strict JSON only, matching this shape:
{"reasoning": "...", "needs_clarification": false, "clarification_question": "", "missing_locations": [], "steps": [{"tool": "...", "args": {}, "description": "..."}]}`

// Plan generates a plan grounded in the available tool catalog.
func (p *Planner) Plan(ctx context.Context, userRequest string, ragHits []Hit, droneState *DroneState, availableTools []ToolCatalogEntry) (*Plan, error) {
	if len(availableTools) == 0 {
		return &Plan{NeedsClarification: true, ClarificationQuestion: "No tools are currently available to plan with."}, nil
	}

	prompt := buildPlanPrompt(userRequest, ragHits, droneState, availableTools)

	var raw Plan
	err := p.llm.GenerateJSON(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: planSystemPreamble},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: planTemperature,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrKindModelError, err)
	}

	allowed := toolAllowlist(availableTools)
	raw.Steps = filterSteps(raw.Steps, allowed)
	raw.MissingLocations = normalizeLocations(raw.MissingLocations)
	return &raw, nil
}

const reflectSystemPreamble = `You are reviewing the outcome of a drone mission step. Respond with strict JSON only, matching this shape:
{"observation": "...", "reasoning": "...", "goal_achieved": false, "confidence": 0.0, "next_steps": [{"tool": "...", "args": {}, "description": "..."}], "summary": "..."}
confidence must be between 0 and 1.`

// Reflect evaluates whether a prior plan's execution achieved the
// original request's goal, and proposes remedial next steps if not.
func (p *Planner) Reflect(ctx context.Context, originalRequest string, previousPlan *Plan, executionResult map[string]any, currentState *DroneState, ragHits []Hit, availableTools []ToolCatalogEntry) (*Reflection, error) {
	prompt := buildReflectPrompt(originalRequest, previousPlan, executionResult, currentState, ragHits)

	var raw Reflection
	err := p.llm.GenerateJSON(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: reflectSystemPreamble},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: planTemperature,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrKindModelError, err)
	}

	raw.Confidence = clamp01(raw.Confidence)
	allowed := toolAllowlist(availableTools)
	raw.NextSteps = filterSteps(raw.NextSteps, allowed)
	if raw.GoalAchieved {
		raw.NextSteps = nil
	}
	return &raw, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toolAllowlist(tools []ToolCatalogEntry) map[string]bool {
	allowed := make(map[string]bool, len(tools))
	for _, t := range tools {
		allowed[t.Name] = true
	}
	return allowed
}

// filterSteps retains only steps whose tool is allowed and whose args is
// an object (non-nil map), dropping the rest.
func filterSteps(steps []Step, allowed map[string]bool) []Step {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if !allowed[s.Tool] {
			continue
		}
		if s.Args == nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

func normalizeLocations(locations []string) []string {
	out := make([]string, 0, len(locations))
	for _, l := range locations {
		trimmed := strings.TrimSpace(l)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func buildPlanPrompt(userRequest string, ragHits []Hit, droneState *DroneState, tools []ToolCatalogEntry) string {
	var b strings.Builder
	b.WriteString("available_tools:\n")
	for _, t := range tools {
		schema, _ := json.Marshal(t.InputSchema)
		fmt.Fprintf(&b, "- %s: %s (schema: %s)\n", t.Name, t.Description, schema)
	}
	fmt.Fprintf(&b, "\nuser_request: %s\n", userRequest)

	if len(ragHits) > 0 {
		b.WriteString("\nretrieval hits:\n")
		for _, h := range ragHits {
			fmt.Fprintf(&b, "- %s (similarity %.0f%%)\n", h.ChunkText, h.SimilarityScore*100)
		}
	}
	if droneState != nil {
		stateJSON, _ := json.Marshal(droneState)
		fmt.Fprintf(&b, "\ncurrent drone state: %s\n", stateJSON)
	}
	return b.String()
}

func buildReflectPrompt(originalRequest string, previousPlan *Plan, executionResult map[string]any, currentState *DroneState, ragHits []Hit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "original_request: %s\n", originalRequest)
	if previousPlan != nil {
		planJSON, _ := json.Marshal(previousPlan)
		fmt.Fprintf(&b, "previous_plan: %s\n", planJSON)
	}
	resultJSON, _ := json.Marshal(executionResult)
	fmt.Fprintf(&b, "execution_result: %s\n", resultJSON)
	if currentState != nil {
		stateJSON, _ := json.Marshal(currentState)
		fmt.Fprintf(&b, "current_drone_state: %s\n", stateJSON)
	}
	if len(ragHits) > 0 {
		hitsJSON, _ := json.Marshal(ragHits)
		fmt.Fprintf(&b, "rag_hits: %s\n", hitsJSON)
	}
	return b.String()
}
