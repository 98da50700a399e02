package planner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/skydeck/missionctl/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, input llm.GenerateInput) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	close(ch)
	return ch, nil
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, input llm.GenerateInput, v any) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), v)
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

var tools = []ToolCatalogEntry{
	{Name: "drone.take_off", Description: "takes off to an altitude"},
	{Name: "drone.move_to", Description: "moves to a coordinate"},
}

func TestPlan_EmptyToolCatalogForcesClarification(t *testing.T) {
	p := New(&fakeLLM{})
	plan, err := p.Plan(context.Background(), "take off", nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, plan.NeedsClarification)
	assert.Empty(t, plan.Steps)
}

func TestPlan_DropsStepsOutsideAllowlist(t *testing.T) {
	p := New(&fakeLLM{response: `{
		"reasoning": "go",
		"needs_clarification": false,
		"missing_locations": [],
		"steps": [
			{"tool": "drone.take_off", "args": {"altitude": 1.5}},
			{"tool": "drone.self_destruct", "args": {}}
		]
	}`})

	plan, err := p.Plan(context.Background(), "take off to 1.5m", nil, nil, tools)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "drone.take_off", plan.Steps[0].Tool)
}

func TestPlan_NormalizesMissingLocations(t *testing.T) {
	p := New(&fakeLLM{response: `{
		"reasoning": "need more info",
		"needs_clarification": true,
		"missing_locations": [" 3号 ", "", "6号"],
		"steps": []
	}`})

	plan, err := p.Plan(context.Background(), "fly through 3 and 6", nil, nil, tools)
	require.NoError(t, err)
	assert.Equal(t, []string{"3号", "6号"}, plan.MissingLocations)
}

func TestPlan_ModelErrorIsSurfaced(t *testing.T) {
	p := New(&fakeLLM{err: assert.AnError})
	_, err := p.Plan(context.Background(), "take off", nil, nil, tools)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrKindModelError)
}

func TestReflect_ClampsConfidenceAndClearsNextStepsWhenAchieved(t *testing.T) {
	p := New(&fakeLLM{response: `{
		"observation": "drone airborne",
		"reasoning": "goal met",
		"goal_achieved": true,
		"confidence": 1.4,
		"next_steps": [{"tool": "drone.move_to", "args": {}}],
		"summary": "done"
	}`})

	reflection, err := p.Reflect(context.Background(), "take off", nil, nil, nil, nil, tools)
	require.NoError(t, err)
	assert.Equal(t, 1.0, reflection.Confidence)
	assert.Empty(t, reflection.NextSteps)
}

func TestReflect_FiltersNextStepsByAllowlist(t *testing.T) {
	p := New(&fakeLLM{response: `{
		"observation": "failed",
		"reasoning": "retry needed",
		"goal_achieved": false,
		"confidence": -0.2,
		"next_steps": [{"tool": "drone.nonexistent", "args": {}}, {"tool": "drone.move_to", "args": {}}],
		"summary": "retrying"
	}`})

	reflection, err := p.Reflect(context.Background(), "fly somewhere", nil, nil, nil, nil, tools)
	require.NoError(t, err)
	assert.Equal(t, 0.0, reflection.Confidence)
	require.Len(t, reflection.NextSteps, 1)
	assert.Equal(t, "drone.move_to", reflection.NextSteps[0].Tool)
}
