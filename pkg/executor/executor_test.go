package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/skydeck/missionctl/pkg/drone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	tools   []drone.Tool
	results map[string]*drone.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) ListTools(ctx context.Context) ([]drone.Tool, error) { return f.tools, nil }
func (f *fakeRunner) CachedTools() []drone.Tool                          { return f.tools }
func (f *fakeRunner) HasTool(name string) bool {
	for _, t := range f.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
func (f *fakeRunner) CallTool(ctx context.Context, name string, args map[string]any) (*drone.Result, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return &drone.Result{JSON: map[string]any{}}, nil
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	runner := &fakeRunner{
		tools: []drone.Tool{{Name: "drone.take_off"}, {Name: "drone.move_to"}},
		results: map[string]*drone.Result{
			"drone.take_off": {JSON: map[string]any{"ok": true}},
			"drone.move_to":  {JSON: map[string]any{"ok": true}},
		},
	}
	exec := New(runner)

	result, err := exec.Execute(context.Background(), []Step{
		{Tool: "drone.take_off", Args: map[string]any{"altitude": 1.5}},
		{Tool: "drone.move_to", Args: map[string]any{"x": 1.0}},
	}, true)

	require.NoError(t, err)
	assert.True(t, result.AllSuccess)
	assert.Equal(t, 2, result.CompletedSteps)
	assert.Equal(t, 2, result.TotalSteps)
}

func TestExecute_StopsOnErrorWhenRequested(t *testing.T) {
	runner := &fakeRunner{
		tools: []drone.Tool{{Name: "drone.take_off"}, {Name: "drone.move_to"}},
		errs:  map[string]error{"drone.take_off": errors.New("motor fault")},
	}
	exec := New(runner)

	result, err := exec.Execute(context.Background(), []Step{
		{Tool: "drone.take_off"},
		{Tool: "drone.move_to"},
	}, true)

	require.NoError(t, err)
	assert.False(t, result.AllSuccess)
	assert.Equal(t, 0, result.CompletedSteps)
	assert.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Error, ErrKindToolInvocation)
}

func TestExecute_UnknownToolMarksStepFailed(t *testing.T) {
	runner := &fakeRunner{tools: []drone.Tool{{Name: "drone.take_off"}}}
	exec := New(runner)

	result, err := exec.Execute(context.Background(), []Step{{Tool: "drone.teleport"}}, true)
	require.NoError(t, err)
	assert.False(t, result.AllSuccess)
	assert.Contains(t, result.Results[0].Error, ErrKindUnknownTool)
}

func TestGetDroneState_MissingToolAfterRefresh(t *testing.T) {
	runner := &fakeRunner{tools: []drone.Tool{{Name: "drone.take_off"}}}
	exec := New(runner)

	_, err := exec.GetDroneState(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrKindMissingTool)
}

func TestGetDroneState_ParsesPositionAndActivity(t *testing.T) {
	runner := &fakeRunner{
		tools: []drone.Tool{{Name: "drone.get_state"}},
		results: map[string]*drone.Result{
			"drone.get_state": {JSON: map[string]any{
				"position":     map[string]any{"x": 1.0, "y": 2.0, "z": 3.0},
				"is_active":    true,
				"queue_length": float64(2),
			}},
		},
	}
	exec := New(runner)

	state, err := exec.GetDroneState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1, Y: 2, Z: 3}, state.Position)
	assert.True(t, state.IsActive)
	assert.Equal(t, 2, state.QueueLength)
}
