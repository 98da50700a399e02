package orchestrator

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skydeck/missionctl/pkg/a2a"
	"github.com/skydeck/missionctl/pkg/events"
	"github.com/skydeck/missionctl/pkg/executor"
	"github.com/skydeck/missionctl/pkg/planner"
	"github.com/skydeck/missionctl/pkg/retriever"
	"github.com/skydeck/missionctl/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeAgent(t *testing.T, card a2a.Card, handlers map[string]a2a.Handler) *httptest.Server {
	t.Helper()
	s := a2a.NewServer(card, nil)
	for skill, h := range handlers {
		s.Register(skill, h)
	}
	require.NoError(t, s.ValidateWiring())
	return httptest.NewServer(s.Handler())
}

func jsonHandler(fn func(ctx context.Context, raw json.RawMessage) (any, error)) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		out, err := fn(ctx, task.Input)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}

func TestChat_TrivialTakeOff(t *testing.T) {
	retrieverSrv := newFakeAgent(t, retriever.Card(""), map[string]a2a.Handler{
		retriever.SkillSmartRetrieve: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return retriever.SmartRetrieveResult{Hits: []retriever.Hit{}, TotalFound: 0}, nil
		}),
	})
	defer retrieverSrv.Close()

	executorSrv := newFakeAgent(t, executor.Card(""), map[string]a2a.Handler{
		executor.SkillGetDroneState: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return executor.DroneState{IsActive: true}, nil
		}),
		executor.SkillListTools: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return map[string]any{"tools": []planner.ToolCatalogEntry{{Name: "drone.take_off", Description: "take off"}}}, nil
		}),
		executor.SkillExecute: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return executor.ExecutionResult{
				Results:        []executor.StepResult{{Index: 0, Tool: "drone.take_off", Success: true}},
				AllSuccess:     true,
				CompletedSteps: 1,
				TotalSteps:     1,
			}, nil
		}),
	})
	defer executorSrv.Close()

	plannerSrv := newFakeAgent(t, planner.Card(""), map[string]a2a.Handler{
		planner.SkillPlan: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return planner.Plan{
				Reasoning: "take off as requested",
				Steps:     []planner.Step{{Tool: "drone.take_off", Args: map[string]any{"altitude": 1.5}}},
			}, nil
		}),
		planner.SkillReflect: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return planner.Reflection{GoalAchieved: true, Confidence: 0.95, Summary: "airborne at 1.5m"}, nil
		}),
	})
	defer plannerSrv.Close()

	o := New(
		a2a.NewClient(retrieverSrv.URL, 5*time.Second),
		a2a.NewClient(plannerSrv.URL, 5*time.Second),
		a2a.NewClient(executorSrv.URL, 5*time.Second),
		session.NewManager(0),
		events.NewPublisher(),
		Config{},
	)

	resp, err := o.Chat(context.Background(), ChatRequest{Message: "take off to 1.5m"})
	require.NoError(t, err)
	assert.True(t, resp.GoalAchieved)
	assert.Equal(t, 1, resp.ReactIterations)
	assert.True(t, resp.ExecutionSuccess)
}

func TestChat_ClarificationWhenNoToolsAvailable(t *testing.T) {
	retrieverSrv := newFakeAgent(t, retriever.Card(""), map[string]a2a.Handler{
		retriever.SkillSmartRetrieve: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return retriever.SmartRetrieveResult{}, nil
		}),
	})
	defer retrieverSrv.Close()

	executorSrv := newFakeAgent(t, executor.Card(""), map[string]a2a.Handler{
		executor.SkillGetDroneState: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return executor.DroneState{}, nil
		}),
		executor.SkillListTools: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return map[string]any{"tools": []planner.ToolCatalogEntry{}}, nil
		}),
	})
	defer executorSrv.Close()

	plannerSrv := newFakeAgent(t, planner.Card(""), map[string]a2a.Handler{
		planner.SkillPlan: jsonHandler(func(ctx context.Context, raw json.RawMessage) (any, error) {
			return planner.Plan{NeedsClarification: true, ClarificationQuestion: "No tools available."}, nil
		}),
	})
	defer plannerSrv.Close()

	o := New(
		a2a.NewClient(retrieverSrv.URL, 5*time.Second),
		a2a.NewClient(plannerSrv.URL, 5*time.Second),
		a2a.NewClient(executorSrv.URL, 5*time.Second),
		session.NewManager(0),
		events.NewPublisher(),
		Config{},
	)

	resp, err := o.Chat(context.Background(), ChatRequest{Message: "fly somewhere"})
	require.NoError(t, err)
	assert.True(t, resp.NeedsClarification)
	assert.Equal(t, "No tools available.", resp.Answer)
}

func TestMergeHits_DeduplicatesByChunkText(t *testing.T) {
	existing := []retriever.Hit{{ChunkText: "a", SimilarityScore: 0.5}}
	fresh := []retriever.Hit{{ChunkText: "a", SimilarityScore: 0.9}, {ChunkText: "b", SimilarityScore: 0.7}}
	merged := mergeHits(existing, fresh)
	assert.Len(t, merged, 2)
}
