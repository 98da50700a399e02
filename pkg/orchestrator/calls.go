package orchestrator

import (
	"context"

	"github.com/skydeck/missionctl/pkg/a2a"
	"github.com/skydeck/missionctl/pkg/events"
	"github.com/skydeck/missionctl/pkg/executor"
	"github.com/skydeck/missionctl/pkg/planner"
	"github.com/skydeck/missionctl/pkg/retriever"
)

// AgentHealth probes each remote agent's discovery card as a liveness
// check and reports which ones answered. The Orchestrator itself is
// always included as healthy, since a handler calling this method proves
// its own process is up.
func (o *Orchestrator) AgentHealth(ctx context.Context) map[string]bool {
	agents := map[string]*a2a.Client{
		"retriever": o.retriever,
		"planner":   o.planner,
		"executor":  o.executor,
	}
	health := map[string]bool{"orchestrator": true}
	for name, client := range agents {
		_, err := client.Card(ctx)
		health[name] = err == nil
	}
	return health
}

func (o *Orchestrator) smartRetrieve(ctx context.Context, query string, filters retriever.Filters) (*retriever.SmartRetrieveResult, error) {
	var out retriever.SmartRetrieveResult
	in := map[string]any{"query": query, "filters": filters}
	if err := dispatch(ctx, o.retriever, "smart_retrieve", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *Orchestrator) retrieveMissing(ctx context.Context, missingTargets []string) ([]retriever.Hit, error) {
	var out struct {
		Hits []retriever.Hit `json:"hits"`
	}
	in := map[string]any{"missing_targets": missingTargets}
	if err := dispatch(ctx, o.retriever, "retrieve_missing", in, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

func (o *Orchestrator) getDroneState(ctx context.Context) (*executor.DroneState, error) {
	var out executor.DroneState
	if err := dispatch(ctx, o.executor, "get_drone_state", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *Orchestrator) listTools(ctx context.Context) ([]planner.ToolCatalogEntry, error) {
	var out struct {
		Tools []planner.ToolCatalogEntry `json:"tools"`
	}
	if err := dispatch(ctx, o.executor, "list_tools", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

func (o *Orchestrator) plan(ctx context.Context, userMessage string, state *loopState) (*planner.Plan, error) {
	in := map[string]any{
		"user_request":    userMessage,
		"rag_hits":        toPlannerHits(state.ragHits),
		"drone_state":     state.droneState,
		"available_tools": state.availableTools,
	}
	var out planner.Plan
	if err := dispatch(ctx, o.planner, "plan", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *Orchestrator) act(ctx context.Context, steps []planner.Step, emitter *events.Emitter) (*executor.ExecutionResult, error) {
	execSteps := make([]executor.Step, len(steps))
	for i, s := range steps {
		execSteps[i] = executor.Step{Tool: s.Tool, Args: s.Args, Description: s.Description}
		emitter.ToolCallStart(s.Tool)
	}

	var out executor.ExecutionResult
	in := map[string]any{"steps": execSteps, "stop_on_error": true}
	err := dispatch(ctx, o.executor, "execute", in, &out)

	for _, r := range out.Results {
		emitter.ToolCallEnd(r.Tool, r.Success, r.DurationMs, nil)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *Orchestrator) reflect(ctx context.Context, originalRequest string, state *loopState) (*planner.Reflection, error) {
	var executionResult map[string]any
	if state.lastExecution != nil {
		executionResult = map[string]any{
			"results":          state.lastExecution.Results,
			"all_success":      state.lastExecution.AllSuccess,
			"completed_steps":  state.lastExecution.CompletedSteps,
			"total_steps":      state.lastExecution.TotalSteps,
		}
	}

	in := map[string]any{
		"original_request":    originalRequest,
		"previous_plan":       state.lastPlan,
		"execution_result":    executionResult,
		"current_drone_state": state.droneState,
		"rag_hits":            toPlannerHits(state.ragHits),
		"available_tools":     state.availableTools,
	}
	var out planner.Reflection
	if err := dispatch(ctx, o.planner, "reflect", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func toPlannerHits(hits []retriever.Hit) []planner.Hit {
	out := make([]planner.Hit, len(hits))
	for i, h := range hits {
		out[i] = planner.Hit{ChunkText: h.ChunkText, SimilarityScore: h.SimilarityScore}
	}
	return out
}
