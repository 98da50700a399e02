// Package orchestrator implements the Orchestrator agent: the bounded
// ReAct loop that owns sessions, fans out to the Retriever, Planner and
// Executor over the A2A transport, reconciles partial failures, and
// aggregates an ordered observability event stream.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skydeck/missionctl/pkg/a2a"
	"github.com/skydeck/missionctl/pkg/events"
	"github.com/skydeck/missionctl/pkg/executor"
	"github.com/skydeck/missionctl/pkg/planner"
	"github.com/skydeck/missionctl/pkg/retriever"
	"github.com/skydeck/missionctl/pkg/session"
)

// Defaults mirror the budgets named in the external interface contract.
const (
	DefaultMaxIterations = 3
	DefaultMaxRAGRetries = 2
	ReflectionConfidenceThreshold = 0.8
)

// Config bounds the ReAct loop's budgets.
type Config struct {
	MaxIterations int
	MaxRAGRetries int
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxRAGRetries <= 0 {
		c.MaxRAGRetries = DefaultMaxRAGRetries
	}
	return c
}

// Orchestrator drives the chat contract over A2A clients to the three
// remote agents.
type Orchestrator struct {
	retriever *a2a.Client
	planner   *a2a.Client
	executor  *a2a.Client

	sessions  *session.Manager
	publisher *events.Publisher
	cfg       Config
}

// New creates an Orchestrator wired to the three remote agents.
func New(retrieverClient, plannerClient, executorClient *a2a.Client, sessions *session.Manager, publisher *events.Publisher, cfg Config) *Orchestrator {
	return &Orchestrator{
		retriever: retrieverClient,
		planner:   plannerClient,
		executor:  executorClient,
		sessions:  sessions,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
	}
}

// ChatRequest is the chat entry point's input.
type ChatRequest struct {
	Message   string              `json:"message"`
	SessionID string              `json:"session_id,omitempty"`
	MapID     string              `json:"map_id,omitempty"`
	Filters   retriever.Filters   `json:"filters,omitempty"`
}

// ChatResponse is the chat entry point's output.
type ChatResponse struct {
	SessionID        string               `json:"session_id"`
	RequestID        string               `json:"request_id"`
	Answer           string               `json:"answer"`
	Plan             *planner.Plan        `json:"plan,omitempty"`
	Reasoning        string               `json:"reasoning,omitempty"`
	ToolCalls        []executor.StepResult `json:"tool_calls,omitempty"`
	RAGHits          []retriever.Hit      `json:"rag_hits,omitempty"`
	ExecutionSuccess bool                 `json:"execution_success"`
	GoalAchieved     bool                 `json:"goal_achieved"`
	ReactIterations  int                  `json:"react_iterations"`
	RAGRetries       int                  `json:"rag_retry_count"`
	NeedsClarification bool               `json:"needs_clarification,omitempty"`
	Reflections      []planner.Reflection `json:"reflections,omitempty"`
	DurationMs       int64                `json:"duration_ms"`
	Error            string               `json:"error,omitempty"`
}

// loopState accumulates the mutable state threaded through one request's
// ReAct loop.
type loopState struct {
	ragHits       []retriever.Hit
	droneState    *executor.DroneState
	availableTools []planner.ToolCatalogEntry
	lastPlan      *planner.Plan
	lastExecution *executor.ExecutionResult
	reflections   []planner.Reflection
	iteration     int
	ragRetries    int
	goalAchieved  bool
}

// Chat drives the full ReAct loop for one user message.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	sess, requestID := o.resolveSession(req)
	sess.Lock()
	defer sess.Unlock()

	sess.AddMessage(session.RoleUser, req.Message)
	sess.SetStatus(session.StatusProcessing)

	emitter := events.NewEmitter(o.publisher, sess.ID)
	emitter.SessionStatus(string(session.StatusProcessing))

	state := &loopState{}
	o.prepare(ctx, req, state, emitter)

	resp := o.runLoop(ctx, req, sess, state, emitter)
	resp.SessionID = sess.ID
	resp.RequestID = requestID
	resp.DurationMs = time.Since(start).Milliseconds()

	sess.AddMessage(session.RoleAssistant, resp.Answer)
	if resp.Error != "" {
		sess.SetError(resp.Error)
	} else {
		sess.SetStatus(session.StatusCompleted)
	}
	emitter.SessionStatus(string(sess.Status))

	return resp, nil
}

// resolveSession finds the session named by req.SessionID, or creates a
// new, empty one. Either way the caller still appends req.Message itself.
func (o *Orchestrator) resolveSession(req ChatRequest) (*session.Session, string) {
	if req.SessionID != "" {
		if sess, err := o.sessions.Get(req.SessionID); err == nil {
			return sess, a2aRequestID()
		}
	}
	return o.sessions.Create(), a2aRequestID()
}

// prepare runs the once-per-request best-effort preparation phase: smart
// retrieve, drone state, tool listing.
func (o *Orchestrator) prepare(ctx context.Context, req ChatRequest, state *loopState, emitter *events.Emitter) {
	emitter.RetrievalStart(req.Message)
	if result, err := o.smartRetrieve(ctx, req.Message, req.Filters); err != nil {
		emitter.RetrievalEnd(req.Message, 0, err)
	} else {
		state.ragHits = result.Hits
		emitter.RetrievalEnd(req.Message, len(result.Hits), nil)
	}

	if ds, err := o.getDroneState(ctx); err == nil {
		state.droneState = ds
	}

	if tools, err := o.listTools(ctx); err == nil {
		state.availableTools = tools
	}
}

func (o *Orchestrator) runLoop(ctx context.Context, req ChatRequest, sess *session.Session, state *loopState, emitter *events.Emitter) *ChatResponse {
	resp := &ChatResponse{}

	for state.iteration < o.cfg.MaxIterations && !state.goalAchieved {
		emitter.IterationStart(state.iteration+1, o.cfg.MaxIterations)

		emitter.PlanStart()
		plan, err := o.plan(ctx, req.Message, state)
		if err != nil {
			emitter.PlanEnd(0, err)
			emitter.IterationEnd(state.iteration+1, o.cfg.MaxIterations)
			resp.Error = err.Error()
			resp.Answer = fmt.Sprintf("Planning failed: %s", err.Error())
			return resp
		}
		emitter.PlanEnd(len(plan.Steps), nil)
		state.lastPlan = plan
		resp.Plan = plan
		resp.Reasoning = plan.Reasoning

		if plan.NeedsClarification {
			if recovered := o.tryRecoverMissingLocations(ctx, plan, state, emitter); recovered {
				state.iteration++
				emitter.IterationEnd(state.iteration, o.cfg.MaxIterations)
				continue
			}
			resp.NeedsClarification = true
			resp.Answer = plan.ClarificationQuestion
			resp.RAGRetries = state.ragRetries
			resp.ReactIterations = state.iteration + 1
			resp.RAGHits = state.ragHits
			emitter.IterationEnd(state.iteration+1, o.cfg.MaxIterations)
			return resp
		}

		if len(plan.Steps) == 0 {
			state.goalAchieved = true
			resp.Answer = "Nothing to execute."
			resp.ExecutionSuccess = true
			state.iteration++
			emitter.IterationEnd(state.iteration, o.cfg.MaxIterations)
			break
		}

		execResult, err := o.act(ctx, plan.Steps, emitter)
		if err == nil {
			state.lastExecution = execResult
			resp.ToolCalls = execResult.Results
			resp.ExecutionSuccess = execResult.AllSuccess
		}

		if ds, err := o.getDroneState(ctx); err == nil {
			state.droneState = ds
		}

		emitter.ReflectionStart()
		reflection, err := o.reflect(ctx, req.Message, state)
		state.iteration++
		if err != nil {
			// Reflection failure: exit the loop assuming completion, the
			// request still surfaces the achieved execution results.
			emitter.ReflectionEnd(true, "reflection call failed: "+err.Error())
			emitter.IterationEnd(state.iteration, o.cfg.MaxIterations)
			break
		}
		state.reflections = append(state.reflections, *reflection)
		resp.Reflections = state.reflections

		if reflection.GoalAchieved && reflection.Confidence >= ReflectionConfidenceThreshold {
			state.goalAchieved = true
			emitter.ReflectionEnd(true, "goal achieved")
			emitter.IterationEnd(state.iteration, o.cfg.MaxIterations)
			break
		}
		if len(reflection.NextSteps) == 0 {
			emitter.ReflectionEnd(true, "no further steps proposed")
			emitter.IterationEnd(state.iteration, o.cfg.MaxIterations)
			break
		}
		emitter.ReflectionEnd(false, "")
		emitter.IterationEnd(state.iteration, o.cfg.MaxIterations)
	}

	resp.GoalAchieved = state.goalAchieved
	resp.ReactIterations = state.iteration
	resp.RAGRetries = state.ragRetries
	resp.RAGHits = state.ragHits
	resp.Answer = aggregateAnswer(resp, state)
	return resp
}

// tryRecoverMissingLocations attempts retrieve_missing recovery when the
// plan flagged missing_locations and the retry budget is not exhausted.
// Returns true if the caller should replan immediately.
func (o *Orchestrator) tryRecoverMissingLocations(ctx context.Context, plan *planner.Plan, state *loopState, emitter *events.Emitter) bool {
	if len(plan.MissingLocations) == 0 || state.ragRetries >= o.cfg.MaxRAGRetries {
		return false
	}
	state.ragRetries++

	emitter.RetrievalStart(strings.Join(plan.MissingLocations, ", "))
	newHits, err := o.retrieveMissing(ctx, plan.MissingLocations)
	if err != nil {
		emitter.RetrievalEnd(strings.Join(plan.MissingLocations, ", "), 0, err)
		return false
	}
	emitter.RetrievalEnd(strings.Join(plan.MissingLocations, ", "), len(newHits), nil)

	before := len(state.ragHits)
	state.ragHits = mergeHits(state.ragHits, newHits)
	return len(state.ragHits) > before
}

func aggregateAnswer(resp *ChatResponse, state *loopState) string {
	if resp.Answer != "" && resp.NeedsClarification {
		return resp.Answer
	}
	var parts []string
	if resp.Reasoning != "" {
		parts = append(parts, resp.Reasoning)
	}
	if state.lastExecution != nil {
		parts = append(parts, fmt.Sprintf("executed %d/%d steps successfully", state.lastExecution.CompletedSteps, state.lastExecution.TotalSteps))
	}
	if len(state.reflections) > 0 {
		parts = append(parts, state.reflections[len(state.reflections)-1].Summary)
	}
	if state.iteration > 1 {
		parts = append(parts, fmt.Sprintf("(after %d iterations)", state.iteration))
	}
	if len(parts) == 0 {
		return resp.Answer
	}
	return strings.Join(parts, " ")
}

func mergeHits(existing, fresh []retriever.Hit) []retriever.Hit {
	seen := make(map[string]bool, len(existing))
	out := append([]retriever.Hit(nil), existing...)
	for _, h := range existing {
		seen[h.ChunkText] = true
	}
	for _, h := range fresh {
		if !seen[h.ChunkText] {
			out = append(out, h)
			seen[h.ChunkText] = true
		}
	}
	return out
}

func a2aRequestID() string {
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}

// dispatch is a small helper marshaling in, dispatching to client with
// skill, and unmarshaling the result's output into out.
func dispatch(ctx context.Context, client *a2a.Client, skill string, in any, out any) error {
	input, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling %s input: %w", skill, err)
	}
	result, err := client.Dispatch(ctx, &a2a.Task{
		ID:        a2aRequestID(),
		Skill:     skill,
		Input:     input,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", a2a.ErrKindTransport, err)
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result.Output, out); err != nil {
		return fmt.Errorf("decoding %s output: %w", skill, err)
	}
	return nil
}
