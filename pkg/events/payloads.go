// Package events provides the in-process observability event stream: a
// typed publish/subscribe bus that the Orchestrator emits paired
// *_start/*_end events onto as it works through a mission's ReAct loop.
package events

import "time"

// Type identifies the shape of an event's payload.
type Type string

const (
	TypeIterationStart  Type = "iteration_start"
	TypeIterationEnd    Type = "iteration_end"
	TypeRetrievalStart  Type = "retrieval_start"
	TypeRetrievalEnd    Type = "retrieval_end"
	TypePlanStart       Type = "plan_start"
	TypePlanEnd         Type = "plan_end"
	TypeToolCallStart   Type = "tool_call_start"
	TypeToolCallEnd     Type = "tool_call_end"
	TypeReflectionStart Type = "reflection_start"
	TypeReflectionEnd   Type = "reflection_end"
	TypeSessionStatus   Type = "session.status"
)

// IterationPayload brackets a single ReAct loop iteration.
type IterationPayload struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Iteration int       `json:"iteration"`
	MaxIter   int       `json:"max_iterations"`
	Timestamp time.Time `json:"timestamp"`
}

// RetrievalPayload brackets a Retriever skill invocation.
type RetrievalPayload struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	HitCount  int       `json:"hit_count,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PlanPayload brackets a Planner skill invocation.
type PlanPayload struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	StepCount int       `json:"step_count,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCallPayload brackets a single Executor tool invocation.
type ToolCallPayload struct {
	Type       Type      `json:"type"`
	SessionID  string    `json:"session_id"`
	ToolName   string    `json:"tool_name"`
	Success    bool      `json:"success,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReflectionPayload brackets the Orchestrator's post-observation reflection.
type ReflectionPayload struct {
	Type       Type      `json:"type"`
	SessionID  string    `json:"session_id"`
	ShouldStop bool      `json:"should_stop,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionStatusPayload reports a session lifecycle transition.
type SessionStatusPayload struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionIDOf extracts the session ID carried by any of this package's
// payload types, for consumers (an SSE handler, say) that need to filter
// a wildcard subscription down to one request's events.
func SessionIDOf(payload any) string {
	switch p := payload.(type) {
	case IterationPayload:
		return p.SessionID
	case RetrievalPayload:
		return p.SessionID
	case PlanPayload:
		return p.SessionID
	case ToolCallPayload:
		return p.SessionID
	case ReflectionPayload:
		return p.SessionID
	case SessionStatusPayload:
		return p.SessionID
	default:
		return ""
	}
}
