// Package a2a provides the agent-to-agent transport used by every agent
// process in the system: a uniform request/response channel carrying typed
// tasks between the Orchestrator, Retriever, Planner and Executor.
package a2a

import (
	"encoding/json"
	"time"
)

// Skill describes a single named operation an agent exposes.
type Skill struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

// Capabilities advertises transport-level features of the agent.
type Capabilities struct {
	Streaming bool `json:"streaming"`
}

// Card is the static descriptor every agent exposes at
// GET /.well-known/agent.json.
type Card struct {
	Name         string       `json:"name"`
	URL          string       `json:"url"`
	Version      string       `json:"version"`
	Skills       []Skill      `json:"skills"`
	Capabilities Capabilities `json:"capabilities"`
}

// Task is a single skill invocation dispatched over the transport.
// Produced at dispatch time, consumed once by the receiving agent, and
// never mutated afterward.
type Task struct {
	ID        string          `json:"id"`
	Skill     string          `json:"skill"`
	Input     json.RawMessage `json:"input"`
	SessionID string          `json:"session_id,omitempty"`
	Context   json.RawMessage `json:"context,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
}

// TaskResult is the response to a Task.
type TaskResult struct {
	TaskID     string          `json:"task_id"`
	Success    bool            `json:"success"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Error kinds surfaced as Error strings on a TaskResult. These are string
// prefixes, not Go sentinel errors — the remote agent only returns text,
// so callers match on the prefix of the Error string.
const (
	ErrKindUnknownSkill   = "UnknownSkill"
	ErrKindTransport      = "TransportError"
	ErrKindTimeout        = "TimeoutError"
)
