package events

import "time"

// Emitter is a thin convenience wrapper binding a Publisher to one
// session, so call sites don't have to thread SessionID through every
// payload construction.
type Emitter struct {
	pub       *Publisher
	sessionID string
}

// NewEmitter binds pub to sessionID.
func NewEmitter(pub *Publisher, sessionID string) *Emitter {
	return &Emitter{pub: pub, sessionID: sessionID}
}

// IterationStart/IterationEnd bracket one ReAct loop iteration.
func (e *Emitter) IterationStart(iteration, maxIter int) {
	e.pub.Publish(Event{Type: TypeIterationStart, Payload: IterationPayload{
		Type: TypeIterationStart, SessionID: e.sessionID, Iteration: iteration, MaxIter: maxIter, Timestamp: time.Now(),
	}})
}

func (e *Emitter) IterationEnd(iteration, maxIter int) {
	e.pub.Publish(Event{Type: TypeIterationEnd, Payload: IterationPayload{
		Type: TypeIterationEnd, SessionID: e.sessionID, Iteration: iteration, MaxIter: maxIter, Timestamp: time.Now(),
	}})
}

// RetrievalStart/RetrievalEnd bracket a retrieval call.
func (e *Emitter) RetrievalStart(query string) {
	e.pub.Publish(Event{Type: TypeRetrievalStart, Payload: RetrievalPayload{
		Type: TypeRetrievalStart, SessionID: e.sessionID, Query: query, Timestamp: time.Now(),
	}})
}

func (e *Emitter) RetrievalEnd(query string, hitCount int, err error) {
	p := RetrievalPayload{Type: TypeRetrievalEnd, SessionID: e.sessionID, Query: query, HitCount: hitCount, Timestamp: time.Now()}
	if err != nil {
		p.Error = err.Error()
	}
	e.pub.Publish(Event{Type: TypeRetrievalEnd, Payload: p})
}

// PlanStart/PlanEnd bracket a planning call.
func (e *Emitter) PlanStart() {
	e.pub.Publish(Event{Type: TypePlanStart, Payload: PlanPayload{
		Type: TypePlanStart, SessionID: e.sessionID, Timestamp: time.Now(),
	}})
}

func (e *Emitter) PlanEnd(stepCount int, err error) {
	p := PlanPayload{Type: TypePlanEnd, SessionID: e.sessionID, StepCount: stepCount, Timestamp: time.Now()}
	if err != nil {
		p.Error = err.Error()
	}
	e.pub.Publish(Event{Type: TypePlanEnd, Payload: p})
}

// ToolCallStart/ToolCallEnd bracket a single tool invocation.
func (e *Emitter) ToolCallStart(toolName string) {
	e.pub.Publish(Event{Type: TypeToolCallStart, Payload: ToolCallPayload{
		Type: TypeToolCallStart, SessionID: e.sessionID, ToolName: toolName, Timestamp: time.Now(),
	}})
}

func (e *Emitter) ToolCallEnd(toolName string, success bool, durationMs int64, err error) {
	p := ToolCallPayload{
		Type: TypeToolCallEnd, SessionID: e.sessionID, ToolName: toolName,
		Success: success, DurationMs: durationMs, Timestamp: time.Now(),
	}
	if err != nil {
		p.Error = err.Error()
	}
	e.pub.Publish(Event{Type: TypeToolCallEnd, Payload: p})
}

// ReflectionStart/ReflectionEnd bracket the Orchestrator's reflection step.
func (e *Emitter) ReflectionStart() {
	e.pub.Publish(Event{Type: TypeReflectionStart, Payload: ReflectionPayload{
		Type: TypeReflectionStart, SessionID: e.sessionID, Timestamp: time.Now(),
	}})
}

func (e *Emitter) ReflectionEnd(shouldStop bool, reason string) {
	e.pub.Publish(Event{Type: TypeReflectionEnd, Payload: ReflectionPayload{
		Type: TypeReflectionEnd, SessionID: e.sessionID, ShouldStop: shouldStop, Reason: reason, Timestamp: time.Now(),
	}})
}

// SessionStatus reports a session lifecycle transition.
func (e *Emitter) SessionStatus(status string) {
	e.pub.Publish(Event{Type: TypeSessionStatus, Payload: SessionStatusPayload{
		Type: TypeSessionStatus, SessionID: e.sessionID, Status: status, Timestamp: time.Now(),
	}})
}
