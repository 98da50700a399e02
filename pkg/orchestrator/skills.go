package orchestrator

import "github.com/skydeck/missionctl/pkg/a2a"

// Card advertises the Orchestrator's agent identity for discovery parity
// with the Retriever, Planner and Executor. It carries no skills: nothing
// dispatches A2A tasks into the Orchestrator, which is the dispatcher for
// the other three agents, never a dispatch target itself. The card still
// exists so every agent process answers /.well-known/agent.json and
// /health the same way.
func Card(url string) a2a.Card {
	return a2a.Card{
		Name:         "orchestrator",
		URL:          url,
		Version:      "0.1.0",
		Skills:       []a2a.Skill{},
		Capabilities: a2a.Capabilities{Streaming: true},
	}
}
