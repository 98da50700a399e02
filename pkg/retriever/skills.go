package retriever

import (
	"context"
	"encoding/json"

	"github.com/skydeck/missionctl/pkg/a2a"
)

// Skill IDs exposed by the Retriever agent.
const (
	SkillRetrieve        = "retrieve"
	SkillSmartRetrieve    = "smart_retrieve"
	SkillRetrieveMissing = "retrieve_missing"
)

// Card builds the agent card advertised at
// GET /.well-known/agent.json.
func Card(url string) a2a.Card {
	return a2a.Card{
		Name:    "retriever",
		URL:     url,
		Version: "0.1.0",
		Skills: []a2a.Skill{
			{ID: SkillRetrieve, Description: "direct vector similarity retrieval"},
			{ID: SkillSmartRetrieve, Description: "intent-decomposing retrieval"},
			{ID: SkillRetrieveMissing, Description: "targeted re-retrieval for missing locations"},
		},
		Capabilities: a2a.Capabilities{Streaming: false},
	}
}

// RegisterSkills wires this Retriever's skills onto an a2a.Server.
func RegisterSkills(server *a2a.Server, r *Retriever) {
	server.Register(SkillRetrieve, handleRetrieve(r))
	server.Register(SkillSmartRetrieve, handleSmartRetrieve(r))
	server.Register(SkillRetrieveMissing, handleRetrieveMissing(r))
}

type retrieveInput struct {
	Query     string  `json:"query"`
	Filters   Filters `json:"filters"`
	TopK      int     `json:"top_k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func handleRetrieve(r *Retriever) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		var in retrieveInput
		if err := json.Unmarshal(task.Input, &in); err != nil {
			return nil, err
		}
		hits, err := r.Retrieve(ctx, in.Query, in.Filters, in.TopK, in.Threshold)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(map[string]any{
			"hits":        hits,
			"total_found": len(hits),
		})
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}

func handleSmartRetrieve(r *Retriever) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		var in retrieveInput
		if err := json.Unmarshal(task.Input, &in); err != nil {
			return nil, err
		}
		result, err := r.SmartRetrieve(ctx, in.Query, in.Filters, in.TopK, in.Threshold)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}

type retrieveMissingInput struct {
	MissingTargets []string `json:"missing_targets"`
	Filters        Filters  `json:"filters"`
}

func handleRetrieveMissing(r *Retriever) a2a.Handler {
	return func(ctx context.Context, task *a2a.Task) (*a2a.TaskResult, error) {
		var in retrieveMissingInput
		if err := json.Unmarshal(task.Input, &in); err != nil {
			return nil, err
		}
		hits, err := r.RetrieveMissing(ctx, in.MissingTargets, in.Filters)
		if err != nil {
			return nil, err
		}
		output, err := json.Marshal(map[string]any{"hits": hits})
		if err != nil {
			return nil, err
		}
		return &a2a.TaskResult{TaskID: task.ID, Success: true, Output: output}, nil
	}
}
