// Package retriever implements the Retriever agent: embedding-backed
// similarity search over the knowledge base, intent decomposition for
// compound queries, and targeted re-retrieval when the Planner reports
// missing locations.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skydeck/missionctl/pkg/llm"
	"github.com/skydeck/missionctl/pkg/vectorstore"
)

// Hit is a single retrieval result.
type Hit struct {
	ChunkText      string  `json:"chunk_text"`
	SimilarityScore float64 `json:"similarity_score"`
	MapID          string  `json:"map_id,omitempty"`
}

// Filters narrows a retrieval call to a specific map.
type Filters struct {
	MapID string `json:"map_id,omitempty"`
}

const (
	defaultTopK            = 5
	defaultThreshold        = 0.5
	missingTargetThreshold  = 0.4
	intentTopK              = 3
)

// Retriever embeds queries and searches the vector store.
type Retriever struct {
	llm   llm.Client
	store vectorstore.Store
}

// New creates a Retriever.
func New(llmClient llm.Client, store vectorstore.Store) *Retriever {
	return &Retriever{llm: llmClient, store: store}
}

// Retrieve performs direct vector retrieval: embed, search with
// top_k+3 margin, filter below threshold, sort by score descending,
// truncate to top_k.
func (r *Retriever) Retrieve(ctx context.Context, query string, filters Filters, topK int, threshold float64) ([]Hit, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	embedding, err := r.llm.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.store.Search(ctx, embedding, topK+3, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching vector store: %w", err)
	}

	hits := toHits(matches, filters)
	return sortAndTruncate(hits, topK), nil
}

func toHits(matches []vectorstore.Match, filters Filters) []Hit {
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		mapID, _ := m.Metadata["map_id"].(string)
		if filters.MapID != "" && mapID != "" && mapID != filters.MapID {
			continue
		}
		hits = append(hits, Hit{ChunkText: m.Content, SimilarityScore: m.Similarity, MapID: mapID})
	}
	return hits
}

func sortAndTruncate(hits []Hit, topK int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].SimilarityScore > hits[j].SimilarityScore })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// dedupe keeps the highest-scoring hit per chunk_text, preserving the
// first-seen order among ties so results stay order-stable.
func dedupe(hits []Hit) []Hit {
	best := make(map[string]Hit)
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		existing, ok := best[h.ChunkText]
		if !ok {
			order = append(order, h.ChunkText)
			best[h.ChunkText] = h
			continue
		}
		if h.SimilarityScore > existing.SimilarityScore {
			best[h.ChunkText] = h
		}
	}
	out := make([]Hit, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// intent is the strict-JSON shape requested from the language model to
// decompose a compound query into concrete targets.
type intent struct {
	Targets   []string `json:"targets"`
	Reasoning string   `json:"reasoning"`
}

// SmartRetrieveResult carries merged hits plus the per-target breakdown
// so the Orchestrator can detect targets that produced zero hits.
type SmartRetrieveResult struct {
	Hits       []Hit              `json:"hits"`
	TotalFound int                `json:"total_found"`
	PerTarget  map[string][]Hit   `json:"per_target"`
	Targets    []string           `json:"targets"`
}

// SmartRetrieve decomposes query into concrete targets via the language
// model, searches each target plus the original query, merges and
// deduplicates. A model failure degrades to an empty target list rather
// than failing the call.
func (r *Retriever) SmartRetrieve(ctx context.Context, query string, filters Filters, topK int, threshold float64) (*SmartRetrieveResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	targets := r.decomposeIntent(ctx, query)

	perTarget := make(map[string][]Hit, len(targets))
	var all []Hit

	for _, target := range targets {
		hits, err := r.Retrieve(ctx, target, filters, intentTopK, threshold)
		if err != nil {
			perTarget[target] = nil
			continue
		}
		perTarget[target] = hits
		all = append(all, hits...)
	}

	fallback, err := r.Retrieve(ctx, query, filters, topK, threshold)
	if err == nil {
		all = append(all, fallback...)
	}

	merged := sortAndTruncate(dedupe(all), topK)
	return &SmartRetrieveResult{
		Hits:       merged,
		TotalFound: len(merged),
		PerTarget:  perTarget,
		Targets:    targets,
	}, nil
}

const intentSystemPrompt = `Extract every concrete target referenced in the user's request: named landmarks, numeric ids, or color+shape pairs. Respond with strict JSON only: {"targets": [...], "reasoning": "..."}. If there are no concrete targets, return an empty list.`

func (r *Retriever) decomposeIntent(ctx context.Context, query string) []string {
	var result intent
	err := r.llm.GenerateJSON(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: intentSystemPrompt},
			{Role: llm.RoleUser, Content: query},
		},
		Temperature: 0.1,
	}, &result)
	if err != nil {
		return nil
	}
	return result.Targets
}

// RetrieveMissing runs broadened re-retrieval for targets the Planner
// could not ground, generating query variations per target and keeping
// whichever variation produces the best top hit.
func (r *Retriever) RetrieveMissing(ctx context.Context, missingTargets []string, filters Filters) ([]Hit, error) {
	var all []Hit
	for _, target := range missingTargets {
		variations := queryVariations(target)
		best, bestScore := []Hit(nil), -1.0

		for _, variation := range variations {
			hits, err := r.Retrieve(ctx, variation, filters, intentTopK, missingTargetThreshold)
			if err != nil || len(hits) == 0 {
				continue
			}
			if hits[0].SimilarityScore > bestScore {
				best = hits
				bestScore = hits[0].SimilarityScore
			}
		}
		all = append(all, best...)
	}
	return sortAndTruncate(dedupe(all), len(all)), nil
}

// landingSynonyms is the fixed family of landing-pad synonyms tried for
// any target whose name hints at a landing zone.
var landingSynonyms = []string{"黑白", "着陆", "landing", "landing pad", "landing zone"}

// queryVariations generates broadened search phrasings for a missing
// target name: numeric ids get Chinese numeral-marker variants, and
// landing-related names additionally try the fixed synonym family.
func queryVariations(target string) []string {
	variations := []string{target}

	trimmed := strings.TrimSpace(target)
	if isNumeric(trimmed) {
		variations = append(variations, trimmed+"号", "编号"+trimmed)
	}

	lower := strings.ToLower(trimmed)
	for _, syn := range landingSynonyms {
		if strings.Contains(lower, strings.ToLower(syn)) {
			variations = append(variations, landingSynonyms...)
			break
		}
	}
	return variations
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
