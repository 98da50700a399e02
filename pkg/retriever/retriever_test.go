package retriever

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/skydeck/missionctl/pkg/llm"
	"github.com/skydeck/missionctl/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM implements llm.Client with a deterministic embedding (the
// query's length mapped into a fixed-size one-hot-ish vector) and a
// canned JSON response for GenerateJSON.
type fakeLLM struct {
	jsonResponse string
	jsonErr      error
}

func (f *fakeLLM) Generate(ctx context.Context, input llm.GenerateInput) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	close(ch)
	return ch, nil
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, input llm.GenerateInput, v any) error {
	if f.jsonErr != nil {
		return f.jsonErr
	}
	return json.Unmarshal([]byte(f.jsonResponse), v)
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r % 7)
	}
	return vec, nil
}

func TestRetrieve_SortsByScoreDescending(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(store.Insert(ctx, vectorstore.Document{ID: "a", Content: "low score doc", Embedding: []float32{1, 0, 0, 0}}))
	must(store.Insert(ctx, vectorstore.Document{ID: "b", Content: "7号蓝色圆形", Embedding: []float32{10, 1, 1, 1}}))

	r := New(&fakeLLM{}, store)
	hits, err := r.Retrieve(ctx, "7号", Filters{}, 5, 0.0)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
	require.Len(t, hits, 2)
	assert.Equal(t, "7号蓝色圆形", hits[0].ChunkText)
}

func TestSmartRetrieve_DegradesOnModelFailure(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()
	r := New(&fakeLLM{jsonErr: assert.AnError}, store)

	result, err := r.SmartRetrieve(ctx, "fly to point 7", Filters{}, 5, 0.0)
	require.NoError(t, err)
	assert.Empty(t, result.Targets)
}

func TestSmartRetrieve_MergesPerTargetAndFallback(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, vectorstore.Document{ID: "a", Content: "point 7 marker", Embedding: []float32{5, 5, 5, 5}}))

	r := New(&fakeLLM{jsonResponse: `{"targets": ["7"], "reasoning": "numeric target"}`}, store)
	result, err := r.SmartRetrieve(ctx, "fly to 7", Filters{}, 5, 0.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, result.Targets)
	assert.Contains(t, result.PerTarget, "7")
	assert.Len(t, result.Hits, 1)
}

func TestDedupe_KeepsHighestScore(t *testing.T) {
	hits := []Hit{
		{ChunkText: "a", SimilarityScore: 0.5},
		{ChunkText: "a", SimilarityScore: 0.9},
		{ChunkText: "b", SimilarityScore: 0.3},
	}
	deduped := dedupe(hits)
	require.Len(t, deduped, 2)
	for _, h := range deduped {
		if h.ChunkText == "a" {
			assert.Equal(t, 0.9, h.SimilarityScore)
		}
	}
}

func TestQueryVariations_NumericTarget(t *testing.T) {
	variations := queryVariations("7")
	assert.Contains(t, variations, "7")
	assert.Contains(t, variations, "7号")
	assert.Contains(t, variations, "编号7")
}

func TestQueryVariations_LandingTarget(t *testing.T) {
	variations := queryVariations("landing pad")
	assert.Contains(t, variations, "着陆")
}

func TestRetrieveMissing_KeepsBestVariationPerTarget(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, vectorstore.Document{ID: "a", Content: "3号 marker", Embedding: []float32{9, 9, 9, 9}}))

	r := New(&fakeLLM{}, store)
	hits, err := r.RetrieveMissing(ctx, []string{"3"}, Filters{})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	require.Len(t, hits, 1)
	// "3" scores 0.5, "3号" about 0.65, "编号3" about 0.8165: the last wins.
	assert.InDelta(t, 0.8165, hits[0].SimilarityScore, 0.001)
}
