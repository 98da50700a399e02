package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SearchRanksBySimilarity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, Document{ID: "a", Content: "exact match", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, s.Insert(ctx, Document{ID: "b", Content: "orthogonal", Embedding: []float32{0, 1, 0}}))
	require.NoError(t, s.Insert(ctx, Document{ID: "c", Content: "close match", Embedding: []float32{0.9, 0.1, 0}}))

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 2, 0.0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
}

func TestMemoryStore_Search_RespectsMinSimilarity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, Document{ID: "a", Embedding: []float32{1, 0}}))
	require.NoError(t, s.Insert(ctx, Document{ID: "b", Embedding: []float32{0, 1}}))

	matches, err := s.Search(ctx, []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
}

func TestCosineSimilarity_MismatchedLengths(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1}))
}
