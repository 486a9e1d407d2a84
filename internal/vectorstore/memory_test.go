package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSearchOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "test", nil))

	require.NoError(t, store.StoreEmbedding(ctx, "test", "exact", []float32{1, 0, 0}, nil))
	require.NoError(t, store.StoreEmbedding(ctx, "test", "close", []float32{0.9, 0.1, 0}, nil))
	require.NoError(t, store.StoreEmbedding(ctx, "test", "far", []float32{0, 0, 1}, nil))

	matches, err := store.Search(ctx, "test", []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].ID)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryStoreSearchFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.StoreEmbedding(ctx, "test", "a", []float32{1, 0}, map[string]string{"session_id": "s1"}))
	require.NoError(t, store.StoreEmbedding(ctx, "test", "b", []float32{1, 0}, map[string]string{"session_id": "s2"}))

	matches, err := store.Search(ctx, "test", []float32{1, 0}, 10, map[string]string{"session_id": "s1"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.StoreEmbedding(ctx, "test", "a", []float32{1, 0}, nil))
	require.NoError(t, store.Delete(ctx, "test", "a"))

	matches, err := store.Search(ctx, "test", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStoreStoreBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.StoreBatch(ctx, "test",
		[]string{"a", "b"},
		[][]float32{{1, 0}, {0, 1}},
		[]map[string]string{{"k": "v"}, nil})
	require.NoError(t, err)

	matches, err := store.Search(ctx, "test", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	err = store.StoreBatch(ctx, "test", []string{"x"}, nil, nil)
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, float64(CosineSimilarity([]float32{1, 0}, []float32{1, 0})), 1e-6)
	assert.InDelta(t, 0.0, float64(CosineSimilarity([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.InDelta(t, -1.0, float64(CosineSimilarity([]float32{1, 0}, []float32{-1, 0})), 1e-6)

	// Non-unit vectors normalize.
	assert.InDelta(t, 1.0, float64(CosineSimilarity([]float32{2, 0}, []float32{5, 0})), 1e-6)

	// Degenerate inputs.
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
