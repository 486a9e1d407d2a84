package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	embedder := NewLocalEmbedder(64)

	a, err := embedder.Embed(ctx, "go concurrency patterns")
	require.NoError(t, err)
	b, err := embedder.Embed(ctx, "go concurrency patterns")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestLocalEmbedderUnitNorm(t *testing.T) {
	embedder := NewLocalEmbedder(0)
	assert.Equal(t, 256, embedder.Dimension())

	vec, err := embedder.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalEmbedderSimilarTextsCloser(t *testing.T) {
	ctx := context.Background()
	embedder := NewLocalEmbedder(128)

	base, _ := embedder.Embed(ctx, "distributed systems consensus raft")
	similar, _ := embedder.Embed(ctx, "raft consensus in distributed systems")
	different, _ := embedder.Embed(ctx, "baking sourdough bread at home")

	assert.Greater(t, dot(base, similar), dot(base, different))
}

func TestLocalEmbedderBatch(t *testing.T) {
	embedder := NewLocalEmbedder(32)
	vecs, err := embedder.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	single, _ := embedder.Embed(context.Background(), "two")
	assert.Equal(t, single, vecs[1])
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	embedder := NewLocalEmbedder(16)
	vec, err := embedder.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
