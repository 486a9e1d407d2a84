package embedding

import (
	"context"
	"hash/fnv"
	"strings"

	"scout/internal/agent/ports"
)

// LocalEmbedder is a deterministic, dependency-free embedder: tokens are
// hashed into buckets and the resulting histogram is unit-normalized. It is
// not semantically meaningful but stable, which is what tests and offline
// runs need.
type LocalEmbedder struct {
	dimension int
}

var _ ports.Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder creates a local embedder with the given dimension
// (default 256).
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &LocalEmbedder{dimension: dimension}
}

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dimension]++
	}
	return Normalize(vec), nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}
