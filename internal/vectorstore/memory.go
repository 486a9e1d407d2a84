package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"scout/internal/agent/ports"
)

type memoryEntry struct {
	vector   []float32
	metadata map[string]string
}

// MemoryStore is a brute-force in-memory VectorStore used in tests and
// offline runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryEntry
}

var _ ports.VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]memoryEntry)}
}

// CreateCollection creates a named collection if it does not exist.
func (s *MemoryStore) CreateCollection(_ context.Context, name string, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = make(map[string]memoryEntry)
	}
	return nil
}

// DeleteCollection drops a collection.
func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// StoreEmbedding writes one labeled vector.
func (s *MemoryStore) StoreEmbedding(_ context.Context, collection, id string, vector []float32, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]memoryEntry)
		s.collections[collection] = col
	}
	col[id] = memoryEntry{vector: vector, metadata: metadata}
	return nil
}

// StoreBatch writes several labeled vectors.
func (s *MemoryStore) StoreBatch(ctx context.Context, collection string, ids []string, vectors [][]float32, metadatas []map[string]string) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids/vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	for i, id := range ids {
		var metadata map[string]string
		if i < len(metadatas) {
			metadata = metadatas[i]
		}
		if err := s.StoreEmbedding(ctx, collection, id, vectors[i], metadata); err != nil {
			return err
		}
	}
	return nil
}

// Search returns up to k matches by descending cosine similarity.
func (s *MemoryStore) Search(_ context.Context, collection string, queryVector []float32, k int, filters map[string]string) ([]ports.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.collections[collection]
	if k <= 0 {
		k = 5
	}

	var matches []ports.VectorMatch
	for id, entry := range col {
		if !matchesFilters(entry.metadata, filters) {
			continue
		}
		matches = append(matches, ports.VectorMatch{
			ID:       id,
			Score:    CosineSimilarity(queryVector, entry.vector),
			Metadata: entry.metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes one vector.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[collection]; ok {
		delete(col, id)
	}
	return nil
}

func matchesFilters(metadata, filters map[string]string) bool {
	for key, want := range filters {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

// CosineSimilarity computes the cosine similarity of two vectors. Unit-length
// inputs make this a plain dot product; non-unit vectors are normalized.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
