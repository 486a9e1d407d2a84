// Package vectorstore provides VectorStore implementations: a chromem-go
// backed store with optional persistence and an in-memory brute-force store
// for tests.
package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"scout/internal/agent/ports"
)

// ChromemConfig holds chromem store configuration.
type ChromemConfig struct {
	PersistPath string // empty means in-memory only
}

// ChromemStore implements ports.VectorStore using chromem-go. Each logical
// collection maps to one chromem collection with cosine similarity.
type ChromemStore struct {
	db       *chromem.DB
	embedder ports.Embedder

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

var _ ports.VectorStore = (*ChromemStore)(nil)

// NewChromemStore creates a chromem-backed vector store. The embedder is used
// when a caller stores content without a precomputed vector.
func NewChromemStore(config ChromemConfig, embedder ports.Embedder) (*ChromemStore, error) {
	var db *chromem.DB
	var err error

	if config.PersistPath != "" {
		persistFile := filepath.Join(config.PersistPath, "chromem.gob")
		db, err = chromem.NewPersistentDB(persistFile, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemStore{
		db:          db,
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	}
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

// CreateCollection creates (or reopens) a named collection.
func (s *ChromemStore) CreateCollection(_ context.Context, name string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.db.GetOrCreateCollection(name, metadata, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	s.collections[name] = col
	return nil
}

// DeleteCollection drops a collection and all its vectors.
func (s *ChromemStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	delete(s.collections, name)
	return nil
}

// StoreEmbedding writes one labeled vector into a collection.
func (s *ChromemStore) StoreEmbedding(ctx context.Context, collection, id string, vector []float32, metadata map[string]string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	err = col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Embedding: vector,
		Metadata:  metadata,
		// chromem requires non-empty content; the id is a stable stand-in
		// since retrieval hydrates records from the document store.
		Content: id,
	})
	if err != nil {
		return fmt.Errorf("store embedding %s: %w", id, err)
	}
	return nil
}

// StoreBatch writes several labeled vectors into a collection.
func (s *ChromemStore) StoreBatch(ctx context.Context, collection string, ids []string, vectors [][]float32, metadatas []map[string]string) error {
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

// Search returns up to k nearest vectors by cosine similarity, restricted to
// entries whose metadata contains every filter pair.
func (s *ChromemStore) Search(ctx context.Context, collection string, queryVector []float32, k int, filters map[string]string) ([]ports.VectorMatch, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}
	// chromem rejects nResults greater than the collection size.
	if count := col.Count(); k > count {
		if count == 0 {
			return nil, nil
		}
		k = count
	}

	results, err := col.QueryEmbedding(ctx, queryVector, k, filters, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	matches := make([]ports.VectorMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, ports.VectorMatch{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return matches, nil
}

// Delete removes one vector from a collection.
func (s *ChromemStore) Delete(ctx context.Context, collection, id string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete embedding %s: %w", id, err)
	}
	return nil
}
