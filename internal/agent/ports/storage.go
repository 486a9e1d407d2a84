package ports

import (
	"context"
	"time"

	"scout/internal/agent/types"
)

// SessionFilter narrows listSessions queries.
type SessionFilter struct {
	Status types.SessionStatus
	UserID string
	Since  time.Time
}

// EpisodeFilter narrows episode queries.
type EpisodeFilter struct {
	SessionID string
	Tag       string
	Since     time.Time
}

// DocumentStore persists agent records with secondary-index queries. All
// methods are safe for concurrent use.
type DocumentStore interface {
	// Sessions
	CreateSession(ctx context.Context, session types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]types.Session, error)
	UpdateSession(ctx context.Context, session types.Session) error
	DeleteSession(ctx context.Context, id string) error

	// Episodes
	StoreEpisode(ctx context.Context, episode types.EpisodicMemory) error
	GetEpisode(ctx context.Context, id string) (*types.EpisodicMemory, error)
	GetEpisodesBySession(ctx context.Context, sessionID string) ([]types.EpisodicMemory, error)
	QueryEpisodes(ctx context.Context, filter EpisodeFilter) ([]types.EpisodicMemory, error)
	DeleteEpisode(ctx context.Context, id string) error

	// Facts
	StoreFact(ctx context.Context, fact types.Fact) error
	GetFact(ctx context.Context, id string) (*types.Fact, error)
	UpdateFact(ctx context.Context, fact types.Fact) error
	ListFacts(ctx context.Context) ([]types.Fact, error)
	GetFactsByCategory(ctx context.Context, category string) ([]types.Fact, error)
	SearchFactsByText(ctx context.Context, prefix string) ([]types.Fact, error)
	DeleteFact(ctx context.Context, id string) error

	// Strategies
	StoreStrategy(ctx context.Context, strategy types.Strategy) error
	GetStrategy(ctx context.Context, id string) (*types.Strategy, error)
	GetStrategyByName(ctx context.Context, name string) (*types.Strategy, error)
	UpdateStrategy(ctx context.Context, strategy types.Strategy) error
	ListStrategies(ctx context.Context) ([]types.Strategy, error)

	// Feedback
	StoreFeedback(ctx context.Context, feedback types.Feedback) error
	GetFeedbackBySession(ctx context.Context, sessionID string) ([]types.Feedback, error)
}

// VectorMatch is one k-NN hit.
type VectorMatch struct {
	ID       string
	Score    float32 // cosine similarity; higher is closer
	Metadata map[string]string
}

// VectorStore provides per-collection k-NN search over labeled vectors.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, metadata map[string]string) error
	DeleteCollection(ctx context.Context, name string) error

	StoreEmbedding(ctx context.Context, collection, id string, vector []float32, metadata map[string]string) error
	StoreBatch(ctx context.Context, collection string, ids []string, vectors [][]float32, metadatas []map[string]string) error

	// Search returns up to k matches ordered by descending similarity,
	// restricted to entries whose metadata contains every filter pair.
	Search(ctx context.Context, collection string, queryVector []float32, k int, filters map[string]string) ([]VectorMatch, error)

	Delete(ctx context.Context, collection, id string) error
}

// Vector collection names used by the memory system.
const (
	CollectionEpisodic   = "episodic_memory"
	CollectionSemantic   = "semantic_memory"
	CollectionProcedural = "procedural_memory"
)
