package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/logging"
	"scout/internal/utils/id"
)

// EpisodeMatch pairs an episode with its retrieval similarity.
type EpisodeMatch struct {
	Episode types.EpisodicMemory
	Score   float32
}

// EpisodicManager stores and retrieves whole experiences. Episodes are
// immutable once stored; consolidation replaces detail with summaries.
type EpisodicManager struct {
	store    ports.DocumentStore
	vectors  ports.VectorStore
	embedder ports.Embedder
	clock    ports.Clock
	logger   logging.Logger
}

// NewEpisodicManager creates the episodic tier.
func NewEpisodicManager(store ports.DocumentStore, vectors ports.VectorStore, embedder ports.Embedder, logger logging.Logger) *EpisodicManager {
	return &EpisodicManager{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		clock:    ports.SystemClock{},
		logger:   logging.OrNop(logger),
	}
}

// SetClock overrides the manager clock (tests).
func (m *EpisodicManager) SetClock(clock ports.Clock) { m.clock = clock }

// StoreEpisode persists an episode and indexes it for similarity search.
// Missing ids are assigned. The document write happens first so a failed
// embedding never loses the episode.
func (m *EpisodicManager) StoreEpisode(ctx context.Context, episode types.EpisodicMemory) (*types.EpisodicMemory, error) {
	if episode.ID == "" {
		episode.ID = id.NewEpisodeID()
	}

	embedText := episode.Topic
	if episode.Summary != "" {
		embedText += ": " + episode.Summary
	}
	vector, err := m.embedder.Embed(ctx, embedText)
	if err != nil {
		m.logger.Warn("Embedding episode %s failed, storing without index: %v", episode.ID, err)
	} else {
		episode.Embedding = vector
	}

	if err := m.store.StoreEpisode(ctx, episode); err != nil {
		return nil, fmt.Errorf("store episode: %w", err)
	}

	if vector != nil {
		metadata := map[string]string{
			"session_id": episode.SessionID,
			"success":    strconv.FormatBool(episode.Success),
			"timestamp":  m.clock.Now().UTC().Format(time.RFC3339),
		}
		if len(episode.Tags) > 0 {
			metadata["tags"] = strings.Join(episode.Tags, ",")
		}
		if err := m.vectors.StoreEmbedding(ctx, ports.CollectionEpisodic, episode.ID, vector, metadata); err != nil {
			m.logger.Warn("Indexing episode %s failed: %v", episode.ID, err)
		}
	}

	m.logger.Debug("Stored episode %s (session %s, success=%v)", episode.ID, episode.SessionID, episode.Success)
	return &episode, nil
}

// SearchEpisodes returns up to k episodes similar to the query, most similar
// first.
func (m *EpisodicManager) SearchEpisodes(ctx context.Context, query string, k int) ([]EpisodeMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := m.vectors.Search(ctx, ports.CollectionEpisodic, vector, k, nil)
	if err != nil {
		return nil, fmt.Errorf("search episodes: %w", err)
	}

	out := make([]EpisodeMatch, 0, len(matches))
	for _, match := range matches {
		episode, err := m.store.GetEpisode(ctx, match.ID)
		if err != nil {
			// Index entry without a document is stale; skip it.
			m.logger.Warn("Episode %s indexed but not stored: %v", match.ID, err)
			continue
		}
		out = append(out, EpisodeMatch{Episode: *episode, Score: match.Score})
	}
	return out, nil
}

// GetSessionEpisodes returns every episode recorded for a session.
func (m *EpisodicManager) GetSessionEpisodes(ctx context.Context, sessionID string) ([]types.EpisodicMemory, error) {
	return m.store.GetEpisodesBySession(ctx, sessionID)
}

// AllEpisodes returns every stored episode.
func (m *EpisodicManager) AllEpisodes(ctx context.Context) ([]types.EpisodicMemory, error) {
	return m.store.QueryEpisodes(ctx, ports.EpisodeFilter{})
}

// CountEpisodes returns the total number of stored episodes.
func (m *EpisodicManager) CountEpisodes(ctx context.Context) (int, error) {
	episodes, err := m.store.QueryEpisodes(ctx, ports.EpisodeFilter{})
	if err != nil {
		return 0, err
	}
	return len(episodes), nil
}

// ConsolidateOlderThan compresses episodes whose last activity predates the
// cutoff: action and outcome detail is dropped, the summary and findings are
// kept, and the episode is tagged consolidated. Returns how many episodes
// were compressed.
func (m *EpisodicManager) ConsolidateOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	episodes, err := m.store.QueryEpisodes(ctx, ports.EpisodeFilter{})
	if err != nil {
		return 0, fmt.Errorf("query episodes: %w", err)
	}

	consolidated := 0
	for _, episode := range episodes {
		if hasTag(episode.Tags, "consolidated") {
			continue
		}
		last := lastActivity(episode)
		if last.IsZero() || !last.Before(cutoff) {
			continue
		}

		episode.Actions = nil
		episode.Outcomes = nil
		episode.Tags = append(episode.Tags, "consolidated")
		if err := m.store.StoreEpisode(ctx, episode); err != nil {
			return consolidated, fmt.Errorf("rewrite episode %s: %w", episode.ID, err)
		}
		consolidated++
	}

	if consolidated > 0 {
		m.logger.Info("Consolidated %d episodes older than %s", consolidated, cutoff.Format(time.RFC3339))
	}
	return consolidated, nil
}

func lastActivity(episode types.EpisodicMemory) time.Time {
	if n := len(episode.Outcomes); n > 0 {
		return episode.Outcomes[n-1].Timestamp
	}
	if n := len(episode.Actions); n > 0 {
		return episode.Actions[n-1].Timestamp
	}
	return time.Time{}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
