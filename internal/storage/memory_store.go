// Package storage provides document-store implementations for agent records:
// an in-memory store with secondary indexes and a JSON file store layered on
// top of it for write-through persistence.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
)

// MemoryStore is an in-memory DocumentStore. Safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	sessions   map[string]types.Session
	episodes   map[string]types.EpisodicMemory
	facts      map[string]types.Fact
	strategies map[string]types.Strategy
	feedback   map[string][]types.Feedback // keyed by session id

	// secondary indexes
	episodesBySession map[string][]string
	factsByCategory   map[string][]string
	strategyByName    map[string]string
}

var _ ports.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:          make(map[string]types.Session),
		episodes:          make(map[string]types.EpisodicMemory),
		facts:             make(map[string]types.Fact),
		strategies:        make(map[string]types.Strategy),
		feedback:          make(map[string][]types.Feedback),
		episodesBySession: make(map[string][]string),
		factsByCategory:   make(map[string][]string),
		strategyByName:    make(map[string]string),
	}
}

// CreateSession stores a new session record.
func (s *MemoryStore) CreateSession(_ context.Context, session types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %s", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSession returns a session by id.
func (s *MemoryStore) GetSession(_ context.Context, id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return &session, nil
}

// ListSessions returns sessions matching the filter, newest first.
func (s *MemoryStore) ListSessions(_ context.Context, filter ports.SessionFilter) ([]types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Session
	for _, session := range s.sessions {
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && session.UserID != filter.UserID {
			continue
		}
		if !filter.Since.IsZero() && session.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateSession replaces an existing session record.
func (s *MemoryStore) UpdateSession(_ context.Context, session types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; !exists {
		return fmt.Errorf("session not found: %s", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

// DeleteSession removes a session record.
func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// StoreEpisode stores an episodic memory record.
func (s *MemoryStore) StoreEpisode(_ context.Context, episode types.EpisodicMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.episodes[episode.ID]; !exists {
		s.episodesBySession[episode.SessionID] = append(s.episodesBySession[episode.SessionID], episode.ID)
	}
	s.episodes[episode.ID] = episode
	return nil
}

// GetEpisode returns an episode by id.
func (s *MemoryStore) GetEpisode(_ context.Context, id string) (*types.EpisodicMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	episode, ok := s.episodes[id]
	if !ok {
		return nil, fmt.Errorf("episode not found: %s", id)
	}
	return &episode, nil
}

// GetEpisodesBySession returns a session's episodes in insertion order.
func (s *MemoryStore) GetEpisodesBySession(_ context.Context, sessionID string) ([]types.EpisodicMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.episodesBySession[sessionID]
	out := make([]types.EpisodicMemory, 0, len(ids))
	for _, id := range ids {
		if episode, ok := s.episodes[id]; ok {
			out = append(out, episode)
		}
	}
	return out, nil
}

// QueryEpisodes returns episodes matching the filter.
func (s *MemoryStore) QueryEpisodes(_ context.Context, filter ports.EpisodeFilter) ([]types.EpisodicMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.EpisodicMemory
	for _, episode := range s.episodes {
		if filter.SessionID != "" && episode.SessionID != filter.SessionID {
			continue
		}
		if filter.Tag != "" && !containsString(episode.Tags, filter.Tag) {
			continue
		}
		if !filter.Since.IsZero() {
			last := episodeTimestamp(episode)
			if !last.IsZero() && last.Before(filter.Since) {
				continue
			}
		}
		out = append(out, episode)
	}
	return out, nil
}

// DeleteEpisode removes an episode and its session index entry.
func (s *MemoryStore) DeleteEpisode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	episode, ok := s.episodes[id]
	if !ok {
		return nil
	}
	delete(s.episodes, id)
	s.episodesBySession[episode.SessionID] = removeString(s.episodesBySession[episode.SessionID], id)
	return nil
}

// StoreFact stores a fact record.
func (s *MemoryStore) StoreFact(_ context.Context, fact types.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.facts[fact.ID]; ok && existing.Category != fact.Category {
		s.factsByCategory[existing.Category] = removeString(s.factsByCategory[existing.Category], fact.ID)
	}
	if _, ok := s.facts[fact.ID]; !ok || !containsString(s.factsByCategory[fact.Category], fact.ID) {
		s.factsByCategory[fact.Category] = append(s.factsByCategory[fact.Category], fact.ID)
	}
	s.facts[fact.ID] = fact
	return nil
}

// GetFact returns a fact by id.
func (s *MemoryStore) GetFact(_ context.Context, id string) (*types.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fact, ok := s.facts[id]
	if !ok {
		return nil, fmt.Errorf("fact not found: %s", id)
	}
	return &fact, nil
}

// UpdateFact replaces an existing fact record.
func (s *MemoryStore) UpdateFact(ctx context.Context, fact types.Fact) error {
	s.mu.RLock()
	_, exists := s.facts[fact.ID]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("fact not found: %s", fact.ID)
	}
	return s.StoreFact(ctx, fact)
}

// ListFacts returns all facts.
func (s *MemoryStore) ListFacts(_ context.Context) ([]types.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Fact, 0, len(s.facts))
	for _, fact := range s.facts {
		out = append(out, fact)
	}
	return out, nil
}

// GetFactsByCategory returns facts in a category.
func (s *MemoryStore) GetFactsByCategory(_ context.Context, category string) ([]types.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.factsByCategory[category]
	out := make([]types.Fact, 0, len(ids))
	for _, id := range ids {
		if fact, ok := s.facts[id]; ok {
			out = append(out, fact)
		}
	}
	return out, nil
}

// SearchFactsByText returns facts whose content contains the prefix,
// case-insensitively.
func (s *MemoryStore) SearchFactsByText(_ context.Context, prefix string) ([]types.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(prefix)
	var out []types.Fact
	for _, fact := range s.facts {
		if strings.Contains(strings.ToLower(fact.Content), needle) {
			out = append(out, fact)
		}
	}
	return out, nil
}

// DeleteFact removes a fact and its category index entry.
func (s *MemoryStore) DeleteFact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fact, ok := s.facts[id]
	if !ok {
		return nil
	}
	delete(s.facts, id)
	s.factsByCategory[fact.Category] = removeString(s.factsByCategory[fact.Category], id)
	return nil
}

// StoreStrategy stores a strategy record.
func (s *MemoryStore) StoreStrategy(_ context.Context, strategy types.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[strategy.ID] = strategy
	s.strategyByName[strategy.StrategyName] = strategy.ID
	return nil
}

// GetStrategy returns a strategy by id.
func (s *MemoryStore) GetStrategy(_ context.Context, id string) (*types.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy not found: %s", id)
	}
	return &strategy, nil
}

// GetStrategyByName returns a strategy by its unique name.
func (s *MemoryStore) GetStrategyByName(_ context.Context, name string) (*types.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.strategyByName[name]
	if !ok {
		return nil, fmt.Errorf("strategy not found: %s", name)
	}
	strategy := s.strategies[id]
	return &strategy, nil
}

// UpdateStrategy replaces an existing strategy record.
func (s *MemoryStore) UpdateStrategy(ctx context.Context, strategy types.Strategy) error {
	s.mu.RLock()
	_, exists := s.strategies[strategy.ID]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("strategy not found: %s", strategy.ID)
	}
	return s.StoreStrategy(ctx, strategy)
}

// ListStrategies returns all strategies sorted by descending success rate.
func (s *MemoryStore) ListStrategies(_ context.Context) ([]types.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Strategy, 0, len(s.strategies))
	for _, strategy := range s.strategies {
		out = append(out, strategy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SuccessRate > out[j].SuccessRate })
	return out, nil
}

// StoreFeedback appends feedback for a session.
func (s *MemoryStore) StoreFeedback(_ context.Context, feedback types.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback[feedback.SessionID] = append(s.feedback[feedback.SessionID], feedback)
	return nil
}

// GetFeedbackBySession returns feedback for a session.
func (s *MemoryStore) GetFeedbackBySession(_ context.Context, sessionID string) ([]types.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Feedback(nil), s.feedback[sessionID]...), nil
}

func episodeTimestamp(episode types.EpisodicMemory) time.Time {
	if n := len(episode.Outcomes); n > 0 {
		return episode.Outcomes[n-1].Timestamp
	}
	if n := len(episode.Actions); n > 0 {
		return episode.Actions[n-1].Timestamp
	}
	return time.Time{}
}

func containsString(items []string, needle string) bool {
	for _, item := range items {
		if item == needle {
			return true
		}
	}
	return false
}

func removeString(items []string, needle string) []string {
	out := items[:0]
	for _, item := range items {
		if item != needle {
			out = append(out, item)
		}
	}
	return out
}
