package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/llmjson"
	"scout/internal/logging"
	"scout/internal/token"
	"scout/internal/utils/id"
)

// dedupThreshold is the cosine similarity above which two facts are treated
// as the same statement and merged.
const dedupThreshold = 0.92

// relevanceDecay is applied to facts untouched for a full maintenance
// interval.
const relevanceDecay = 0.95

// FactMatch pairs a fact with its retrieval similarity.
type FactMatch struct {
	Fact  types.Fact
	Score float32
}

// SemanticManager stores consolidated declarative knowledge. Facts are
// deduplicated on write and their access counters track retrieval.
type SemanticManager struct {
	store    ports.DocumentStore
	vectors  ports.VectorStore
	embedder ports.Embedder
	llm      ports.LLMClient
	clock    ports.Clock
	logger   logging.Logger
}

// NewSemanticManager creates the semantic tier.
func NewSemanticManager(store ports.DocumentStore, vectors ports.VectorStore, embedder ports.Embedder, llm ports.LLMClient, logger logging.Logger) *SemanticManager {
	return &SemanticManager{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		llm:      llm,
		clock:    ports.SystemClock{},
		logger:   logging.OrNop(logger),
	}
}

// SetClock overrides the manager clock (tests).
func (m *SemanticManager) SetClock(clock ports.Clock) { m.clock = clock }

// ExtractFactsFromEpisode asks the LLM for discrete facts learned in an
// episode and stores each through the dedup path. A failed extraction returns
// an empty slice, not an error; fact extraction is best effort.
func (m *SemanticManager) ExtractFactsFromEpisode(ctx context.Context, episode types.EpisodicMemory) []types.Fact {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TOPIC: %s\nSUMMARY: %s\n", episode.Topic, episode.Summary)
	if len(episode.Findings) > 0 {
		sb.WriteString("\nFINDINGS:\n")
		for _, f := range episode.Findings {
			fmt.Fprintf(&sb, "- %s\n", f.Content)
		}
	}
	sb.WriteString("\nExtract the durable factual statements worth remembering from this research episode.\n")
	sb.WriteString(`Respond with JSON: {"facts": [{"content": "...", "category": "...", "confidence": 0.0}]}` + "\n")
	sb.WriteString("Category is a short topical label. Confidence is in [0,1]. Return at most 10 facts.")

	resp, err := m.llm.Complete(ctx, ports.CompletionRequest{
		Messages:     []ports.Message{{Role: "user", Content: token.Truncate(sb.String(), 4000)}},
		SystemPrompt: "You distill research episodes into reusable facts. Extract only what the episode supports.",
		Temperature:  0.2,
		MaxTokens:    1024,
	})
	if err != nil {
		m.logger.Warn("Fact extraction for episode %s failed: %v", episode.ID, err)
		return nil
	}

	var parsed struct {
		Facts []struct {
			Content    string  `json:"content"`
			Category   string  `json:"category"`
			Confidence float64 `json:"confidence"`
		} `json:"facts"`
	}
	if err := llmjson.Parse(resp.Content, &parsed); err != nil {
		m.logger.Warn("Fact extraction for episode %s returned unparseable JSON: %v", episode.ID, err)
		return nil
	}

	now := m.clock.Now()
	var stored []types.Fact
	for _, raw := range parsed.Facts {
		content := strings.TrimSpace(raw.Content)
		if content == "" {
			continue
		}
		fact := types.Fact{
			Content:      content,
			Category:     normalizeCategory(raw.Category),
			Source:       episode.ID,
			Confidence:   clamp01(raw.Confidence),
			Relevance:    1.0,
			CreatedAt:    now,
			LastAccessed: now,
			LastModified: now,
		}
		result, err := m.StoreFact(ctx, fact)
		if err != nil {
			m.logger.Warn("Storing extracted fact failed: %v", err)
			continue
		}
		stored = append(stored, *result)
	}
	return stored
}

// StoreFact persists a fact, merging it into an existing near-duplicate when
// the embedding similarity crosses the dedup threshold. The returned fact is
// the stored (possibly merged) record.
func (m *SemanticManager) StoreFact(ctx context.Context, fact types.Fact) (*types.Fact, error) {
	vector, err := m.embedder.Embed(ctx, fact.Content)
	if err != nil {
		return nil, fmt.Errorf("embed fact: %w", err)
	}
	fact.Embedding = vector

	matches, err := m.vectors.Search(ctx, ports.CollectionSemantic, vector, 1, nil)
	if err != nil {
		return nil, fmt.Errorf("dedup search: %w", err)
	}
	if len(matches) > 0 && matches[0].Score >= dedupThreshold {
		if existing, err := m.store.GetFact(ctx, matches[0].ID); err == nil {
			return m.mergeFact(ctx, *existing, fact)
		}
	}

	if fact.ID == "" {
		fact.ID = id.NewFactID()
	}
	if err := m.store.StoreFact(ctx, fact); err != nil {
		return nil, fmt.Errorf("store fact: %w", err)
	}
	metadata := map[string]string{"category": fact.Category}
	if err := m.vectors.StoreEmbedding(ctx, ports.CollectionSemantic, fact.ID, vector, metadata); err != nil {
		m.logger.Warn("Indexing fact %s failed: %v", fact.ID, err)
	}

	m.logger.Debug("Stored fact %s [%s]", fact.ID, fact.Category)
	return &fact, nil
}

// mergeFact folds a duplicate into the existing record. Confidence keeps the
// higher value, provenance accumulates, and the content of the more confident
// statement wins.
func (m *SemanticManager) mergeFact(ctx context.Context, existing, incoming types.Fact) (*types.Fact, error) {
	if incoming.Confidence > existing.Confidence {
		existing.Content = incoming.Content
		existing.Confidence = incoming.Confidence
	}
	if incoming.Relevance > existing.Relevance {
		existing.Relevance = incoming.Relevance
	}
	if incoming.Source != "" && !strings.Contains(existing.Source, incoming.Source) {
		existing.Source += "," + incoming.Source
	}
	existing.AccessCount++
	existing.LastModified = m.clock.Now()

	if err := m.store.UpdateFact(ctx, existing); err != nil {
		return nil, fmt.Errorf("merge fact: %w", err)
	}
	m.logger.Debug("Merged duplicate fact into %s", existing.ID)
	return &existing, nil
}

// SearchFacts returns up to k facts similar to the query and bumps their
// access counters.
func (m *SemanticManager) SearchFacts(ctx context.Context, query string, k int) ([]FactMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := m.vectors.Search(ctx, ports.CollectionSemantic, vector, k, nil)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}

	now := m.clock.Now()
	out := make([]FactMatch, 0, len(matches))
	for _, match := range matches {
		fact, err := m.store.GetFact(ctx, match.ID)
		if err != nil {
			m.logger.Warn("Fact %s indexed but not stored: %v", match.ID, err)
			continue
		}
		fact.AccessCount++
		fact.LastAccessed = now
		if err := m.store.UpdateFact(ctx, *fact); err != nil {
			m.logger.Warn("Bumping access count for fact %s failed: %v", fact.ID, err)
		}
		out = append(out, FactMatch{Fact: *fact, Score: match.Score})
	}
	return out, nil
}

// GetFactsByCategory returns the facts filed under a category.
func (m *SemanticManager) GetFactsByCategory(ctx context.Context, category string) ([]types.Fact, error) {
	return m.store.GetFactsByCategory(ctx, normalizeCategory(category))
}

// AllFacts returns every stored fact.
func (m *SemanticManager) AllFacts(ctx context.Context) ([]types.Fact, error) {
	return m.store.ListFacts(ctx)
}

// CountFacts returns the total number of stored facts.
func (m *SemanticManager) CountFacts(ctx context.Context) (int, error) {
	facts, err := m.store.ListFacts(ctx)
	if err != nil {
		return 0, err
	}
	return len(facts), nil
}

// DecayRelevance lowers the relevance of facts not accessed since the cutoff.
// Returns how many facts were decayed.
func (m *SemanticManager) DecayRelevance(ctx context.Context, cutoff time.Time) (int, error) {
	facts, err := m.store.ListFacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list facts: %w", err)
	}

	decayed := 0
	for _, fact := range facts {
		if !fact.LastAccessed.Before(cutoff) {
			continue
		}
		fact.Relevance *= relevanceDecay
		fact.LastModified = m.clock.Now()
		if err := m.store.UpdateFact(ctx, fact); err != nil {
			return decayed, fmt.Errorf("decay fact %s: %w", fact.ID, err)
		}
		decayed++
	}
	return decayed, nil
}

// ConsolidateSimilar sweeps the fact store and merges near-duplicates that
// slipped past write-time dedup. Returns how many facts were removed.
func (m *SemanticManager) ConsolidateSimilar(ctx context.Context) (int, error) {
	facts, err := m.store.ListFacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list facts: %w", err)
	}

	removed := 0
	seen := make(map[string]bool, len(facts))
	for _, fact := range facts {
		if seen[fact.ID] || len(fact.Embedding) == 0 {
			continue
		}
		matches, err := m.vectors.Search(ctx, ports.CollectionSemantic, fact.Embedding, 5, nil)
		if err != nil {
			return removed, fmt.Errorf("consolidation search: %w", err)
		}
		for _, match := range matches {
			if match.ID == fact.ID || seen[match.ID] || match.Score < dedupThreshold {
				continue
			}
			dup, err := m.store.GetFact(ctx, match.ID)
			if err != nil {
				continue
			}
			if _, err := m.mergeFact(ctx, fact, *dup); err != nil {
				return removed, err
			}
			if err := m.store.DeleteFact(ctx, dup.ID); err != nil {
				return removed, fmt.Errorf("delete duplicate fact %s: %w", dup.ID, err)
			}
			if err := m.vectors.Delete(ctx, ports.CollectionSemantic, dup.ID); err != nil {
				m.logger.Warn("Deleting index entry for fact %s failed: %v", dup.ID, err)
			}
			seen[dup.ID] = true
			removed++
		}
		seen[fact.ID] = true
	}

	if removed > 0 {
		m.logger.Info("Consolidated %d duplicate facts", removed)
	}
	return removed, nil
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "general"
	}
	return strings.ReplaceAll(category, " ", "-")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
