package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/logging"
	"scout/internal/utils/id"
)

// successRateAlpha is the EWMA weight for new strategy outcomes.
const successRateAlpha = 0.2

// strategyExtractionMinRuns is how many successful episodes must share an
// action sequence before it becomes a named strategy.
const strategyExtractionMinRuns = 3

// ProceduralManager stores reusable research strategies and tracks how well
// they perform across sessions.
type ProceduralManager struct {
	store    ports.DocumentStore
	vectors  ports.VectorStore
	embedder ports.Embedder
	clock    ports.Clock
	logger   logging.Logger
}

// NewProceduralManager creates the procedural tier.
func NewProceduralManager(store ports.DocumentStore, vectors ports.VectorStore, embedder ports.Embedder, logger logging.Logger) *ProceduralManager {
	return &ProceduralManager{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		clock:    ports.SystemClock{},
		logger:   logging.OrNop(logger),
	}
}

// SetClock overrides the manager clock (tests).
func (m *ProceduralManager) SetClock(clock ports.Clock) { m.clock = clock }

// StoreStrategy persists a strategy and indexes it by description and
// applicable contexts.
func (m *ProceduralManager) StoreStrategy(ctx context.Context, strategy types.Strategy) (*types.Strategy, error) {
	if strategy.ID == "" {
		strategy.ID = id.NewStrategyID()
	}
	if strategy.CreatedAt.IsZero() {
		strategy.CreatedAt = m.clock.Now()
	}

	if err := m.store.StoreStrategy(ctx, strategy); err != nil {
		return nil, fmt.Errorf("store strategy: %w", err)
	}

	embedText := strategy.Description
	if len(strategy.ApplicableContexts) > 0 {
		embedText += " " + strings.Join(strategy.ApplicableContexts, " ")
	}
	vector, err := m.embedder.Embed(ctx, embedText)
	if err != nil {
		m.logger.Warn("Embedding strategy %s failed: %v", strategy.StrategyName, err)
	} else if err := m.vectors.StoreEmbedding(ctx, ports.CollectionProcedural, strategy.ID, vector, map[string]string{
		"strategy_name": strategy.StrategyName,
	}); err != nil {
		m.logger.Warn("Indexing strategy %s failed: %v", strategy.StrategyName, err)
	}

	m.logger.Debug("Stored strategy %s (%s)", strategy.StrategyName, strategy.ID)
	return &strategy, nil
}

// RecordStrategyUse updates a strategy's success rate with an exponentially
// weighted moving average and its average duration with a running mean.
func (m *ProceduralManager) RecordStrategyUse(ctx context.Context, name string, success bool, duration time.Duration) error {
	strategy, err := m.store.GetStrategyByName(ctx, name)
	if err != nil {
		return fmt.Errorf("strategy %q: %w", name, err)
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	if strategy.TimesUsed == 0 {
		strategy.SuccessRate = outcome
	} else {
		strategy.SuccessRate = (1-successRateAlpha)*strategy.SuccessRate + successRateAlpha*outcome
	}

	total := strategy.AverageDuration*time.Duration(strategy.TimesUsed) + duration
	strategy.TimesUsed++
	strategy.AverageDuration = total / time.Duration(strategy.TimesUsed)

	now := m.clock.Now()
	strategy.LastUsed = &now

	if err := m.store.UpdateStrategy(ctx, *strategy); err != nil {
		return fmt.Errorf("update strategy %q: %w", name, err)
	}
	m.logger.Debug("Strategy %s: success=%v rate=%.2f uses=%d", name, success, strategy.SuccessRate, strategy.TimesUsed)
	return nil
}

// AddRefinement appends a refinement note to a strategy.
func (m *ProceduralManager) AddRefinement(ctx context.Context, name, refinement string) error {
	strategy, err := m.store.GetStrategyByName(ctx, name)
	if err != nil {
		return fmt.Errorf("strategy %q: %w", name, err)
	}
	strategy.Refinements = append(strategy.Refinements, refinement)
	now := m.clock.Now()
	strategy.LastRefined = &now
	return m.store.UpdateStrategy(ctx, *strategy)
}

// GetRecommendations ranks stored strategies against a query. Strategies
// whose required tools are not all available are excluded. The relevance
// score is the strategy's success rate weighted by embedding similarity.
func (m *ProceduralManager) GetRecommendations(ctx context.Context, query string, availableTools []string, k int) ([]types.StrategyRecommendation, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// Over-fetch so tool filtering still leaves k candidates.
	matches, err := m.vectors.Search(ctx, ports.CollectionProcedural, vector, k*3, nil)
	if err != nil {
		return nil, fmt.Errorf("search strategies: %w", err)
	}

	available := make(map[string]bool, len(availableTools))
	for _, tool := range availableTools {
		available[tool] = true
	}

	var out []types.StrategyRecommendation
	for _, match := range matches {
		strategy, err := m.store.GetStrategy(ctx, match.ID)
		if err != nil {
			m.logger.Warn("Strategy %s indexed but not stored: %v", match.ID, err)
			continue
		}
		if !toolsSatisfied(strategy.RequiredTools, available) {
			continue
		}
		score := strategy.SuccessRate * float64(match.Score)
		out = append(out, types.StrategyRecommendation{
			Strategy:       *strategy,
			RelevanceScore: score,
			Reasoning: fmt.Sprintf("%.0f%% success over %d uses, similarity %.2f",
				strategy.SuccessRate*100, strategy.TimesUsed, match.Score),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// ExtractStrategyFromEpisodes mines episodes for repeated action sequences.
// A sequence with at least three successful runs becomes a named strategy;
// its success rate is the successful fraction of all episodes sharing the
// sequence. Returns the newly created strategies.
func (m *ProceduralManager) ExtractStrategyFromEpisodes(ctx context.Context, episodes []types.EpisodicMemory) ([]types.Strategy, error) {
	type group struct {
		sequence  []types.ActionType
		tools     map[string]bool
		successes int
		total     int
	}
	groups := make(map[string]*group)

	for _, episode := range episodes {
		if len(episode.Actions) == 0 {
			continue
		}
		sequence := make([]types.ActionType, 0, len(episode.Actions))
		for _, action := range episode.Actions {
			sequence = append(sequence, action.Type)
		}
		key := sequenceKey(sequence)
		g, ok := groups[key]
		if !ok {
			g = &group{sequence: sequence, tools: make(map[string]bool)}
			groups[key] = g
		}
		g.total++
		if !episode.Success {
			continue
		}
		g.successes++
		for _, action := range episode.Actions {
			if action.Tool != "" {
				g.tools[action.Tool] = true
			}
		}
	}

	var created []types.Strategy
	for key, g := range groups {
		if g.successes < strategyExtractionMinRuns {
			continue
		}
		name := "mined-" + key
		if existing, err := m.store.GetStrategyByName(ctx, name); err == nil && existing != nil {
			continue
		}

		tools := make([]string, 0, len(g.tools))
		for tool := range g.tools {
			tools = append(tools, tool)
		}
		sort.Strings(tools)

		strategy := types.Strategy{
			StrategyName:  name,
			Description:   fmt.Sprintf("Repeated successful sequence: %s", key),
			RequiredTools: tools,
			SuccessRate:   float64(g.successes) / float64(g.total),
			TimesUsed:     g.successes,
			CreatedAt:     m.clock.Now(),
		}
		stored, err := m.StoreStrategy(ctx, strategy)
		if err != nil {
			return created, err
		}
		created = append(created, *stored)
		m.logger.Info("Extracted strategy %s from %d of %d episodes", name, g.successes, g.total)
	}
	return created, nil
}

// ListStrategies returns every stored strategy.
func (m *ProceduralManager) ListStrategies(ctx context.Context) ([]types.Strategy, error) {
	return m.store.ListStrategies(ctx)
}

func toolsSatisfied(required []string, available map[string]bool) bool {
	for _, tool := range required {
		if !available[tool] {
			return false
		}
	}
	return true
}

func sequenceKey(sequence []types.ActionType) string {
	parts := make([]string, len(sequence))
	for i, t := range sequence {
		parts[i] = string(t)
	}
	return strings.Join(parts, ">")
}
