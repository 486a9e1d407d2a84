package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/logging"
)

// DefaultReflectionInterval is how many stored experiences pass between
// reflection suggestions.
const DefaultReflectionInterval = 5

// DefaultConsolidationAge is how old an episode must be before maintenance
// compresses it.
const DefaultConsolidationAge = 30 * 24 * time.Hour

// ExperienceResult reports what storing an experience produced.
type ExperienceResult struct {
	Episode        *types.EpisodicMemory
	ExtractedFacts []types.Fact
	ShouldReflect  bool
}

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	EpisodesConsolidated int
	FactsDecayed         int
	FactsMerged          int
	StrategiesExtracted  int
}

// SystemConfig tunes the memory system facade.
type SystemConfig struct {
	ReflectionInterval int
	ConsolidationAge   time.Duration
}

// System is the facade over the three memory tiers. The control loop talks to
// this type; the tier managers stay accessible for direct queries.
type System struct {
	Sessions   *SessionManager
	Episodic   *EpisodicManager
	Semantic   *SemanticManager
	Procedural *ProceduralManager
	Builder    *ContextBuilder

	vectors ports.VectorStore
	clock   ports.Clock
	logger  logging.Logger

	reflectionInterval int
	consolidationAge   time.Duration

	mu                sync.Mutex
	experiencesStored int
}

// NewSystem wires the memory system over a document store, vector store,
// embedder, and LLM client.
func NewSystem(store ports.DocumentStore, vectors ports.VectorStore, embedder ports.Embedder, llm ports.LLMClient, cfg SystemConfig, logger logging.Logger) *System {
	logger = logging.OrNop(logger)

	episodic := NewEpisodicManager(store, vectors, embedder, logger)
	semantic := NewSemanticManager(store, vectors, embedder, llm, logger)
	procedural := NewProceduralManager(store, vectors, embedder, logger)

	interval := cfg.ReflectionInterval
	if interval <= 0 {
		interval = DefaultReflectionInterval
	}
	age := cfg.ConsolidationAge
	if age <= 0 {
		age = DefaultConsolidationAge
	}

	return &System{
		Sessions:           NewSessionManager(store, logger),
		Episodic:           episodic,
		Semantic:           semantic,
		Procedural:         procedural,
		Builder:            NewContextBuilder(episodic, semantic, procedural, logger),
		vectors:            vectors,
		clock:              ports.SystemClock{},
		logger:             logger,
		reflectionInterval: interval,
		consolidationAge:   age,
	}
}

// SetClock overrides the clock on the facade and every tier (tests).
func (s *System) SetClock(clock ports.Clock) {
	s.clock = clock
	s.Sessions.SetClock(clock)
	s.Episodic.SetClock(clock)
	s.Semantic.SetClock(clock)
	s.Procedural.SetClock(clock)
}

// Init creates the vector collections. Safe to call on every startup.
func (s *System) Init(ctx context.Context) error {
	for _, name := range []string{ports.CollectionEpisodic, ports.CollectionSemantic, ports.CollectionProcedural} {
		if err := s.vectors.CreateCollection(ctx, name, nil); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return nil
}

// StoreExperience records an episode, extracts facts from it, and reports
// whether the reflection interval has elapsed. Fact extraction failures do
// not fail the store.
func (s *System) StoreExperience(ctx context.Context, episode types.EpisodicMemory) (*ExperienceResult, error) {
	stored, err := s.Episodic.StoreEpisode(ctx, episode)
	if err != nil {
		return nil, err
	}

	facts := s.Semantic.ExtractFactsFromEpisode(ctx, *stored)

	s.mu.Lock()
	s.experiencesStored++
	shouldReflect := s.experiencesStored >= s.reflectionInterval
	s.mu.Unlock()

	return &ExperienceResult{
		Episode:        stored,
		ExtractedFacts: facts,
		ShouldReflect:  shouldReflect,
	}, nil
}

// ResetReflectionCounter restarts the reflection interval. Called after the
// agent actually reflects.
func (s *System) ResetReflectionCounter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiencesStored = 0
}

// ExperiencesSinceReflection returns the current reflection counter.
func (s *System) ExperiencesSinceReflection() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.experiencesStored
}

// BuildContext assembles budgeted reasoning context for a query.
func (s *System) BuildContext(ctx context.Context, query string, availableTools []string, maxTokens int) (*Context, error) {
	return s.Builder.BuildContext(ctx, query, availableTools, maxTokens)
}

// PerformMaintenance runs the consolidation pass: old episodes are
// compressed, stale facts decay, near-duplicate facts merge, and repeated
// successful action sequences become strategies.
func (s *System) PerformMaintenance(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}

	cutoff := s.clock.Now().Add(-s.consolidationAge)
	consolidated, err := s.Episodic.ConsolidateOlderThan(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("consolidate episodes: %w", err)
	}
	report.EpisodesConsolidated = consolidated

	decayed, err := s.Semantic.DecayRelevance(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("decay facts: %w", err)
	}
	report.FactsDecayed = decayed

	merged, err := s.Semantic.ConsolidateSimilar(ctx)
	if err != nil {
		return report, fmt.Errorf("merge facts: %w", err)
	}
	report.FactsMerged = merged

	episodes, err := s.Episodic.store.QueryEpisodes(ctx, ports.EpisodeFilter{})
	if err != nil {
		return report, fmt.Errorf("query episodes: %w", err)
	}
	extracted, err := s.Procedural.ExtractStrategyFromEpisodes(ctx, episodes)
	if err != nil {
		return report, fmt.Errorf("extract strategies: %w", err)
	}
	report.StrategiesExtracted = len(extracted)

	s.logger.Info("Maintenance: %d episodes consolidated, %d facts decayed, %d merged, %d strategies extracted",
		report.EpisodesConsolidated, report.FactsDecayed, report.FactsMerged, report.StrategiesExtracted)
	return report, nil
}
