package reflection

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/agent/types"
	"scout/internal/embedding"
	"scout/internal/llm"
	"scout/internal/memory"
	"scout/internal/storage"
	"scout/internal/vectorstore"
)

func newMemorySystem(t *testing.T) *memory.System {
	t.Helper()
	system := memory.NewSystem(
		storage.NewMemoryStore(),
		vectorstore.NewMemoryStore(),
		embedding.NewLocalEmbedder(32),
		&llm.FailingClient{},
		memory.SystemConfig{},
		nil,
	)
	require.NoError(t, system.Init(context.Background()))
	return system
}

func storeEpisode(t *testing.T, system *memory.System, sessionID, topic string, success bool) {
	t.Helper()
	_, err := system.Episodic.StoreEpisode(context.Background(), types.EpisodicMemory{
		SessionID: sessionID,
		Topic:     topic,
		Summary:   "looked into " + topic,
		Success:   success,
	})
	require.NoError(t, err)
}

func TestAnalyzeTopicPatterns(t *testing.T) {
	ctx := context.Background()
	system := newMemorySystem(t)
	r := NewMemoryReflector(system, nil)

	for i := 0; i < 3; i++ {
		storeEpisode(t, system, fmt.Sprintf("s%d", i), "rust async", true)
	}
	storeEpisode(t, system, "s4", "zig comptime", false)
	storeEpisode(t, system, "s5", "zig comptime", false)

	analysis, err := r.Analyze(ctx)
	require.NoError(t, err)

	kinds := make(map[string]int)
	for _, insight := range analysis.Insights {
		kinds[insight.Kind]++
	}
	assert.Equal(t, 1, kinds["recurring-topic"])
	assert.Equal(t, 1, kinds["failing-topic"])
	assert.False(t, analysis.ConsolidationRan, "memory is well under the consolidation bounds")
}

func TestAnalyzeStrategyEffectiveness(t *testing.T) {
	ctx := context.Background()
	system := newMemorySystem(t)
	r := NewMemoryReflector(system, nil)

	for _, s := range []types.Strategy{
		{StrategyName: "winner", Description: "works", SuccessRate: 0.9, TimesUsed: 5},
		{StrategyName: "loser", Description: "does not", SuccessRate: 0.1, TimesUsed: 4},
		{StrategyName: "untested", Description: "too new", SuccessRate: 1.0, TimesUsed: 1},
	} {
		_, err := system.Procedural.StoreStrategy(ctx, s)
		require.NoError(t, err)
	}

	insights, err := r.analyzeStrategyEffectiveness(ctx)
	require.NoError(t, err)
	require.Len(t, insights, 2, "strategies under three uses are not judged")

	kinds := []string{insights[0].Kind, insights[1].Kind}
	assert.Contains(t, kinds, "effective-strategy")
	assert.Contains(t, kinds, "ineffective-strategy")
}

func TestIdentifyKnowledgeGaps(t *testing.T) {
	ctx := context.Background()
	system := newMemorySystem(t)
	r := NewMemoryReflector(system, nil)

	// Empty semantic memory is itself a gap.
	gaps, err := r.identifyKnowledgeGaps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"semantic memory is empty"}, gaps)

	sparse := []types.Fact{
		{Content: "Only one fact filed here", Category: "thin-category", Confidence: 0.9},
		{Content: "Vague claim about compilers", Category: "weak-category", Confidence: 0.2},
		{Content: "Another vague compiler claim", Category: "weak-category", Confidence: 0.3},
		{Content: "A third uncertain compiler note", Category: "weak-category", Confidence: 0.4},
	}
	for _, fact := range sparse {
		_, err := system.Semantic.StoreFact(ctx, fact)
		require.NoError(t, err)
	}

	gaps, err = r.identifyKnowledgeGaps(ctx)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Contains(t, gaps[0], "thin-category")
	assert.Contains(t, gaps[1], "weak-category")
}

func TestCompareWithPrevious(t *testing.T) {
	ctx := context.Background()
	system := newMemorySystem(t)
	r := NewMemoryReflector(system, nil)

	storeEpisode(t, system, "old-session", "kubernetes operators", true)
	storeEpisode(t, system, "current-session", "kubernetes operators", true)

	insights, err := r.CompareWithPrevious(ctx, &types.Session{ID: "current-session", Topic: "kubernetes operators"})
	require.NoError(t, err)
	require.Len(t, insights, 1, "the session's own episodes are excluded")
	assert.Equal(t, "prior-session", insights[0].Kind)
	assert.Contains(t, insights[0].Summary, "kubernetes operators")
}

func TestTriggerConsolidationBelowBounds(t *testing.T) {
	ctx := context.Background()
	system := newMemorySystem(t)
	r := NewMemoryReflector(system, nil)

	storeEpisode(t, system, "s1", "anything", true)

	ran, report, err := r.TriggerConsolidationIfNeeded(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, report)
}
