package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/embedding"
	"scout/internal/llm"
	"scout/internal/storage"
	"scout/internal/vectorstore"
)

func newTestSystem(t *testing.T, client ports.LLMClient, cfg SystemConfig) *System {
	t.Helper()
	system := NewSystem(
		storage.NewMemoryStore(),
		vectorstore.NewMemoryStore(),
		embedding.NewLocalEmbedder(64),
		client,
		cfg,
		nil,
	)
	require.NoError(t, system.Init(context.Background()))
	return system
}

func TestStoreExperienceReadYourWrites(t *testing.T) {
	ctx := context.Background()
	mock := llm.NewMockClient()
	mock.QueueResponse(`{"facts": [{"content": "Goroutines are multiplexed onto OS threads", "category": "Go Runtime", "confidence": 0.9}]}`)
	system := newTestSystem(t, mock, SystemConfig{})

	result, err := system.StoreExperience(ctx, types.EpisodicMemory{
		SessionID: "s1",
		Topic:     "go scheduler",
		Summary:   "Read about goroutine multiplexing",
		Success:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Episode)
	assert.NotEmpty(t, result.Episode.ID)

	require.Len(t, result.ExtractedFacts, 1)
	assert.Equal(t, "go-runtime", result.ExtractedFacts[0].Category)
	assert.Equal(t, result.Episode.ID, result.ExtractedFacts[0].Source)

	// The stored episode is immediately retrievable by similarity.
	matches, err := system.Episodic.SearchEpisodes(ctx, "go scheduler goroutine multiplexing", 3)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, result.Episode.ID, matches[0].Episode.ID)
}

func TestReflectionCounter(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{ReflectionInterval: 2})

	first, err := system.StoreExperience(ctx, types.EpisodicMemory{SessionID: "s1", Topic: "a"})
	require.NoError(t, err)
	assert.False(t, first.ShouldReflect)
	assert.Empty(t, first.ExtractedFacts, "extraction is best effort")

	second, err := system.StoreExperience(ctx, types.EpisodicMemory{SessionID: "s1", Topic: "b"})
	require.NoError(t, err)
	assert.True(t, second.ShouldReflect)

	system.ResetReflectionCounter()
	assert.Zero(t, system.ExperiencesSinceReflection())
}

func TestStoreFactDeduplicates(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	first, err := system.Semantic.StoreFact(ctx, types.Fact{
		Content:    "Raft elects a single leader per term",
		Category:   "consensus",
		Source:     "ep-1",
		Confidence: 0.6,
		Relevance:  1.0,
	})
	require.NoError(t, err)

	// Identical content embeds identically, so the second write merges.
	merged, err := system.Semantic.StoreFact(ctx, types.Fact{
		Content:    "Raft elects a single leader per term",
		Category:   "consensus",
		Source:     "ep-2",
		Confidence: 0.8,
		Relevance:  1.0,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, merged.ID)
	assert.InDelta(t, 0.8, merged.Confidence, 1e-9, "higher confidence wins")
	assert.Contains(t, merged.Source, "ep-1")
	assert.Contains(t, merged.Source, "ep-2")
	assert.Equal(t, first.AccessCount+1, merged.AccessCount, "a merge counts as an access")

	count, err := system.Semantic.CountFacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreFactKeepsDistinctStatements(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	_, err := system.Semantic.StoreFact(ctx, types.Fact{Content: "Raft elects a single leader per term", Category: "consensus"})
	require.NoError(t, err)
	_, err = system.Semantic.StoreFact(ctx, types.Fact{Content: "Sourdough starters need regular feeding", Category: "baking"})
	require.NoError(t, err)

	count, err := system.Semantic.CountFacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecordStrategyUseEWMA(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	_, err := system.Procedural.StoreStrategy(ctx, types.Strategy{
		StrategyName: "survey",
		Description:  "broad search then verify",
	})
	require.NoError(t, err)

	// First use sets the rate to the outcome directly.
	require.NoError(t, system.Procedural.RecordStrategyUse(ctx, "survey", true, time.Second))
	strategy := strategyByName(t, system, "survey")
	assert.InDelta(t, 1.0, strategy.SuccessRate, 1e-9)
	assert.Equal(t, 1, strategy.TimesUsed)

	// Subsequent uses blend with weight 0.2.
	require.NoError(t, system.Procedural.RecordStrategyUse(ctx, "survey", false, 3*time.Second))
	strategy = strategyByName(t, system, "survey")
	assert.InDelta(t, 0.8, strategy.SuccessRate, 1e-9)
	assert.Equal(t, 2, strategy.TimesUsed)
	assert.Equal(t, 2*time.Second, strategy.AverageDuration)
	require.NotNil(t, strategy.LastUsed)

	assert.Error(t, system.Procedural.RecordStrategyUse(ctx, "unknown", true, 0))
}

func strategyByName(t *testing.T, system *System, name string) types.Strategy {
	t.Helper()
	strategies, err := system.Procedural.ListStrategies(context.Background())
	require.NoError(t, err)
	for _, s := range strategies {
		if s.StrategyName == name {
			return s
		}
	}
	t.Fatalf("strategy %q not found", name)
	return types.Strategy{}
}

func TestGetRecommendationsFiltersByTools(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	_, err := system.Procedural.StoreStrategy(ctx, types.Strategy{
		StrategyName:  "usable",
		Description:   "golang concurrency research survey",
		RequiredTools: []string{"web_search"},
		SuccessRate:   0.9,
		TimesUsed:     4,
	})
	require.NoError(t, err)
	_, err = system.Procedural.StoreStrategy(ctx, types.Strategy{
		StrategyName:  "blocked",
		Description:   "golang concurrency research survey",
		RequiredTools: []string{"sql_query"},
		SuccessRate:   0.9,
		TimesUsed:     4,
	})
	require.NoError(t, err)

	recs, err := system.Procedural.GetRecommendations(ctx, "golang concurrency research", []string{"web_search", "web_fetch"}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "usable", recs[0].Strategy.StrategyName)
	assert.Contains(t, recs[0].Reasoning, "90% success over 4 uses")
}

func TestExtractStrategyFromEpisodes(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	episode := func(id string, success bool) types.EpisodicMemory {
		return types.EpisodicMemory{
			ID:        id,
			SessionID: "s1",
			Success:   success,
			Actions: []types.Action{
				{ID: id + "-a1", Type: types.ActionSearch, Tool: "web_search"},
				{ID: id + "-a2", Type: types.ActionFetch, Tool: "web_fetch"},
			},
		}
	}

	episodes := []types.EpisodicMemory{
		episode("e1", true),
		episode("e2", true),
		episode("e3", true),
		episode("e4", false),
	}

	created, err := system.Procedural.ExtractStrategyFromEpisodes(ctx, episodes)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "mined-search>fetch", created[0].StrategyName)
	assert.Equal(t, []string{"web_fetch", "web_search"}, created[0].RequiredTools)
	assert.Equal(t, 3, created[0].TimesUsed)
	assert.InDelta(t, 0.75, created[0].SuccessRate, 1e-9,
		"the failed run counts against the sequence's empirical rate")

	// Re-running does not duplicate the mined strategy.
	again, err := system.Procedural.ExtractStrategyFromEpisodes(ctx, episodes)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestExtractStrategyBelowThreshold(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	episodes := []types.EpisodicMemory{
		{ID: "e1", Success: true, Actions: []types.Action{{Type: types.ActionSearch}}},
		{ID: "e2", Success: true, Actions: []types.Action{{Type: types.ActionSearch}}},
	}
	created, err := system.Procedural.ExtractStrategyFromEpisodes(ctx, episodes)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestSessionSingleActive(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	session, err := system.Sessions.StartSession(ctx, "first topic", types.Goal{}, "u1")
	require.NoError(t, err)

	_, err = system.Sessions.StartSession(ctx, "second topic", types.Goal{}, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), session.ID)

	require.NoError(t, system.Sessions.CompleteSession(ctx, types.SessionCompleted))
	assert.Nil(t, system.Sessions.CurrentSession())

	stored, err := system.Sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	_, err = system.Sessions.StartSession(ctx, "third topic", types.Goal{}, "u1")
	assert.NoError(t, err)
}

func TestBuildContextRespectsBudget(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{})

	long := strings.Repeat("distributed consensus replication quorum leader election ", 40)
	for i := 0; i < 3; i++ {
		_, err := system.Episodic.StoreEpisode(ctx, types.EpisodicMemory{
			SessionID: "s1",
			Topic:     "distributed consensus",
			Summary:   long,
			Success:   true,
		})
		require.NoError(t, err)
	}
	_, err := system.Semantic.StoreFact(ctx, types.Fact{
		Content:  "Consensus protocols require a quorum of replicas. " + long,
		Category: "consensus",
	})
	require.NoError(t, err)

	built, err := system.BuildContext(ctx, "distributed consensus quorum", nil, 40)
	require.NoError(t, err)
	assert.True(t, built.EpisodesTruncated)
	assert.True(t, built.FactsTruncated)
	assert.Empty(t, built.Episodes)
	assert.LessOrEqual(t, built.TokensUsed, 40)
}

func TestFormatForPrompt(t *testing.T) {
	c := &Context{
		Episodes: []EpisodeMatch{{Episode: types.EpisodicMemory{
			Topic: "go scheduler", Summary: "learned about goroutine multiplexing", Success: true,
		}}},
		Facts: []FactMatch{{Fact: types.Fact{
			Content: "GOMAXPROCS bounds running threads", Category: "go-runtime", Confidence: 0.9,
		}}},
		Strategies: []types.StrategyRecommendation{{
			Strategy:  types.Strategy{StrategyName: "survey", Description: "broad search first"},
			Reasoning: "90% success over 4 uses, similarity 0.80",
		}},
		FactsTruncated: true,
	}

	out := c.FormatForPrompt()
	assert.Contains(t, out, "Past Experiences:")
	assert.Contains(t, out, "go scheduler (succeeded): learned about goroutine multiplexing")
	assert.Contains(t, out, "Known Facts:")
	assert.Contains(t, out, "[go-runtime] GOMAXPROCS bounds running threads (confidence 0.90)")
	assert.Contains(t, out, "(additional facts omitted for space)")
	assert.Contains(t, out, "Effective Strategies:")

	empty := &Context{}
	assert.Empty(t, empty.FormatForPrompt())
}

func TestPerformMaintenanceConsolidatesOldEpisodes(t *testing.T) {
	ctx := context.Background()
	system := newTestSystem(t, &llm.FailingClient{}, SystemConfig{ConsolidationAge: 24 * time.Hour})

	old := time.Now().Add(-48 * time.Hour)
	_, err := system.Episodic.StoreEpisode(ctx, types.EpisodicMemory{
		ID:        "e-old",
		SessionID: "s1",
		Topic:     "stale topic",
		Success:   true,
		Actions:   []types.Action{{ID: "a1", Type: types.ActionSearch, Timestamp: old}},
		Outcomes:  []types.Outcome{{ActionID: "a1", Success: true, Timestamp: old}},
	})
	require.NoError(t, err)
	_, err = system.Episodic.StoreEpisode(ctx, types.EpisodicMemory{
		ID:        "e-new",
		SessionID: "s1",
		Topic:     "fresh topic",
		Success:   true,
		Actions:   []types.Action{{ID: "a2", Type: types.ActionSearch, Timestamp: time.Now()}},
	})
	require.NoError(t, err)

	report, err := system.PerformMaintenance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EpisodesConsolidated)

	episodes, err := system.Episodic.GetSessionEpisodes(ctx, "s1")
	require.NoError(t, err)
	for _, e := range episodes {
		if e.ID == "e-old" {
			assert.Empty(t, e.Actions)
			assert.Empty(t, e.Outcomes)
			assert.Contains(t, e.Tags, "consolidated")
		}
		if e.ID == "e-new" {
			assert.NotEmpty(t, e.Actions)
		}
	}
}
