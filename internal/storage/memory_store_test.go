package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	session := types.Session{
		ID:        "session-1",
		Topic:     "go generics",
		Status:    types.SessionActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateSession(ctx, session))
	assert.Error(t, store.CreateSession(ctx, session), "duplicate id must fail")

	loaded, err := store.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "go generics", loaded.Topic)

	session.Status = types.SessionCompleted
	require.NoError(t, store.UpdateSession(ctx, session))
	loaded, err = store.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, types.SessionCompleted, loaded.Status)

	require.NoError(t, store.DeleteSession(ctx, "session-1"))
	_, err = store.GetSession(ctx, "session-1")
	assert.Error(t, err)

	assert.Error(t, store.UpdateSession(ctx, types.Session{ID: "ghost"}))
}

func TestListSessionsFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.CreateSession(ctx, types.Session{ID: "old", UserID: "u1", Status: types.SessionCompleted, CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.CreateSession(ctx, types.Session{ID: "new", UserID: "u2", Status: types.SessionActive, CreatedAt: now}))

	all, err := store.ListSessions(ctx, ports.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].ID, "newest first")

	active, err := store.ListSessions(ctx, ports.SessionFilter{Status: types.SessionActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "new", active[0].ID)

	recent, err := store.ListSessions(ctx, ports.SessionFilter{Since: now.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestEpisodesBySession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, store.StoreEpisode(ctx, types.EpisodicMemory{ID: id, SessionID: "s1", Tags: []string{"search"}}))
	}
	require.NoError(t, store.StoreEpisode(ctx, types.EpisodicMemory{ID: "e3", SessionID: "s2"}))

	episodes, err := store.GetEpisodesBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "e1", episodes[0].ID, "insertion order")

	tagged, err := store.QueryEpisodes(ctx, ports.EpisodeFilter{Tag: "search"})
	require.NoError(t, err)
	assert.Len(t, tagged, 2)

	require.NoError(t, store.DeleteEpisode(ctx, "e1"))
	episodes, err = store.GetEpisodesBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, episodes, 1)

	// Re-storing an existing id must not duplicate the index entry.
	require.NoError(t, store.StoreEpisode(ctx, types.EpisodicMemory{ID: "e2", SessionID: "s1", Summary: "updated"}))
	episodes, err = store.GetEpisodesBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "updated", episodes[0].Summary)
}

func TestFactsByCategory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.StoreFact(ctx, types.Fact{ID: "f1", Content: "Go has goroutines", Category: "golang"}))
	require.NoError(t, store.StoreFact(ctx, types.Fact{ID: "f2", Content: "Rust has ownership", Category: "rust"}))

	golang, err := store.GetFactsByCategory(ctx, "golang")
	require.NoError(t, err)
	require.Len(t, golang, 1)
	assert.Equal(t, "f1", golang[0].ID)

	// Category change moves the index entry.
	require.NoError(t, store.UpdateFact(ctx, types.Fact{ID: "f1", Content: "Go has goroutines", Category: "concurrency"}))
	golang, err = store.GetFactsByCategory(ctx, "golang")
	require.NoError(t, err)
	assert.Empty(t, golang)
	moved, err := store.GetFactsByCategory(ctx, "concurrency")
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	found, err := store.SearchFactsByText(ctx, "goroutine")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, store.DeleteFact(ctx, "f1"))
	all, err := store.ListFacts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.Error(t, store.UpdateFact(ctx, types.Fact{ID: "ghost"}))
}

func TestStrategyByName(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.StoreStrategy(ctx, types.Strategy{ID: "st1", StrategyName: "deep-dive", SuccessRate: 0.4}))
	require.NoError(t, store.StoreStrategy(ctx, types.Strategy{ID: "st2", StrategyName: "survey", SuccessRate: 0.9}))

	strategy, err := store.GetStrategyByName(ctx, "deep-dive")
	require.NoError(t, err)
	assert.Equal(t, "st1", strategy.ID)

	_, err = store.GetStrategyByName(ctx, "unknown")
	assert.Error(t, err)

	listed, err := store.ListStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "survey", listed[0].StrategyName, "descending success rate")
}

func TestFeedback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.StoreFeedback(ctx, types.Feedback{ID: "fb1", SessionID: "s1", Rating: 4}))
	require.NoError(t, store.StoreFeedback(ctx, types.Feedback{ID: "fb2", SessionID: "s1", Rating: 5}))

	feedback, err := store.GetFeedbackBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, feedback, 2)

	none, err := store.GetFeedbackBySession(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}
