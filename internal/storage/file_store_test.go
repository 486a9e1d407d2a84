package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/agent/types"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, store.CreateSession(ctx, types.Session{
		ID:        "s1",
		Topic:     "vector databases",
		Status:    types.SessionActive,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, store.StoreEpisode(ctx, types.EpisodicMemory{
		ID:        "e1",
		SessionID: "s1",
		Topic:     "vector databases",
		Success:   true,
		Actions: []types.Action{{
			ID:         "a1",
			SessionID:  "s1",
			Type:       types.ActionSearch,
			Tool:       "web_search",
			Parameters: types.SearchParams{Query: "hnsw index", MaxResults: 5},
		}},
		Outcomes: []types.Outcome{{
			ActionID: "a1",
			Success:  true,
			Result:   types.SearchResult{Results: []types.SearchResultItem{{Title: "HNSW", URL: "https://example.com"}}},
		}},
	}))
	require.NoError(t, store.StoreFact(ctx, types.Fact{
		ID:       "f1",
		Content:  "HNSW graphs trade memory for recall",
		Category: "vector-search",
	}))
	require.NoError(t, store.StoreStrategy(ctx, types.Strategy{
		ID:           "st1",
		StrategyName: "survey-then-verify",
		SuccessRate:  0.8,
	}))
	require.NoError(t, store.StoreFeedback(ctx, types.Feedback{
		ID:        "fb1",
		SessionID: "s1",
		Rating:    5,
	}))

	assert.FileExists(t, filepath.Join(dir, "sessions", "s1.json"))
	assert.FileExists(t, filepath.Join(dir, "episodes", "e1.json"))
	assert.FileExists(t, filepath.Join(dir, "facts", "f1.json"))
	assert.FileExists(t, filepath.Join(dir, "strategies", "st1.json"))

	// A fresh store on the same directory sees everything.
	reopened, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	session, err := reopened.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "vector databases", session.Topic)

	episodes, err := reopened.GetEpisodesBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Len(t, episodes[0].Actions, 1)
	params, ok := episodes[0].Actions[0].Parameters.(types.SearchParams)
	require.True(t, ok)
	assert.Equal(t, "hnsw index", params.Query)
	require.Len(t, episodes[0].Outcomes, 1)
	result, ok := episodes[0].Outcomes[0].Result.(types.SearchResult)
	require.True(t, ok)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "HNSW", result.Results[0].Title)

	facts, err := reopened.GetFactsByCategory(ctx, "vector-search")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "f1", facts[0].ID)

	strategy, err := reopened.GetStrategyByName(ctx, "survey-then-verify")
	require.NoError(t, err)
	assert.Equal(t, "st1", strategy.ID)

	feedback, err := reopened.GetFeedbackBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, feedback, 1)
}

func TestFileStoreDeleteRemovesFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, store.StoreFact(ctx, types.Fact{ID: "f1", Content: "x", Category: "general"}))
	path := filepath.Join(dir, "facts", "f1.json")
	require.FileExists(t, path)

	require.NoError(t, store.DeleteFact(ctx, "f1"))
	assert.NoFileExists(t, path)
}

func TestFileStoreSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.StoreFact(ctx, types.Fact{ID: "good", Content: "kept", Category: "general"}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "facts", "bad.json"), []byte("{not json"), 0o644))

	reopened, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	facts, err := reopened.ListFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "good", facts[0].ID)
}
