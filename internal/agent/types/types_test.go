package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingMemoryTrim(t *testing.T) {
	wm := WorkingMemory{}
	for i := 0; i < WorkingMemoryWindow+15; i++ {
		wm.RecentActions = append(wm.RecentActions, Action{ID: fmt.Sprintf("action-%d", i)})
		wm.RecentOutcomes = append(wm.RecentOutcomes, Outcome{ActionID: fmt.Sprintf("action-%d", i)})
		wm.OpenQuestions = append(wm.OpenQuestions, fmt.Sprintf("q%d", i))
	}

	wm.Trim()

	assert.Len(t, wm.RecentActions, WorkingMemoryWindow)
	assert.Len(t, wm.RecentOutcomes, WorkingMemoryWindow)
	assert.Len(t, wm.OpenQuestions, WorkingMemoryWindow)
	// Oldest entries drop first.
	assert.Equal(t, "action-15", wm.RecentActions[0].ID)
	assert.Equal(t, fmt.Sprintf("action-%d", WorkingMemoryWindow+14), wm.RecentActions[len(wm.RecentActions)-1].ID)
}

func TestWorkingMemoryTrimUnderLimit(t *testing.T) {
	wm := WorkingMemory{
		RecentActions: []Action{{ID: "a"}, {ID: "b"}},
	}
	wm.Trim()
	assert.Len(t, wm.RecentActions, 2)
}

func TestPhaseOrdering(t *testing.T) {
	assert.True(t, PhasePlanning.Before(PhaseGathering))
	assert.True(t, PhaseGathering.Before(PhaseAnalyzing))
	assert.True(t, PhaseAnalyzing.Before(PhaseVerifying))
	assert.True(t, PhaseVerifying.Before(PhaseSynthesizing))
	assert.True(t, PhaseSynthesizing.Before(PhaseCompleted))

	assert.False(t, PhaseSynthesizing.Before(PhaseGathering))
	assert.False(t, PhaseGathering.Before(PhaseGathering))
}

func TestDecodeActionResultSearch(t *testing.T) {
	data := map[string]any{
		"results": []any{
			map[string]any{"title": "A", "url": "https://a.example", "snippet": "alpha", "score": 0.9},
			map[string]any{"title": "B", "url": "https://b.example"},
		},
	}

	decoded := DecodeActionResult(ActionSearch, data)
	search, ok := decoded.(SearchResult)
	require.True(t, ok)
	require.Len(t, search.Results, 2)
	assert.Equal(t, "https://a.example", search.Results[0].URL)
	assert.InDelta(t, 0.9, search.Results[0].Score, 1e-9)
	assert.Empty(t, search.Results[1].Snippet)
}

func TestDecodeActionResultAnalyzeAndExtract(t *testing.T) {
	data := map[string]any{"facts": []any{"one", "two", 3}}

	for _, kind := range []ActionType{ActionAnalyze, ActionExtract} {
		decoded := DecodeActionResult(kind, data)
		analyze, ok := decoded.(AnalyzeResult)
		require.True(t, ok, "kind %s", kind)
		assert.Equal(t, []string{"one", "two"}, analyze.Facts)
	}
}

func TestDecodeActionResultNil(t *testing.T) {
	assert.Nil(t, DecodeActionResult(ActionSearch, nil))
	assert.Nil(t, DecodeActionResult(ActionReflect, map[string]any{}))
}

func TestParamsRoundTrip(t *testing.T) {
	search := SearchParams{Query: "go concurrency", MaxResults: 5}
	assert.Equal(t, ActionSearch, search.Kind())
	assert.Equal(t, map[string]any{"query": "go concurrency", "max_results": 5}, search.ToMap())

	verify := VerifyParams{Claim: "x", Evidence: []string{"e1"}}
	m := verify.ToMap()
	assert.Equal(t, "x", m["claim"])
	assert.Equal(t, []any{"e1"}, m["evidence"])

	fetch := FetchParams{URL: "https://example.com"}
	assert.Equal(t, map[string]any{"url": "https://example.com"}, fetch.ToMap())
}
