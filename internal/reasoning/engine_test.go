package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/llm"
)

func researchTools() []ports.ToolSchema {
	names := []string{"web_search", "web_fetch", "analyze", "verify", "synthesize"}
	schemas := make([]ports.ToolSchema, len(names))
	for i, name := range names {
		schemas[i] = ports.ToolSchema{Name: name, Description: name + " tool"}
	}
	return schemas
}

func gatheringState() *types.AgentState {
	return &types.AgentState{
		Goal: types.Goal{Description: "Understand Go scheduler internals"},
		Progress: types.Progress{
			CurrentPhase: types.PhaseGathering,
			Confidence:   0.5,
		},
	}
}

func TestOptionScore(t *testing.T) {
	cheap := Option{Confidence: 0.8, EstimatedCost: 2}
	assert.InDelta(t, 0.7*0.8+0.3*0.8, cheap.Score(), 1e-9)

	// Cost clamps to [0, 10]; confidence clamps to [0, 1].
	assert.InDelta(t, 0.7+0.3, Option{Confidence: 2, EstimatedCost: -1}.Score(), 1e-9)
	assert.InDelta(t, 0.0, Option{Confidence: -1, EstimatedCost: 99}.Score(), 1e-9)
}

func TestPickBestTieKeepsFirst(t *testing.T) {
	a := Option{ID: "a", Confidence: 0.6, EstimatedCost: 3}
	b := Option{ID: "b", Confidence: 0.6, EstimatedCost: 3}
	winner := Option{ID: "w", Confidence: 0.9, EstimatedCost: 1}

	assert.Equal(t, "a", pickBest([]Option{a, b}).ID)
	assert.Equal(t, "w", pickBest([]Option{a, winner, b}).ID)
}

func TestReasonPicksBestOption(t *testing.T) {
	mock := llm.NewMockClient()
	mock.QueueResponse(`{"options": [
		{"id": "opt-1", "action_type": "search", "tool": "web_search", "reasoning": "broaden", "confidence": 0.4, "estimated_cost": 2},
		{"id": "opt-2", "action_type": "fetch", "tool": "web_fetch", "reasoning": "read top hit", "confidence": 0.9, "estimated_cost": 2}
	]}`)
	engine := New(mock, nil)

	session := &types.Session{ID: "s1"}
	action, err := engine.Reason(context.Background(), session, gatheringState(), nil, researchTools())
	require.NoError(t, err)

	assert.Equal(t, types.ActionFetch, action.Type)
	assert.Equal(t, "web_fetch", action.Tool)
	assert.Equal(t, "read top hit", action.Reasoning)
	assert.Equal(t, "s1", action.SessionID)
	assert.NotEmpty(t, action.ID)
}

func TestReasonFallsBackOnModelFailure(t *testing.T) {
	engine := New(&llm.FailingClient{}, nil)

	action, err := engine.Reason(context.Background(), &types.Session{ID: "s1"}, gatheringState(), nil, researchTools())
	require.NoError(t, err, "model failures never surface as errors")

	assert.Equal(t, types.ActionSearch, action.Type, "gathering defaults to search")
	assert.Equal(t, "web_search", action.Tool)
}

func TestReasonFallsBackOnUnparseableOutput(t *testing.T) {
	mock := llm.NewMockClient()
	mock.QueueResponse("I think you should probably search for more sources.")
	engine := New(mock, nil)

	state := gatheringState()
	state.Progress.CurrentPhase = types.PhaseSynthesizing
	action, err := engine.Reason(context.Background(), &types.Session{ID: "s1"}, state, nil, researchTools())
	require.NoError(t, err)
	assert.Equal(t, types.ActionSynthesize, action.Type)
	assert.Equal(t, "synthesize", action.Tool)
}

func TestReasonCancelledContext(t *testing.T) {
	engine := New(llm.NewMockClient(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Reason(ctx, &types.Session{ID: "s1"}, gatheringState(), nil, researchTools())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackDegradesOnMissingInputs(t *testing.T) {
	engine := New(&llm.FailingClient{}, nil)
	tools := researchTools()

	// Analyzing with nothing fetched yet degrades to fetch.
	state := gatheringState()
	state.Progress.CurrentPhase = types.PhaseAnalyzing
	opt := engine.fallbackOption(state, tools)
	assert.Equal(t, types.ActionFetch, opt.ActionType)
	assert.Equal(t, "web_fetch", opt.Tool)
	assert.Equal(t, "fallback-option", opt.ID)

	// Fetched content makes analyze viable.
	state.WorkingMemory.RecentOutcomes = []types.Outcome{
		{Success: true, Result: types.FetchResult{URL: "https://example.com/1", Content: "body text"}},
	}
	opt = engine.fallbackOption(state, tools)
	assert.Equal(t, types.ActionAnalyze, opt.ActionType)

	// Synthesizing with no facts degrades to analyze.
	state.Progress.CurrentPhase = types.PhaseSynthesizing
	opt = engine.fallbackOption(state, tools)
	assert.Equal(t, types.ActionAnalyze, opt.ActionType)

	state.Progress.FactsExtracted = 1
	opt = engine.fallbackOption(state, tools)
	assert.Equal(t, types.ActionSynthesize, opt.ActionType)
}

func TestReconcileToolAndType(t *testing.T) {
	tools := researchTools()

	// The named tool wins over a mismatched type.
	repaired := reconcileToolAndType(Option{ActionType: types.ActionSearch, Tool: "web_fetch"}, tools)
	assert.Equal(t, types.ActionFetch, repaired.ActionType)

	// An empty tool is filled from the type.
	filled := reconcileToolAndType(Option{ActionType: types.ActionVerify}, tools)
	assert.Equal(t, "verify", filled.Tool)

	// An unrecognized tool name leaves the type alone.
	odd := reconcileToolAndType(Option{ActionType: types.ActionSearch, Tool: "calculator"}, tools)
	assert.Equal(t, types.ActionSearch, odd.ActionType)
}

func TestObserveDeriveLearningsFromModel(t *testing.T) {
	mock := llm.NewMockClient()
	mock.QueueResponse(`{"learnings": ["The scheduler docs are authoritative", "Need more recent sources"]}`)
	engine := New(mock, nil)

	action := &types.Action{Type: types.ActionFetch, Tool: "web_fetch"}
	outcome := &types.Outcome{Success: true, Observations: []string{"Fetched content (1200 chars)"}}

	obs, err := engine.Observe(context.Background(), gatheringState(), action, outcome)
	require.NoError(t, err)
	assert.True(t, obs.ShouldContinue)
	assert.False(t, obs.ShouldReplan)
	require.Len(t, obs.Learnings, 2)
	assert.Equal(t, "The scheduler docs are authoritative", obs.Learnings[0])
}

func TestObserveMechanicalFallback(t *testing.T) {
	engine := New(&llm.FailingClient{}, nil)

	action := &types.Action{Type: types.ActionSearch, Tool: "web_search"}
	outcome := &types.Outcome{Success: false, Error: "rate limited"}

	obs, err := engine.Observe(context.Background(), gatheringState(), action, outcome)
	require.NoError(t, err)
	require.Len(t, obs.Learnings, 1)
	assert.Equal(t, "web_search failed: rate limited", obs.Learnings[0])
}

func TestShouldReplanOnFailure(t *testing.T) {
	state := gatheringState()

	// Any failed outcome is reason enough to revisit the plan.
	assert.True(t, shouldReplan(state, &types.Outcome{Success: false}))
	assert.False(t, shouldReplan(state, &types.Outcome{Success: true}))

	// A failure streak already sitting in working memory also triggers,
	// even when the current action succeeded.
	state.WorkingMemory.RecentOutcomes = []types.Outcome{
		{Success: false},
		{Success: false},
		{Success: false},
	}
	assert.True(t, shouldReplan(state, &types.Outcome{Success: true}))

	state.WorkingMemory.RecentOutcomes[1].Success = true
	assert.False(t, shouldReplan(state, &types.Outcome{Success: true}))
}

func TestShouldContinue(t *testing.T) {
	state := gatheringState()

	assert.True(t, shouldContinue(state, &types.Outcome{Success: true}))
	assert.True(t, shouldContinue(state, &types.Outcome{Success: false}),
		"a failure at healthy confidence keeps going")

	// A failure below the abort floor stops the run.
	state.Progress.Confidence = 0.25
	assert.False(t, shouldContinue(state, &types.Outcome{Success: false}))
	assert.True(t, shouldContinue(state, &types.Outcome{Success: true}))

	// A completed session never continues.
	state = gatheringState()
	state.Progress.CurrentPhase = types.PhaseCompleted
	assert.False(t, shouldContinue(state, &types.Outcome{Success: true}))
}

func TestShouldReplanLowConfidence(t *testing.T) {
	state := gatheringState()
	state.Progress.Confidence = 0.3
	state.Progress.StepsCompleted = 5

	assert.True(t, shouldReplan(state, &types.Outcome{Success: true}))

	// Not enough completed steps yet for the low-confidence rule.
	state.Progress.StepsCompleted = 4
	assert.False(t, shouldReplan(state, &types.Outcome{Success: true}))
}
