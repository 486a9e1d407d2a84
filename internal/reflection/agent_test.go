package reflection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/agent/types"
	"scout/internal/llm"
)

func baseState() *types.AgentState {
	return &types.AgentState{
		Goal: types.Goal{Description: "Survey WASM runtimes"},
		Progress: types.Progress{
			CurrentPhase: types.PhaseGathering,
			Confidence:   0.5,
		},
	}
}

func outcomes(results ...bool) []types.Outcome {
	out := make([]types.Outcome, len(results))
	for i, success := range results {
		out[i] = types.Outcome{Success: success}
	}
	return out
}

func TestShouldReflectTriggers(t *testing.T) {
	r := NewAgentReflector(&llm.FailingClient{}, 5, nil)

	// Routine interval.
	state := baseState()
	state.IterationCount = 5
	assert.True(t, r.ShouldReflect(state, 25))
	state.IterationCount = 4
	assert.False(t, r.ShouldReflect(state, 25))

	// Failure streak in the recent window.
	state = baseState()
	state.IterationCount = 2
	state.WorkingMemory.RecentOutcomes = outcomes(true, false, false, true, false)
	assert.True(t, r.ShouldReflect(state, 25))

	// Persistently low confidence, but only after a few iterations.
	state = baseState()
	state.Progress.Confidence = 0.3
	state.IterationCount = 3
	assert.True(t, r.ShouldReflect(state, 25))
	state.IterationCount = 2
	assert.False(t, r.ShouldReflect(state, 25))

	// Iteration budget nearly spent.
	state = baseState()
	state.IterationCount = 8
	assert.True(t, r.ShouldReflect(state, 10))

	// Fresh state fires nothing.
	assert.False(t, r.ShouldReflect(baseState(), 25))
}

func TestEvaluateStrategyCutoffs(t *testing.T) {
	state := baseState()

	state.WorkingMemory.RecentOutcomes = outcomes(true, true, true, false)
	eval := evaluateStrategy(state)
	assert.Equal(t, types.RecommendContinue, eval.Recommendation)
	assert.InDelta(t, 0.75, eval.Effectiveness, 1e-9)

	state.WorkingMemory.RecentOutcomes = outcomes(true, false)
	eval = evaluateStrategy(state)
	assert.Equal(t, types.RecommendAdjust, eval.Recommendation)

	state.WorkingMemory.RecentOutcomes = outcomes(false, false, true, false)
	eval = evaluateStrategy(state)
	assert.Equal(t, types.RecommendChange, eval.Recommendation)
	assert.Contains(t, eval.Weaknesses, "High failure rate")

	// No outcomes means no evidence of effectiveness.
	state.WorkingMemory.RecentOutcomes = nil
	eval = evaluateStrategy(state)
	assert.Zero(t, eval.Effectiveness)
	assert.Equal(t, types.RecommendChange, eval.Recommendation)
}

func TestEvaluateStrategyToolStrengths(t *testing.T) {
	state := baseState()
	state.WorkingMemory.RecentActions = []types.Action{
		{Type: types.ActionSearch, Tool: "web_search"},
		{Type: types.ActionSearch, Tool: "web_search"},
		{Type: types.ActionFetch, Tool: "web_fetch"},
		{Type: types.ActionFetch, Tool: "web_fetch"},
	}
	state.WorkingMemory.RecentOutcomes = outcomes(true, true, false, false)

	eval := evaluateStrategy(state)
	require.Len(t, eval.Strengths, 1, "only tools at or above 70%% success with two uses qualify")
	assert.Contains(t, eval.Strengths[0], "web_search")
}

func TestEvaluateStrategyStalledStep(t *testing.T) {
	state := baseState()
	state.WorkingMemory.RecentOutcomes = outcomes(true, true)
	state.Plan = &types.ResearchPlan{Steps: []types.PlannedStep{
		{ID: "1", Description: "Fetch the survey paper", Status: types.StepInProgress},
	}}

	state.IterationCount = 9
	assert.Empty(t, evaluateStrategy(state).Weaknesses)

	state.IterationCount = 10
	weaknesses := evaluateStrategy(state).Weaknesses
	require.Len(t, weaknesses, 1)
	assert.Contains(t, weaknesses[0], "Stalled step")
	assert.Contains(t, weaknesses[0], "Fetch the survey paper")
}

func TestToolPatternLearnings(t *testing.T) {
	actions := []types.Action{
		{Type: types.ActionSearch, Tool: "web_search"},
		{Type: types.ActionSearch, Tool: "web_search"},
		{Type: types.ActionFetch, Tool: "web_fetch"},
		{Type: types.ActionFetch, Tool: "web_fetch"},
		{Type: types.ActionFetch, Tool: "web_fetch"},
	}
	results := outcomes(true, true, false, false, true)

	learnings := toolPatternLearnings(actions, results)
	assert.Contains(t, learnings, "web_search is effective (2 successes)")
	assert.Contains(t, learnings, "web_fetch needs improvement (2 failures)")

	// A single success is not yet a pattern.
	assert.Empty(t, toolPatternLearnings(actions[:1], results[:1]))
}

func TestDetectRepetition(t *testing.T) {
	spin := make([]types.Action, 4)
	for i := range spin {
		spin[i] = types.Action{Type: types.ActionSearch}
	}
	spinning, actionType := detectRepetition(spin)
	assert.True(t, spinning)
	assert.Equal(t, types.ActionSearch, actionType)

	varied := []types.Action{
		{Type: types.ActionSearch},
		{Type: types.ActionFetch},
		{Type: types.ActionSearch},
		{Type: types.ActionAnalyze},
		{Type: types.ActionFetch},
		{Type: types.ActionSearch},
	}
	spinning, _ = detectRepetition(varied)
	assert.False(t, spinning)

	// Only the recent window counts: old repeats fall out of scope.
	old := append(spin, varied...)
	spinning, _ = detectRepetition(old)
	assert.False(t, spinning)
}

func TestReflectMechanicalOnly(t *testing.T) {
	r := NewAgentReflector(&llm.FailingClient{}, 5, nil)

	state := baseState()
	state.IterationCount = 5
	state.Progress.StepsCompleted = 4
	state.Progress.StepsTotal = 6
	state.Progress.SourcesGathered = 6
	state.Progress.FactsExtracted = 12
	state.Progress.Confidence = 0.8
	state.WorkingMemory.KeyFindings = []types.Finding{
		{Content: "f1"}, {Content: "f2"}, {Content: "f3"}, {Content: "f4"},
	}
	state.WorkingMemory.RecentActions = []types.Action{
		{Type: types.ActionSearch, Tool: "web_search"},
		{Type: types.ActionFetch, Tool: "web_fetch"},
	}
	state.WorkingMemory.RecentOutcomes = outcomes(true, true)

	reflection, err := r.Reflect(context.Background(), &types.Session{ID: "s1"}, state)
	require.NoError(t, err)

	assert.Equal(t, "s1", reflection.SessionID)
	assert.Equal(t, 5, reflection.IterationNumber)
	assert.True(t, reflection.ProgressAssessment.IsOnTrack)
	assert.Contains(t, reflection.ProgressAssessment.Achievements, "6 sources gathered")
	assert.Contains(t, reflection.ProgressAssessment.Achievements, "12 facts extracted")
	assert.Contains(t, reflection.ProgressAssessment.Achievements, "High confidence maintained")
	assert.Contains(t, reflection.ProgressAssessment.Achievements, "4 key findings")
	assert.Empty(t, reflection.ProgressAssessment.Blockers)
	assert.Equal(t, types.RecommendContinue, reflection.StrategyEvaluation.Recommendation)
	assert.False(t, reflection.ShouldReplan)
	assert.Equal(t, "Gather more relevant sources", reflection.NextFocus, "model unavailable leaves the phase default")
	assert.Equal(t, "search via web_search; fetch via web_fetch", reflection.ActionsSummary)
	assert.Equal(t, "success; success", reflection.OutcomesSummary)
}

func TestReflectBlockersAndReplan(t *testing.T) {
	r := NewAgentReflector(&llm.FailingClient{}, 5, nil)

	state := baseState()
	state.IterationCount = 5
	state.Progress.Confidence = 0.3
	state.WorkingMemory.OpenQuestions = []string{"q1", "q2", "q3", "q4", "q5", "q6"}
	state.WorkingMemory.RecentOutcomes = outcomes(false, false, false, false)

	reflection, err := r.Reflect(context.Background(), &types.Session{ID: "s1"}, state)
	require.NoError(t, err)

	assert.False(t, reflection.ProgressAssessment.IsOnTrack)
	blockers := reflection.ProgressAssessment.Blockers
	assert.Contains(t, blockers, "Frequent action failures")
	assert.Contains(t, blockers, "Low confidence in current approach")
	assert.Contains(t, blockers, "Too many unanswered questions")
	assert.Contains(t, blockers, "Insufficient sources gathered")
	assert.Equal(t, types.RecommendChange, reflection.StrategyEvaluation.Recommendation)
	assert.Empty(t, reflection.StrategyEvaluation.Alternatives, "model unavailable leaves no alternatives")
	assert.True(t, reflection.ShouldReplan)
}

func TestReflectOffTrackTriggersReplan(t *testing.T) {
	r := NewAgentReflector(&llm.FailingClient{}, 5, nil)

	// Healthy outcomes but no completed steps: off track by the step-rate
	// criterion alone.
	state := baseState()
	state.IterationCount = 8
	state.Progress.SourcesGathered = 3
	state.Progress.Confidence = 0.6
	state.WorkingMemory.RecentOutcomes = outcomes(true, true, true)

	reflection, err := r.Reflect(context.Background(), &types.Session{ID: "s1"}, state)
	require.NoError(t, err)
	assert.False(t, reflection.ProgressAssessment.IsOnTrack)
	assert.True(t, reflection.ShouldReplan)
}

func TestReflectFlagsRepetition(t *testing.T) {
	r := NewAgentReflector(&llm.FailingClient{}, 5, nil)

	state := baseState()
	state.IterationCount = 4
	for i := 0; i < 4; i++ {
		state.WorkingMemory.RecentActions = append(state.WorkingMemory.RecentActions,
			types.Action{Type: types.ActionSearch, Tool: "web_search"})
		state.WorkingMemory.RecentOutcomes = append(state.WorkingMemory.RecentOutcomes,
			types.Outcome{Success: true})
	}

	reflection, err := r.Reflect(context.Background(), &types.Session{ID: "s1"}, state)
	require.NoError(t, err)
	assert.Contains(t, reflection.Learnings, "Consider action diversity")
	assert.Contains(t, reflection.Adjustments, "Consider action diversity")
}

func TestReflectEnrichedByModel(t *testing.T) {
	mock := llm.NewMockClient()
	mock.QueueResponse(`{"learnings": ["Official docs beat blog posts"], "adjustments": ["Prefer primary sources"], "next_focus": "Compare wasmtime and wasmer"}`)
	r := NewAgentReflector(mock, 5, nil)

	state := baseState()
	state.IterationCount = 5
	state.Progress.StepsCompleted = 3
	state.WorkingMemory.RecentOutcomes = outcomes(true, true, true)

	reflection, err := r.Reflect(context.Background(), &types.Session{ID: "s1"}, state)
	require.NoError(t, err)

	assert.Contains(t, reflection.Learnings, "Official docs beat blog posts")
	assert.Contains(t, reflection.Adjustments, "Prefer primary sources")
	assert.Equal(t, "Compare wasmtime and wasmer", reflection.NextFocus)
}

func TestApplyReflectionAdjustsConfidence(t *testing.T) {
	r := NewAgentReflector(&llm.FailingClient{}, 5, nil)

	state := baseState()
	onTrack := &types.Reflection{ProgressAssessment: types.ProgressAssessment{IsOnTrack: true}}
	r.ApplyReflection(state, onTrack)
	assert.InDelta(t, 0.55, state.Progress.Confidence, 1e-9)
	assert.Len(t, state.Reflections, 1)

	offTrack := &types.Reflection{ProgressAssessment: types.ProgressAssessment{IsOnTrack: false}}
	r.ApplyReflection(state, offTrack)
	assert.InDelta(t, 0.5, state.Progress.Confidence, 1e-9)

	// Confidence clamps at the boundaries.
	state.Progress.Confidence = 0.02
	r.ApplyReflection(state, offTrack)
	assert.Zero(t, state.Progress.Confidence)
	state.Progress.Confidence = 0.98
	r.ApplyReflection(state, onTrack)
	assert.InDelta(t, 1.0, state.Progress.Confidence, 1e-9)
}

func TestEstimateRemaining(t *testing.T) {
	state := baseState()
	state.IterationCount = 4
	state.Progress.StepsCompleted = 2
	state.Progress.StepsTotal = 6

	// Rate 0.5 steps per iteration, 4 steps left.
	assert.InDelta(t, 8.0, estimateRemaining(state), 1e-9)

	state.Progress.StepsTotal = 0
	assert.Zero(t, estimateRemaining(state))
}
