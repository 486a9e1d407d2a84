// Package reflection implements the agent's meta-cognition: periodic
// assessment of progress and strategy during a run, and cross-session
// analysis of accumulated memory.
package reflection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/llmjson"
	"scout/internal/logging"
	"scout/internal/utils/id"
)

// DefaultInterval is the iteration spacing between routine reflections.
const DefaultInterval = 5

// Trigger thresholds.
const (
	failureWindow        = 5
	failureThreshold     = 3
	lowConfidence        = 0.4
	lowConfidenceMinIter = 3
	budgetWarningRatio   = 0.8
)

// Strategy evaluation cutoffs.
const (
	effectivenessContinue = 0.7
	effectivenessAdjust   = 0.4
	highFailureCutoff     = 0.5
)

// On-track criteria.
const (
	onTrackStepRate   = 0.15
	onTrackMinSuccess = 0.5
	onTrackMinConf    = 0.5
)

// Blocker and achievement thresholds.
const (
	maxOpenQuestions  = 5
	minSourcesHealthy = 2
	achieveSources    = 5
	achieveFacts      = 10
	achieveConfidence = 0.7
	achieveFindings   = 3
)

// Per-tool pattern thresholds.
const (
	strongToolRate    = 0.7
	strongToolMinUses = 2
	patternMinCount   = 2
)

// stalledStepIterations is how long a step may sit in progress before it
// counts as stalled.
const stalledStepIterations = 10

// Repetition detector: this many identical action types in the recent window
// counts as spinning.
const (
	repetitionWindow    = 6
	repetitionThreshold = 4
)

// AgentReflector produces in-loop reflections for a running session.
type AgentReflector struct {
	llm      ports.LLMClient
	clock    ports.Clock
	logger   logging.Logger
	interval int
}

// NewAgentReflector creates a reflector. A non-positive interval uses the
// default.
func NewAgentReflector(llm ports.LLMClient, interval int, logger logging.Logger) *AgentReflector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &AgentReflector{
		llm:      llm,
		clock:    ports.SystemClock{},
		logger:   logging.OrNop(logger),
		interval: interval,
	}
}

// SetClock overrides the reflector clock (tests).
func (r *AgentReflector) SetClock(clock ports.Clock) { r.clock = clock }

// ShouldReflect reports whether any reflection trigger fires: the routine
// interval, a failure streak, persistently low confidence, or the iteration
// budget running out.
func (r *AgentReflector) ShouldReflect(state *types.AgentState, maxIterations int) bool {
	iter := state.IterationCount
	if iter > 0 && iter%r.interval == 0 {
		return true
	}
	if recentFailures(state.WorkingMemory.RecentOutcomes, failureWindow) >= failureThreshold {
		return true
	}
	if state.Progress.Confidence < lowConfidence && iter >= lowConfidenceMinIter {
		return true
	}
	if maxIterations > 0 && float64(iter) >= budgetWarningRatio*float64(maxIterations) {
		return true
	}
	return false
}

// Reflect assesses the session so far. The quantitative assessment is
// mechanical; the LLM contributes learnings and adjustments when available.
func (r *AgentReflector) Reflect(ctx context.Context, session *types.Session, state *types.AgentState) (*types.Reflection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reflection := &types.Reflection{
		ID:              id.NewReflectionID(),
		SessionID:       session.ID,
		IterationNumber: state.IterationCount,
		Timestamp:       r.clock.Now(),
	}

	reflection.ProgressAssessment = assessProgress(state)
	reflection.StrategyEvaluation = evaluateStrategy(state)
	reflection.ActionsSummary = summarizeActions(state.WorkingMemory.RecentActions)
	reflection.OutcomesSummary = summarizeOutcomes(state.WorkingMemory.RecentOutcomes)

	reflection.Learnings = toolPatternLearnings(state.WorkingMemory.RecentActions, state.WorkingMemory.RecentOutcomes)
	if spinning, _ := detectRepetition(state.WorkingMemory.RecentActions); spinning {
		reflection.Learnings = append(reflection.Learnings, "Consider action diversity")
	}

	if reflection.StrategyEvaluation.Recommendation == types.RecommendChange {
		reflection.StrategyEvaluation.Alternatives = r.suggestAlternatives(ctx, state)
	}

	reflection.ShouldReplan = !reflection.ProgressAssessment.IsOnTrack ||
		reflection.StrategyEvaluation.Recommendation == types.RecommendChange ||
		recentFailures(state.WorkingMemory.RecentOutcomes, failureWindow) >= failureThreshold

	reflection.Adjustments = append([]string(nil), reflection.Learnings...)
	if reflection.StrategyEvaluation.Recommendation == types.RecommendAdjust {
		reflection.Adjustments = append(reflection.Adjustments, "Refine current strategy based on observations")
	}

	r.enrichWithLLM(ctx, state, reflection)

	if reflection.NextFocus == "" {
		reflection.NextFocus = defaultFocus(state.Progress.CurrentPhase)
	}

	r.logger.Info("Reflection at iteration %d: on_track=%v effectiveness=%.2f replan=%v",
		state.IterationCount, reflection.ProgressAssessment.IsOnTrack,
		reflection.StrategyEvaluation.Effectiveness, reflection.ShouldReplan)
	return reflection, nil
}

// ApplyReflection records the reflection on the state and folds its verdict
// into confidence. On-track sessions gain a little confidence; off-track
// sessions lose a little.
func (r *AgentReflector) ApplyReflection(state *types.AgentState, reflection *types.Reflection) {
	state.Reflections = append(state.Reflections, *reflection)
	if reflection.ProgressAssessment.IsOnTrack {
		state.Progress.Confidence = clamp01(state.Progress.Confidence + 0.05)
	} else {
		state.Progress.Confidence = clamp01(state.Progress.Confidence - 0.05)
	}
}

func assessProgress(state *types.AgentState) types.ProgressAssessment {
	assessment := types.ProgressAssessment{}

	iter := state.IterationCount
	if iter > 0 {
		assessment.ProgressRate = float64(state.Progress.StepsCompleted) / float64(iter)
	}

	p := state.Progress
	rate := successRate(state.WorkingMemory.RecentOutcomes)
	assessment.IsOnTrack = float64(p.StepsCompleted) > onTrackStepRate*float64(iter) &&
		rate >= onTrackMinSuccess &&
		p.Confidence >= onTrackMinConf

	if rate < onTrackMinSuccess {
		assessment.Blockers = append(assessment.Blockers, "Frequent action failures")
	}
	if p.Confidence < lowConfidence {
		assessment.Blockers = append(assessment.Blockers, "Low confidence in current approach")
	}
	if len(state.WorkingMemory.OpenQuestions) > maxOpenQuestions {
		assessment.Blockers = append(assessment.Blockers, "Too many unanswered questions")
	}
	if p.SourcesGathered < minSourcesHealthy {
		assessment.Blockers = append(assessment.Blockers, "Insufficient sources gathered")
	}

	if p.SourcesGathered >= achieveSources {
		assessment.Achievements = append(assessment.Achievements,
			fmt.Sprintf("%d sources gathered", p.SourcesGathered))
	}
	if p.FactsExtracted >= achieveFacts {
		assessment.Achievements = append(assessment.Achievements,
			fmt.Sprintf("%d facts extracted", p.FactsExtracted))
	}
	if p.Confidence >= achieveConfidence {
		assessment.Achievements = append(assessment.Achievements, "High confidence maintained")
	}
	if n := len(state.WorkingMemory.KeyFindings); n >= achieveFindings {
		assessment.Achievements = append(assessment.Achievements,
			fmt.Sprintf("%d key findings", n))
	}

	if remaining := estimateRemaining(state); remaining > 0 {
		assessment.EstimatedCompletion = remaining
	}
	return assessment
}

// estimateRemaining projects iterations left from the current progress rate.
func estimateRemaining(state *types.AgentState) float64 {
	p := state.Progress
	if p.StepsTotal == 0 || state.IterationCount == 0 {
		return 0
	}
	rate := float64(p.StepsCompleted) / float64(state.IterationCount)
	if rate <= 0 {
		return 0
	}
	return float64(p.StepsTotal-p.StepsCompleted) / rate
}

func evaluateStrategy(state *types.AgentState) types.StrategyEvaluation {
	outcomes := state.WorkingMemory.RecentOutcomes
	eval := types.StrategyEvaluation{Effectiveness: successRate(outcomes)}

	switch {
	case eval.Effectiveness >= effectivenessContinue:
		eval.Recommendation = types.RecommendContinue
	case eval.Effectiveness >= effectivenessAdjust:
		eval.Recommendation = types.RecommendAdjust
	default:
		eval.Recommendation = types.RecommendChange
	}

	for _, stat := range toolStats(state.WorkingMemory.RecentActions, outcomes) {
		if stat.uses >= strongToolMinUses && stat.rate() >= strongToolRate {
			eval.Strengths = append(eval.Strengths,
				fmt.Sprintf("%s is working well (%d of %d uses succeeded)", stat.tool, stat.successes, stat.uses))
		}
	}

	if eval.Effectiveness < highFailureCutoff {
		eval.Weaknesses = append(eval.Weaknesses, "High failure rate")
	}
	if stalled, description := stalledStep(state); stalled {
		eval.Weaknesses = append(eval.Weaknesses, "Stalled step: "+description)
	}
	return eval
}

// successRate is the fraction of successful outcomes; zero when there are
// none.
func successRate(outcomes []types.Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	successes := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(outcomes))
}

type toolStat struct {
	tool      string
	uses      int
	successes int
}

func (s toolStat) rate() float64 {
	if s.uses == 0 {
		return 0
	}
	return float64(s.successes) / float64(s.uses)
}

// toolStats pairs actions with their outcomes by position and aggregates
// per-tool success counts, sorted by tool name.
func toolStats(actions []types.Action, outcomes []types.Outcome) []toolStat {
	n := len(actions)
	if len(outcomes) < n {
		n = len(outcomes)
	}
	byTool := make(map[string]*toolStat)
	for i := 0; i < n; i++ {
		tool := actions[i].Tool
		if tool == "" {
			tool = string(actions[i].Type)
		}
		stat, ok := byTool[tool]
		if !ok {
			stat = &toolStat{tool: tool}
			byTool[tool] = stat
		}
		stat.uses++
		if outcomes[i].Success {
			stat.successes++
		}
	}

	out := make([]toolStat, 0, len(byTool))
	for _, stat := range byTool {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].tool < out[j].tool })
	return out
}

// toolPatternLearnings turns per-tool histories into learnings: tools that
// only ever succeed are effective, tools that keep failing need work.
func toolPatternLearnings(actions []types.Action, outcomes []types.Outcome) []string {
	var learnings []string
	for _, stat := range toolStats(actions, outcomes) {
		failures := stat.uses - stat.successes
		if stat.successes >= patternMinCount && failures == 0 {
			learnings = append(learnings, fmt.Sprintf("%s is effective (%d successes)", stat.tool, stat.successes))
		}
		if failures >= patternMinCount {
			learnings = append(learnings, fmt.Sprintf("%s needs improvement (%d failures)", stat.tool, failures))
		}
	}
	return learnings
}

// stalledStep reports a plan step stuck in progress for a long session.
func stalledStep(state *types.AgentState) (bool, string) {
	if state.Plan == nil || state.IterationCount < stalledStepIterations {
		return false, ""
	}
	for _, step := range state.Plan.Steps {
		if step.Status == types.StepInProgress {
			return true, step.Description
		}
	}
	return false, ""
}

// detectRepetition reports whether one action type dominates the recent
// window.
func detectRepetition(actions []types.Action) (bool, types.ActionType) {
	if len(actions) > repetitionWindow {
		actions = actions[len(actions)-repetitionWindow:]
	}
	counts := make(map[types.ActionType]int)
	for _, action := range actions {
		counts[action.Type]++
		if counts[action.Type] >= repetitionThreshold {
			return true, action.Type
		}
	}
	return false, ""
}

// suggestAlternatives asks the model for replacement strategies when the
// current one is failing. Best effort: model failures yield nothing.
func (r *AgentReflector) suggestAlternatives(ctx context.Context, state *types.AgentState) []string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GOAL: %s\nPhase: %s\n", state.Goal.Description, state.Progress.CurrentPhase)
	sb.WriteString("The current research strategy is failing. ")
	sb.WriteString("List 2-3 alternative strategies, one per line, each starting with \"- \".")

	resp, err := r.llm.Complete(ctx, ports.CompletionRequest{
		Messages:    []ports.Message{{Role: "user", Content: sb.String()}},
		Temperature: 0.5,
		MaxTokens:   256,
	})
	if err != nil {
		r.logger.Debug("Alternative strategies unavailable: %v", err)
		return nil
	}

	var alternatives []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			alternatives = append(alternatives, strings.TrimPrefix(line, "- "))
		}
	}
	return alternatives
}

func (r *AgentReflector) enrichWithLLM(ctx context.Context, state *types.AgentState, reflection *types.Reflection) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GOAL: %s\n\nRECENT ACTIONS:\n%s\n\nRECENT OUTCOMES:\n%s\n",
		state.Goal.Description, reflection.ActionsSummary, reflection.OutcomesSummary)
	fmt.Fprintf(&sb, "\nEffectiveness so far: %.2f. Phase: %s.\n",
		reflection.StrategyEvaluation.Effectiveness, state.Progress.CurrentPhase)
	sb.WriteString("\nReflect on this research session. Respond with JSON:\n")
	sb.WriteString(`{"learnings": ["..."], "adjustments": ["..."], "next_focus": "..."}`)

	resp, err := r.llm.Complete(ctx, ports.CompletionRequest{
		Messages:     []ports.Message{{Role: "user", Content: sb.String()}},
		SystemPrompt: "You critique an autonomous research agent's progress. Be specific and actionable.",
		Temperature:  0.3,
		MaxTokens:    512,
	})
	if err != nil {
		r.logger.Warn("Reflection LLM call failed, using mechanical assessment only: %v", err)
		return
	}

	var parsed struct {
		Learnings   []string `json:"learnings"`
		Adjustments []string `json:"adjustments"`
		NextFocus   string   `json:"next_focus"`
	}
	if err := llmjson.Parse(resp.Content, &parsed); err != nil {
		r.logger.Warn("Reflection output unparseable: %v", err)
		return
	}
	reflection.Learnings = append(reflection.Learnings, parsed.Learnings...)
	reflection.Adjustments = append(reflection.Adjustments, parsed.Adjustments...)
	reflection.NextFocus = parsed.NextFocus
}

func summarizeActions(actions []types.Action) string {
	if len(actions) == 0 {
		return "no actions yet"
	}
	parts := make([]string, 0, len(actions))
	for _, action := range actions {
		parts = append(parts, fmt.Sprintf("%s via %s", action.Type, action.Tool))
	}
	return strings.Join(parts, "; ")
}

func summarizeOutcomes(outcomes []types.Outcome) string {
	if len(outcomes) == 0 {
		return "no outcomes yet"
	}
	parts := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Success {
			parts = append(parts, "success")
		} else if outcome.Error != "" {
			parts = append(parts, "failure: "+outcome.Error)
		} else {
			parts = append(parts, "failure")
		}
	}
	return strings.Join(parts, "; ")
}

func defaultFocus(phase types.Phase) string {
	switch phase {
	case types.PhasePlanning, types.PhaseGathering:
		return "Gather more relevant sources"
	case types.PhaseAnalyzing:
		return "Extract facts from gathered sources"
	case types.PhaseVerifying:
		return "Verify the key claims"
	case types.PhaseSynthesizing:
		return "Synthesize the findings into an answer"
	default:
		return "Continue the research"
	}
}

func recentFailures(outcomes []types.Outcome, window int) int {
	if len(outcomes) > window {
		outcomes = outcomes[len(outcomes)-window:]
	}
	failures := 0
	for _, outcome := range outcomes {
		if !outcome.Success {
			failures++
		}
	}
	return failures
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
