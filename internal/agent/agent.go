// Package agent runs the research control loop: plan, reason, act, observe,
// reflect. The loop owns all mutable session state; every collaborator is
// reached through its port.
package agent

import (
	"context"
	"fmt"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/logging"
	"scout/internal/memory"
	"scout/internal/reasoning"
	"scout/internal/reflection"
	"scout/internal/toolregistry"
)

// DefaultMaxIterations bounds a research run when the config gives no limit.
const DefaultMaxIterations = 25

// Confidence moves per outcome, clamped to [0,1].
const (
	confidenceGainOnSuccess = 0.1
	confidenceLossOnFailure = 0.05
)

// Goal completion thresholds.
const (
	goalMinConfidence = 0.7
	goalMinFacts      = 10
	goalMinSources    = 5
)

// Phase advancement thresholds.
const (
	phaseAnalyzingMinSources  = 5
	phaseSynthesizingMinFacts = 10
)

// Config tunes a research run.
type Config struct {
	MaxIterations        int
	ReflectionInterval   int
	MaxContextTokens     int
	EnableAutoReflection bool
}

// Agent is the autonomous research agent.
type Agent struct {
	llm       ports.LLMClient
	memory    *memory.System
	registry  *toolregistry.Registry
	reasoner  *reasoning.Engine
	reflector *reflection.AgentReflector
	clock     ports.Clock
	logger    logging.Logger
	cfg       Config
}

// New wires an agent from its collaborators.
func New(llm ports.LLMClient, mem *memory.System, registry *toolregistry.Registry, cfg Config, logger logging.Logger) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	logger = logging.OrNop(logger)
	return &Agent{
		llm:       llm,
		memory:    mem,
		registry:  registry,
		reasoner:  reasoning.New(llm, logger),
		reflector: reflection.NewAgentReflector(llm, cfg.ReflectionInterval, logger),
		clock:     ports.SystemClock{},
		logger:    logger,
		cfg:       cfg,
	}
}

// SetClock overrides the agent clock (tests).
func (a *Agent) SetClock(clock ports.Clock) {
	a.clock = clock
	a.reflector.SetClock(clock)
}

// Research runs a full research session for the topic. Errors never escape:
// panics, cancellation, and failures all land in the ExecutionResult.
func (a *Agent) Research(ctx context.Context, topic string, goal types.Goal, userID string) (result *types.ExecutionResult) {
	result = &types.ExecutionResult{}
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("Research run panicked: %v", rec)
			result.Success = false
			result.Error = fmt.Sprintf("internal error: %v", rec)
		}
	}()

	session, err := a.memory.Sessions.StartSession(ctx, topic, goal, userID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	started := a.clock.Now()

	state := &types.AgentState{
		Goal: goal,
		Progress: types.Progress{
			CurrentPhase: types.PhasePlanning,
			Confidence:   0.5,
		},
	}

	state.Plan = a.createPlan(ctx, session, state)
	state.Progress.StepsTotal = len(state.Plan.Steps)
	state.Progress.CurrentPhase = types.PhaseGathering

	synthesis := a.runLoop(ctx, session, state, result)

	status := types.SessionCompleted
	switch {
	case result.Error == "cancelled":
		status = types.SessionCancelled
	case result.Error != "":
		status = types.SessionFailed
	}

	research := a.buildResult(ctx, session, state, synthesis, started)
	result.Result = research
	result.Iterations = state.IterationCount
	result.Reflections = len(state.Reflections)
	if result.Error == "" {
		result.Success = isGoalComplete(state.Progress)
		if !result.Success && synthesis != "" {
			// A synthesis below the completion bar is still a usable answer.
			result.Success = true
		}
	}

	a.recordStrategyOutcome(ctx, state, result.Success, a.clock.Now().Sub(started))
	if err := a.memory.Sessions.CompleteSession(ctx, status); err != nil {
		a.logger.Warn("Completing session %s failed: %v", session.ID, err)
	}
	return result
}

// runLoop executes iterations until the goal completes, the budget runs out,
// or the context is cancelled. Returns the synthesis text if one was
// produced.
func (a *Agent) runLoop(ctx context.Context, session *types.Session, state *types.AgentState, result *types.ExecutionResult) string {
	synthesis := ""

	for state.IterationCount < a.cfg.MaxIterations {
		if ctx.Err() != nil {
			result.Error = "cancelled"
			return synthesis
		}
		state.IterationCount++

		memCtx, err := a.memory.BuildContext(ctx, session.Topic, a.availableToolNames(), a.cfg.MaxContextTokens)
		if err != nil {
			if ctx.Err() != nil {
				result.Error = "cancelled"
				return synthesis
			}
			a.logger.Warn("Context build failed, reasoning without memory: %v", err)
			memCtx = nil
		}

		action, err := a.reasoner.Reason(ctx, session, state, memCtx, a.registry.GetToolSchemas())
		if err != nil {
			result.Error = "cancelled"
			return synthesis
		}
		action.Timestamp = a.clock.Now()

		outcome := a.executeAction(ctx, session, state, action)

		state.WorkingMemory.RecentActions = append(state.WorkingMemory.RecentActions, *action)
		state.WorkingMemory.RecentOutcomes = append(state.WorkingMemory.RecentOutcomes, *outcome)
		state.LastActionTimestamp = action.Timestamp

		a.applyOutcome(state, action, outcome)
		if advancePlan(state.Plan, action.Type, outcome.Success) {
			state.Progress.StepsCompleted++
		}
		advancePhase(&state.Progress)

		if synth, ok := outcome.Result.(types.SynthesizeResult); ok && outcome.Success {
			synthesis = synth.Synthesis
		}

		observation, err := a.reasoner.Observe(ctx, state, action, outcome)
		if err != nil {
			result.Error = "cancelled"
			return synthesis
		}
		for _, learning := range observation.Learnings {
			a.logger.Debug("Learning: %s", learning)
		}

		experience, err := a.memory.StoreExperience(ctx, a.iterationEpisode(session, state, action, outcome, observation))
		if err != nil {
			a.logger.Warn("Storing experience failed: %v", err)
		}

		shouldReflect := a.cfg.EnableAutoReflection &&
			((experience != nil && experience.ShouldReflect) || a.reflector.ShouldReflect(state, a.cfg.MaxIterations))
		if shouldReflect {
			if reflected := a.reflect(ctx, session, state); reflected != nil && reflected.ShouldReplan {
				observation.ShouldReplan = true
			}
		}

		if observation.ShouldReplan {
			a.replan(ctx, session, state, replanReason(state, outcome))
		}

		state.WorkingMemory.Trim()

		if !observation.ShouldContinue {
			a.logger.Info("Stopping after iteration %d: observation ended the run", state.IterationCount)
			break
		}
		if isGoalComplete(state.Progress) && synthesis != "" {
			a.logger.Info("Goal complete after %d iterations", state.IterationCount)
			state.Progress.CurrentPhase = types.PhaseCompleted
			break
		}
	}
	return synthesis
}

// executeAction binds parameters and dispatches through the registry. Binding
// failures become failed outcomes so the loop can learn from them.
func (a *Agent) executeAction(ctx context.Context, session *types.Session, state *types.AgentState, action *types.Action) *types.Outcome {
	outcome := &types.Outcome{
		ActionID:  action.ID,
		Timestamp: a.clock.Now(),
	}

	if err := bindParameters(action, session, state); err != nil {
		outcome.Success = false
		outcome.Error = err.Error()
		outcome.Observations = []string{"Could not prepare the action: " + err.Error()}
		return outcome
	}
	if action.Parameters == nil {
		outcome.Success = false
		outcome.Error = fmt.Sprintf("action %s has no tool dispatch", action.Type)
		return outcome
	}

	start := a.clock.Now()
	toolResult := a.registry.ExecuteTool(ctx, action.Tool, action.Parameters.ToMap(), ports.ToolContext{
		SessionID: session.ID,
		Logger:    a.logger,
	})
	outcome.Duration = a.clock.Now().Sub(start)

	outcome.Success = toolResult.Success
	outcome.Error = toolResult.Error
	outcome.Metadata = toolResult.Metadata
	if toolResult.Success {
		outcome.Result = types.DecodeActionResult(action.Type, toolResult.Data)
		outcome.Observations = observationsFor(outcome.Result)
	} else {
		outcome.Observations = []string{fmt.Sprintf("%s failed: %s", action.Tool, toolResult.Error)}
	}
	return outcome
}

// observationsFor produces the kind-specific one-line observation.
func observationsFor(result types.ActionResult) []string {
	switch r := result.(type) {
	case types.SearchResult:
		return []string{fmt.Sprintf("Found %d results", len(r.Results))}
	case types.FetchResult:
		return []string{fmt.Sprintf("Fetched content (%d chars)", len(r.Content))}
	case types.AnalyzeResult:
		return []string{fmt.Sprintf("Extracted %d facts", len(r.Facts))}
	case types.VerifyResult:
		return []string{fmt.Sprintf("Verification: %s", r.Status)}
	case types.SynthesizeResult:
		return []string{"Generated synthesis"}
	}
	return nil
}

// applyOutcome moves confidence, updates counters, and harvests findings.
func (a *Agent) applyOutcome(state *types.AgentState, action *types.Action, outcome *types.Outcome) {
	if outcome.Success {
		state.Progress.Confidence = clamp01(state.Progress.Confidence + confidenceGainOnSuccess)
	} else {
		state.Progress.Confidence = clamp01(state.Progress.Confidence - confidenceLossOnFailure)
	}
	if !outcome.Success {
		return
	}

	switch r := outcome.Result.(type) {
	case types.SearchResult:
		state.Progress.SourcesGathered += len(r.Results)
	case types.AnalyzeResult:
		state.Progress.FactsExtracted += len(r.Facts)
		for _, fact := range r.Facts {
			state.WorkingMemory.KeyFindings = append(state.WorkingMemory.KeyFindings, types.Finding{
				Content:            fact,
				Confidence:         0.6,
				Relevance:          0.8,
				Timestamp:          outcome.Timestamp,
				VerificationStatus: types.VerificationUnverified,
			})
		}
	case types.VerifyResult:
		if params, ok := action.Parameters.(types.VerifyParams); ok {
			markFinding(state, params.Claim, r.Status)
		}
	}
}

func markFinding(state *types.AgentState, claim string, status types.VerificationStatus) {
	for i := range state.WorkingMemory.KeyFindings {
		if state.WorkingMemory.KeyFindings[i].Content == claim {
			state.WorkingMemory.KeyFindings[i].VerificationStatus = status
			return
		}
	}
}

// advancePhase moves the phase forward when its thresholds are met. Phases
// never move backward.
func advancePhase(progress *types.Progress) {
	if progress.CurrentPhase == types.PhaseGathering && progress.SourcesGathered >= phaseAnalyzingMinSources {
		progress.CurrentPhase = types.PhaseAnalyzing
	}
	if progress.CurrentPhase == types.PhaseAnalyzing && progress.FactsExtracted >= phaseSynthesizingMinFacts {
		progress.CurrentPhase = types.PhaseSynthesizing
	}
}

// isGoalComplete is the completion predicate: synthesis phase reached with
// enough confidence, facts, and sources.
func isGoalComplete(progress types.Progress) bool {
	return !progress.CurrentPhase.Before(types.PhaseSynthesizing) &&
		progress.Confidence >= goalMinConfidence &&
		progress.FactsExtracted >= goalMinFacts &&
		progress.SourcesGathered >= goalMinSources
}

func (a *Agent) reflect(ctx context.Context, session *types.Session, state *types.AgentState) *types.Reflection {
	reflected, err := a.reflector.Reflect(ctx, session, state)
	if err != nil {
		a.logger.Warn("Reflection failed: %v", err)
		return nil
	}
	a.reflector.ApplyReflection(state, reflected)
	a.memory.ResetReflectionCounter()
	return reflected
}

func replanReason(state *types.AgentState, outcome *types.Outcome) string {
	if outcome.Error != "" {
		return "recent failures: " + outcome.Error
	}
	return fmt.Sprintf("low confidence (%.2f) after %d steps", state.Progress.Confidence, state.Progress.StepsCompleted)
}

// iterationEpisode packages one iteration as an episodic memory.
func (a *Agent) iterationEpisode(session *types.Session, state *types.AgentState, action *types.Action, outcome *types.Outcome, observation *reasoning.Observation) types.EpisodicMemory {
	summary := ""
	if len(observation.Learnings) > 0 {
		summary = observation.Learnings[0]
	} else if len(outcome.Observations) > 0 {
		summary = outcome.Observations[0]
	}
	return types.EpisodicMemory{
		SessionID: session.ID,
		Topic:     session.Topic,
		Actions:   []types.Action{*action},
		Outcomes:  []types.Outcome{*outcome},
		Duration:  outcome.Duration,
		Success:   outcome.Success,
		Summary:   summary,
		Tags:      []string{string(action.Type), string(state.Progress.CurrentPhase)},
	}
}

// buildResult assembles the final research artifact. When the loop produced
// no synthesis, a last direct attempt is made; failing that, the findings are
// listed verbatim.
func (a *Agent) buildResult(ctx context.Context, session *types.Session, state *types.AgentState, synthesis string, started time.Time) *types.ResearchResult {
	if synthesis == "" {
		synthesis = a.lastChanceSynthesis(ctx, session, state)
	}

	research := &types.ResearchResult{
		SessionID:        session.ID,
		Topic:            session.Topic,
		Goal:             state.Goal,
		Synthesis:        synthesis,
		KeyFindings:      state.WorkingMemory.KeyFindings,
		Confidence:       state.Progress.Confidence,
		Duration:         a.clock.Now().Sub(started),
		TotalActions:     state.IterationCount,
		TotalReflections: len(state.Reflections),
	}
	if state.Plan != nil {
		research.StrategiesUsed = []string{state.Plan.Strategy}
	}
	if state.Progress.StepsTotal > 0 {
		research.Completeness = float64(state.Progress.StepsCompleted) / float64(state.Progress.StepsTotal)
		if research.Completeness > 1 {
			research.Completeness = 1
		}
	}

	seen := make(map[string]bool)
	for _, outcome := range state.WorkingMemory.RecentOutcomes {
		if fetch, ok := outcome.Result.(types.FetchResult); ok && outcome.Success && !seen[fetch.URL] {
			seen[fetch.URL] = true
			research.Sources = append(research.Sources, types.Source{
				URL:   fetch.URL,
				Title: fetch.Title,
				Type:  types.SourceWebpage,
			})
		}
	}

	for _, reflected := range state.Reflections {
		research.SuccessfulApproaches = append(research.SuccessfulApproaches, reflected.ProgressAssessment.Achievements...)
		research.Challenges = append(research.Challenges, reflected.ProgressAssessment.Blockers...)
		research.Suggestions = append(research.Suggestions, reflected.Adjustments...)
	}
	return research
}

// lastChanceSynthesis tries one direct synthesize call outside the loop, then
// falls back to listing the findings.
func (a *Agent) lastChanceSynthesis(ctx context.Context, session *types.Session, state *types.AgentState) string {
	sources := findingContents(state, "")
	if len(sources) == 0 {
		return ""
	}

	params := types.SynthesizeParams{
		Topic:   session.Topic,
		Goal:    state.Goal.Description,
		Sources: sources,
	}
	toolName := ""
	for _, schema := range a.registry.GetToolSchemas() {
		if schema.Name == "synthesize" {
			toolName = schema.Name
			break
		}
	}
	if toolName != "" {
		result := a.registry.ExecuteTool(ctx, toolName, params.ToMap(), ports.ToolContext{
			SessionID: session.ID,
			Logger:    a.logger,
		})
		if result.Success {
			if decoded, ok := types.DecodeActionResult(types.ActionSynthesize, result.Data).(types.SynthesizeResult); ok && decoded.Synthesis != "" {
				return decoded.Synthesis
			}
		}
	}

	out := "Research findings for " + session.Topic + ":\n"
	for _, content := range sources {
		out += "- " + content + "\n"
	}
	return out
}

func (a *Agent) recordStrategyOutcome(ctx context.Context, state *types.AgentState, success bool, duration time.Duration) {
	if state.Plan == nil || state.Plan.Strategy == "" {
		return
	}
	if err := a.memory.Procedural.RecordStrategyUse(ctx, state.Plan.Strategy, success, duration); err != nil {
		a.logger.Debug("Strategy %s has no stored record: %v", state.Plan.Strategy, err)
	}
}

func (a *Agent) availableToolNames() []string {
	tools := a.registry.GetEnabledTools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name())
	}
	return names
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
