// Package reasoning decides what the agent does next. The engine asks the
// LLM for candidate actions, scores them deterministically, and degrades to a
// phase-default action when the model is unavailable or unparseable.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/llmjson"
	"scout/internal/logging"
	"scout/internal/memory"
	"scout/internal/utils/id"
)

// Option scoring weights. Confidence dominates; cost is a tiebreaker.
const (
	confidenceWeight = 0.7
	costWeight       = 0.3
	maxCost          = 10.0
)

// fallbackConfidence is assigned to phase-default options.
const fallbackConfidence = 0.3

// Replan thresholds applied in Observe.
const (
	replanFailureStreak  = 3
	replanLowConfidence  = 0.4
	replanMinStepsForLow = 5
)

// abortConfidence is the floor below which a failed outcome stops the loop.
const abortConfidence = 0.3

// Option is one candidate action proposed by the model.
type Option struct {
	ID            string           `json:"id"`
	ActionType    types.ActionType `json:"action_type"`
	Tool          string           `json:"tool"`
	Reasoning     string           `json:"reasoning"`
	Confidence    float64          `json:"confidence"`
	EstimatedCost float64          `json:"estimated_cost"`
}

// Score is the deterministic ranking of an option: high confidence and low
// cost win.
func (o Option) Score() float64 {
	cost := o.EstimatedCost
	if cost < 0 {
		cost = 0
	}
	if cost > maxCost {
		cost = maxCost
	}
	return confidenceWeight*clamp01(o.Confidence) + costWeight*(1-cost/maxCost)
}

// Observation is what the engine learned from one executed action.
type Observation struct {
	Learnings      []string
	ShouldContinue bool
	ShouldReplan   bool
}

// Engine is the reasoning engine.
type Engine struct {
	llm    ports.LLMClient
	logger logging.Logger
}

// New creates a reasoning engine.
func New(llm ports.LLMClient, logger logging.Logger) *Engine {
	return &Engine{llm: llm, logger: logging.OrNop(logger)}
}

// Reason proposes the next action for the session. The model's options are
// scored and the best one wins; when the model fails, the phase-default
// action is returned with low confidence. Reason never returns an error for
// model failures, only for context cancellation.
func (e *Engine) Reason(ctx context.Context, session *types.Session, state *types.AgentState, memCtx *memory.Context, tools []ports.ToolSchema) (*types.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := e.buildPrompt(session, state, memCtx, tools)
	resp, err := e.llm.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: prompt}},
		SystemPrompt: "You are the decision core of an autonomous research agent. Propose concrete next " +
			"actions as JSON. Prefer actions that move the research toward its goal.",
		Temperature: 0.3,
		MaxTokens:   1024,
	})

	var best Option
	switch {
	case err != nil:
		e.logger.Warn("Reasoning LLM call failed, using phase default: %v", err)
		best = e.fallbackOption(state, tools)
	default:
		options, parseErr := parseOptions(resp.Content)
		if parseErr != nil || len(options) == 0 {
			e.logger.Warn("Reasoning output unparseable, using phase default: %v", parseErr)
			best = e.fallbackOption(state, tools)
		} else {
			best = pickBest(options)
		}
	}

	best = reconcileToolAndType(best, tools)

	action := &types.Action{
		ID:        id.NewActionID(),
		SessionID: session.ID,
		Type:      best.ActionType,
		Tool:      best.Tool,
		Reasoning: best.Reasoning,
	}
	if state.Plan != nil {
		action.Strategy = state.Plan.Strategy
	}

	e.logger.Debug("Selected action %s: %s via %s (confidence %.2f)",
		action.ID, action.Type, action.Tool, best.Confidence)
	return action, nil
}

func (e *Engine) buildPrompt(session *types.Session, state *types.AgentState, memCtx *memory.Context, tools []ports.ToolSchema) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "GOAL: %s\n", state.Goal.Description)
	if len(state.Goal.SuccessCriteria) > 0 {
		sb.WriteString("Success criteria:\n")
		for _, c := range state.Goal.SuccessCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	p := state.Progress
	fmt.Fprintf(&sb, "\nCURRENT PROGRESS:\nPhase: %s\nSteps: %d/%d\nSources gathered: %d\nFacts extracted: %d\nConfidence: %.2f\nIteration: %d\n",
		p.CurrentPhase, p.StepsCompleted, p.StepsTotal, p.SourcesGathered, p.FactsExtracted, p.Confidence, state.IterationCount)

	if n := len(state.WorkingMemory.RecentActions); n > 0 {
		sb.WriteString("\nRECENT ACTIONS:\n")
		for _, action := range tail(state.WorkingMemory.RecentActions, 5) {
			fmt.Fprintf(&sb, "- %s via %s: %s\n", action.Type, action.Tool, action.Reasoning)
		}
	}
	if n := len(state.WorkingMemory.RecentOutcomes); n > 0 {
		sb.WriteString("\nRECENT OUTCOMES:\n")
		for _, outcome := range tail(state.WorkingMemory.RecentOutcomes, 5) {
			status := "failed"
			if outcome.Success {
				status = "succeeded"
			}
			detail := outcome.Error
			if detail == "" && len(outcome.Observations) > 0 {
				detail = outcome.Observations[0]
			}
			fmt.Fprintf(&sb, "- %s: %s\n", status, detail)
		}
	}

	sb.WriteString("\nAVAILABLE TOOLS:\n")
	for _, tool := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", tool.Name, tool.Description)
	}

	if memCtx != nil {
		if formatted := memCtx.FormatForPrompt(); formatted != "" {
			sb.WriteString("\nRELEVANT PAST EXPERIENCES:\n")
			sb.WriteString(formatted)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nPropose 2-4 candidate next actions. Respond with JSON:\n")
	sb.WriteString(`{"options": [{"id": "opt-1", "action_type": "search|fetch|analyze|verify|synthesize", "tool": "tool_name", "reasoning": "...", "confidence": 0.0, "estimated_cost": 0.0}]}` + "\n")
	sb.WriteString("Confidence is in [0,1]; estimated_cost is in [0,10] where 10 is most expensive.")

	return sb.String()
}

func parseOptions(content string) ([]Option, error) {
	var parsed struct {
		Options []Option `json:"options"`
	}
	if err := llmjson.Parse(content, &parsed); err != nil {
		return nil, err
	}
	out := parsed.Options[:0]
	for _, opt := range parsed.Options {
		if opt.ActionType == "" && opt.Tool == "" {
			continue
		}
		out = append(out, opt)
	}
	return out, nil
}

// pickBest returns the highest-scoring option. Ties keep the earlier option
// so ranking is deterministic for identical inputs.
func pickBest(options []Option) Option {
	best := options[0]
	bestScore := best.Score()
	for _, opt := range options[1:] {
		if score := opt.Score(); score > bestScore {
			best = opt
			bestScore = score
		}
	}
	return best
}

// phaseDefaults maps each phase to its default action type.
var phaseDefaults = map[types.Phase]types.ActionType{
	types.PhasePlanning:     types.ActionSearch,
	types.PhaseGathering:    types.ActionSearch,
	types.PhaseAnalyzing:    types.ActionAnalyze,
	types.PhaseSynthesizing: types.ActionSynthesize,
	types.PhaseVerifying:    types.ActionVerify,
}

// fallbackOption builds the phase-default option used when the model gives
// nothing usable.
func (e *Engine) fallbackOption(state *types.AgentState, tools []ports.ToolSchema) Option {
	actionType, ok := phaseDefaults[state.Progress.CurrentPhase]
	if !ok {
		actionType = types.ActionSearch
	}

	// Analyzing needs fetched content to work on; synthesizing needs at
	// least one extracted fact. Missing inputs push the default one phase
	// back.
	switch actionType {
	case types.ActionAnalyze:
		if !hasFetchedContent(state) {
			actionType = types.ActionFetch
		}
	case types.ActionSynthesize:
		if state.Progress.FactsExtracted < 1 {
			actionType = types.ActionAnalyze
		}
	}

	return Option{
		ID:            "fallback-option",
		ActionType:    actionType,
		Tool:          toolForType(tools, actionType),
		Reasoning:     fmt.Sprintf("Default action for phase %s", state.Progress.CurrentPhase),
		Confidence:    fallbackConfidence,
		EstimatedCost: 5,
	}
}

// typeHints maps action types to substrings expected in matching tool names.
var typeHints = map[types.ActionType]string{
	types.ActionSearch:     "search",
	types.ActionFetch:      "fetch",
	types.ActionAnalyze:    "analyz",
	types.ActionExtract:    "analyz",
	types.ActionVerify:     "verif",
	types.ActionSynthesize: "synth",
	types.ActionReflect:    "reflect",
	types.ActionReplan:     "replan",
}

// reconcileToolAndType repairs options where the model named a tool and a
// type that disagree. The tool name wins when it maps cleanly to a type; an
// empty tool is filled from the type.
func reconcileToolAndType(opt Option, tools []ports.ToolSchema) Option {
	if opt.Tool != "" {
		if inferred, ok := typeForTool(opt.Tool); ok && inferred != opt.ActionType {
			opt.ActionType = inferred
		}
		return opt
	}
	opt.Tool = toolForType(tools, opt.ActionType)
	return opt
}

func typeForTool(tool string) (types.ActionType, bool) {
	lowered := strings.ToLower(tool)
	for actionType, hint := range typeHints {
		if strings.Contains(lowered, hint) {
			// analyz matches both analyze and extract; prefer analyze.
			if actionType == types.ActionExtract {
				continue
			}
			return actionType, true
		}
	}
	return "", false
}

func toolForType(tools []ports.ToolSchema, actionType types.ActionType) string {
	hint := typeHints[actionType]
	for _, tool := range tools {
		if strings.Contains(strings.ToLower(tool.Name), hint) {
			return tool.Name
		}
	}
	return ""
}

// hasFetchedContent reports whether any recent outcome carries fetched text.
func hasFetchedContent(state *types.AgentState) bool {
	for _, outcome := range state.WorkingMemory.RecentOutcomes {
		if !outcome.Success {
			continue
		}
		if fetched, ok := outcome.Result.(types.FetchResult); ok && fetched.Content != "" {
			return true
		}
	}
	return false
}

// Observe turns an executed action and its outcome into learnings and loop
// control signals. The LLM supplies learnings when available; otherwise a
// mechanical summary is recorded.
func (e *Engine) Observe(ctx context.Context, state *types.AgentState, action *types.Action, outcome *types.Outcome) (*Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obs := &Observation{
		ShouldContinue: shouldContinue(state, outcome),
	}
	obs.Learnings = e.deriveLearnings(ctx, action, outcome)
	obs.ShouldReplan = shouldReplan(state, outcome)
	return obs, nil
}

// shouldContinue stops the loop when the session is already complete or a
// failure lands while confidence is below the abort floor.
func shouldContinue(state *types.AgentState, outcome *types.Outcome) bool {
	if state.Progress.CurrentPhase == types.PhaseCompleted {
		return false
	}
	if !outcome.Success && state.Progress.Confidence < abortConfidence {
		return false
	}
	return true
}

func (e *Engine) deriveLearnings(ctx context.Context, action *types.Action, outcome *types.Outcome) []string {
	var sb strings.Builder
	status := "failed"
	if outcome.Success {
		status = "succeeded"
	}
	fmt.Fprintf(&sb, "Action %s via tool %s %s.\n", action.Type, action.Tool, status)
	if outcome.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", outcome.Error)
	}
	for _, line := range outcome.Observations {
		fmt.Fprintf(&sb, "Observation: %s\n", line)
	}
	sb.WriteString("\nState 1-3 short learnings about what this outcome means for the research.\n")
	sb.WriteString(`Respond with JSON: {"learnings": ["..."]}`)

	resp, err := e.llm.Complete(ctx, ports.CompletionRequest{
		Messages:    []ports.Message{{Role: "user", Content: sb.String()}},
		Temperature: 0.2,
		MaxTokens:   256,
	})
	if err == nil {
		var parsed struct {
			Learnings []string `json:"learnings"`
		}
		if perr := llmjson.Parse(resp.Content, &parsed); perr == nil && len(parsed.Learnings) > 0 {
			return parsed.Learnings
		}
	}

	// Mechanical fallback keeps the loop moving without the model.
	summary := fmt.Sprintf("%s %s", action.Tool, status)
	if outcome.Error != "" {
		summary += ": " + outcome.Error
	} else if len(outcome.Observations) > 0 {
		summary += ": " + outcome.Observations[0]
	}
	return []string{summary}
}

// shouldReplan applies the mechanical replan rules: the current outcome
// failed, a streak of recent failures, or persistently low confidence after
// meaningful progress.
func shouldReplan(state *types.AgentState, current *types.Outcome) bool {
	if !current.Success {
		return true
	}

	recent := state.WorkingMemory.RecentOutcomes
	if len(recent) >= replanFailureStreak {
		streak := true
		for _, outcome := range recent[len(recent)-replanFailureStreak:] {
			if outcome.Success {
				streak = false
				break
			}
		}
		if streak {
			return true
		}
	}

	if state.Progress.Confidence < replanLowConfidence && state.Progress.StepsCompleted >= replanMinStepsForLow {
		return true
	}
	return false
}

func tail[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
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
