package agent

import (
	"context"
	"fmt"
	"strings"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/llmjson"
	"scout/internal/utils/id"
)

// fallbackStrategy names the plan used when planning itself fails.
const fallbackStrategy = "general-research"

// Plan size bounds requested from the model.
const (
	planMinSteps = 5
	planMaxSteps = 8
)

// createPlan builds the initial research plan. Strategy recommendations from
// procedural memory seed the prompt; when the model fails, the generic
// fallback plan keeps the run alive.
func (a *Agent) createPlan(ctx context.Context, session *types.Session, state *types.AgentState) *types.ResearchPlan {
	recs, err := a.memory.Procedural.GetRecommendations(ctx, session.Topic, a.availableToolNames(), 3)
	if err != nil {
		a.logger.Warn("Strategy recommendations unavailable: %v", err)
	}

	plan, err := a.planWithLLM(ctx, session, state, recs)
	if err != nil {
		a.logger.Warn("Planning failed, using fallback plan: %v", err)
		return a.fallbackPlan()
	}
	return plan
}

func (a *Agent) planWithLLM(ctx context.Context, session *types.Session, state *types.AgentState, recs []types.StrategyRecommendation) (*types.ResearchPlan, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TOPIC: %s\nGOAL: %s\n", session.Topic, state.Goal.Description)
	if len(state.Goal.SuccessCriteria) > 0 {
		sb.WriteString("Success criteria:\n")
		for _, c := range state.Goal.SuccessCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	fmt.Fprintf(&sb, "Estimated complexity: %s\n", state.Goal.EstimatedComplexity)

	if len(recs) > 0 {
		sb.WriteString("\nSTRATEGIES THAT WORKED BEFORE:\n")
		for _, rec := range recs {
			fmt.Fprintf(&sb, "- %s: %s (%s)\n", rec.Strategy.StrategyName, rec.Strategy.Description, rec.Reasoning)
		}
	}

	sb.WriteString("\nAVAILABLE TOOLS:\n")
	for _, schema := range a.registry.GetToolSchemas() {
		fmt.Fprintf(&sb, "- %s: %s\n", schema.Name, schema.Description)
	}

	fmt.Fprintf(&sb, "\nProduce a research plan of %d-%d steps. Respond with JSON:\n", planMinSteps, planMaxSteps)
	sb.WriteString(`{"strategy": "strategy-name", "steps": [{"description": "...", "action": "search|fetch|analyze|verify|synthesize", "expected_outcome": "..."}]}`)

	resp, err := a.llm.Complete(ctx, ports.CompletionRequest{
		Messages:     []ports.Message{{Role: "user", Content: sb.String()}},
		SystemPrompt: "You plan research for an autonomous agent. Steps must be concrete and achievable with the listed tools.",
		Temperature:  0.3,
		MaxTokens:    1024,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Strategy string `json:"strategy"`
		Steps    []struct {
			Description     string `json:"description"`
			Action          string `json:"action"`
			ExpectedOutcome string `json:"expected_outcome"`
		} `json:"steps"`
	}
	if err := llmjson.Parse(resp.Content, &parsed); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(parsed.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}

	plan := &types.ResearchPlan{
		ID:        id.NewPlanID(),
		Strategy:  parsed.Strategy,
		CreatedAt: a.clock.Now(),
	}
	if plan.Strategy == "" {
		plan.Strategy = fallbackStrategy
	}
	for i, raw := range parsed.Steps {
		if i >= planMaxSteps {
			break
		}
		plan.Steps = append(plan.Steps, types.PlannedStep{
			ID:              fmt.Sprintf("%s-step-%d", plan.ID, i+1),
			Description:     raw.Description,
			Action:          raw.Action,
			Status:          types.StepPending,
			ExpectedOutcome: raw.ExpectedOutcome,
		})
	}

	a.logger.Info("Created plan %s (%s) with %d steps", plan.ID, plan.Strategy, len(plan.Steps))
	return plan, nil
}

// fallbackPlan is the fixed search-fetch-analyze-search-synthesize sequence
// used when the model cannot produce a plan.
func (a *Agent) fallbackPlan() *types.ResearchPlan {
	plan := &types.ResearchPlan{
		ID:        id.NewPlanID(),
		Strategy:  fallbackStrategy,
		CreatedAt: a.clock.Now(),
	}
	steps := []struct {
		description string
		action      types.ActionType
	}{
		{"Search for sources on the topic", types.ActionSearch},
		{"Fetch the most promising source", types.ActionFetch},
		{"Analyze the fetched content for facts", types.ActionAnalyze},
		{"Search for additional perspectives", types.ActionSearch},
		{"Synthesize the findings", types.ActionSynthesize},
	}
	for i, s := range steps {
		plan.Steps = append(plan.Steps, types.PlannedStep{
			ID:          fmt.Sprintf("%s-step-%d", plan.ID, i+1),
			Description: s.description,
			Action:      string(s.action),
			Status:      types.StepPending,
		})
	}
	return plan
}

// replan replaces the current plan with a fresh one and records why. The old
// plan's completed steps stay completed in the progress counters.
func (a *Agent) replan(ctx context.Context, session *types.Session, state *types.AgentState, reason string) {
	a.logger.Info("Replanning session %s: %s", session.ID, reason)

	plan := a.createPlan(ctx, session, state)
	now := a.clock.Now()
	plan.RevisedAt = &now
	plan.RevisionReason = reason

	state.Plan = plan
	state.Progress.StepsTotal = state.Progress.StepsCompleted + len(plan.Steps)
}

// advancePlan marks the first pending step matching the action type as
// completed or failed. It reports whether a step was completed, which is the
// only event that moves the stepsCompleted counter.
func advancePlan(plan *types.ResearchPlan, actionType types.ActionType, success bool) bool {
	if plan == nil {
		return false
	}
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Status != types.StepPending && step.Status != types.StepInProgress {
			continue
		}
		if !actionMatchesStep(step.Action, actionType) {
			continue
		}
		if success {
			step.Status = types.StepCompleted
			return true
		}
		step.Status = types.StepFailed
		return false
	}
	return false
}

func actionMatchesStep(stepAction string, actionType types.ActionType) bool {
	if stepAction == string(actionType) {
		return true
	}
	// Plan steps may name a tool instead of an action type.
	return strings.Contains(strings.ToLower(stepAction), string(actionType))
}
