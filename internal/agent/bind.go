package agent

import (
	"fmt"

	"scout/internal/agent/types"
)

// bindParameters fills an action's parameters from working memory. The
// reasoner proposes abstract actions; everything concrete (queries, URLs,
// content) comes from the state at dispatch time. Returns an error when the
// state has nothing to bind, which the loop records as a failed outcome.
func bindParameters(action *types.Action, session *types.Session, state *types.AgentState) error {
	switch action.Type {
	case types.ActionSearch:
		action.Parameters = types.SearchParams{
			Query:      searchQuery(session, state),
			MaxResults: 5,
		}
		return nil

	case types.ActionFetch:
		url := nextUnfetchedURL(state)
		if url == "" {
			return fmt.Errorf("no search results available to fetch")
		}
		action.Parameters = types.FetchParams{URL: url}
		return nil

	case types.ActionAnalyze, types.ActionExtract:
		content := latestFetchedContent(state)
		if content == "" {
			return fmt.Errorf("no fetched content available to analyze")
		}
		action.Parameters = types.AnalyzeParams{
			Content: content,
			Query:   state.Goal.Description,
		}
		return nil

	case types.ActionVerify:
		claim := firstUnverifiedFinding(state)
		if claim == "" {
			return fmt.Errorf("no unverified findings to check")
		}
		action.Parameters = types.VerifyParams{
			Claim:    claim,
			Evidence: findingContents(state, claim),
		}
		return nil

	case types.ActionSynthesize:
		sources := findingContents(state, "")
		if len(sources) == 0 {
			return fmt.Errorf("no findings available to synthesize")
		}
		action.Parameters = types.SynthesizeParams{
			Topic:   session.Topic,
			Goal:    state.Goal.Description,
			Sources: sources,
		}
		return nil

	case types.ActionReflect, types.ActionReplan:
		// Handled inside the loop, not dispatched as tools.
		return nil
	}
	return fmt.Errorf("unknown action type %q", action.Type)
}

// searchQuery prefers the current plan step's description, then an open
// question, then the topic itself.
func searchQuery(session *types.Session, state *types.AgentState) string {
	if state.Plan != nil {
		for _, step := range state.Plan.Steps {
			if step.Status == types.StepPending && step.Action == string(types.ActionSearch) {
				return step.Description
			}
		}
	}
	if len(state.WorkingMemory.OpenQuestions) > 0 {
		return state.WorkingMemory.OpenQuestions[0]
	}
	return session.Topic
}

// nextUnfetchedURL walks recent search outcomes newest-first and returns the
// first result URL not already fetched.
func nextUnfetchedURL(state *types.AgentState) string {
	fetched := make(map[string]bool)
	for _, outcome := range state.WorkingMemory.RecentOutcomes {
		if fetch, ok := outcome.Result.(types.FetchResult); ok {
			fetched[fetch.URL] = true
		}
	}

	outcomes := state.WorkingMemory.RecentOutcomes
	for i := len(outcomes) - 1; i >= 0; i-- {
		search, ok := outcomes[i].Result.(types.SearchResult)
		if !ok {
			continue
		}
		for _, item := range search.Results {
			if item.URL != "" && !fetched[item.URL] {
				return item.URL
			}
		}
	}
	return ""
}

// latestFetchedContent returns the content of the most recent successful
// fetch.
func latestFetchedContent(state *types.AgentState) string {
	outcomes := state.WorkingMemory.RecentOutcomes
	for i := len(outcomes) - 1; i >= 0; i-- {
		if !outcomes[i].Success {
			continue
		}
		if fetch, ok := outcomes[i].Result.(types.FetchResult); ok && fetch.Content != "" {
			return fetch.Content
		}
	}
	return ""
}

// firstUnverifiedFinding returns the content of the oldest unverified key
// finding.
func firstUnverifiedFinding(state *types.AgentState) string {
	for _, finding := range state.WorkingMemory.KeyFindings {
		if finding.VerificationStatus == types.VerificationUnverified {
			return finding.Content
		}
	}
	return ""
}

// findingContents returns key finding contents, excluding the one matching
// exclude (the claim under verification is not its own evidence).
func findingContents(state *types.AgentState, exclude string) []string {
	var out []string
	for _, finding := range state.WorkingMemory.KeyFindings {
		if exclude != "" && finding.Content == exclude {
			continue
		}
		out = append(out, finding.Content)
	}
	return out
}
