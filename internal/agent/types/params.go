package types

// Params is the tagged union of per-action-kind tool parameters. The reasoner
// proposes abstract actions; the control loop binds one of these variants
// from working memory before dispatch. The registry transports parameters as
// a plain map at the tool boundary.
type Params interface {
	Kind() ActionType
	ToMap() map[string]any
}

// SearchParams drive a web search tool call.
type SearchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (SearchParams) Kind() ActionType { return ActionSearch }

func (p SearchParams) ToMap() map[string]any {
	m := map[string]any{"query": p.Query}
	if p.MaxResults > 0 {
		m["max_results"] = p.MaxResults
	}
	return m
}

// FetchParams drive a URL fetch tool call.
type FetchParams struct {
	URL string `json:"url"`
}

func (FetchParams) Kind() ActionType { return ActionFetch }

func (p FetchParams) ToMap() map[string]any {
	return map[string]any{"url": p.URL}
}

// AnalyzeParams drive a content analysis tool call.
type AnalyzeParams struct {
	Content string `json:"content"`
	Query   string `json:"query,omitempty"`
}

func (AnalyzeParams) Kind() ActionType { return ActionAnalyze }

func (p AnalyzeParams) ToMap() map[string]any {
	m := map[string]any{"content": p.Content}
	if p.Query != "" {
		m["query"] = p.Query
	}
	return m
}

// VerifyParams drive a fact verification tool call.
type VerifyParams struct {
	Claim    string   `json:"claim"`
	Evidence []string `json:"evidence,omitempty"`
}

func (VerifyParams) Kind() ActionType { return ActionVerify }

func (p VerifyParams) ToMap() map[string]any {
	m := map[string]any{"claim": p.Claim}
	if len(p.Evidence) > 0 {
		m["evidence"] = toAnySlice(p.Evidence)
	}
	return m
}

// SynthesizeParams drive the final synthesis tool call.
type SynthesizeParams struct {
	Topic   string   `json:"topic"`
	Goal    string   `json:"goal,omitempty"`
	Sources []string `json:"sources"`
}

func (SynthesizeParams) Kind() ActionType { return ActionSynthesize }

func (p SynthesizeParams) ToMap() map[string]any {
	m := map[string]any{
		"topic":   p.Topic,
		"sources": toAnySlice(p.Sources),
	}
	if p.Goal != "" {
		m["goal"] = p.Goal
	}
	return m
}

// ActionResult is the tagged union of per-action-kind tool results, decoded
// from the opaque tool result payload.
type ActionResult interface {
	Kind() ActionType
}

// SearchResultItem is one hit from a search tool.
type SearchResultItem struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// SearchResult carries search tool output.
type SearchResult struct {
	Results []SearchResultItem `json:"results"`
}

func (SearchResult) Kind() ActionType { return ActionSearch }

// FetchResult carries fetched page content.
type FetchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

func (FetchResult) Kind() ActionType { return ActionFetch }

// AnalyzeResult carries extracted facts.
type AnalyzeResult struct {
	Facts []string `json:"facts"`
}

func (AnalyzeResult) Kind() ActionType { return ActionAnalyze }

// VerifyResult carries a verification verdict.
type VerifyResult struct {
	Status    VerificationStatus `json:"status"`
	Reasoning string             `json:"reasoning,omitempty"`
}

func (VerifyResult) Kind() ActionType { return ActionVerify }

// SynthesizeResult carries the synthesis text.
type SynthesizeResult struct {
	Synthesis string `json:"synthesis"`
}

func (SynthesizeResult) Kind() ActionType { return ActionSynthesize }

// DecodeActionResult maps a tool result payload onto the typed variant for
// the action kind. Unknown or missing fields decode to zero values; callers
// treat a nil return as "no structured result".
func DecodeActionResult(kind ActionType, data map[string]any) ActionResult {
	if data == nil {
		return nil
	}
	switch kind {
	case ActionSearch:
		var out SearchResult
		if raw, ok := data["results"].([]any); ok {
			for _, entry := range raw {
				item, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				out.Results = append(out.Results, SearchResultItem{
					Title:   stringField(item, "title"),
					URL:     stringField(item, "url"),
					Snippet: stringField(item, "snippet"),
					Score:   floatField(item, "score"),
				})
			}
		}
		return out
	case ActionFetch:
		return FetchResult{
			URL:     stringField(data, "url"),
			Title:   stringField(data, "title"),
			Content: stringField(data, "content"),
		}
	case ActionAnalyze, ActionExtract:
		var out AnalyzeResult
		if raw, ok := data["facts"].([]any); ok {
			for _, entry := range raw {
				if s, ok := entry.(string); ok {
					out.Facts = append(out.Facts, s)
				}
			}
		}
		return out
	case ActionVerify:
		return VerifyResult{
			Status:    VerificationStatus(stringField(data, "status")),
			Reasoning: stringField(data, "reasoning"),
		}
	case ActionSynthesize:
		return SynthesizeResult{Synthesis: stringField(data, "synthesis")}
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
