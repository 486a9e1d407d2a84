package builtin

import (
	"context"
	"fmt"
	"strings"

	"scout/internal/agent/ports"
	"scout/internal/llmjson"
	"scout/internal/token"
)

// analyzeContentBudget caps how much gathered content goes into one analysis
// prompt.
const analyzeContentBudget = 6000

type analyze struct {
	llm ports.LLMClient
}

// NewAnalyze creates the analyze tool. It extracts discrete factual claims
// from gathered content using the LLM.
func NewAnalyze(llm ports.LLMClient) ports.Tool {
	return &analyze{llm: llm}
}

func (t *analyze) Name() string    { return "analyze" }
func (t *analyze) Version() string { return "1.0.0" }

func (t *analyze) Description() string {
	return "Analyze gathered content and extract discrete factual claims relevant to the research query."
}

func (t *analyze) Schema() ports.ParameterSchema {
	return ports.ParameterSchema{
		Type: "object",
		Properties: map[string]ports.Property{
			"content": {
				Type:        "string",
				Description: "The content to analyze",
			},
			"query": {
				Type:        "string",
				Description: "The research question guiding the analysis",
			},
		},
		Required: []string{"content"},
	}
}

func (t *analyze) ValidateInput(input map[string]any) bool {
	return validateRequired(t.Schema(), input)
}

func (t *analyze) Execute(ctx context.Context, input map[string]any, tc ports.ToolContext) (*ports.ToolResult, error) {
	content := token.Truncate(stringArg(input, "content"), analyzeContentBudget)
	query := stringArg(input, "query")

	var prompt strings.Builder
	prompt.WriteString("Extract discrete factual claims from the following content.\n")
	if query != "" {
		fmt.Fprintf(&prompt, "Focus on facts relevant to: %s\n", query)
	}
	prompt.WriteString("\nCONTENT:\n")
	prompt.WriteString(content)
	prompt.WriteString("\n\nRespond with JSON: {\"facts\": [\"fact 1\", \"fact 2\", ...]}\n")
	prompt.WriteString("Each fact must be a single self-contained statement. Return at most 15 facts.")

	resp, err := t.llm.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: prompt.String()}},
		SystemPrompt: "You are a careful research analyst. Extract only facts stated in the content. " +
			"Never invent information.",
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze content: %w", err)
	}

	var parsed struct {
		Facts []string `json:"facts"`
	}
	if err := llmjson.Parse(resp.Content, &parsed); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}

	facts := make([]any, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		f = strings.TrimSpace(f)
		if f != "" {
			facts = append(facts, f)
		}
	}

	tc.Logger.Debug("analyze extracted %d facts", len(facts))
	return &ports.ToolResult{
		Success: true,
		Data:    map[string]any{"facts": facts},
	}, nil
}
