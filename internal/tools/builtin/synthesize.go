package builtin

import (
	"context"
	"fmt"
	"strings"

	"scout/internal/agent/ports"
	"scout/internal/token"
)

// synthesizeSourceBudget caps the token share of each source in the prompt.
const synthesizeSourceBudget = 1500

type synthesize struct {
	llm ports.LLMClient
}

// NewSynthesize creates the synthesize tool. It composes the final research
// answer from accumulated findings.
func NewSynthesize(llm ports.LLMClient) ports.Tool {
	return &synthesize{llm: llm}
}

func (t *synthesize) Name() string    { return "synthesize" }
func (t *synthesize) Version() string { return "1.0.0" }

func (t *synthesize) Description() string {
	return "Synthesize accumulated findings into a coherent answer to the research goal."
}

func (t *synthesize) Schema() ports.ParameterSchema {
	return ports.ParameterSchema{
		Type: "object",
		Properties: map[string]ports.Property{
			"topic": {
				Type:        "string",
				Description: "The research topic",
			},
			"goal": {
				Type:        "string",
				Description: "The research goal the synthesis must answer",
			},
			"sources": {
				Type:        "array",
				Description: "Findings and source extracts to synthesize",
				Items:       &ports.Property{Type: "string"},
			},
		},
		Required: []string{"topic"},
	}
}

func (t *synthesize) ValidateInput(input map[string]any) bool {
	return validateRequired(t.Schema(), input)
}

func (t *synthesize) Execute(ctx context.Context, input map[string]any, tc ports.ToolContext) (*ports.ToolResult, error) {
	topic := stringArg(input, "topic")
	goal := stringArg(input, "goal")
	sources := stringSliceArg(input, "sources")

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "TOPIC: %s\n", topic)
	if goal != "" {
		fmt.Fprintf(&prompt, "GOAL: %s\n", goal)
	}
	prompt.WriteString("\nFINDINGS:\n")
	if len(sources) == 0 {
		prompt.WriteString("(no findings gathered)\n")
	}
	for i, s := range sources {
		fmt.Fprintf(&prompt, "[%d] %s\n", i+1, token.Truncate(s, synthesizeSourceBudget))
	}
	prompt.WriteString("\nWrite a well-structured synthesis that answers the goal using only the findings above. ")
	prompt.WriteString("Cite findings by their [n] index. Note open questions where the findings are insufficient.")

	resp, err := t.llm.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: prompt.String()}},
		SystemPrompt: "You are a research writer. Synthesize findings into a clear, accurate report. " +
			"Do not introduce information that is not in the findings.",
		Temperature: 0.4,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize findings: %w", err)
	}

	synthesis := strings.TrimSpace(resp.Content)
	if synthesis == "" {
		return nil, fmt.Errorf("synthesis came back empty")
	}

	tc.Logger.Debug("synthesize produced %d chars from %d sources", len(synthesis), len(sources))
	return &ports.ToolResult{
		Success: true,
		Data:    map[string]any{"synthesis": synthesis},
		Metadata: map[string]any{
			"source_count": len(sources),
		},
	}, nil
}
