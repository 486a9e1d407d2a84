package builtin

import (
	"context"
	"fmt"
	"strings"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/llmjson"
)

type verify struct {
	llm ports.LLMClient
}

// NewVerify creates the verify tool. It checks a claim against supplied
// evidence and returns a verification status.
func NewVerify(llm ports.LLMClient) ports.Tool {
	return &verify{llm: llm}
}

func (t *verify) Name() string    { return "verify" }
func (t *verify) Version() string { return "1.0.0" }

func (t *verify) Description() string {
	return "Verify a factual claim against evidence. Returns verified, unverified, or disputed with reasoning."
}

func (t *verify) Schema() ports.ParameterSchema {
	return ports.ParameterSchema{
		Type: "object",
		Properties: map[string]ports.Property{
			"claim": {
				Type:        "string",
				Description: "The claim to verify",
			},
			"evidence": {
				Type:        "array",
				Description: "Evidence statements to check the claim against",
				Items:       &ports.Property{Type: "string"},
			},
		},
		Required: []string{"claim"},
	}
}

func (t *verify) ValidateInput(input map[string]any) bool {
	return validateRequired(t.Schema(), input)
}

func (t *verify) Execute(ctx context.Context, input map[string]any, tc ports.ToolContext) (*ports.ToolResult, error) {
	claim := stringArg(input, "claim")
	evidence := stringSliceArg(input, "evidence")

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "CLAIM: %s\n\nEVIDENCE:\n", claim)
	if len(evidence) == 0 {
		prompt.WriteString("(none provided)\n")
	}
	for _, e := range evidence {
		fmt.Fprintf(&prompt, "- %s\n", e)
	}
	prompt.WriteString("\nDoes the evidence support the claim? Respond with JSON:\n")
	prompt.WriteString(`{"status": "verified|unverified|disputed", "reasoning": "..."}`)

	resp, err := t.llm.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: prompt.String()}},
		SystemPrompt: "You are a fact checker. Mark a claim verified only when the evidence directly " +
			"supports it, disputed when evidence contradicts it, and unverified otherwise.",
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("verify claim: %w", err)
	}

	var parsed struct {
		Status    string `json:"status"`
		Reasoning string `json:"reasoning"`
	}
	if err := llmjson.Parse(resp.Content, &parsed); err != nil {
		return nil, fmt.Errorf("parse verification: %w", err)
	}

	status := normalizeStatus(parsed.Status)
	tc.Logger.Debug("verify claim %q: %s", claim, status)
	return &ports.ToolResult{
		Success: true,
		Data: map[string]any{
			"status":    string(status),
			"reasoning": parsed.Reasoning,
		},
	}, nil
}

func normalizeStatus(s string) types.VerificationStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verified":
		return types.VerificationVerified
	case "disputed":
		return types.VerificationDisputed
	default:
		return types.VerificationUnverified
	}
}
