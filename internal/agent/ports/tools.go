package ports

import (
	"context"
	"time"

	"scout/internal/logging"
)

// Tool is the contract every tool must honor. The registry is the only path
// from the core to the outside world.
type Tool interface {
	// Name returns the registry name of the tool.
	Name() string

	// Description returns a short, LLM-facing description.
	Description() string

	// Version returns the tool version string.
	Version() string

	// Schema returns the parameter schema in JSON Schema form.
	Schema() ParameterSchema

	// ValidateInput reports whether the input satisfies the schema's
	// required fields.
	ValidateInput(input map[string]any) bool

	// Execute runs the tool. Failures are reported either through the
	// returned error or a result with Success=false; the registry folds
	// both into a failed result value.
	Execute(ctx context.Context, input map[string]any, tc ToolContext) (*ToolResult, error)
}

// ToolContext carries per-invocation context into a tool.
type ToolContext struct {
	SessionID string
	Logger    logging.Logger
}

// ToolResult is a tool execution result value. Errors never propagate out of
// the registry as Go errors.
type ToolResult struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ParameterSchema defines tool parameters (JSON Schema format)
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Enum        []any     `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// ToolSchema is the LLM function-calling shape exported by the registry.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ParameterSchema `json:"input_schema"`
}

// RegisterOptions are optional attributes recorded at registration time.
type RegisterOptions struct {
	Category string
	Tags     []string
	Enabled  *bool // nil means enabled
}

// ToolStatistics summarizes a tool's usage.
type ToolStatistics struct {
	UsageCount      int           `json:"usage_count"`
	LastUsed        *time.Time    `json:"last_used,omitempty"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
}

// ExecutionLogEntry records one dispatch through the registry.
type ExecutionLogEntry struct {
	ToolName    string        `json:"tool_name"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	InputDigest string        `json:"input_digest,omitempty"`
}

// HistoryFilter narrows execution history queries.
type HistoryFilter struct {
	ToolName    string
	SuccessOnly bool
	Limit       int
}
