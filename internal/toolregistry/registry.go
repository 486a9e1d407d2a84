// Package toolregistry is the only path from the agent core to the outside
// world: registration, discovery, dispatch, per-tool statistics, a bounded
// execution log, and LLM schema export.
package toolregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/logging"
)

// historyCap bounds the execution log; oldest entries are dropped first.
const historyCap = 1000

type registeredTool struct {
	tool     ports.Tool
	category string
	tags     []string
	enabled  bool

	usageCount int
	lastUsed   *time.Time
}

// Registry implements the tool registry. Mutations come from the single loop
// task; the RWMutex keeps discovery safe for concurrent readers.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*registeredTool
	history []ports.ExecutionLogEntry
	clock   ports.Clock
	logger  logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*registeredTool),
		clock:  ports.SystemClock{},
		logger: logging.OrNop(logger),
	}
}

// SetClock overrides the registry clock (tests).
func (r *Registry) SetClock(clock ports.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
}

// Register adds a tool. Registering the same name again replaces the previous
// tool with a warning and resets its statistics.
func (r *Registry) Register(tool ports.Tool, opts ports.RegisterOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		r.logger.Warn("Tool %s already registered, replacing", name)
	}

	enabled := true
	if opts.Enabled != nil {
		enabled = *opts.Enabled
	}
	r.tools[name] = &registeredTool{
		tool:     tool,
		category: opts.Category,
		tags:     append([]string(nil), opts.Tags...),
		enabled:  enabled,
	}
}

// Unregister removes a tool. Returns false when the name is unknown.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	return true
}

// GetTool returns a tool by name.
func (r *Registry) GetTool(name string) (ports.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return entry.tool, true
}

// GetAllTools returns every registered tool, sorted by name.
func (r *Registry) GetAllTools() []ports.Tool {
	return r.collect(func(*registeredTool) bool { return true })
}

// GetEnabledTools returns enabled tools, sorted by name.
func (r *Registry) GetEnabledTools() []ports.Tool {
	return r.collect(func(entry *registeredTool) bool { return entry.enabled })
}

// GetToolsByCategory returns tools registered under a category.
func (r *Registry) GetToolsByCategory(category string) []ports.Tool {
	return r.collect(func(entry *registeredTool) bool { return entry.category == category })
}

// GetToolsByTag returns tools carrying a tag.
func (r *Registry) GetToolsByTag(tag string) []ports.Tool {
	return r.collect(func(entry *registeredTool) bool {
		for _, t := range entry.tags {
			if t == tag {
				return true
			}
		}
		return false
	})
}

func (r *Registry) collect(match func(*registeredTool) bool) []ports.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name, entry := range r.tools {
		if match(entry) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]ports.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// EnableTool marks a tool enabled.
func (r *Registry) EnableTool(name string) {
	r.setEnabled(name, true)
}

// DisableTool marks a tool disabled; dispatch to it fails fast.
func (r *Registry) DisableTool(name string) {
	r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.tools[name]; ok {
		entry.enabled = enabled
	}
}

// ExecuteTool dispatches one tool call. Failures of any kind come back as a
// result value with Success=false; no error escapes.
func (r *Registry) ExecuteTool(ctx context.Context, name string, input map[string]any, tc ports.ToolContext) *ports.ToolResult {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return &ports.ToolResult{Success: false, Error: "Tool not found"}
	}
	if !entry.enabled {
		return &ports.ToolResult{Success: false, Error: fmt.Sprintf("Tool %s is disabled", name)}
	}
	if !entry.tool.ValidateInput(input) {
		return &ports.ToolResult{Success: false, Error: "Input validation failed"}
	}
	tc.Logger = logging.OrNop(tc.Logger)

	start := r.clock.Now()
	result := r.executeGuarded(ctx, entry.tool, input, tc)
	duration := r.clock.Now().Sub(start)

	r.recordExecution(name, start, duration, result, InputDigest(input))
	return result
}

// executeGuarded runs the tool and maps panics and Go errors into failed
// results.
func (r *Registry) executeGuarded(ctx context.Context, tool ports.Tool, input map[string]any, tc ports.ToolContext) (result *ports.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool %s panicked: %v", tool.Name(), rec)
			result = &ports.ToolResult{Success: false, Error: fmt.Sprintf("tool panic: %v", rec)}
		}
	}()

	res, err := tool.Execute(ctx, input, tc)
	if err != nil {
		return &ports.ToolResult{Success: false, Error: err.Error()}
	}
	if res == nil {
		return &ports.ToolResult{Success: false, Error: "tool returned no result"}
	}
	return res
}

func (r *Registry) recordExecution(name string, start time.Time, duration time.Duration, result *ports.ToolResult, digest string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.tools[name]; ok {
		entry.usageCount++
		used := start
		entry.lastUsed = &used
	}

	logEntry := ports.ExecutionLogEntry{
		ToolName:    name,
		Timestamp:   start,
		Duration:    duration,
		Success:     result.Success,
		Error:       result.Error,
		InputDigest: digest,
	}
	r.history = append(r.history, logEntry)
	if len(r.history) > historyCap {
		r.history = r.history[len(r.history)-historyCap:]
	}
}

// GetToolStatistics computes usage statistics for a tool over the current
// execution history. Returns false for unknown tools.
func (r *Registry) GetToolStatistics(name string) (*ports.ToolStatistics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tools[name]
	if !ok {
		return nil, false
	}

	stats := &ports.ToolStatistics{
		UsageCount: entry.usageCount,
		LastUsed:   entry.lastUsed,
	}

	var successes int
	var total time.Duration
	var count int
	for _, logEntry := range r.history {
		if logEntry.ToolName != name {
			continue
		}
		count++
		total += logEntry.Duration
		if logEntry.Success {
			successes++
		}
	}
	if count > 0 {
		stats.SuccessRate = float64(successes) / float64(count)
		stats.AverageDuration = total / time.Duration(count)
	}
	return stats, true
}

// GetExecutionHistory returns log entries matching the filter, oldest first.
func (r *Registry) GetExecutionHistory(filter ports.HistoryFilter) []ports.ExecutionLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ports.ExecutionLogEntry
	for _, entry := range r.history {
		if filter.ToolName != "" && entry.ToolName != filter.ToolName {
			continue
		}
		if filter.SuccessOnly && !entry.Success {
			continue
		}
		out = append(out, entry)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// ClearHistory drops the execution log.
func (r *Registry) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

// GetToolSchemas exports enabled tools in the LLM function-calling shape.
func (r *Registry) GetToolSchemas() []ports.ToolSchema {
	tools := r.GetEnabledTools()
	out := make([]ports.ToolSchema, 0, len(tools))
	for _, tool := range tools {
		out = append(out, toolSchema(tool))
	}
	return out
}

// GetToolSchemasByName exports the named tools' schemas, skipping unknown and
// disabled names.
func (r *Registry) GetToolSchemasByName(names []string) []ports.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.ToolSchema, 0, len(names))
	for _, name := range names {
		entry, ok := r.tools[name]
		if !ok || !entry.enabled {
			continue
		}
		out = append(out, toolSchema(entry.tool))
	}
	return out
}

func toolSchema(tool ports.Tool) ports.ToolSchema {
	return ports.ToolSchema{
		Name:        tool.Name(),
		Description: tool.Description(),
		InputSchema: tool.Schema(),
	}
}

// InputDigest returns a short stable digest of a tool input for log
// correlation.
func InputDigest(input map[string]any) string {
	data, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}
