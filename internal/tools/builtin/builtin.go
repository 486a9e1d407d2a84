// Package builtin ships the reference tools dispatched through the registry:
// web search, page fetch, content analysis, claim verification, and final
// synthesis. Each tool stands alone and satisfies the tool contract.
package builtin

import "scout/internal/agent/ports"

// validateRequired reports whether every required schema field is present and
// a non-empty string when the schema declares it as one.
func validateRequired(schema ports.ParameterSchema, input map[string]any) bool {
	for _, field := range schema.Required {
		value, ok := input[field]
		if !ok || value == nil {
			return false
		}
		if prop, ok := schema.Properties[field]; ok && prop.Type == "string" {
			s, ok := value.(string)
			if !ok || s == "" {
				return false
			}
		}
	}
	return true
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func intArg(input map[string]any, key string, fallback int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func stringSliceArg(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		if direct, ok := input[key].([]string); ok {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
