package ports

import (
	"context"
	"fmt"
)

// LLMClient represents any chat-completion provider.
type LLMClient interface {
	// Complete sends messages and returns a response (non-streaming)
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model identifier
	Model() string
}

// CompletionRequest contains all parameters for LLM completion
type CompletionRequest struct {
	Messages      []Message      `json:"messages"`
	SystemPrompt  string         `json:"system_prompt,omitempty"`
	Temperature   float64        `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	TopP          float64        `json:"top_p,omitempty"`
	StopSequences []string       `json:"stop,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse is the LLM's response
type CompletionResponse struct {
	Content    string         `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      TokenUsage     `json:"usage"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMErrorCode classifies provider failures for the retry policy.
type LLMErrorCode string

const (
	LLMErrRateLimit      LLMErrorCode = "RATE_LIMIT"
	LLMErrAuthentication LLMErrorCode = "AUTHENTICATION_ERROR"
	LLMErrBadRequest     LLMErrorCode = "BAD_REQUEST"
	LLMErrTimeout        LLMErrorCode = "TIMEOUT"
	LLMErrUnknown        LLMErrorCode = "UNKNOWN"
)

// LLMError is the typed provider error surface.
type LLMError struct {
	Code       LLMErrorCode
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm error %s (status %d): %v", e.Code, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm error %s (status %d)", e.Code, e.StatusCode)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}
