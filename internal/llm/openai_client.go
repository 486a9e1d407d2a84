// Package llm provides chat-completion clients: an OpenAI-compatible HTTP
// client, a retry wrapper enforcing the agent's retry policy, and a
// scriptable mock for tests.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scout/internal/agent/ports"
	"scout/internal/logging"
)

// Config holds provider connection settings.
type Config struct {
	APIKey  string
	BaseURL string            // default "https://api.openai.com/v1"
	Timeout int               // seconds, default 120
	Headers map[string]string // extra headers, e.g. for OpenRouter
}

// openaiClient speaks the OpenAI-compatible chat completions API.
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     logging.Logger
}

var _ ports.LLMClient = (*openaiClient)(nil)

// NewOpenAIClient constructs an LLM client for an OpenAI-compatible endpoint.
func NewOpenAIClient(model string, config Config) (ports.LLMClient, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &openaiClient{
		model:      model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		headers:    config.Headers,
		logger:     logging.NewLLMLogger("openai"),
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	messages := make([]map[string]string, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}

	oaiReq := map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
	}
	if req.Temperature > 0 {
		oaiReq["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oaiReq["max_tokens"] = req.MaxTokens
	}
	if req.TopP > 0 {
		oaiReq["top_p"] = req.TopP
	}
	if len(req.StopSequences) > 0 {
		oaiReq["stop"] = req.StopSequences
	}

	body, err := json.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("POST %s model=%s messages=%d", endpoint, c.model, len(messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ports.LLMError{Code: ports.LLMErrTimeout, Retryable: false, Err: ctx.Err()}
		}
		return nil, &ports.LLMError{Code: ports.LLMErrUnknown, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &ports.LLMError{Code: ports.LLMErrUnknown, Retryable: false, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(apiResp.Choices) == 0 {
		return nil, &ports.LLMError{Code: ports.LLMErrUnknown, Retryable: false, Err: fmt.Errorf("no choices in response")}
	}

	choice := apiResp.Choices[0]
	c.logger.Debug("Response: finish=%s tokens=%d", choice.FinishReason, apiResp.Usage.TotalTokens)

	return &ports.CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: ports.TokenUsage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
	}, nil
}

func classifyStatus(statusCode int, body string) *ports.LLMError {
	err := fmt.Errorf("API status %d: %s", statusCode, truncateBody(body))
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &ports.LLMError{Code: ports.LLMErrRateLimit, StatusCode: statusCode, Retryable: true, Err: err}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &ports.LLMError{Code: ports.LLMErrAuthentication, StatusCode: statusCode, Retryable: false, Err: err}
	case statusCode == http.StatusRequestTimeout:
		return &ports.LLMError{Code: ports.LLMErrTimeout, StatusCode: statusCode, Retryable: true, Err: err}
	case statusCode >= 500:
		return &ports.LLMError{Code: ports.LLMErrUnknown, StatusCode: statusCode, Retryable: true, Err: err}
	case statusCode >= 400:
		return &ports.LLMError{Code: ports.LLMErrBadRequest, StatusCode: statusCode, Retryable: false, Err: err}
	default:
		return &ports.LLMError{Code: ports.LLMErrUnknown, StatusCode: statusCode, Retryable: false, Err: err}
	}
}

func truncateBody(body string) string {
	const limit = 500
	body = strings.TrimSpace(body)
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
