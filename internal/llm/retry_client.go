package llm

import (
	"context"
	"errors"
	"time"

	"scout/internal/agent/ports"
	scouterrors "scout/internal/errors"
	"scout/internal/logging"
)

// retryClient wraps an LLM client with the agent's retry policy: transient
// provider errors (rate limit, 5xx, timeouts) are retried with exponential
// backoff up to three attempts; auth and bad-request errors fail fast.
type retryClient struct {
	underlying  ports.LLMClient
	retryConfig scouterrors.RetryConfig
	logger      logging.Logger
}

var _ ports.LLMClient = (*retryClient)(nil)

// NewRetryClient wraps an LLM client with retry logic.
func NewRetryClient(client ports.LLMClient, retryConfig scouterrors.RetryConfig) ports.LLMClient {
	return &retryClient{
		underlying:  client,
		retryConfig: retryConfig,
		logger:      logging.NewLLMLogger("llm-retry"),
	}
}

func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	startTime := time.Now()

	resp, err := scouterrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*ports.CompletionResponse, error) {
		response, err := c.underlying.Complete(ctx, req)
		if err != nil {
			return nil, classifyLLMError(err)
		}
		return response, nil
	}, c.logger)

	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("LLM request failed after retries (took %v): %v", duration, err)
		return nil, err
	}
	if duration > 5*time.Second {
		c.logger.Debug("LLM request succeeded after %v", duration)
	}
	return resp, nil
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}

// classifyLLMError maps typed provider errors onto the transient/permanent
// classification the retry helper understands.
func classifyLLMError(err error) error {
	var llmErr *ports.LLMError
	if errors.As(err, &llmErr) {
		if llmErr.Retryable {
			return &scouterrors.TransientError{Err: err, StatusCode: llmErr.StatusCode}
		}
		return &scouterrors.PermanentError{Err: err, StatusCode: llmErr.StatusCode}
	}
	return err
}
