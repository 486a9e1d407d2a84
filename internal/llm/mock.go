package llm

import (
	"context"
	"fmt"
	"sync"

	"scout/internal/agent/ports"
)

// MockClient is a scriptable LLM client for tests. Responses are served from
// a queue; when the queue is empty the Handler (if set) decides, otherwise a
// canned reply is returned.
type MockClient struct {
	mu        sync.Mutex
	model     string
	responses []mockReply
	calls     []ports.CompletionRequest

	// Handler, when set, serves requests not covered by queued responses.
	Handler func(req ports.CompletionRequest) (string, error)
}

type mockReply struct {
	content string
	err     error
}

var _ ports.LLMClient = (*MockClient)(nil)

// NewMockClient creates a mock client.
func NewMockClient() *MockClient {
	return &MockClient{model: "mock-model"}
}

// QueueResponse appends a successful response to the queue.
func (m *MockClient) QueueResponse(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockReply{content: content})
}

// QueueError appends a failing response to the queue.
func (m *MockClient) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockReply{err: err})
}

// Calls returns a copy of all requests seen so far.
func (m *MockClient) Calls() []ports.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.CompletionRequest(nil), m.calls...)
}

// CallCount returns the number of Complete invocations.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	var reply *mockReply
	if len(m.responses) > 0 {
		reply = &m.responses[0]
		m.responses = m.responses[1:]
	}
	handler := m.Handler
	m.mu.Unlock()

	if reply != nil {
		if reply.err != nil {
			return nil, reply.err
		}
		return mockResponse(reply.content), nil
	}

	if handler != nil {
		content, err := handler(req)
		if err != nil {
			return nil, err
		}
		return mockResponse(content), nil
	}

	return mockResponse("mock response"), nil
}

func (m *MockClient) Model() string {
	return m.model
}

func mockResponse(content string) *ports.CompletionResponse {
	return &ports.CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage: ports.TokenUsage{
			PromptTokens:     len(content) / 8,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content)/8 + len(content)/4,
		},
	}
}

// FailingClient always returns the configured error. Useful for fallback-path
// tests.
type FailingClient struct {
	Err error
}

var _ ports.LLMClient = (*FailingClient)(nil)

func (f *FailingClient) Complete(context.Context, ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, fmt.Errorf("llm unavailable")
}

func (f *FailingClient) Model() string { return "failing-model" }
