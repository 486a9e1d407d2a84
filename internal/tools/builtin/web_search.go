package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scout/internal/agent/ports"
)

const tavilyEndpoint = "https://api.tavily.com/search"

type webSearch struct {
	client   *http.Client
	apiKey   string
	endpoint string
}

// NewWebSearch creates the web_search tool backed by the Tavily API.
func NewWebSearch(apiKey string) ports.Tool {
	return &webSearch{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiKey:   apiKey,
		endpoint: tavilyEndpoint,
	}
}

func (t *webSearch) Name() string    { return "web_search" }
func (t *webSearch) Version() string { return "1.0.0" }

func (t *webSearch) Description() string {
	return "Search the web for current information. Returns relevant results with titles, URLs, and snippets."
}

func (t *webSearch) Schema() ports.ParameterSchema {
	return ports.ParameterSchema{
		Type: "object",
		Properties: map[string]ports.Property{
			"query": {
				Type:        "string",
				Description: "The search query to execute",
			},
			"max_results": {
				Type:        "integer",
				Description: "Maximum number of results (1-10, default 5)",
			},
		},
		Required: []string{"query"},
	}
}

func (t *webSearch) ValidateInput(input map[string]any) bool {
	return validateRequired(t.Schema(), input)
}

func (t *webSearch) Execute(ctx context.Context, input map[string]any, tc ports.ToolContext) (*ports.ToolResult, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("web search not configured: missing API key")
	}

	query := stringArg(input, "query")
	maxResults := intArg(input, "max_results", 5)
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 10 {
		maxResults = 10
	}

	reqBody := map[string]any{
		"api_key":      t.apiKey,
		"query":        query,
		"max_results":  maxResults,
		"search_depth": "basic",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search API status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]any, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		results = append(results, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Content,
			"score":   r.Score,
		})
	}

	tc.Logger.Debug("web_search %q returned %d results", query, len(results))
	return &ports.ToolResult{
		Success: true,
		Data:    map[string]any{"results": results},
		Metadata: map[string]any{
			"query": query,
			"count": len(results),
		},
	}, nil
}
