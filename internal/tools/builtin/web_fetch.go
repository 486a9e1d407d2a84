package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"scout/internal/agent/ports"
)

const maxFetchContent = 50_000

type webFetch struct {
	client *http.Client
}

// NewWebFetch creates the web_fetch tool. It retrieves a page over HTTP and
// extracts readable text from the HTML.
func NewWebFetch() ports.Tool {
	return &webFetch{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *webFetch) Name() string    { return "web_fetch" }
func (t *webFetch) Version() string { return "1.0.0" }

func (t *webFetch) Description() string {
	return "Fetch a web page and extract its readable text content."
}

func (t *webFetch) Schema() ports.ParameterSchema {
	return ports.ParameterSchema{
		Type: "object",
		Properties: map[string]ports.Property{
			"url": {
				Type:        "string",
				Description: "The URL to fetch (http or https)",
			},
		},
		Required: []string{"url"},
	}
}

func (t *webFetch) ValidateInput(input map[string]any) bool {
	if !validateRequired(t.Schema(), input) {
		return false
	}
	parsed, err := url.Parse(stringArg(input, "url"))
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

func (t *webFetch) Execute(ctx context.Context, input map[string]any, tc ports.ToolContext) (*ports.ToolResult, error) {
	target := stringArg(input, "url")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "scout-research-agent/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	content := extractText(doc)
	if len(content) > maxFetchContent {
		content = content[:maxFetchContent]
	}

	tc.Logger.Debug("web_fetch %s extracted %d chars", target, len(content))
	return &ports.ToolResult{
		Success: true,
		Data: map[string]any{
			"url":     target,
			"title":   title,
			"content": content,
		},
		Metadata: map[string]any{
			"content_length": len(content),
		},
	}, nil
}

// extractText walks headings, paragraph-level blocks, and list items in
// document order within each pass and joins them with blank lines.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, noscript").Remove()

	var parts []string
	appendText := func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	}

	doc.Find("h1, h2, h3, h4, h5, h6").Each(appendText)
	doc.Find("p, article, section").Each(appendText)
	doc.Find("ul li, ol li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, "- "+text)
		}
	})

	if len(parts) == 0 {
		return strings.TrimSpace(doc.Find("body").Text())
	}
	return strings.Join(parts, "\n\n")
}
