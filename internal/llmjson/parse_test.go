package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, Parse(`{"name": "scout"}`, &out))
	assert.Equal(t, "scout", out.Name)
}

func TestParseFencedBlock(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"steps\": [\"search\", \"fetch\"]}\n```\nDone."
	var out struct {
		Steps []string `json:"steps"`
	}
	require.NoError(t, Parse(text, &out))
	assert.Equal(t, []string{"search", "fetch"}, out.Steps)
}

func TestParseSurroundingProse(t *testing.T) {
	text := `Sure! The answer is {"confidence": 0.8} as requested.`
	var out struct {
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, Parse(text, &out))
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
}

func TestParseRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and single quotes, typical LLM sloppiness.
	text := `{'facts': ['a', 'b',]}`
	var out struct {
		Facts []string `json:"facts"`
	}
	require.NoError(t, Parse(text, &out))
	assert.Equal(t, []string{"a", "b"}, out.Facts)
}

func TestParseNoJSON(t *testing.T) {
	var out map[string]any
	assert.Error(t, Parse("no structured content here", &out))
	assert.Error(t, Parse("", &out))
}

func TestExtractNestedBraces(t *testing.T) {
	text := `prefix {"outer": {"inner": "}"}} suffix`
	assert.Equal(t, `{"outer": {"inner": "}"}}`, Extract(text))
}

func TestExtractArray(t *testing.T) {
	assert.Equal(t, `[1, 2, 3]`, Extract(`values: [1, 2, 3] end`))
}

func TestExtractUnbalancedReturnsTail(t *testing.T) {
	text := `{"truncated": "respon`
	assert.Equal(t, text, Extract(text))
}
