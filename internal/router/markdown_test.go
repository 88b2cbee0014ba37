package router

import (
	"strings"
	"testing"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRender_SectionOrder(t *testing.T) {
	in := testInsight("L1.2")
	in.TechnicalSettings = map[string]any{"temperature": 0.2, "max_tokens": 1024}
	in.WorkflowSteps = []string{"Write the prompt", "Measure hit rate"}
	in.CodeSnippets = []domain.CodeSnippet{{Language: "python", Code: "cache = {}\n", Description: "A cache"}}
	in.ToolsMentioned = []string{"OpenAI"}
	in.KeyTakeaways = []string{"Stable prefixes matter"}
	in.TimestampReferences = []domain.TimestampReference{{Timestamp: "03:15", Description: "Demo"}}

	out := Render(in, testItem(), domain.Creator{ID: "demo", Handle: "@demo"})

	order := []string{
		"# Caching deep dive",
		"- **Creator:** demo (@demo)",
		"## Topic",
		"## Key Insights",
		"## Technical Settings",
		"## Workflow Steps",
		"## Code Snippets",
		"## Tools Mentioned",
		"## Key Takeaways",
		"## Timestamp References",
		"- Category: LLM Ops",
		"- Model: gpt-4o-mini",
		"- Analyzed: 2026-03-09T15:04:05Z",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(out, marker)
		assert.Greater(t, idx, last, "section %q out of order", marker)
		last = idx
	}

	assert.Contains(t, out, "```\nmax_tokens: 1024\ntemperature: 0.2\n```")
	assert.Contains(t, out, "```python\ncache = {}\n```")
	assert.Contains(t, out, "- **03:15**: Demo")
}

func TestRender_OmitsEmptyOptionalSections(t *testing.T) {
	out := Render(testInsight("L1.2"), testItem(), testCreator())

	assert.NotContains(t, out, "## Technical Settings")
	assert.NotContains(t, out, "## Workflow Steps")
	assert.NotContains(t, out, "## Code Snippets")
	assert.NotContains(t, out, "## Timestamp References")
	assert.Contains(t, out, "## Key Insights")
}
