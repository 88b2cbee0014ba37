package router

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
)

// Render formats an insight as a knowledge file. Sections always appear in
// the same order; optional sections are omitted when empty.
func Render(in *domain.Insight, item domain.ContentItem, creator domain.Creator) string {
	var b strings.Builder

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = in.PrimaryTopic
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	creatorLine := creator.Name()
	if creator.Handle != "" {
		creatorLine += " (" + creator.Handle + ")"
	}
	fmt.Fprintf(&b, "- **Creator:** %s\n", creatorLine)
	fmt.Fprintf(&b, "- **Item:** %s\n", item.ItemID)
	if item.SourceURL != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", item.SourceURL)
	}
	if !item.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "- **Published:** %s\n", item.PublishedAt.UTC().Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "- **Confidence:** %d\n\n", in.Score())

	fmt.Fprintf(&b, "## Topic\n\n%s\n\n", in.PrimaryTopic)

	b.WriteString("## Key Insights\n\n")
	writeNumbered(&b, in.KeyInsights)

	if len(in.TechnicalSettings) > 0 {
		b.WriteString("## Technical Settings\n\n```\n")
		keys := make([]string, 0, len(in.TechnicalSettings))
		for k := range in.TechnicalSettings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, settingValue(in.TechnicalSettings[k]))
		}
		b.WriteString("```\n\n")
	}

	if len(in.WorkflowSteps) > 0 {
		b.WriteString("## Workflow Steps\n\n")
		writeNumbered(&b, in.WorkflowSteps)
	}

	if len(in.CodeSnippets) > 0 {
		b.WriteString("## Code Snippets\n\n")
		for _, snippet := range in.CodeSnippets {
			if snippet.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", snippet.Description)
			}
			fmt.Fprintf(&b, "```%s\n%s\n```\n\n", snippet.Language, strings.TrimRight(snippet.Code, "\n"))
		}
	}

	if len(in.ToolsMentioned) > 0 {
		b.WriteString("## Tools Mentioned\n\n")
		writeBullets(&b, in.ToolsMentioned)
	}

	if len(in.KeyTakeaways) > 0 {
		b.WriteString("## Key Takeaways\n\n")
		writeBullets(&b, in.KeyTakeaways)
	}

	if len(in.TimestampReferences) > 0 {
		b.WriteString("## Timestamp References\n\n")
		for _, ref := range in.TimestampReferences {
			if ref.Description == "" {
				fmt.Fprintf(&b, "- **%s**\n", ref.Timestamp)
				continue
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", ref.Timestamp, ref.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "- Category: %s\n", in.KnowledgeCategory)
	fmt.Fprintf(&b, "- Model: %s\n", in.Model)
	analyzed := ""
	if !in.AnalyzedAt.IsZero() {
		analyzed = in.AnalyzedAt.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "- Analyzed: %s\n", analyzed)

	return b.String()
}

func writeNumbered(b *strings.Builder, items []string) {
	n := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n++
		fmt.Fprintf(b, "%d. %s\n", n, item)
	}
	b.WriteString("\n")
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func settingValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
