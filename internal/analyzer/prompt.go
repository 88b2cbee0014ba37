package analyzer

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/insightd/internal/domain"
)

const responseSchema = `{
  "primary_topic": string,
  "key_insights": [string, ...],
  "knowledge_category": string,
  "confidence_score": integer 0-100,
  "target_agents": [string, ...],        // agent ids such as "L1.2", "L2.4.1", "L3.4.1.3"; may be empty
  "technical_settings": {string: any},   // optional
  "code_snippets": [{"language": string, "description": string, "code": string}],  // optional
  "workflow_steps": [string, ...],       // optional
  "tools_mentioned": [string, ...],      // optional
  "key_takeaways": [string, ...],        // optional
  "timestamp_references": [{"timestamp": "mm:ss", "description": string}]         // optional
}`

// BuildPrompt assembles creator context, item metadata and the transcript,
// cut to budget characters when budget is positive.
func BuildPrompt(item domain.ContentItem, transcript string, creator domain.Creator, budget int) string {
	if budget > 0 {
		if runes := []rune(transcript); len(runes) > budget {
			transcript = string(runes[:budget])
		}
	}

	var b strings.Builder
	b.WriteString("You extract reusable technical knowledge from video transcripts for a tree of AI agents.\n\n")

	b.WriteString("## Creator\n")
	fmt.Fprintf(&b, "Name: %s\n", creator.Name())
	if creator.Handle != "" {
		fmt.Fprintf(&b, "Handle: %s\n", creator.Handle)
	}
	fmt.Fprintf(&b, "Priority: %s\n", creator.Priority)
	if creator.Focus != "" {
		fmt.Fprintf(&b, "Focus: %s\n", creator.Focus)
	}

	b.WriteString("\n## Item\n")
	fmt.Fprintf(&b, "ID: %s\n", item.ItemID)
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	if !item.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", item.PublishedAt.UTC().Format("2006-01-02"))
	}
	if item.DurationSeconds > 0 {
		fmt.Fprintf(&b, "Duration: %ds\n", item.DurationSeconds)
	}
	if desc := strings.TrimSpace(item.Description); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}

	b.WriteString("\n## Transcript\n")
	b.WriteString(transcript)
	b.WriteString("\n\n## Response\n")
	b.WriteString("Reply with a single JSON object and nothing else, using this shape:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\nScore confidence by how specific, correct and actionable the knowledge is.\n")
	return b.String()
}
