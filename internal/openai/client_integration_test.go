//go:build integration

package openai_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/insightd/internal/analyzer"
	"github.com/cloo-solutions/insightd/internal/confidence"
	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/cloo-solutions/insightd/internal/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleTranscript = `Today I want to show how we cut our agent latency in half.
The trick is prompt caching: keep the system prompt and tool schemas byte-identical
across calls so the provider can reuse the prefix. We measured hit rate per route and
found that moving timestamps out of the system prompt took us from twelve percent to
ninety percent cache hits. Tools mentioned: Redis for the response cache, Grafana for
dashboards.`

func TestIntegration_AnalyzeTranscript(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}
	client := openai.NewClient(apiKey)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	insights := analyzer.New(client, analyzer.Options{Attempts: 2, PromptBudget: 12000}, zap.NewNop())
	insight := insights.Analyze(ctx,
		domain.ContentItem{ItemID: "int-test", Title: "Halving agent latency with prompt caching", DurationSeconds: 600},
		sampleTranscript,
		domain.Creator{ID: "demo", Priority: domain.PriorityCritical, Focus: "llm-ops"},
	)

	require.NotNil(t, insight, "analysis returned no insight")
	require.NoError(t, confidence.Validate(insight))
	assert.NotEmpty(t, insight.KeyInsights)
	assert.Contains(t, strings.ToLower(insight.PrimaryTopic+strings.Join(insight.KeyInsights, " ")), "cach")
}
