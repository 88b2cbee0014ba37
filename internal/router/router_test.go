package router

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var scanDate = time.Date(2026, 3, 9, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return scanDate }

func testInsight(targets ...string) *domain.Insight {
	return &domain.Insight{
		PrimaryTopic:      "Prompt caching",
		KeyInsights:       []string{"Cache the system prompt", "Keep tool schemas stable"},
		KnowledgeCategory: "LLM Ops",
		ConfidenceScore:   domain.IntPtr(92),
		TargetAgents:      targets,
		Model:             "gpt-4o-mini",
		AnalyzedAt:        scanDate,
	}
}

func testItem() domain.ContentItem {
	return domain.ContentItem{ItemID: "abc123", Title: "Caching deep dive", DurationSeconds: 600}
}

func testCreator() domain.Creator {
	return domain.Creator{ID: "demo", Priority: domain.PriorityCritical}
}

func TestRoute_WritesDeterministicFile(t *testing.T) {
	root := t.TempDir()
	r := New(root, zap.NewNop(), WithClock(fixedClock))

	paths, err := r.Route(testInsight("L1.2"), testItem(), testCreator())
	require.NoError(t, err)
	require.Len(t, paths, 1)

	want := filepath.Join(root, "L1.2", "llm-ops", "demo-abc123-20260309.md")
	assert.Equal(t, want, paths[0])

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Topic\n\nPrompt caching")
	assert.Contains(t, string(data), "1. Cache the system prompt\n2. Keep tool schemas stable")
	assert.Equal(t, "L1.2/llm-ops/demo-abc123-20260309.md", r.Rel(want))
}

func TestRoute_Idempotent(t *testing.T) {
	root := t.TempDir()
	r := New(root, zap.NewNop(), WithClock(fixedClock))

	first, err := r.Route(testInsight("L1.2"), testItem(), testCreator())
	require.NoError(t, err)

	in := testInsight("L1.2")
	in.PrimaryTopic = "Prompt caching, revised"
	second, err := r.Route(in, testItem(), testCreator())
	require.NoError(t, err)

	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Join(root, "L1.2", "llm-ops"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(second[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "revised")
}

func TestRoute_SkipsMissingParent(t *testing.T) {
	root := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(root, zap.New(core), WithClock(fixedClock))

	paths, err := r.Route(testInsight("L2.4.2", "L1.1"), testItem(), testCreator())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], filepath.Join(root, "L1.1"))

	_, statErr := os.Stat(filepath.Join(root, "L1.4"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 1, logs.FilterMessage("skipping agent with missing parent").Len())
}

func TestRoute_SkipsDeepAgentWithoutRoot(t *testing.T) {
	tests := map[string]func(root string){
		"no L1 directory": func(string) {},
		"no L2 directory": func(root string) {
			require.NoError(t, os.MkdirAll(filepath.Join(root, "L1.4"), 0o755))
		},
	}
	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			setup(root)
			core, logs := observer.New(zapcore.WarnLevel)
			r := New(root, zap.New(core), WithClock(fixedClock))

			paths, err := r.Route(testInsight("L3.4.2.7"), testItem(), testCreator())
			require.NoError(t, err)
			assert.Empty(t, paths)

			_, statErr := os.Stat(filepath.Join(root, "L1.4", "sub-agents"))
			assert.True(t, os.IsNotExist(statErr))
			assert.Equal(t, 1, logs.FilterMessage("skipping agent with missing parent").Len())
		})
	}
}

func TestRoute_NestedAgents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "L1.4", "sub-agents", "L2.4.2"), 0o755))
	r := New(root, zap.NewNop(), WithClock(fixedClock))

	paths, err := r.Route(testInsight("L3.4.2.7", "L2.4.2"), testItem(), testCreator())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t,
		filepath.Join(root, "L1.4", "sub-agents", "L2.4.2", "micro-agents", "L3.4.2.7", "llm-ops", "demo-abc123-20260309.md"),
		paths[0])
	assert.Equal(t,
		filepath.Join(root, "L1.4", "sub-agents", "L2.4.2", "llm-ops", "demo-abc123-20260309.md"),
		paths[1])
}

func TestRoute_InvalidAddressDoesNotAbort(t *testing.T) {
	root := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(root, zap.New(core), WithClock(fixedClock))

	paths, err := r.Route(testInsight("agent-seven", "L1.3"), testItem(), testCreator())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 1, logs.FilterMessage("skipping unparseable agent address").Len())
}

func TestRoute_DeduplicatesTargets(t *testing.T) {
	root := t.TempDir()
	r := New(root, zap.NewNop(), WithClock(fixedClock))

	paths, err := r.Route(testInsight("L1.2", " l1.2 ", "L1.2"), testItem(), testCreator())
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestRoute_FallsBackToRules(t *testing.T) {
	root := t.TempDir()
	rules, err := NewRules(RulesDocument{
		DefaultAgents: []string{"L1.9"},
		Rules: []Rule{
			{Category: "llm-ops", Topics: []string{"caching"}, Agents: []string{"L1.5"}},
		},
	})
	require.NoError(t, err)
	r := New(root, zap.NewNop(), WithClock(fixedClock), WithRules(rules))

	paths, err := r.Route(testInsight(), testItem(), testCreator())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], filepath.Join(root, "L1.5")))

	// explicit targets win over rules
	paths, err = r.Route(testInsight("L1.2"), testItem(), testCreator())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], filepath.Join(root, "L1.2")))
}

func TestRoute_NoTargetsWritesNothing(t *testing.T) {
	root := t.TempDir()
	r := New(root, zap.NewNop(), WithClock(fixedClock))

	paths, err := r.Route(testInsight(), testItem(), testCreator())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestRoute_NoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	r := New(root, zap.NewNop(), WithClock(fixedClock))

	_, err := r.Route(testInsight("L1.2"), testItem(), testCreator())
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "L1.2", "llm-ops"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), e.Name())
	}
}

func TestFileName(t *testing.T) {
	c := domain.Creator{ID: "jose", DisplayName: "José Núñez Tech"}
	assert.Equal(t, "jose-nunez-tech-vid_1-20260309.md", FileName(c, "vid/1", scanDate))
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"LLM Ops":          "llm-ops",
		"  Prompt--Eng  ":  "prompt-eng",
		"Café Crème":       "cafe-creme",
		"agents/workflows": "agents-workflows",
		"!!!":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}
