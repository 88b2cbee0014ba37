package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `
default_agents: [L1.1]
rules:
  - category: llm-ops
    when: "score >= 95"
    agents: [L1.7]
  - category: LLM Ops
    topics: [caching]
    agents: [L1.2, L2.2.1]
  - category: "*"
    when: '"cursor" in tools'
    agents: [L1.3]
`

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRules_FirstMatchWins(t *testing.T) {
	rules, err := LoadRules(writeRules(t, "rules.yaml", rulesYAML))
	require.NoError(t, err)

	in := testInsight()
	targets, err := rules.Targets(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1.2", "L2.2.1"}, targets)

	in.ConfidenceScore = domain.IntPtr(97)
	targets, err = rules.Targets(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1.7"}, targets)
}

func TestRules_WhenOverTools(t *testing.T) {
	rules, err := LoadRules(writeRules(t, "rules.yaml", rulesYAML))
	require.NoError(t, err)

	in := testInsight()
	in.KnowledgeCategory = "editors"
	in.ToolsMentioned = []string{"cursor"}
	targets, err := rules.Targets(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1.3"}, targets)

	in.ToolsMentioned = nil
	targets, err = rules.Targets(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1.1"}, targets)
}

func TestRules_JSON(t *testing.T) {
	path := writeRules(t, "rules.json", `{"rules":[{"category":"llm-ops","agents":["L1.4"]}]}`)
	rules, err := LoadRules(path)
	require.NoError(t, err)

	targets, err := rules.Targets(testInsight())
	require.NoError(t, err)
	assert.Equal(t, []string{"L1.4"}, targets)
}

func TestRules_RejectsInvalidDocuments(t *testing.T) {
	docs := map[string]string{
		"bad.yaml":  "rules: [",
		"noag.yaml": "rules:\n  - category: x\n",
		"addr.yaml": "rules:\n  - category: x\n    agents: [L9.1]\n",
		"expr.yaml": "rules:\n  - category: x\n    when: 'score >>> 2'\n    agents: [L1.1]\n",
		"type.yaml": "rules:\n  - category: x\n    when: 'score + 1'\n    agents: [L1.1]\n",
		"ext.txt":   "rules: []",
	}
	for name, content := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, name, content))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrRulesUnavailable)
		})
	}
}

func TestRules_ReloadKeepsLastGood(t *testing.T) {
	path := writeRules(t, "rules.yaml", rulesYAML)
	rules, err := LoadRules(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("rules: ["), 0o644))
	assert.Error(t, rules.Reload())

	targets, err := rules.Targets(testInsight())
	require.NoError(t, err)
	assert.Equal(t, []string{"L1.2", "L2.2.1"}, targets)
}
