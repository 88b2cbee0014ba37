//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/insightd/internal/api/handlers"
	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triggerCycle(t *testing.T, env *E2ETestEnv, body string) handlers.TriggerCycleResponse {
	t.Helper()
	resp, err := env.Post("/cycles", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(resp.Raw))

	var accepted handlers.TriggerCycleResponse
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))
	require.NotEmpty(t, accepted.CycleID)
	return accepted
}

func getSummary(t *testing.T, env *E2ETestEnv, path string) domain.CycleSummary {
	t.Helper()
	resp, err := env.Get(path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Raw))

	var summary domain.CycleSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	return summary
}

func TestE2E_DemoCycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	accepted := triggerCycle(t, env, `{"tier":"critical"}`)
	assert.Equal(t, "critical", accepted.Tier)
	env.Scheduler.Wait()

	t.Run("latest summary", func(t *testing.T) {
		summary := getSummary(t, env, "/cycles/latest")
		assert.Equal(t, accepted.CycleID, summary.ID)
		assert.Equal(t, "critical", summary.Tier)
		assert.Empty(t, summary.Error)
		assert.Equal(t, 1, summary.Total)
		assert.Equal(t, map[string]int{"demo": 1}, summary.Processed)
		assert.Equal(t, 1, summary.Outcomes[domain.OutcomeRouted])
		require.Len(t, summary.Written, 1)
		assert.True(t, strings.HasPrefix(summary.Written[0], "L1.2/llm-ops/demo-"), summary.Written[0])
	})

	t.Run("knowledge file on disk", func(t *testing.T) {
		summary := getSummary(t, env, "/cycles/latest")
		require.Len(t, summary.Written, 1)

		content, err := os.ReadFile(filepath.Join(env.KnowledgeRoot, filepath.FromSlash(summary.Written[0])))
		require.NoError(t, err)
		assert.Contains(t, string(content), "Prompt caching")
		assert.Contains(t, string(content), "Cache the system prompt")
	})

	t.Run("mirrored to object storage", func(t *testing.T) {
		summary := getSummary(t, env, "/cycles/latest")
		require.Len(t, summary.Written, 1)

		meta, err := env.S3Client.HeadObject(env.Ctx, env.S3Client.Key(summary.Written[0]))
		require.NoError(t, err)
		assert.Positive(t, meta.ContentLength)
	})

	t.Run("cycle by id includes items", func(t *testing.T) {
		summary := getSummary(t, env, "/cycles/"+accepted.CycleID)
		require.Len(t, summary.Items, 1)
		item := summary.Items[0]
		assert.Equal(t, "demo", item.CreatorID)
		assert.Equal(t, "demo-v1", item.ItemID)
		assert.Equal(t, domain.OutcomeRouted, item.Outcome)
		assert.Equal(t, domain.ApprovalApproved, item.State)
		require.NotNil(t, item.Score)
		assert.Equal(t, 88, *item.Score)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := env.Get("/metrics")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := string(resp.Raw)
		assert.Contains(t, body, "insightd_files_written_total 1")
		assert.Contains(t, body, `insightd_cycles_total{tier="critical"} 1`)
	})

	assert.Equal(t, 1, env.LLM.Calls())
}

func TestE2E_ConcurrentTriggerConflict(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	gate := env.LLM.Hold()
	first := triggerCycle(t, env, `{"tier":"critical"}`)

	resp, err := env.Post("/cycles", `{"tier":"low"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, resp.Error)

	close(gate)
	env.Scheduler.Wait()

	summary := getSummary(t, env, "/cycles/latest")
	assert.Equal(t, first.CycleID, summary.ID)

	second := triggerCycle(t, env, `{"tier":"low"}`)
	env.Scheduler.Wait()
	assert.Equal(t, second.CycleID, getSummary(t, env, "/cycles/latest").ID)
}

func TestE2E_LedgerSurvivesRestart(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	accepted := triggerCycle(t, env, "")
	assert.Equal(t, "all", accepted.Tier)
	env.Scheduler.Wait()

	env.Restart()

	summary := getSummary(t, env, "/cycles/latest")
	assert.Equal(t, accepted.CycleID, summary.ID)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, map[string]int{"demo": 1, "later": 1}, summary.Processed)

	resp, err := env.Get("/cycles?limit=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Raw))

	var cycles []domain.CycleSummary
	require.NoError(t, json.Unmarshal(resp.Data, &cycles))
	require.Len(t, cycles, 1)
	assert.Equal(t, accepted.CycleID, cycles[0].ID)

	byID := getSummary(t, env, "/cycles/"+accepted.CycleID)
	assert.Len(t, byID.Items, 2)
}
