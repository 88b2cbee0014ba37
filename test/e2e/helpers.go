//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/insightd/internal/analyzer"
	"github.com/cloo-solutions/insightd/internal/api/handlers"
	"github.com/cloo-solutions/insightd/internal/confidence"
	"github.com/cloo-solutions/insightd/internal/discovery"
	"github.com/cloo-solutions/insightd/internal/metrics"
	"github.com/cloo-solutions/insightd/internal/pipeline"
	"github.com/cloo-solutions/insightd/internal/registry"
	"github.com/cloo-solutions/insightd/internal/repository"
	"github.com/cloo-solutions/insightd/internal/router"
	"github.com/cloo-solutions/insightd/internal/server"
	"github.com/cloo-solutions/insightd/internal/storage"
	"github.com/cloo-solutions/insightd/internal/testutil"
	"github.com/cloo-solutions/insightd/internal/transcript"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const registryYAML = `
creators:
  - id: demo
    name: Demo Creator
    priority: critical
    scan_last_n_videos: 1
  - id: later
    priority: low
`

const captionsVTT = `WEBVTT

00:00:00.000 --> 00:00:04.000
today we cache prompts across agent runs

00:00:04.000 --> 00:00:08.000
and measure the latency we save per request

00:00:08.000 --> 00:00:12.000
the hit rate matters more than the raw size of the cache for most teams
`

const insightJSON = `{
  "primary_topic": "Prompt caching",
  "key_insights": ["Cache the system prompt", "Measure hit rate per route"],
  "knowledge_category": "llm-ops",
  "confidence_score": 88,
  "target_agents": ["L1.2"],
  "tools_mentioned": ["redis"]
}`

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	Pool      *pgxpool.Pool
	S3Client  *storage.S3Client
	Ledger    *repository.CycleRepository
	Metrics   *metrics.Metrics

	KnowledgeRoot string
	RegistryPath  string
	Platform      *httptest.Server
	LLM           *fakeCompleter
	Scheduler     *pipeline.Scheduler
	Server        *httptest.Server
	HTTPClient    *http.Client
}

// SetupE2EEnv starts Postgres and RustFS and serves a scheduler whose
// platform, yt-dlp and LLM are local fakes.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "test-knowledge",
		Prefix:          "mirror",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:             t,
		Ctx:           ctx,
		PostgresC:     pgC,
		RustFSC:       s3C,
		Pool:          pool,
		S3Client:      s3Client,
		Ledger:        repository.NewCycleRepository(pool),
		Metrics:       metrics.New(),
		KnowledgeRoot: t.TempDir(),
		LLM:           &fakeCompleter{response: insightJSON},
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}

	env.RegistryPath = filepath.Join(t.TempDir(), "creators.yaml")
	if err := os.WriteFile(env.RegistryPath, []byte(registryYAML), 0o644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}

	env.Platform = httptest.NewServer(http.HandlerFunc(fakeYouTube))
	env.Scheduler = env.newScheduler()
	env.Server = env.serve(env.Scheduler)
	return env
}

// Cleanup releases every resource of the environment
func (e *E2ETestEnv) Cleanup() {
	e.Scheduler.Wait()
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Platform != nil {
		e.Platform.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
}

func (e *E2ETestEnv) newScheduler() *pipeline.Scheduler {
	logger := zap.NewNop()

	youtube, err := discovery.NewYouTubeClient(discovery.YouTubeConfig{APIKey: "e2e-key", BaseURL: e.Platform.URL})
	if err != nil {
		e.T.Fatalf("failed to create platform client: %v", err)
	}
	discoverer := discovery.New(discovery.NewBreakerPlatform(youtube, logger), discovery.Options{
		MaxItems:     10,
		LookbackDays: 7,
		MinDuration:  60,
		MaxDuration:  7200,
	}, logger)

	ytdlp := transcript.NewYTDLP("yt-dlp", captionRunner{})
	extractor := transcript.NewExtractor([]transcript.Method{
		transcript.NewAutoCaptions(ytdlp, "en"),
		transcript.NewManualCaptions(ytdlp, "en"),
	}, transcript.Options{MaxChars: 50000, Language: "en"}, logger)

	insights := analyzer.New(e.LLM, analyzer.Options{Attempts: 1}, logger, analyzer.WithMetrics(e.Metrics))

	return pipeline.New(pipeline.Components{
		Registry:   registry.New(e.RegistryPath),
		Discoverer: discoverer,
		Extractor:  extractor,
		Analyzer:   insights,
		Router:     router.New(e.KnowledgeRoot, logger),
	}, pipeline.Config{
		Thresholds: confidence.DefaultThresholds(),
		Workers:    2,
		LockPath:   filepath.Join(e.KnowledgeRoot, pipeline.LockFileName),
	}, logger,
		pipeline.WithRecorder(e.Ledger),
		pipeline.WithPublisher(e.S3Client),
		pipeline.WithMetrics(e.Metrics))
}

func (e *E2ETestEnv) serve(s *pipeline.Scheduler) *httptest.Server {
	return httptest.NewServer(server.NewRouter(server.RouterConfig{
		CycleHandler: handlers.NewCycleHandler(e.Ctx, s, e.Ledger),
		Metrics:      e.Metrics.Handler(),
	}))
}

// Restart replaces the scheduler and server, dropping in-memory state.
func (e *E2ETestEnv) Restart() {
	e.Scheduler.Wait()
	e.Server.Close()
	e.Scheduler = e.newScheduler()
	e.Server = e.serve(e.Scheduler)
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Raw        []byte
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, "")
}

func (e *E2ETestEnv) Post(path, body string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) doRequest(method, path, body string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	apiResp := &APIResponse{StatusCode: resp.StatusCode, Raw: raw}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, apiResp); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return apiResp, nil
}

// fakeYouTube serves one recent ten-minute upload per channel.
func fakeYouTube(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/search":
		channel := r.URL.Query().Get("channelId")
		published := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
		fmt.Fprintf(w, `{"items":[{"id":{"videoId":"%s-v1"},"snippet":{"title":"Caching prompts","publishedAt":"%s"}}]}`, channel, published)
	case "/videos":
		var items []string
		for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
			items = append(items, fmt.Sprintf(`{"id":"%s","contentDetails":{"duration":"PT10M"}}`, id))
		}
		fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	default:
		http.NotFound(w, r)
	}
}

// captionRunner stands in for yt-dlp and writes captions into the -o dir.
type captionRunner struct{}

func (captionRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			path := filepath.Join(filepath.Dir(args[i+1]), "item.en.vtt")
			return nil, os.WriteFile(path, []byte(captionsVTT), 0o644)
		}
	}
	return nil, nil
}

// fakeCompleter answers every prompt with response. While gate is set,
// calls block until it is closed.
type fakeCompleter struct {
	mu       sync.Mutex
	response string
	gate     chan struct{}
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, nil
}

func (f *fakeCompleter) Model() string {
	return "e2e-model"
}

func (f *fakeCompleter) Hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
