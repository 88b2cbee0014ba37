// Package cli implements the insightd commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/insightd/internal/analyzer"
	"github.com/cloo-solutions/insightd/internal/config"
	"github.com/cloo-solutions/insightd/internal/database"
	"github.com/cloo-solutions/insightd/internal/discovery"
	"github.com/cloo-solutions/insightd/internal/logging"
	"github.com/cloo-solutions/insightd/internal/metrics"
	"github.com/cloo-solutions/insightd/internal/openai"
	"github.com/cloo-solutions/insightd/internal/pipeline"
	"github.com/cloo-solutions/insightd/internal/registry"
	"github.com/cloo-solutions/insightd/internal/repository"
	"github.com/cloo-solutions/insightd/internal/router"
	"github.com/cloo-solutions/insightd/internal/storage"
	"github.com/cloo-solutions/insightd/internal/telemetry"
	"github.com/cloo-solutions/insightd/internal/transcript"
	"go.uber.org/zap"
)

// App holds the wired pipeline and its optional integrations.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Registry  *registry.Registry
	Rules     *router.Rules
	Router    *router.Router
	Scheduler *pipeline.Scheduler

	// Ledger and Mirror are nil when not configured.
	Ledger *repository.CycleRepository
	Mirror *storage.S3Client

	closers []func()
}

type buildOptions struct {
	migrate bool
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.LogFormat,
		Environment: cfg.Environment,
	})
}

// buildApp wires every pipeline stage from cfg. The caller must Close the
// returned App.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts buildOptions) (app *App, err error) {
	if !cfg.HasOpenAI() {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if !cfg.HasYouTube() {
		return nil, errors.New("YOUTUBE_API_KEY is required")
	}
	persist, err := cfg.PersistedStates()
	if err != nil {
		return nil, err
	}

	app = &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.New(),
		Registry: registry.New(cfg.RegistryPath),
	}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if cfg.RoutingRulesPath != "" {
		rules, err := router.LoadRules(cfg.RoutingRulesPath)
		if err != nil {
			return nil, fmt.Errorf("load routing rules: %w", err)
		}
		app.Rules = rules
	}
	app.Router = router.New(cfg.KnowledgeRoot, logger.Named("router"), router.WithRules(app.Rules))

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.LLMBaseURL,
		Model:        cfg.LLMModel,
		WhisperModel: cfg.WhisperModel,
	})

	youtube, err := discovery.NewYouTubeClient(discovery.YouTubeConfig{APIKey: cfg.YouTubeAPIKey})
	if err != nil {
		return nil, err
	}
	discoverer := discovery.New(discovery.NewBreakerPlatform(youtube, logger.Named("discovery")), discovery.Options{
		MaxItems:     cfg.MaxVideosPerScan,
		LookbackDays: cfg.ScanLookbackDays,
		MinDuration:  cfg.MinVideoDuration,
		MaxDuration:  cfg.MaxVideoDuration,
	}, logger.Named("discovery"))

	extractor, err := app.buildExtractor(llm)
	if err != nil {
		return nil, err
	}

	insights := analyzer.New(llm, analyzer.Options{
		Attempts:     cfg.AnalysisRetryCount,
		MaxBackoff:   cfg.AnalysisMaxBackoff,
		PromptBudget: cfg.AnalysisPromptBudget,
	}, logger.Named("analyzer"),
		analyzer.WithReporter(telemetry.Reporter{}),
		analyzer.WithMetrics(app.Metrics))

	schedOpts := []pipeline.Option{
		pipeline.WithMetrics(app.Metrics),
		pipeline.WithReporter(telemetry.Reporter{}),
	}

	if cfg.HasDatabase() {
		if opts.migrate {
			if _, err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, ConnectTimeout: 30 * time.Second})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)
		app.Ledger = repository.NewCycleRepository(pool)
		schedOpts = append(schedOpts, pipeline.WithRecorder(app.Ledger))
	}

	if cfg.HasS3() {
		mirror, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info("knowledge mirror ready", zap.String("bucket", cfg.S3Bucket))
		app.Mirror = mirror
		schedOpts = append(schedOpts, pipeline.WithPublisher(mirror))
	}

	app.Scheduler = pipeline.New(pipeline.Components{
		Registry:   app.Registry,
		Discoverer: discoverer,
		Extractor:  extractor,
		Analyzer:   insights,
		Router:     app.Router,
	}, pipeline.Config{
		Thresholds:    cfg.Thresholds(),
		PersistStates: persist,
		Workers:       cfg.ScanWorkers,
		LockPath:      filepath.Join(cfg.KnowledgeRoot, pipeline.LockFileName),
	}, logger.Named("pipeline"), schedOpts...)

	return app, nil
}

func (a *App) buildExtractor(transcriber transcript.Transcriber) (*transcript.Extractor, error) {
	cfg := a.Config
	ytdlp := transcript.NewYTDLP(cfg.YTDLPPath, transcript.ExecRunner{})
	methods := []transcript.Method{
		transcript.NewAutoCaptions(ytdlp, cfg.TranscriptLanguage),
		transcript.NewManualCaptions(ytdlp, cfg.TranscriptLanguage),
		transcript.NewAudioMethod(ytdlp, transcriber, cfg.TranscriptLanguage),
	}

	if cfg.HasTranscriptCache() {
		cache, err := transcript.OpenCache(cfg.TranscriptCacheDir, cfg.TranscriptCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("open transcript cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := cache.Close(); err != nil {
				a.Logger.Warn("failed to close transcript cache", zap.Error(err))
			}
		})
		for i, m := range methods {
			methods[i] = transcript.NewCachedMethod(m, cache, a.Logger.Named("transcript"))
		}
	}

	return transcript.NewExtractor(methods, transcript.Options{
		Order:    cfg.TranscriptMethods,
		MaxChars: cfg.TranscriptMaxChars,
		Language: cfg.TranscriptLanguage,
	}, a.Logger.Named("transcript")), nil
}

// Close releases the ledger pool and transcript cache.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
