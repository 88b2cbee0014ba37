package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/insightd/internal/confidence"
	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment prefix; every key is also read without it.
const Prefix = "INSIGHT"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	RegistryPath     string `envconfig:"REGISTRY_PATH" required:"true"`
	RoutingRulesPath string `envconfig:"ROUTING_RULES_PATH"`
	KnowledgeRoot    string `envconfig:"KNOWLEDGE_ROOT" required:"true"`

	ConfidenceThreshold  int `envconfig:"CONFIDENCE_THRESHOLD" default:"85"`
	HumanReviewThreshold int `envconfig:"HUMAN_REVIEW_THRESHOLD" default:"70"`
	AutoRejectThreshold  int `envconfig:"AUTO_REJECT_THRESHOLD" default:"50"`

	MaxVideosPerScan int      `envconfig:"MAX_VIDEOS_PER_SCAN" default:"10"`
	ScanLookbackDays int      `envconfig:"SCAN_LOOKBACK_DAYS" default:"7"`
	MinVideoDuration int      `envconfig:"MIN_VIDEO_DURATION" default:"60"`
	MaxVideoDuration int      `envconfig:"MAX_VIDEO_DURATION" default:"7200"`
	ScanWorkers      int      `envconfig:"SCAN_WORKERS" default:"1"`
	PersistStates    []string `envconfig:"PERSIST_STATES" default:"approved"`

	TranscriptMethods  []string      `envconfig:"TRANSCRIPT_METHODS" default:"auto_captions,manual_captions,audio_transcription"`
	TranscriptMaxChars int           `envconfig:"TRANSCRIPT_MAX_CHARS" default:"50000"`
	TranscriptLanguage string        `envconfig:"TRANSCRIPT_LANGUAGE" default:"en"`
	TranscriptCacheDir string        `envconfig:"TRANSCRIPT_CACHE_DIR"`
	TranscriptCacheTTL time.Duration `envconfig:"TRANSCRIPT_CACHE_TTL" default:"72h"`
	YTDLPPath          string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`

	AnalysisRetryCount   int           `envconfig:"ANALYSIS_RETRY_COUNT" default:"3"`
	AnalysisMaxBackoff   time.Duration `envconfig:"ANALYSIS_MAX_BACKOFF" default:"60s"`
	AnalysisPromptBudget int           `envconfig:"ANALYSIS_PROMPT_BUDGET" default:"12000"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	LLMModel     string `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMBaseURL   string `envconfig:"LLM_BASE_URL"`
	WhisperModel string `envconfig:"WHISPER_MODEL" default:"whisper-1"`

	YouTubeAPIKey string `envconfig:"YOUTUBE_API_KEY"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"insightd-knowledge"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX"`

	// Tier cadences as standard five-field cron specs.
	CronCritical string `envconfig:"CRON_CRITICAL" default:"0 6 */3 * *"`
	CronHigh     string `envconfig:"CRON_HIGH" default:"0 6 * * 1"`
	CronMedium   string `envconfig:"CRON_MEDIUM" default:"0 6 1,15 * *"`
	CronLow      string `envconfig:"CRON_LOW" default:"0 6 1 * *"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.MinVideoDuration < 0 || c.MaxVideoDuration < c.MinVideoDuration {
		return fmt.Errorf("invalid duration bounds: min=%d max=%d", c.MinVideoDuration, c.MaxVideoDuration)
	}
	if c.AnalysisRetryCount < 1 {
		return fmt.Errorf("ANALYSIS_RETRY_COUNT must be at least 1, got %d", c.AnalysisRetryCount)
	}
	if c.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be at least 1, got %d", c.ScanWorkers)
	}
	if c.TranscriptMaxChars < 0 || (c.TranscriptMaxChars > 0 && c.TranscriptMaxChars < domain.MinTranscriptChars) {
		return fmt.Errorf("TRANSCRIPT_MAX_CHARS must be 0 (no cap) or at least %d, got %d",
			domain.MinTranscriptChars, c.TranscriptMaxChars)
	}
	if len(c.TranscriptMethods) == 0 {
		return fmt.Errorf("TRANSCRIPT_METHODS must list at least one method")
	}
	if _, err := c.PersistedStates(); err != nil {
		return err
	}
	return nil
}

// Thresholds returns the approval cut points.
func (c *Config) Thresholds() confidence.Thresholds {
	return confidence.Thresholds{
		Reject:  c.AutoRejectThreshold,
		Review:  c.HumanReviewThreshold,
		Approve: c.ConfidenceThreshold,
	}
}

// PersistedStates parses PERSIST_STATES. Approved insights are always persisted.
func (c *Config) PersistedStates() ([]domain.ApprovalState, error) {
	states := []domain.ApprovalState{domain.ApprovalApproved}
	for _, raw := range c.PersistStates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		state, ok := domain.ParseApprovalState(raw)
		if !ok {
			return nil, fmt.Errorf("PERSIST_STATES: unknown approval state %q", raw)
		}
		if state == domain.ApprovalApproved {
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

// CronSpecs returns the cadence for each tier.
func (c *Config) CronSpecs() map[domain.Priority]string {
	return map[domain.Priority]string{
		domain.PriorityCritical: c.CronCritical,
		domain.PriorityHigh:     c.CronHigh,
		domain.PriorityMedium:   c.CronMedium,
		domain.PriorityLow:      c.CronLow,
	}
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasYouTube() bool {
	return c.YouTubeAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasTranscriptCache() bool {
	return c.TranscriptCacheDir != ""
}
