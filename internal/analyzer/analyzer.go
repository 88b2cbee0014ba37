// Package analyzer turns a transcript into a structured insight using an LLM.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/cloo-solutions/insightd/internal/metrics"
	"github.com/cloo-solutions/insightd/internal/openai"
	"github.com/cloo-solutions/insightd/internal/telemetry"
	"go.uber.org/zap"
)

const (
	defaultAttempts   = 3
	defaultMaxBackoff = 60 * time.Second

	// First retry waits this long; each later retry doubles it.
	baseBackoff = 2 * time.Second
)

// Completer is a single-turn LLM completion service.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ErrorReporter receives analysis failures that were not recovered.
type ErrorReporter interface {
	Report(ctx context.Context, err error, attrs telemetry.SpanAttributes)
}

// Options configures retry and prompt size.
type Options struct {
	Attempts     int
	MaxBackoff   time.Duration
	PromptBudget int
}

type Analyzer struct {
	llm      Completer
	opts     Options
	logger   *zap.Logger
	reporter ErrorReporter
	metrics  *metrics.Metrics
	now      func() time.Time
	newTimer func() backoff.Timer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithReporter sets where exhausted analyses are reported.
func WithReporter(r ErrorReporter) Option {
	return func(a *Analyzer) { a.reporter = r }
}

// WithMetrics records attempts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithTimer overrides how retry waits are performed (useful for tests).
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(a *Analyzer) { a.newTimer = newTimer }
}

// WithClock overrides the analysis timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func New(llm Completer, opts Options, logger *zap.Logger, options ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	a := &Analyzer{
		llm:    llm,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Analyze returns the insight for one item, or nil when every attempt
// failed or the service rejected the request outright. Shape validation is
// left to the confidence package.
func (a *Analyzer) Analyze(ctx context.Context, item domain.ContentItem, transcript string, creator domain.Creator) *domain.Insight {
	prompt := BuildPrompt(item, transcript, creator, a.opts.PromptBudget)

	attempt := 0
	var insight *domain.Insight
	operation := func() error {
		attempt++
		response, err := a.llm.Complete(ctx, prompt)
		if err != nil {
			if errors.Is(err, openai.ErrInvalidRequest) || errors.Is(err, openai.ErrEmptyPrompt) {
				a.metrics.AnalysisAttempt(metrics.AttemptPermanent)
				return backoff.Permanent(err)
			}
			a.metrics.AnalysisAttempt(metrics.AttemptRetry)
			return err
		}

		decoded, err := DecodeInsight(response)
		if err != nil {
			a.metrics.AnalysisAttempt(metrics.AttemptParseFailed)
			return err
		}
		insight = decoded
		a.metrics.AnalysisAttempt(metrics.AttemptSuccess)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		a.logger.Warn("analysis attempt failed, retrying",
			zap.String("item", item.ItemID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	var timer backoff.Timer
	if a.newTimer != nil {
		timer = a.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, a.policy(ctx), notify, timer)
	if err != nil {
		invalid := errors.Is(err, openai.ErrInvalidRequest)
		a.logger.Error("analysis failed",
			zap.String("item", item.ItemID),
			zap.String("creator", creator.ID),
			zap.Int("attempts", attempt),
			zap.Bool("invalid_request", invalid),
			zap.Error(err))
		if !invalid {
			a.metrics.AnalysisAttempt(metrics.AttemptExhausted)
		}
		if a.reporter != nil {
			a.reporter.Report(ctx, fmt.Errorf("analyze %s: %w", item.ItemID, err), telemetry.SpanAttributes{
				CreatorID: creator.ID,
				ItemID:    item.ItemID,
				Operation: "analyze",
			})
		}
		return nil
	}

	insight.SourceItemID = item.ItemID
	insight.SourceCreatorID = creator.ID
	insight.AnalyzedAt = a.now().UTC()
	insight.Model = a.llm.Model()
	return insight
}

// policy waits 2s, 4s, 8s ... between attempts, capped at MaxBackoff, with
// no jitter.
func (a *Analyzer) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = min(baseBackoff, a.opts.MaxBackoff)
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = a.opts.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(a.opts.Attempts-1)), ctx)
}
