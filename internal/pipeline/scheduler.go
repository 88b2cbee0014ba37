// Package pipeline runs scan cycles: for each creator in a tier it discovers
// content, extracts transcripts, analyzes and scores them, and routes approved
// insights into the knowledge store.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloo-solutions/insightd/internal/confidence"
	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/cloo-solutions/insightd/internal/metrics"
	"github.com/cloo-solutions/insightd/internal/registry"
	"github.com/cloo-solutions/insightd/internal/telemetry"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LockFileName is created in the knowledge root while a cycle runs.
const LockFileName = ".insightd.lock"

// State is the scheduler's position in a scan cycle.
type State string

const (
	StateIdle            State = "IDLE"
	StateScanningCreator State = "SCANNING_CREATOR"
	StateProcessingItem  State = "PROCESSING_ITEM"
)

type CreatorSource interface {
	Load(ctx context.Context) ([]domain.Creator, error)
}

type ContentDiscoverer interface {
	Discover(ctx context.Context, creator domain.Creator) []domain.ContentItem
}

type TranscriptExtractor interface {
	Extract(ctx context.Context, itemID string) (*domain.TranscriptResult, bool)
}

type InsightAnalyzer interface {
	Analyze(ctx context.Context, item domain.ContentItem, transcript string, creator domain.Creator) *domain.Insight
}

type KnowledgeRouter interface {
	Route(in *domain.Insight, item domain.ContentItem, creator domain.Creator) ([]string, error)
	Rel(path string) string
}

// Recorder persists cycle history. Failures are logged and never abort a cycle.
type Recorder interface {
	StartCycle(ctx context.Context, s *domain.CycleSummary) error
	RecordOutcome(ctx context.Context, cycleID string, o domain.ItemOutcome) error
	FinishCycle(ctx context.Context, s *domain.CycleSummary) error
}

// Publisher mirrors written knowledge files; key is the path relative to
// the knowledge root.
type Publisher interface {
	Publish(ctx context.Context, key, path string) error
}

type ErrorReporter interface {
	Report(ctx context.Context, err error, attrs telemetry.SpanAttributes)
}

// Components are the pipeline stages, in call order.
type Components struct {
	Registry   CreatorSource
	Discoverer ContentDiscoverer
	Extractor  TranscriptExtractor
	Analyzer   InsightAnalyzer
	Router     KnowledgeRouter
}

type Config struct {
	Thresholds confidence.Thresholds
	// PersistStates lists the approval states that are routed. Empty means
	// approved only.
	PersistStates []domain.ApprovalState
	// Workers bounds how many creators are scanned at once.
	Workers int
	// LockPath serializes cycles across processes. Empty disables it.
	LockPath string
}

type Scheduler struct {
	c          Components
	thresholds confidence.Thresholds
	persist    map[domain.ApprovalState]bool
	workers    int
	lockPath   string

	recorder  Recorder
	publisher Publisher
	reporter  ErrorReporter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	running  sync.Mutex
	inflight sync.WaitGroup

	mu    sync.RWMutex
	state State
	last  *domain.CycleSummary
}

type Option func(*Scheduler)

func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

func WithReporter(r ErrorReporter) Option {
	return func(s *Scheduler) { s.reporter = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithIDGenerator overrides how cycle ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Scheduler) { s.newID = newID }
}

func New(c Components, cfg Config, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	persist := map[domain.ApprovalState]bool{domain.ApprovalApproved: true}
	for _, st := range cfg.PersistStates {
		persist[st] = true
	}

	s := &Scheduler{
		c:          c,
		thresholds: cfg.Thresholds,
		persist:    persist,
		workers:    cfg.Workers,
		lockPath:   cfg.LockPath,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the current cycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Latest returns the summary of the most recent finished cycle, or nil.
func (s *Scheduler) Latest() *domain.CycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// RunCycle scans every creator matching tier (all creators when nil) and
// returns the cycle summary. It fails only when the cycle cannot start: a
// cycle is already running or the registry cannot be loaded.
func (s *Scheduler) RunCycle(ctx context.Context, tier *domain.Priority) (*domain.CycleSummary, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.run(ctx, s.newID(), tier)
}

// Trigger starts a cycle in the background and returns its id. Both locks
// are taken before it returns, so a conflict is reported to the caller.
// ctx must outlive the cycle.
func (s *Scheduler) Trigger(ctx context.Context, tier *domain.Priority) (string, error) {
	release, err := s.acquire()
	if err != nil {
		return "", err
	}
	id := s.newID()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer release()
		if _, err := s.run(ctx, id, tier); err != nil {
			s.logger.Error("background scan cycle failed", zap.String("cycle_id", id), zap.Error(err))
		}
	}()
	return id, nil
}

// Wait blocks until background cycles started by Trigger have finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// acquire takes the in-process cycle mutex, then the lock file.
func (s *Scheduler) acquire() (func(), error) {
	if !s.running.TryLock() {
		return nil, domain.ErrCycleInProgress
	}
	unlock, err := s.lockStore()
	if err != nil {
		s.running.Unlock()
		return nil, err
	}
	return func() {
		unlock()
		s.running.Unlock()
	}, nil
}

// run executes one cycle. The caller holds both cycle locks.
func (s *Scheduler) run(ctx context.Context, id string, tier *domain.Priority) (*domain.CycleSummary, error) {
	summary := &domain.CycleSummary{
		ID:        id,
		Tier:      domain.TierLabel(tier),
		StartedAt: s.now().UTC(),
		Processed: map[string]int{},
		Outcomes:  map[domain.Outcome]int{},
		States:    map[domain.ApprovalState]int{},
	}
	logger := s.logger.With(zap.String("cycle_id", id), zap.String("tier", summary.Tier))

	ctx, span := telemetry.StartTransaction(ctx, "scan cycle "+summary.Tier, "pipeline.cycle")
	defer span.End()

	defer s.setState(StateIdle)
	s.setState(StateScanningCreator)

	creators, err := s.c.Registry.Load(ctx)
	if err != nil {
		logger.Error("registry unavailable, aborting cycle", zap.Error(err))
		summary.Error = err.Error()
		s.finish(ctx, summary, logger)
		span.SetError(err)
		return summary, err
	}
	selected := registry.Filter(creators, tier)
	for _, c := range selected {
		summary.Processed[c.ID] = 0
	}

	if s.recorder != nil {
		if err := s.recorder.StartCycle(ctx, summary); err != nil {
			logger.Warn("cycle ledger unavailable", zap.Error(err))
		}
	}
	logger.Info("scan cycle started", zap.Int("creators", len(selected)), zap.Int("workers", s.workers))

	collect := newCollector(summary)
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, creator := range selected {
		creator := creator
		g.Go(func() error {
			s.scanCreator(ctx, id, creator, collect, logger)
			return nil
		})
	}
	_ = g.Wait()

	s.finish(ctx, summary, logger)
	return summary, nil
}

func (s *Scheduler) finish(ctx context.Context, summary *domain.CycleSummary, logger *zap.Logger) {
	summary.FinishedAt = s.now().UTC()
	s.metrics.CycleCompleted(summary.Tier, summary.Duration())

	if s.recorder != nil {
		if err := s.recorder.FinishCycle(ctx, summary); err != nil {
			logger.Warn("failed to record cycle", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	logger.Info("scan cycle finished",
		zap.Int("total", summary.Total),
		zap.Int("files", len(summary.Written)),
		zap.Duration("elapsed", summary.Duration()))
}

// scanCreator processes one creator's items. A panic outside the item
// pipeline, in discovery for instance, is counted as one failed outcome for
// the creator and the cycle moves on.
func (s *Scheduler) scanCreator(ctx context.Context, cycleID string, creator domain.Creator, collect *collector, logger *zap.Logger) {
	logger = logger.With(zap.String("creator", creator.ID))
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("creator scan panic: %v", r)
		logger.Error("creator scan panicked", zap.Any("panic", r), zap.Stack("stack"))
		collect.add(domain.ItemOutcome{
			CreatorID:   creator.ID,
			Outcome:     domain.OutcomeFailed,
			Error:       err.Error(),
			ProcessedAt: s.now().UTC(),
		})
		s.metrics.ItemOutcome(string(domain.OutcomeFailed))
		if s.reporter != nil {
			s.reporter.Report(ctx, err, telemetry.SpanAttributes{
				CycleID:   cycleID,
				CreatorID: creator.ID,
				Operation: "scan_creator",
			})
		}
	}()
	s.setState(StateScanningCreator)

	ctx, span := telemetry.StartSpan(ctx, "scan creator", telemetry.SpanAttributes{
		CycleID:   cycleID,
		CreatorID: creator.ID,
		Operation: "discover",
	})
	defer span.End()

	items := s.c.Discoverer.Discover(ctx, creator)
	logger.Debug("items discovered", zap.Int("count", len(items)))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			logger.Warn("cycle canceled, skipping remaining items", zap.Error(err))
			return
		}
		s.setState(StateProcessingItem)
		out := s.processItem(ctx, cycleID, creator, item, logger)
		collect.add(out)

		s.metrics.ItemOutcome(string(out.Outcome))
		s.metrics.FilesWritten(len(out.Files))
		if s.recorder != nil {
			if err := s.recorder.RecordOutcome(ctx, cycleID, out); err != nil {
				logger.Warn("failed to record item outcome", zap.String("item", item.ItemID), zap.Error(err))
			}
		}
		s.setState(StateScanningCreator)
	}
}

// processItem runs one item through every stage. Panics are recovered here
// so that one item never takes down the cycle.
func (s *Scheduler) processItem(ctx context.Context, cycleID string, creator domain.Creator, item domain.ContentItem, logger *zap.Logger) (out domain.ItemOutcome) {
	logger = logger.With(zap.String("item", item.ItemID))
	out = domain.ItemOutcome{
		CreatorID: creator.ID,
		ItemID:    item.ItemID,
		Title:     item.Title,
	}
	defer func() {
		out.ProcessedAt = s.now().UTC()
		if r := recover(); r != nil {
			err := fmt.Errorf("item pipeline panic: %v", r)
			logger.Error("item pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			out.Outcome = domain.OutcomeFailed
			out.Error = err.Error()
			if s.reporter != nil {
				s.reporter.Report(ctx, err, telemetry.SpanAttributes{
					CycleID:   cycleID,
					CreatorID: creator.ID,
					ItemID:    item.ItemID,
					Operation: "process_item",
				})
			}
		}
	}()

	transcript, ok := s.c.Extractor.Extract(ctx, item.ItemID)
	if !ok || transcript == nil {
		logger.Debug("no usable transcript, skipping item")
		out.Outcome = domain.OutcomeNoTranscript
		return out
	}
	out.Method = transcript.MethodUsed

	insight := s.c.Analyzer.Analyze(ctx, item, transcript.Text, creator)
	if insight == nil {
		out.Outcome = domain.OutcomeAnalysisFailed
		return out
	}

	if err := confidence.Validate(insight); err != nil {
		logger.Warn("malformed insight rejected", zap.Error(err))
		out.Outcome = domain.OutcomeInvalid
		out.Error = err.Error()
		return out
	}

	score := insight.Score()
	out.Score = &score
	out.State = s.thresholds.Status(score)
	if !s.persist[out.State] {
		logger.Info("insight not persisted",
			zap.Int("score", score),
			zap.String("state", string(out.State)))
		out.Outcome = domain.OutcomeHeld
		return out
	}

	paths, err := s.c.Router.Route(insight, item, creator)
	for _, p := range paths {
		out.Files = append(out.Files, s.c.Router.Rel(p))
	}
	if err != nil {
		logger.Warn("routing incomplete", zap.Int("written", len(paths)), zap.Error(err))
		out.Error = err.Error()
	}
	if len(paths) == 0 {
		if err != nil {
			out.Outcome = domain.OutcomeFailed
		} else {
			out.Outcome = domain.OutcomeUnrouted
		}
		return out
	}

	out.Outcome = domain.OutcomeRouted
	s.publish(ctx, paths, logger)
	return out
}

func (s *Scheduler) publish(ctx context.Context, paths []string, logger *zap.Logger) {
	if s.publisher == nil {
		return
	}
	for _, p := range paths {
		key := s.c.Router.Rel(p)
		if err := s.publisher.Publish(ctx, key, p); err != nil {
			logger.Warn("knowledge mirror upload failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// lockStore takes the cross-process lock file, if configured.
func (s *Scheduler) lockStore() (func(), error) {
	if s.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(s.lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", s.lockPath, err)
	}
	if !locked {
		return nil, domain.Wrap(domain.ErrCycleInProgress, fmt.Errorf("%s is held by another process", s.lockPath))
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release cycle lock", zap.String("path", s.lockPath), zap.Error(err))
		}
	}, nil
}

// collector merges item outcomes from concurrent creator workers.
type collector struct {
	mu      sync.Mutex
	summary *domain.CycleSummary
}

func newCollector(summary *domain.CycleSummary) *collector {
	return &collector{summary: summary}
}

func (c *collector) add(out domain.ItemOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.summary
	s.Items = append(s.Items, out)
	s.Outcomes[out.Outcome]++
	if out.State != "" {
		s.States[out.State]++
	}
	if out.Outcome == domain.OutcomeRouted {
		s.Processed[out.CreatorID]++
		s.Total++
		s.Written = append(s.Written, out.Files...)
	}
}
