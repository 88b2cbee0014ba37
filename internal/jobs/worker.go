// Package jobs triggers scan cycles on each priority tier's cadence.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CycleRunner runs one scan cycle for a tier
type CycleRunner interface {
	RunCycle(ctx context.Context, tier *domain.Priority) (*domain.CycleSummary, error)
}

// Worker fires a scan cycle per tier on a cron schedule
type Worker struct {
	runner  CycleRunner
	cron    *cron.Cron
	logger  *zap.Logger
	entries map[domain.Priority]cron.EntryID

	mu  sync.RWMutex
	ctx context.Context

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker schedules every tier with a non-empty spec. Specs use the
// standard five-field cron syntax unless opts change the parser.
func NewWorker(runner CycleRunner, specs map[domain.Priority]string, logger *zap.Logger, opts ...cron.Option) (*Worker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		runner:   runner,
		cron:     cron.New(opts...),
		logger:   logger,
		entries:  make(map[domain.Priority]cron.EntryID, len(specs)),
		ctx:      context.Background(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	for _, tier := range domain.Priorities {
		tier := tier
		spec := specs[tier]
		if spec == "" {
			continue
		}
		id, err := w.cron.AddFunc(spec, func() { w.fire(tier) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s tier %q: %w", tier, spec, err)
		}
		w.entries[tier] = id
	}
	return w, nil
}

// Start runs the schedule until ctx is canceled or Stop is called. A cycle
// that is running when the worker stops is allowed to finish.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.cron.Start()
	for tier := range w.entries {
		w.logger.Info("tier scheduled", zap.String("tier", string(tier)), zap.Time("next", w.Next(tier)))
	}

	select {
	case <-ctx.Done():
		w.logger.Info("scheduler stopped: context cancelled")
	case <-w.stopChan:
		w.logger.Info("scheduler stopped: stop signal received")
	}
	<-w.cron.Stop().Done()
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	w.logger.Info("scheduler shutdown complete")
}

// Next returns when tier fires next, or the zero time if it is unscheduled
// or the worker has not started.
func (w *Worker) Next(tier domain.Priority) time.Time {
	id, ok := w.entries[tier]
	if !ok {
		return time.Time{}
	}
	return w.cron.Entry(id).Next
}

// Tiers lists the scheduled tiers, most urgent first.
func (w *Worker) Tiers() []domain.Priority {
	var tiers []domain.Priority
	for _, tier := range domain.Priorities {
		if _, ok := w.entries[tier]; ok {
			tiers = append(tiers, tier)
		}
	}
	return tiers
}

func (w *Worker) fire(tier domain.Priority) {
	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()

	summary, err := w.runner.RunCycle(ctx, &tier)
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		w.logger.Info("tier cycle skipped, another cycle is running", zap.String("tier", string(tier)))
	case err != nil:
		w.logger.Error("tier cycle failed", zap.String("tier", string(tier)), zap.Error(err))
	default:
		w.logger.Info("tier cycle complete",
			zap.String("tier", string(tier)),
			zap.String("cycle_id", summary.ID),
			zap.Int("total", summary.Total))
	}
}
