// Package metrics exposes pipeline counters for Prometheus. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insightd"

// Analysis attempt results.
const (
	AttemptSuccess     = "success"
	AttemptRetry       = "retry"
	AttemptPermanent   = "permanent"
	AttemptExhausted   = "exhausted"
	AttemptParseFailed = "parse_error"
)

type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	items         *prometheus.CounterVec
	attempts      *prometheus.CounterVec
	filesWritten  prometheus.Counter
	cycleDuration prometheus.Histogram
}

// New registers the pipeline collectors on a fresh registry, plus the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed scan cycles by priority tier.",
		}, []string{"tier"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Content items by pipeline outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_attempts_total",
			Help:      "LLM analysis attempts by result.",
		}, []string{"result"}),
		filesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Knowledge files written to agent directories.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of scan cycles.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.items,
		m.attempts,
		m.filesWritten,
		m.cycleDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CycleCompleted(tier string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "all"
	}
	m.cycles.WithLabelValues(tier).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ItemOutcome(outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AnalysisAttempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) FilesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.filesWritten.Add(float64(n))
}
