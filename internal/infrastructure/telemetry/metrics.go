package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/billing-console/internal/application/dispatcher"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/event"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/executor"
)

// HandlerName is the dispatcher subscription name of the metrics recorder
const HandlerName = "mutation-metrics"

// CacheState is the part of the entity cache exported as gauges
type CacheState interface {
	Stats() map[cache.Status]int
	Pending() int
}

// Config holds metrics configuration
type Config struct {
	// Namespace prefixes every metric name. Default: "console"
	Namespace string
	// Buckets of the duration histograms. Default: prometheus.DefBuckets
	Buckets []float64
	// GoCollector adds the Go runtime and process collectors
	GoCollector bool
}

// Metrics records cache fetches and mutation outcomes in a private registry.
// It implements cache.Metrics.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	fetchTotal       *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	mutationsTotal   *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	refetchedTotal   prometheus.Counter
	fetchFailures    prometheus.Counter
}

// New creates the collectors and registers them
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "console"
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		namespace: cfg.Namespace,
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Remote fetches issued by the entity cache by query kind and outcome.",
		}, []string{"kind", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "cache",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of remote fetches by query kind.",
			Buckets:   cfg.Buckets,
		}, []string{"kind"}),
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "mutation",
			Name:      "settled_total",
			Help:      "Executed mutations by kind and final state.",
		}, []string{"kind", "state", "failure_kind"}),
		mutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "mutation",
			Name:      "duration_seconds",
			Help:      "Time from submission to settlement by mutation kind.",
			Buckets:   cfg.Buckets,
		}, []string{"kind"}),
		refetchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "invalidation",
			Name:      "refetched_queries_total",
			Help:      "Observed queries refetched after committed mutations.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "invalidation",
			Name:      "refetch_failures_total",
			Help:      "Post-commit refetch rounds that left a query in error.",
		}),
	}

	m.registry.MustRegister(
		m.fetchTotal,
		m.fetchDuration,
		m.mutationsTotal,
		m.mutationDuration,
		m.refetchedTotal,
		m.fetchFailures,
	)
	if cfg.GoCollector {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFetch implements cache.Metrics
func (m *Metrics) ObserveFetch(kind query.Kind, elapsed time.Duration, outcome string) {
	m.fetchTotal.WithLabelValues(kind.String(), outcome).Inc()
	if outcome != cache.OutcomeSuperseded {
		m.fetchDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	}
}

// WatchCache exports the number of cached queries per status and the number
// of optimistic layers awaiting settlement
func (m *Metrics) WatchCache(c CacheState) {
	statuses := []cache.Status{cache.StatusPending, cache.StatusFresh, cache.StatusStale, cache.StatusError}
	for _, status := range statuses {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   "cache",
			Name:        "queries",
			Help:        "Cached queries by status.",
			ConstLabels: prometheus.Labels{"status": string(status)},
		}, func() float64 {
			return float64(c.Stats()[status])
		}))
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "optimistic_layers",
		Help:      "Optimistic patches applied and not yet committed or rolled back.",
	}, func() float64 {
		return float64(c.Pending())
	}))
}

// Subscribe records every settled mutation and invalidation round published on d
func (m *Metrics) Subscribe(d dispatcher.Dispatcher) {
	d.Subscribe(HandlerName, m.recordMutation, event.MutationSettledTypes...)
	d.Subscribe(HandlerName, m.recordInvalidation, event.TypeQueriesInvalidated)
	d.Subscribe(HandlerName, m.recordFetchFailure, event.TypeQueryFetchFailed)
}

func (m *Metrics) recordMutation(_ context.Context, evt *event.Event) error {
	kind := evt.Payload.String(executor.PayloadKind)
	m.mutationsTotal.WithLabelValues(
		kind,
		evt.Payload.String(executor.PayloadState),
		evt.Payload.String(executor.PayloadFailureKind),
	).Inc()
	elapsed := time.Duration(evt.Payload.Int(executor.PayloadElapsedMS)) * time.Millisecond
	m.mutationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	return nil
}

func (m *Metrics) recordInvalidation(_ context.Context, evt *event.Event) error {
	m.refetchedTotal.Add(float64(len(evt.Payload.Strings(executor.PayloadRefetched))))
	return nil
}

func (m *Metrics) recordFetchFailure(_ context.Context, _ *event.Event) error {
	m.fetchFailures.Inc()
	return nil
}

// Verify interface compliance
var _ cache.Metrics = (*Metrics)(nil)
