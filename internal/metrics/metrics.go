// Package metrics exposes engine counters through Prometheus.
//
// Every method is safe on a nil *Metrics, so components take an optional
// pointer and record unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"captionsync/internal/services"
)

const namespace = "captionsync"

// Request outcomes recorded by the scheduler.
const (
	OutcomeCached    = "cached"
	OutcomeJoined    = "joined"
	OutcomeRequested = "requested"
	OutcomeSkipped   = "skipped"
	OutcomeCooldown  = "cooldown"
)

// Metrics holds the collectors registered for one engine.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	errors         *prometheus.CounterVec
	calls          *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	staleResults   prometheus.Counter
	renders        prometheus.Counter
	prefetches     prometheus.Counter
	mode           *prometheus.GaugeVec
	timelineCues   prometheus.Gauge
	cooldownActive prometheus.Gauge
}

// New registers collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "requests_total",
			Help:      "Translate calls by how they were resolved",
		}, []string{"outcome"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "errors_total",
			Help:      "Failed translations by error kind",
		}, []string{"kind"}),
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "calls_total",
			Help:      "Outbound provider calls by result kind",
		}, []string{"provider", "kind"}),
		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "call_duration_seconds",
			Help:      "Duration of outbound provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "rate_limit_retries_total",
			Help:      "Rate-limited calls scheduled for another attempt",
		}, []string{"provider"}),
		staleResults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "stale_results_total",
			Help:      "Translations dropped because their unit was no longer current",
		}),
		renders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "updates_total",
			Help:      "Display updates pushed to the overlay",
		}),
		prefetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "dispatched_total",
			Help:      "Background translations dispatched by the prefetcher",
		}),
		mode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "Current caption stream classification (1 for the active mode)",
		}, []string{"mode"}),
		timelineCues: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "cues",
			Help:      "Cues in the loaded timeline",
		}),
		cooldownActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cooldown_active",
			Help:      "1 while new translation requests are paused after repeated failures",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(services.Kind(err)).Inc()
}

// ObserveCall implements transport.Observer.
func (m *Metrics) ObserveCall(provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(provider, services.Kind(err)).Inc()
	m.callDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveRetry implements transport.Observer.
func (m *Metrics) ObserveRetry(provider string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}

func (m *Metrics) ObserveRender() {
	if m == nil {
		return
	}
	m.renders.Inc()
}

func (m *Metrics) ObservePrefetch() {
	if m == nil {
		return
	}
	m.prefetches.Inc()
}

// SetMode marks current as the active classification.
func (m *Metrics) SetMode(current string, all ...string) {
	if m == nil {
		return
	}
	for _, name := range all {
		m.mode.WithLabelValues(name).Set(0)
	}
	m.mode.WithLabelValues(current).Set(1)
}

func (m *Metrics) SetTimelineCues(n int) {
	if m == nil {
		return
	}
	m.timelineCues.Set(float64(n))
}

func (m *Metrics) SetCooldown(active bool) {
	if m == nil {
		return
	}
	if active {
		m.cooldownActive.Set(1)
		return
	}
	m.cooldownActive.Set(0)
}
