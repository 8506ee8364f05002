// Package metrics exposes pipeline activity to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mempool-sniper/internal/fetcher"
	"mempool-sniper/internal/mempool"
)

const namespace = "mempool_sniper"

// Recorder owns a private registry and the event-driven metrics.
type Recorder struct {
	registry *prometheus.Registry

	fetchDuration *prometheus.HistogramVec
	classified    *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	deliveryWait  *prometheus.HistogramVec
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	registry       *prometheus.Registry
	runtimeMetrics bool
}

// WithRegistry registers into reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// WithoutRuntimeMetrics skips the Go and process collectors.
func WithoutRuntimeMetrics() Option {
	return func(o *options) {
		o.runtimeMetrics = false
	}
}

// New creates and registers all metrics.
func New(opts ...Option) *Recorder {
	o := options{registry: prometheus.NewRegistry(), runtimeMetrics: true}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Recorder{
		registry: o.registry,
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of transaction lookups by result.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classified_total",
			Help:      "Classified transactions by method label.",
		}, []string{"method"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Alert delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		deliveryWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_wait_seconds",
			Help:      "Time spent waiting for a rate limit token before delivery.",
			Buckets:   []float64{0, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
	}

	r.registry.MustRegister(r.fetchDuration, r.classified, r.deliveries, r.deliveryWait)
	if o.runtimeMetrics {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveFetch records one transaction lookup.
func (r *Recorder) ObserveFetch(elapsed time.Duration, err error) {
	result := "ok"
	switch {
	case errors.Is(err, fetcher.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	r.fetchDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveClassified counts one classification.
func (r *Recorder) ObserveClassified(method string) {
	r.classified.WithLabelValues(method).Inc()
}

// ObserveDelivery counts one delivery attempt on channel.
func (r *Recorder) ObserveDelivery(channel string, outcome mempool.Outcome, wait time.Duration) {
	r.deliveries.WithLabelValues(channel, outcome.String()).Inc()
	// Immediate drops never waited.
	if outcome != mempool.OutcomeRateLimited || wait > 0 {
		r.deliveryWait.WithLabelValues(channel).Observe(wait.Seconds())
	}
}
