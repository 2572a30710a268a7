package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/effects/pkg/effect"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "effects").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for invocation and commit duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "effects",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the effect runtime.
type metrics struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	invocationErrors   *prometheus.CounterVec
	commitsTotal       prometheus.Counter
	commitDuration     prometheus.Histogram
	skipsTotal         prometheus.Counter
	liveInstances      prometheus.Gauge
	unmountsTotal      prometheus.Counter
}

// globalMetrics is the singleton metrics instance.
// Created on first call to Prometheus() or PrometheusObserver().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

// initMetrics initializes the Prometheus metrics.
func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		invocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocations_total",
			Help:        "Total number of effect callbacks and cleanups invoked",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "phase", "status"}),

		invocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocation_duration_seconds",
			Help:        "Effect callback and cleanup duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		invocationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocation_errors_total",
			Help:        "Total number of failed effect invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "error_type"}),

		commitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_total",
			Help:        "Total number of commits processed",
			ConstLabels: config.ConstLabels,
		}),

		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commit_duration_seconds",
			Help:        "Commit processing duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		skipsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "skips_total",
			Help:        "Total number of effects skipped because their dependencies were unchanged",
			ConstLabels: config.ConstLabels,
		}),

		liveInstances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_instances",
			Help:        "Number of registered component instances",
			ConstLabels: config.ConstLabels,
		}),

		unmountsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "unmounts_total",
			Help:        "Total number of instance teardowns",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// getMetrics returns the global metrics, creating them on first use.
// Options passed after the first call are ignored.
func getMetrics(opts []MetricsOption) *metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	return globalMetrics
}

// Prometheus creates middleware that collects Prometheus metrics for every
// effect callback and cleanup.
//
// Metrics collected:
//   - effects_invocations_total: Counter by kind, phase and status
//   - effects_invocation_duration_seconds: Histogram of invocation duration
//   - effects_invocation_errors_total: Counter of failures by error type
//
// Commit and instance metrics are recorded by PrometheusObserver.
//
// Example:
//
//	rt := effect.New(
//	    effect.WithMiddleware(middleware.Prometheus(middleware.WithNamespace("myapp"))),
//	    effect.WithObserver(middleware.PrometheusObserver(middleware.WithNamespace("myapp"))),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) effect.Middleware {
	m := getMetrics(opts)

	return effect.MiddlewareFunc(func(ctx context.Context, inv effect.Invocation, next func() error) error {
		kind := inv.Kind.String()

		start := time.Now()
		err := next()
		m.invocationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.invocationErrors.WithLabelValues(kind, categorizeError(err)).Inc()
		}
		m.invocationsTotal.WithLabelValues(kind, inv.Phase.String(), status).Inc()

		return err
	})
}

// PrometheusObserver creates an observer that records commit, skip and
// instance lifecycle metrics:
//   - effects_commits_total
//   - effects_commit_duration_seconds
//   - effects_skips_total
//   - effects_live_instances
//   - effects_unmounts_total
func PrometheusObserver(opts ...MetricsOption) effect.Observer {
	m := getMetrics(opts)

	return effect.ObserverFunc(func(e effect.Event) {
		switch e.Kind {
		case effect.EventRegister:
			m.liveInstances.Inc()
		case effect.EventUnmount:
			m.liveInstances.Dec()
			m.unmountsTotal.Inc()
		case effect.EventSkip:
			m.skipsTotal.Inc()
		case effect.EventCommitEnd:
			m.commitsTotal.Inc()
			m.commitDuration.Observe(e.Duration.Seconds())
		}
	})
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	var pe *effect.PanicError
	switch {
	case errors.As(err, &pe):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
