// Package metrics provides Prometheus metrics for the fencerpulse recommender.
package metrics

import (
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default histogram layouts. Latencies are in milliseconds; a prediction is a
// few dot products, so the low end is fine-grained.
var (
	defaultLatencyBuckets    = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000} //nolint:gochecknoglobals // read-only defaults
	defaultConfidenceBuckets = []float64{0.35, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99}             //nolint:gochecknoglobals // read-only defaults
	defaultTrainingBuckets   = []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000}           //nolint:gochecknoglobals // read-only defaults
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by prediction,
// artifact and HTTP latency histograms.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if validBuckets(buckets) {
			m.latencyBuckets = slices.Clone(buckets)
		}
	}
}

// WithConfidenceBuckets sets the buckets of the primary-class probability
// histogram. Values must lie in (0, 1].
func WithConfidenceBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if validBuckets(buckets) && buckets[0] > 0 && buckets[len(buckets)-1] <= 1 {
			m.confidenceBuckets = slices.Clone(buckets)
		}
	}
}

// WithTrainingBuckets sets the millisecond buckets of the training duration
// histogram.
func WithTrainingBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if validBuckets(buckets) {
			m.trainingBuckets = slices.Clone(buckets)
		}
	}
}

// WithMetricsEnabled enables or disables the background system collector.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithRefreshInterval sets how often system gauges are sampled.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.refreshInterval = interval
		}
	}
}

// WithCustomLabels adds constant labels to all metrics, e.g. the deployment.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if labels != nil {
			m.customLabels = labels
		}
	}
}

// WithMetricPrefix sets a custom prefix for metric names.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.metricPrefix = prefix
		}
	}
}

// WithPrometheusRegistry sets a custom Prometheus registry.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// validBuckets reports whether buckets is non-empty and strictly increasing,
// which prometheus requires.
func validBuckets(buckets []float64) bool {
	if len(buckets) == 0 {
		return false
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			return false
		}
	}
	return true
}
