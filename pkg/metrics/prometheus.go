// Package metrics provides Prometheus metrics for the fencerpulse recommender.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the recommender.
type Manager struct {
	namespace         string
	subsystem         string
	latencyBuckets    []float64
	confidenceBuckets []float64
	trainingBuckets   []float64
	enabled           bool
	refreshInterval   time.Duration
	customLabels      map[string]string
	metricPrefix      string
	registry          prometheus.Registerer

	// Prediction Metrics
	predictions          *prometheus.CounterVec
	predictionLatency    prometheus.Histogram
	predictionConfidence prometheus.Histogram
	schemaErrors         prometheus.Counter
	unknownCategories    *prometheus.CounterVec

	// Model Lifecycle Metrics
	modelLoads       *prometheus.CounterVec
	modelLoaded      prometheus.Gauge
	modelTrainedUnix prometheus.Gauge
	artifactLatency  *prometheus.HistogramVec

	// Training Metrics
	trainingDuration     prometheus.Histogram
	trainingIterations   *prometheus.GaugeVec
	trainingNotConverged prometheus.Counter
	trainingRows         prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:         "fencerpulse",
		subsystem:         "recommender",
		latencyBuckets:    defaultLatencyBuckets,
		confidenceBuckets: defaultConfidenceBuckets,
		trainingBuckets:   defaultTrainingBuckets,
		enabled:           true,
		refreshInterval:   defaultRefreshInterval,
		customLabels:      make(map[string]string),
		metricPrefix:      "",
		registry:          prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Total number of recommendations served by primary class"),
		[]string{"class"},
	)
	m.predictionLatency = auto.NewHistogram(
		m.histogramOpts("prediction_latency_milliseconds", "Recommendation latency in milliseconds", m.latencyBuckets),
	)
	m.predictionConfidence = auto.NewHistogram(
		m.histogramOpts("prediction_confidence", "Probability of the primary class", m.confidenceBuckets),
	)
	m.schemaErrors = auto.NewCounter(
		m.counterOpts("schema_errors_total", "Total number of rejected attribute maps"),
	)
	m.unknownCategories = auto.NewCounterVec(
		m.counterOpts("unknown_categories_total", "Categorical values never seen during training, by field"),
		[]string{"field"},
	)

	m.modelLoads = auto.NewCounterVec(
		m.counterOpts("model_loads_total", "Model load attempts by result"),
		[]string{"result"},
	)
	m.modelLoaded = auto.NewGauge(
		m.gaugeOpts("model_loaded", "1 when a model is serving, 0 otherwise"),
	)
	m.modelTrainedUnix = auto.NewGauge(
		m.gaugeOpts("model_trained_unix", "Training timestamp of the serving model"),
	)
	m.artifactLatency = auto.NewHistogramVec(
		m.histogramOpts("artifact_latency_milliseconds", "Artifact store latency in milliseconds", m.latencyBuckets),
		[]string{"operation"},
	)

	m.trainingDuration = auto.NewHistogram(
		m.histogramOpts("training_duration_milliseconds", "Wall time of a training run in milliseconds", m.trainingBuckets),
	)
	m.trainingIterations = auto.NewGaugeVec(
		m.gaugeOpts("training_iterations", "Solver epochs used by the last training run, by class"),
		[]string{"class"},
	)
	m.trainingNotConverged = auto.NewCounter(
		m.counterOpts("training_not_converged_total", "Training runs where at least one class hit the iteration cap"),
	)
	m.trainingRows = auto.NewGauge(
		m.gaugeOpts("training_rows", "Rows used by the last training run"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.latencyBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

// CollectSystem samples runtime statistics every refresh interval until ctx
// is cancelled.
func (m *Manager) CollectSystem(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	var lastGC uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastGC = m.sampleSystem(lastGC)
		}
	}
}

func (m *Manager) sampleSystem(lastGC uint32) uint32 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	// PauseNs is a ring buffer of the most recent 256 pauses.
	for n := lastGC; n < ms.NumGC && ms.NumGC-n <= 256; n++ {
		m.systemGCPauseTime.Observe(float64(ms.PauseNs[n%256]) / 1e6)
	}
	return ms.NumGC
}

// StartSystemCollector runs the global manager's system sampler in the
// background.
func StartSystemCollector(ctx context.Context) {
	if !globalManager.enabled {
		return
	}
	go globalManager.CollectSystem(ctx)
}

// Prediction Metrics Functions.

// RecordPrediction counts a served recommendation and its latency.
func RecordPrediction(class string, confidence, latencyMs float64) {
	globalManager.predictions.WithLabelValues(class).Inc()
	globalManager.predictionConfidence.Observe(confidence)
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordSchemaError increments the rejected input counter.
func RecordSchemaError() {
	globalManager.schemaErrors.Inc()
}

// RecordUnknownCategory counts an unseen categorical value for field.
func RecordUnknownCategory(field string) {
	globalManager.unknownCategories.WithLabelValues(field).Inc()
}

// Model Lifecycle Metrics Functions.

// RecordModelLoad counts a load attempt; result is "success" or "failure".
func RecordModelLoad(result string) {
	globalManager.modelLoads.WithLabelValues(result).Inc()
}

// UpdateModelLoaded publishes whether a model is serving and when it was trained.
func UpdateModelLoaded(loaded bool, trainedAt time.Time) {
	if !loaded {
		globalManager.modelLoaded.Set(0)
		return
	}
	globalManager.modelLoaded.Set(1)
	globalManager.modelTrainedUnix.Set(float64(trainedAt.Unix()))
}

// RecordArtifactLatency records a store operation ("save" or "load").
func RecordArtifactLatency(operation string, latencyMs float64) {
	globalManager.artifactLatency.WithLabelValues(operation).Observe(latencyMs)
}

// Training Metrics Functions.

// RecordTraining records the outcome of one training run.
func RecordTraining(rows int, duration time.Duration, iterations map[string]int, converged bool) {
	globalManager.trainingRows.Set(float64(rows))
	globalManager.trainingDuration.Observe(float64(duration.Milliseconds()))
	for class, n := range iterations {
		globalManager.trainingIterations.WithLabelValues(class).Set(float64(n))
	}
	if !converged {
		globalManager.trainingNotConverged.Inc()
	}
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
