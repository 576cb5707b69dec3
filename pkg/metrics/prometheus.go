package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for the method label.
const (
	MethodEmbedding = "embedding"
	MethodRule      = "rule"
)

// Label values for the fallback reason label.
const (
	FallbackNoEmbeddings = "no_embeddings"
	FallbackNoVector     = "no_vector"
	FallbackNoMatch      = "no_match"
)

// Label values for the embedding request outcome.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager owns the classification metrics.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	enabled        bool
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Classification
	itemsSelected   *prometheus.CounterVec
	itemsClassified *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	batches         *prometheus.CounterVec
	stalledRuns     *prometheus.CounterVec

	// Embedding provider
	embeddingRequests *prometheus.CounterVec
	embeddingLatency  prometheus.Histogram
	embeddingMissing  prometheus.Counter
	embeddingTexts    prometheus.Counter

	// Runs
	runDuration       *prometheus.HistogramVec
	lastRunUnix       *prometheus.GaugeVec
	categoriesLoaded  *prometheus.GaugeVec
	categoriesSeeded  *prometheus.CounterVec
	errorsByComponent *prometheus.CounterVec

	// Ops HTTP server
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var (
	globalMu      sync.RWMutex
	globalManager *Manager //nolint:gochecknoglobals // process-wide metrics singleton
	// Custom registry keeps Go runtime collectors out of the exposition.
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry
)

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "hooklens",
		subsystem:      "classifier",
		latencyBuckets: defaultLatencyBuckets,
		enabled:        true,
		constLabels:    map[string]string{},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.itemsSelected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "items_selected_total",
		Help:        "Unlabeled items handed to the classifier",
		ConstLabels: labels,
	}, []string{"taxonomy"})

	m.fallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rule_fallbacks_total",
		Help:        "Items routed to the rule scorer, by reason",
		ConstLabels: labels,
	}, []string{"taxonomy", "reason"})

	m.itemsClassified = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "items_classified_total",
		Help:        "Items labeled, by taxonomy and classification method",
		ConstLabels: labels,
	}, []string{"taxonomy", "method"})

	m.persistFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "persist_failures_total",
		Help:        "Label writes that failed and were skipped",
		ConstLabels: labels,
	}, []string{"taxonomy"})

	m.batches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "batches_total",
		Help:        "Candidate batches processed",
		ConstLabels: labels,
	}, []string{"taxonomy"})

	m.stalledRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stalled_runs_total",
		Help:        "Runs stopped because the store kept returning already attempted items",
		ConstLabels: labels,
	}, []string{"taxonomy"})

	m.embeddingRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "embedding_requests_total",
		Help:        "Calls to the embedding provider by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.embeddingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "embedding_latency_milliseconds",
		Help:        "Embedding provider call latency in milliseconds",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.embeddingMissing = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "embedding_missing_total",
		Help:        "Texts left without a vector after an embedding call",
		ConstLabels: labels,
	})

	m.embeddingTexts = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "embedding_texts_total",
		Help:        "Texts sent to the embedding provider",
		ConstLabels: labels,
	})

	m.runDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_milliseconds",
		Help:        "Duration of a classification run",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	}, []string{"taxonomy"})

	m.lastRunUnix = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last run for a taxonomy finished",
		ConstLabels: labels,
	}, []string{"taxonomy"})

	m.categoriesLoaded = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "categories_loaded",
		Help:        "Categories in the taxonomy cache, by whether they carry a vector",
		ConstLabels: labels,
	}, []string{"taxonomy", "vector"})

	m.categoriesSeeded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "categories_seeded_total",
		Help:        "Category reference vectors written",
		ConstLabels: labels,
	}, []string{"taxonomy"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "Ops HTTP requests by endpoint, method and status code",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "Ops HTTP request duration in milliseconds",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})
}

// Enabled reports whether the manager records anything.
func (m *Manager) Enabled() bool { return m.enabled }

// RecordSelected counts items taken from the store.
func (m *Manager) RecordSelected(taxonomy string, n int) {
	if m.enabled && n > 0 {
		m.itemsSelected.WithLabelValues(taxonomy).Add(float64(n))
	}
}

// RecordFallback counts one item sent to the rule scorer.
func (m *Manager) RecordFallback(taxonomy, reason string) {
	if m.enabled {
		m.fallbacks.WithLabelValues(taxonomy, reason).Inc()
	}
}

// RecordClassified counts one labeled item.
func (m *Manager) RecordClassified(taxonomy, method string) {
	if m.enabled {
		m.itemsClassified.WithLabelValues(taxonomy, method).Inc()
	}
}

// RecordPersistFailure counts one failed label write.
func (m *Manager) RecordPersistFailure(taxonomy string) {
	if m.enabled {
		m.persistFailures.WithLabelValues(taxonomy).Inc()
	}
}

// RecordBatch counts one processed batch.
func (m *Manager) RecordBatch(taxonomy string) {
	if m.enabled {
		m.batches.WithLabelValues(taxonomy).Inc()
	}
}

// RecordStalledRun counts a run ended by the stall guard.
func (m *Manager) RecordStalledRun(taxonomy string) {
	if m.enabled {
		m.stalledRuns.WithLabelValues(taxonomy).Inc()
	}
}

// RecordEmbeddingRequest records one provider call.
func (m *Manager) RecordEmbeddingRequest(outcome string, texts int, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.embeddingRequests.WithLabelValues(outcome).Inc()
	m.embeddingLatency.Observe(latencyMs)
	m.embeddingTexts.Add(float64(texts))
}

// RecordEmbeddingMissing counts texts that came back without a vector.
func (m *Manager) RecordEmbeddingMissing(n int) {
	if m.enabled && n > 0 {
		m.embeddingMissing.Add(float64(n))
	}
}

// RecordRun records a finished run.
func (m *Manager) RecordRun(taxonomy string, durationMs float64, finishedUnix int64) {
	if !m.enabled {
		return
	}
	m.runDuration.WithLabelValues(taxonomy).Observe(durationMs)
	m.lastRunUnix.WithLabelValues(taxonomy).Set(float64(finishedUnix))
}

// SetCategoriesLoaded records the taxonomy cache size.
func (m *Manager) SetCategoriesLoaded(taxonomy string, withVector, withoutVector int) {
	if !m.enabled {
		return
	}
	m.categoriesLoaded.WithLabelValues(taxonomy, "true").Set(float64(withVector))
	m.categoriesLoaded.WithLabelValues(taxonomy, "false").Set(float64(withoutVector))
}

// RecordSeeded counts written category vectors.
func (m *Manager) RecordSeeded(taxonomy string, n int) {
	if m.enabled && n > 0 {
		m.categoriesSeeded.WithLabelValues(taxonomy).Add(float64(n))
	}
}

// RecordError counts an error by component and type.
func (m *Manager) RecordError(component, errorType string) {
	if m.enabled {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordHTTPRequest records one ops HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Global returns the process-wide manager registered on GetRegistry.
func Global() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// SetGlobal replaces the process-wide manager. Tests use it to isolate counts.
func SetGlobal(m *Manager) {
	if m == nil {
		return
	}
	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
}

// Package-level shorthands on the global manager.

// RecordSelected counts selected items on the global manager.
func RecordSelected(taxonomy string, n int) { Global().RecordSelected(taxonomy, n) }

// RecordFallback counts a rule fallback on the global manager.
func RecordFallback(taxonomy, reason string) { Global().RecordFallback(taxonomy, reason) }

// RecordClassified counts one labeled item on the global manager.
func RecordClassified(taxonomy, method string) { Global().RecordClassified(taxonomy, method) }

// RecordPersistFailure counts a failed write on the global manager.
func RecordPersistFailure(taxonomy string) { Global().RecordPersistFailure(taxonomy) }

// RecordBatch counts a batch on the global manager.
func RecordBatch(taxonomy string) { Global().RecordBatch(taxonomy) }

// RecordStalledRun counts a stalled run on the global manager.
func RecordStalledRun(taxonomy string) { Global().RecordStalledRun(taxonomy) }

// RecordEmbeddingRequest records a provider call on the global manager.
func RecordEmbeddingRequest(outcome string, texts int, latencyMs float64) {
	Global().RecordEmbeddingRequest(outcome, texts, latencyMs)
}

// RecordEmbeddingMissing counts missing vectors on the global manager.
func RecordEmbeddingMissing(n int) { Global().RecordEmbeddingMissing(n) }

// RecordRun records a run on the global manager.
func RecordRun(taxonomy string, durationMs float64, finishedUnix int64) {
	Global().RecordRun(taxonomy, durationMs, finishedUnix)
}

// SetCategoriesLoaded records cache size on the global manager.
func SetCategoriesLoaded(taxonomy string, withVector, withoutVector int) {
	Global().SetCategoriesLoaded(taxonomy, withVector, withoutVector)
}

// RecordSeeded counts seeded vectors on the global manager.
func RecordSeeded(taxonomy string, n int) { Global().RecordSeeded(taxonomy, n) }

// RecordError counts an error on the global manager.
func RecordError(component, errorType string) { Global().RecordError(component, errorType) }

// RecordHTTPRequest records an ops HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	Global().RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
