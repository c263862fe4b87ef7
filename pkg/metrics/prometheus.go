// Package metrics provides Prometheus metrics for the pitscout aggregation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Upstream adapter
	upstreamFetches      *prometheus.CounterVec
	upstreamFetchLatency *prometheus.HistogramVec

	// Recency oracle and cache policy
	recencyVerdicts   *prometheus.CounterVec
	directivesIssued  *prometheus.CounterVec
	degradedResponses *prometheus.CounterVec

	// Aggregate store
	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	rankingSets     prometheus.Gauge
	enrichment      *prometheus.CounterVec

	// Enrichment queue and workers
	queueCapacity           prometheus.Gauge
	queueSize               prometheus.Gauge
	queueEnqueue            prometheus.Counter
	queueDequeue            prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Local persistent cache
	localCache *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton recorders used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served by /healthz

func init() { //nolint:gochecknoinits // global collectors are registered once per process
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitscout",
		subsystem:        "aggregator",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often periodic gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// factory registers collectors on the configured registry. A disabled manager
// still builds working collectors but exports none of them.
func (m *Manager) factory() promauto.Factory {
	if !m.enabled {
		return promauto.With(nil)
	}
	return promauto.With(m.registry)
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return m.factory().NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return m.factory().NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return m.factory().NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return m.factory().NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return m.factory().NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place registers every collector
	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.upstreamFetches = m.counterVec("upstream_fetches_total",
		"Upstream fetch attempts by provider and outcome", "provider", "outcome")
	m.upstreamFetchLatency = m.histogramVec("upstream_fetch_latency_milliseconds",
		"Latency of a single upstream attempt", "provider")

	m.recencyVerdicts = m.counterVec("recency_verdicts_total",
		"Recency verdicts by identity kind and result", "kind", "result")
	m.directivesIssued = m.counterVec("cache_directives_total",
		"Cache directives attached to responses by category and recency", "category", "recent")
	m.degradedResponses = m.counterVec("degraded_responses_total",
		"Responses served from a fallback after an upstream failure", "category", "outcome")

	m.storeOperations = m.counterVec("store_operations_total",
		"Aggregate store operations by backend, operation and result", "backend", "operation", "result")
	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"Aggregate store operation latency", "backend", "operation")
	m.rankingSets = m.gauge("ranking_sets", "Number of ranking sets held by the aggregate store")
	m.enrichment = m.counterVec("enrichment_total",
		"Location enrichment outcomes per subject", "outcome")

	m.queueCapacity = m.gauge("enrichment_queue_capacity", "Maximum enrichment queue capacity")
	m.queueSize = m.gauge("enrichment_queue_size", "Current enrichment queue backlog")
	m.queueEnqueue = m.counter("enrichment_queue_enqueued_total", "Tasks accepted by the enrichment queue")
	m.queueDequeue = m.counter("enrichment_queue_dequeued_total", "Tasks handed to enrichment workers")
	m.queueEnqueueErrors = m.counter("enrichment_queue_rejected_total", "Tasks rejected by the enrichment queue")
	m.workerActiveCount = m.gauge("enrichment_workers", "Number of running enrichment workers")
	m.workerProcessingLatency = m.histogram("enrichment_worker_latency_milliseconds",
		"Time spent resolving one subject location", m.histogramBuckets)
	m.workerErrors = m.counter("enrichment_worker_errors_total", "Enrichment lookups that failed")

	m.localCache = m.counterVec("local_cache_operations_total",
		"Local persistent cache operations by result", "operation", "result")

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordUpstreamFetch records one upstream attempt and its outcome ("ok", "status", "transport", "canceled", "malformed").
func RecordUpstreamFetch(provider, outcome string, latencyMs float64) {
	globalManager.upstreamFetches.WithLabelValues(provider, outcome).Inc()
	globalManager.upstreamFetchLatency.WithLabelValues(provider).Observe(latencyMs)
}

// RecordRecencyVerdict counts a verdict; result is "recent", "quiet" or "recovered".
func RecordRecencyVerdict(kind, result string) {
	globalManager.recencyVerdicts.WithLabelValues(kind, result).Inc()
}

// RecordDirective counts a directive attached to a response.
func RecordDirective(category string, recent bool) {
	globalManager.directivesIssued.WithLabelValues(category, boolLabel(recent)).Inc()
}

// RecordDegraded counts a response served through a fallback path.
func RecordDegraded(category, outcome string) {
	globalManager.degradedResponses.WithLabelValues(category, outcome).Inc()
}

// RecordStoreOperation records an aggregate store call.
func RecordStoreOperation(backend, operation string, err error, latencyMs float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	globalManager.storeOperations.WithLabelValues(backend, operation, result).Inc()
	globalManager.storeLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// UpdateRankingSets sets the number of stored ranking sets.
func UpdateRankingSets(count int) {
	globalManager.rankingSets.Set(float64(count))
}

// RecordEnrichment counts an enrichment outcome: "resolved", "skipped", "failed", "dropped".
func RecordEnrichment(outcome string) {
	globalManager.enrichment.WithLabelValues(outcome).Inc()
}

// UpdateQueueCapacity sets the enrichment queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the enrichment queue backlog.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the rejected-task counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of running enrichment workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records time spent on one enrichment task.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordLocalCache counts a local cache operation; result is "hit", "miss", "stale", "ok" or "error".
func RecordLocalCache(operation, result string) {
	globalManager.localCache.WithLabelValues(operation, result).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
