// Package metrics provides Prometheus metrics for the crmflow webhook service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds. Pipeline stages are sub-millisecond while
// CRM round trips are hundreds of milliseconds, so the range is wide.
var defaultBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals

// Manager manages all Prometheus metrics for the crmflow service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	webhooksReceived   *prometheus.CounterVec
	webhooksDuplicate  prometheus.Counter
	validationFailures prometheus.Counter
	pipelineLatency    prometheus.Histogram
	eventsClassified   *prometheus.CounterVec
	catalogMisses      prometheus.Counter

	// CRM
	crmRequests     *prometheus.CounterVec
	crmLatency      *prometheus.HistogramVec
	crmTokenRefresh *prometheus.CounterVec
	crmSyncs        *prometheus.CounterVec
	deadLetters     *prometheus.CounterVec
	rulesReloads    *prometheus.CounterVec
	rulesLastReload prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crmflow",
		subsystem:        "",
		histogramBuckets: defaultBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.webhooksReceived = m.counterVec("webhooks_received_total", "Webhook deliveries accepted, by detected payload shape", "shape")
	m.webhooksDuplicate = m.counter("webhooks_duplicate_total", "Webhook deliveries dropped as duplicates")
	m.validationFailures = m.counter("validation_failures_total", "Payloads rejected by validation rules")
	m.pipelineLatency = m.histogram("pipeline_latency_milliseconds", "Time spent in the normalization pipeline")
	m.eventsClassified = m.counterVec("events_classified_total", "Classified events by event type", "event_type")
	m.catalogMisses = m.counter("catalog_misses_total", "Product names not present in the catalog")

	m.crmRequests = m.counterVec("crm_requests_total", "CRM API calls by operation and outcome", "operation", "outcome")
	m.crmLatency = m.histogramVec("crm_request_latency_milliseconds", "CRM API call latency", "operation")
	m.crmTokenRefresh = m.counterVec("crm_token_refresh_total", "OAuth token refreshes by outcome", "outcome")
	m.crmSyncs = m.counterVec("crm_syncs_total", "Completed CRM syncs by outcome", "outcome")
	m.deadLetters = m.counterVec("dead_letters_total", "Payloads written to the dead-letter store, by reason", "reason")
	m.rulesReloads = m.counterVec("rules_reloads_total", "Rule set reloads by outcome", "outcome")
	m.rulesLastReload = m.gauge("rules_last_reload_timestamp_seconds", "Unix time of the last successful rule set load")

	m.queueSize = m.gauge("queue_size", "Current number of deliveries waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue fill ratio (0-1)")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Deliveries enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Deliveries dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently processing a delivery")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one delivery")
	m.workerErrors = m.counter("worker_errors_total", "Deliveries that failed in a worker")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordWebhookReceived counts an accepted delivery by payload shape.
func RecordWebhookReceived(shape string) { globalManager.webhooksReceived.WithLabelValues(shape).Inc() }

// RecordWebhookDuplicate counts a delivery dropped by the deduper.
func RecordWebhookDuplicate() { globalManager.webhooksDuplicate.Inc() }

// RecordValidationFailure counts a payload rejected by validation.
func RecordValidationFailure() { globalManager.validationFailures.Inc() }

// RecordPipelineLatency records normalization latency in milliseconds.
func RecordPipelineLatency(latencyMs float64) { globalManager.pipelineLatency.Observe(latencyMs) }

// RecordEventClassified counts a classification outcome.
func RecordEventClassified(eventType string) {
	globalManager.eventsClassified.WithLabelValues(eventType).Inc()
}

// RecordCatalogMiss counts a product name that fell back to the default item id.
func RecordCatalogMiss() { globalManager.catalogMisses.Inc() }

// RecordCRMRequest records one CRM API call.
func RecordCRMRequest(operation, outcome string, latencyMs float64) {
	globalManager.crmRequests.WithLabelValues(operation, outcome).Inc()
	globalManager.crmLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordCRMTokenRefresh counts an OAuth refresh attempt.
func RecordCRMTokenRefresh(outcome string) {
	globalManager.crmTokenRefresh.WithLabelValues(outcome).Inc()
}

// RecordCRMSync counts a finished CRM sync.
func RecordCRMSync(outcome string) { globalManager.crmSyncs.WithLabelValues(outcome).Inc() }

// RecordDeadLetter counts a dead-lettered payload.
func RecordDeadLetter(reason string) { globalManager.deadLetters.WithLabelValues(reason).Inc() }

// RecordRulesReload counts a rule set reload attempt.
func RecordRulesReload(outcome string) { globalManager.rulesReloads.WithLabelValues(outcome).Inc() }

// UpdateRulesLastReload sets the unix time of the last good rule set load.
func UpdateRulesLastReload(unix int64) { globalManager.rulesLastReload.Set(float64(unix)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
