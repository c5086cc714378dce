// Package metrics provides Prometheus metrics for the talentboard registry service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes used as label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Manager owns every registry metric.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// registry operations
	operations       *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec

	// registry state
	talentsTotal    prometheus.Gauge
	verifiedTalents prometheus.Gauge
	projectsTotal   prometheus.Gauge
	activeProjects  prometheus.Gauge

	// event dispatch
	eventsDispatched prometheus.Counter
	eventsDropped    prometheus.Counter
	eventsApplied    prometheus.Counter
	directoryEntries prometheus.Gauge

	// queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// http
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	authFailures        *prometheus.CounterVec
	duplicateRequests   prometheus.Counter

	// runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "talentboard",
		subsystem:        "registry",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.operations = m.counterVec("operations_total",
		"Registry operations by outcome", "operation", "outcome")
	m.rejections = m.counterVec("rejections_total",
		"Rejected registry operations by error code", "operation", "code")
	m.operationLatency = m.histogramVec("operation_duration_milliseconds",
		"Registry operation latency in milliseconds", "operation")

	m.talentsTotal = m.gauge("talents", "Registered talents")
	m.verifiedTalents = m.gauge("verified_talents", "Verified talents")
	m.projectsTotal = m.gauge("projects", "Projects ever created")
	m.activeProjects = m.gauge("active_projects", "Projects still open for assignment")

	m.eventsDispatched = m.counter("events_dispatched_total", "Committed events handed to the event queue")
	m.eventsDropped = m.counter("events_dropped_total", "Committed events the event queue refused")
	m.eventsApplied = m.counter("events_applied_total", "Events applied to the talent directory")
	m.directoryEntries = m.gauge("directory_entries", "Talents indexed by the directory")

	m.queueSize = m.gauge("queue_size", "Current size of the event queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Event queue utilization (0.0 to 1.0)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Events enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Failed enqueue attempts")

	m.workerActiveCount = m.gauge("worker_active_count", "Running event workers")
	m.workerProcessingLatency = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_processing_latency_milliseconds", Help: "Worker event processing latency",
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	})
	m.workerErrors = m.counter("worker_errors_total", "Events a worker failed to apply")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.authFailures = m.counterVec("auth_failures_total",
		"Rejected bearer tokens by reason", "reason")
	m.duplicateRequests = m.counter("duplicate_requests_total",
		"Mutating requests refused for a reused idempotency key")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_gc_pause_time_milliseconds", Help: "GC pause time in milliseconds",
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	})
}

// RecordOperation counts one registry operation and observes its latency.
func RecordOperation(operation, outcome string, latencyMs float64) {
	globalManager.operations.WithLabelValues(operation, outcome).Inc()
	globalManager.operationLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordRejection counts a rejected operation by its error code.
func RecordRejection(operation, code string) {
	globalManager.rejections.WithLabelValues(operation, code).Inc()
}

// UpdateRegistryCounts sets the registry state gauges.
func UpdateRegistryCounts(talents, verified, projects, active int) {
	globalManager.talentsTotal.Set(float64(talents))
	globalManager.verifiedTalents.Set(float64(verified))
	globalManager.projectsTotal.Set(float64(projects))
	globalManager.activeProjects.Set(float64(active))
}

// RecordEventDispatched counts an event handed to the queue.
func RecordEventDispatched() { globalManager.eventsDispatched.Inc() }

// RecordEventDropped counts an event the queue refused.
func RecordEventDropped() { globalManager.eventsDropped.Inc() }

// RecordEventApplied counts an event applied by a worker.
func RecordEventApplied() { globalManager.eventsApplied.Inc() }

// UpdateDirectoryEntries sets the number of indexed talents.
func UpdateDirectoryEntries(n int) { globalManager.directoryEntries.Set(float64(n)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerActiveCount sets the number of running workers.
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

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordAuthFailure counts a rejected bearer token.
func RecordAuthFailure(reason string) { globalManager.authFailures.WithLabelValues(reason).Inc() }

// RecordDuplicateRequest counts a reused idempotency key.
func RecordDuplicateRequest() { globalManager.duplicateRequests.Inc() }

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
