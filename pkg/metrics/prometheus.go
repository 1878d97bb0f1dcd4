// Package metrics provides Prometheus metrics for the unified rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Weight kinds used as the "kind" label of the platform weight gauge.
const (
	WeightRaw     = "raw"
	WeightSoftmax = "softmax"
	WeightFinal   = "final"
)

// Manager owns every collector of the service on a single registry.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Rating pipeline
	updatesProcessed prometheus.Counter
	updatesDuplicate prometheus.Counter
	updatesRejected  prometheus.Counter
	applyLatency     prometheus.Histogram
	updateLag        prometheus.Histogram
	refreshes        prometheus.Counter
	platformWeight   *prometheus.GaugeVec
	users            prometheus.Gauge
	platforms        prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// Redis mirror
	mirrorPublishes prometheus.Counter
	mirrorErrors    prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Global metrics manager instance.
var globalManager = NewManager(WithPrometheusRegistry(customRegistry)) //nolint:gochecknoglobals // singleton metrics manager

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors land on a fresh private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "unirank",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.updatesProcessed = m.counter("updates_processed_total", "Total number of platform updates applied")
	m.updatesDuplicate = m.counter("updates_duplicate_total", "Total number of replayed platform updates dropped by dedupe")
	m.updatesRejected = m.counter("updates_rejected_total", "Total number of platform updates rejected by validation or the engine")
	m.applyLatency = m.histogram("apply_latency_milliseconds", "Time to apply one platform update in milliseconds", m.histogramBuckets)
	m.updateLag = m.histogram("update_lag_seconds", "Time from a collector's snapshot timestamp to its application in seconds",
		prometheus.ExponentialBuckets(0.01, 4, 12))
	m.refreshes = m.counter("refresh_total", "Total number of time-decay refreshes")
	m.users = m.gauge("users", "Number of registered users")
	m.platforms = m.gauge("platforms", "Number of registered platforms")

	m.platformWeight = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "platform_weight",
		Help:        "Current platform weight by stage (raw, softmax, final)",
		ConstLabels: m.constLabels,
	}, []string{"platform", "kind"})

	m.queueSize = m.gauge("queue_size", "Current size of the update queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of updates enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of updates dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue failures (backpressure or closed)")

	m.workerErrors = m.counter("worker_errors_total", "Total number of updates the worker failed to apply")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Total number of errors by component",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_type_total",
		Help:        "Total number of errors by type",
		ConstLabels: m.constLabels,
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_endpoint_total",
		Help:        "Total number of errors by endpoint",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.mirrorPublishes = m.counter("mirror_publish_total", "Total number of leaderboard snapshots published to Redis")
	m.mirrorErrors = m.counter("mirror_errors_total", "Total number of failed Redis publishes")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Manager recorders.

func (m *Manager) RecordUpdateProcessed()                { m.updatesProcessed.Inc() }
func (m *Manager) RecordUpdateDuplicate()                { m.updatesDuplicate.Inc() }
func (m *Manager) RecordUpdateRejected()                 { m.updatesRejected.Inc() }
func (m *Manager) RecordApplyLatency(latencyMs float64)  { m.applyLatency.Observe(latencyMs) }
func (m *Manager) RecordUpdateLag(lagSeconds float64)    { m.updateLag.Observe(lagSeconds) }
func (m *Manager) RecordRefresh()                        { m.refreshes.Inc() }
func (m *Manager) UpdateUsers(count int)                 { m.users.Set(float64(count)) }
func (m *Manager) UpdatePlatforms(count int)             { m.platforms.Set(float64(count)) }
func (m *Manager) UpdateQueueSize(size int)              { m.queueSize.Set(float64(size)) }
func (m *Manager) UpdateQueueCapacity(capacity int)      { m.queueCapacity.Set(float64(capacity)) }
func (m *Manager) UpdateQueueUtilization(ratio float64)  { m.queueUtilization.Set(ratio) }
func (m *Manager) RecordQueueEnqueue()                   { m.queueEnqueueRate.Inc() }
func (m *Manager) RecordQueueDequeue()                   { m.queueDequeueRate.Inc() }
func (m *Manager) RecordQueueEnqueueError()              { m.queueEnqueueErrors.Inc() }
func (m *Manager) RecordWorkerError()                    { m.workerErrors.Inc() }
func (m *Manager) RecordMirrorPublish()                  { m.mirrorPublishes.Inc() }
func (m *Manager) RecordMirrorError()                    { m.mirrorErrors.Inc() }
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64)  { m.systemMemoryUsage.Set(float64(bytes)) }
func (m *Manager) UpdateSystemGoroutineCount(count int)  { m.systemGoroutineCount.Set(float64(count)) }
func (m *Manager) RecordSystemGCPauseTime(pause float64) { m.systemGCPauseTime.Observe(pause) }

// UpdatePlatformWeight sets one stage of a platform's weight.
func (m *Manager) UpdatePlatformWeight(platform, kind string, value float64) {
	m.platformWeight.WithLabelValues(platform, kind).Set(value)
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func (m *Manager) RecordErrorByType(errorType, severity string) {
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Global recorders backed by the process-wide manager.

// RecordUpdateProcessed increments the applied updates counter.
func RecordUpdateProcessed() { globalManager.RecordUpdateProcessed() }

// RecordUpdateDuplicate increments the duplicate updates counter.
func RecordUpdateDuplicate() { globalManager.RecordUpdateDuplicate() }

// RecordUpdateRejected increments the rejected updates counter.
func RecordUpdateRejected() { globalManager.RecordUpdateRejected() }

// RecordApplyLatency records how long one update took to apply.
func RecordApplyLatency(latencyMs float64) { globalManager.RecordApplyLatency(latencyMs) }

// RecordUpdateLag records how long after its snapshot timestamp an update was applied.
func RecordUpdateLag(lagSeconds float64) { globalManager.RecordUpdateLag(lagSeconds) }

// RecordRefresh increments the refresh counter.
func RecordRefresh() { globalManager.RecordRefresh() }

// UpdateUsers sets the registered users gauge.
func UpdateUsers(count int) { globalManager.UpdateUsers(count) }

// UpdatePlatforms sets the registered platforms gauge.
func UpdatePlatforms(count int) { globalManager.UpdatePlatforms(count) }

// UpdatePlatformWeight sets one stage of a platform's weight.
func UpdatePlatformWeight(platform, kind string, value float64) {
	globalManager.UpdatePlatformWeight(platform, kind, value)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.UpdateQueueSize(size) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.UpdateQueueCapacity(capacity) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(ratio float64) { globalManager.UpdateQueueUtilization(ratio) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.RecordQueueEnqueue() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.RecordQueueDequeue() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.RecordQueueEnqueueError() }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.RecordWorkerError() }

// RecordMirrorPublish increments the Redis publish counter.
func RecordMirrorPublish() { globalManager.RecordMirrorPublish() }

// RecordMirrorError increments the Redis publish error counter.
func RecordMirrorError() { globalManager.RecordMirrorError() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.RecordErrorByType(errorType, severity)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.UpdateSystemGoroutineCount(count) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.RecordSystemGCPauseTime(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
