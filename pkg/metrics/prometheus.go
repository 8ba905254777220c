// Package metrics provides Prometheus metrics for the model marketplace ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ledger
	ledgerOperations       *prometheus.CounterVec
	ledgerOperationLatency *prometheus.HistogramVec
	assetsMinted           prometheus.Gauge
	activeListings         prometheus.Gauge
	journalEntries         prometheus.Gauge
	valueDistributed       prometheus.Counter
	valueSettled           prometheus.Counter
	feesCollected          prometheus.Counter
	notificationsDropped   prometheus.Counter

	// Notification queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerEventsProcessed   *prometheus.CounterVec
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Ranking repository
	rankedAssets            prometheus.Gauge
	rankingUpdates          prometheus.Counter
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Idempotency
	duplicateRequests prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "modelmarket",
		subsystem:        "ledger",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.ledgerOperations = m.counterVec("operations_total", "Ledger operations by operation and result kind", "op", "result")
	m.ledgerOperationLatency = m.histogramVec("operation_latency_milliseconds", "Ledger operation latency in milliseconds", "op")
	m.assetsMinted = m.gauge("assets_minted", "Number of minted assets")
	m.activeListings = m.gauge("active_listings", "Number of active marketplace listings")
	m.journalEntries = m.gauge("journal_entries", "Transactions retained in the journal")
	m.valueDistributed = m.counter("value_distributed_units_total", "Base units paid out to profit beneficiaries")
	m.valueSettled = m.counter("value_settled_units_total", "Base units of purchase prices settled")
	m.feesCollected = m.counter("fees_collected_units_total", "Base units of marketplace fees collected")
	m.notificationsDropped = m.counter("notifications_dropped_total", "Ledger notifications dropped because the queue rejected them")

	m.queueSize = m.gauge("queue_size", "Current size of the notification queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum notification queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of notifications enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of notifications dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Number of notification workers")
	m.workerEventsProcessed = m.counterVec("worker_events_processed_total", "Notifications processed by kind", "kind")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Notification processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Notification processing errors")

	m.rankedAssets = m.gauge("ranked_assets", "Assets present in the performance ranking")
	m.rankingUpdates = m.counter("ranking_updates_total", "Applied performance ranking updates")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Ranking update latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Ranking query latency in milliseconds", m.histogramBuckets)

	m.duplicateRequests = m.counter("duplicate_requests_total", "Mutating requests rejected by idempotency key")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordLedgerOperation counts a ledger operation outcome and its latency.
func (m *Manager) RecordLedgerOperation(op, result string, latencyMs float64) {
	m.ledgerOperations.WithLabelValues(op, result).Inc()
	m.ledgerOperationLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateLedgerGauges sets supply, listing and journal gauges.
func (m *Manager) UpdateLedgerGauges(minted, activeListings, journalEntries int) {
	m.assetsMinted.Set(float64(minted))
	m.activeListings.Set(float64(activeListings))
	m.journalEntries.Set(float64(journalEntries))
}

// RecordDistribution adds distributed base units.
func (m *Manager) RecordDistribution(units uint64) {
	m.valueDistributed.Add(float64(units))
}

// RecordSettlement adds settled price and fee base units.
func (m *Manager) RecordSettlement(price, fee uint64) {
	m.valueSettled.Add(float64(price))
	m.feesCollected.Add(float64(fee))
}

// RecordNotificationDropped counts a notification the queue refused.
func (m *Manager) RecordNotificationDropped() {
	m.notificationsDropped.Inc()
}

// RecordLedgerOperation records on the global manager.
func RecordLedgerOperation(op, result string, latencyMs float64) {
	globalManager.RecordLedgerOperation(op, result, latencyMs)
}

// UpdateLedgerGauges records on the global manager.
func UpdateLedgerGauges(minted, activeListings, journalEntries int) {
	globalManager.UpdateLedgerGauges(minted, activeListings, journalEntries)
}

// RecordDistribution records on the global manager.
func RecordDistribution(units uint64) {
	globalManager.RecordDistribution(units)
}

// RecordSettlement records on the global manager.
func RecordSettlement(price, fee uint64) {
	globalManager.RecordSettlement(price, fee)
}

// RecordNotificationDropped records on the global manager.
func RecordNotificationDropped() {
	globalManager.RecordNotificationDropped()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerEvent counts a processed notification of the given kind.
func RecordWorkerEvent(kind string) {
	globalManager.workerEventsProcessed.WithLabelValues(kind).Inc()
}

// RecordWorkerProcessingLatency records notification processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Repository Metrics Functions.

// UpdateRankedAssets sets the number of ranked assets.
func UpdateRankedAssets(count int) {
	globalManager.rankedAssets.Set(float64(count))
}

// RecordRankingUpdate increments the applied ranking update counter.
func RecordRankingUpdate() {
	globalManager.rankingUpdates.Inc()
}

// RecordRepositoryUpdateLatency records ranking update latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records ranking query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordDuplicateRequest increments the idempotency rejection counter.
func RecordDuplicateRequest() {
	globalManager.duplicateRequests.Inc()
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

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets allocated bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records average GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
