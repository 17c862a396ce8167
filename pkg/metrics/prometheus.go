// Package metrics provides Prometheus metrics for the judgeboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the judgeboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Realtime connection metrics
	connectionsActive   *prometheus.GaugeVec
	connectionsAccepted prometheus.Counter
	connectionsClosed   *prometheus.CounterVec
	inboundMessages     *prometheus.CounterVec
	protocolErrors      prometheus.Counter
	duplicateMessages   prometheus.Counter
	streamSubscribers   prometheus.Gauge

	// Broadcast metrics
	broadcasts        *prometheus.CounterVec
	deliveries        prometheus.Counter
	droppedDeliveries prometheus.Counter
	churnFlushes      prometheus.Counter

	// Outbound queue metrics
	queueEnqueued     prometheus.Counter
	queueRejected     *prometheus.CounterVec
	queueWriteLatency prometheus.Histogram
	writerErrors      prometheus.Counter

	// Domain metrics
	scoreSubmissions *prometheus.CounterVec
	storeMutations   *prometheus.CounterVec
	candidatesTotal  prometheus.Gauge
	judgesOnline     prometheus.Gauge
	batchTransitions *prometheus.CounterVec

	// Persistence metrics
	flushDuration   prometheus.Histogram
	flushErrors     prometheus.Counter
	flushesTotal    prometheus.Counter
	snapshotBytes   prometheus.Gauge
	backupsRetained prometheus.Gauge
	loadFallbacks   prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
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
		namespace:        "judgeboard",
		subsystem:        "",
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.connectionsActive = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connections_active",
		Help:      "Live socket connections by role",
	}, []string{"role"})
	m.connectionsAccepted = m.counter("connections_accepted_total", "Total number of accepted socket connections")
	m.connectionsClosed = m.counterVec("connections_closed_total", "Closed socket connections by reason", "reason")
	m.inboundMessages = m.counterVec("inbound_messages_total", "Inbound envelopes by kind", "kind")
	m.protocolErrors = m.counter("protocol_errors_total", "Malformed or unsupported inbound envelopes")
	m.duplicateMessages = m.counter("duplicate_messages_total", "Inbound envelopes ignored because their id was already handled")
	m.streamSubscribers = m.gauge("stream_subscribers", "Live server-sent event subscribers")

	m.broadcasts = m.counterVec("broadcasts_total", "Broadcast fan-outs by event type", "event_type")
	m.deliveries = m.counter("deliveries_total", "Envelopes handed to connection outbound queues")
	m.droppedDeliveries = m.counter("deliveries_dropped_total", "Envelopes dropped because a client queue was full or closed")
	m.churnFlushes = m.counter("churn_flushes_total", "Coalesced connection status updates sent")

	m.queueEnqueued = m.counter("queue_enqueued_total", "Envelopes accepted by outbound queues")
	m.queueRejected = m.counterVec("queue_rejected_total", "Envelopes rejected by outbound queues", "reason")
	m.queueWriteLatency = m.histogram("queue_write_latency_milliseconds", "Socket write latency in milliseconds", m.histogramBuckets)
	m.writerErrors = m.counter("writer_errors_total", "Socket write failures")

	m.scoreSubmissions = m.counterVec("score_submissions_total", "Score submissions by result", "result")
	m.storeMutations = m.counterVec("store_mutations_total", "Committed store mutations by event type", "event_type")
	m.candidatesTotal = m.gauge("candidates_total", "Candidates held by the store")
	m.judgesOnline = m.gauge("judges_online", "Judges currently marked online")
	m.batchTransitions = m.counterVec("batch_transitions_total", "Batch lifecycle transitions by action and result", "action", "result")

	m.flushDuration = m.histogram("snapshot_flush_duration_milliseconds", "Snapshot flush duration in milliseconds",
		[]float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500})
	m.flushErrors = m.counter("snapshot_flush_errors_total", "Failed snapshot flushes")
	m.flushesTotal = m.counter("snapshot_flushes_total", "Successful snapshot flushes")
	m.snapshotBytes = m.gauge("snapshot_bytes", "Size of the last written snapshot")
	m.backupsRetained = m.gauge("snapshot_backups_retained", "Backups kept after the last rotation")
	m.loadFallbacks = m.counter("snapshot_load_fallbacks_total", "Loads that fell back to the default dataset")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Realtime connection metrics.

// UpdateConnectionsActive sets the live connection count for a role.
func UpdateConnectionsActive(role string, count int) {
	globalManager.connectionsActive.WithLabelValues(role).Set(float64(count))
}

// RecordConnectionAccepted increments the accepted connections counter.
func RecordConnectionAccepted() {
	globalManager.connectionsAccepted.Inc()
}

// RecordConnectionClosed records a closed connection with its reason.
func RecordConnectionClosed(reason string) {
	globalManager.connectionsClosed.WithLabelValues(reason).Inc()
}

// RecordInboundMessage records an inbound envelope by kind.
func RecordInboundMessage(kind string) {
	globalManager.inboundMessages.WithLabelValues(kind).Inc()
}

// RecordProtocolError increments the protocol error counter.
func RecordProtocolError() {
	globalManager.protocolErrors.Inc()
}

// RecordDuplicateMessage increments the duplicate inbound envelope counter.
func RecordDuplicateMessage() {
	globalManager.duplicateMessages.Inc()
}

// UpdateStreamSubscribers sets the number of SSE subscribers.
func UpdateStreamSubscribers(count int) {
	globalManager.streamSubscribers.Set(float64(count))
}

// Broadcast metrics.

// RecordBroadcast records one fan-out for an event type.
func RecordBroadcast(eventType string) {
	globalManager.broadcasts.WithLabelValues(eventType).Inc()
}

// RecordDelivery increments delivered envelopes.
func RecordDelivery() {
	globalManager.deliveries.Inc()
}

// RecordDroppedDelivery increments dropped envelopes.
func RecordDroppedDelivery() {
	globalManager.droppedDeliveries.Inc()
}

// RecordChurnFlush increments coalesced status updates.
func RecordChurnFlush() {
	globalManager.churnFlushes.Inc()
}

// Outbound queue metrics.

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected records a rejected enqueue with its reason.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordQueueWriteLatency records socket write latency in milliseconds.
func RecordQueueWriteLatency(latencyMs float64) {
	globalManager.queueWriteLatency.Observe(latencyMs)
}

// RecordWriterError increments the writer error counter.
func RecordWriterError() {
	globalManager.writerErrors.Inc()
}

// Domain metrics.

// RecordScoreSubmission records a score submission outcome ("ok", "rejected").
func RecordScoreSubmission(result string) {
	globalManager.scoreSubmissions.WithLabelValues(result).Inc()
}

// RecordStoreMutation records a committed store mutation.
func RecordStoreMutation(eventType string) {
	globalManager.storeMutations.WithLabelValues(eventType).Inc()
}

// UpdateCandidatesTotal sets the number of candidates.
func UpdateCandidatesTotal(count int) {
	globalManager.candidatesTotal.Set(float64(count))
}

// UpdateJudgesOnline sets the number of online judges.
func UpdateJudgesOnline(count int) {
	globalManager.judgesOnline.Set(float64(count))
}

// RecordBatchTransition records a batch lifecycle transition attempt.
func RecordBatchTransition(action, result string) {
	globalManager.batchTransitions.WithLabelValues(action, result).Inc()
}

// Persistence metrics.

// RecordFlushDuration records a snapshot flush duration in milliseconds.
func RecordFlushDuration(ms float64) {
	globalManager.flushDuration.Observe(ms)
	globalManager.flushesTotal.Inc()
}

// RecordFlushError increments the flush error counter.
func RecordFlushError() {
	globalManager.flushErrors.Inc()
}

// UpdateSnapshotBytes sets the size of the last snapshot written.
func UpdateSnapshotBytes(n int) {
	globalManager.snapshotBytes.Set(float64(n))
}

// UpdateBackupsRetained sets the number of backups kept.
func UpdateBackupsRetained(n int) {
	globalManager.backupsRetained.Set(float64(n))
}

// RecordLoadFallback increments the default-dataset fallback counter.
func RecordLoadFallback() {
	globalManager.loadFallbacks.Inc()
}

// HTTP metrics.

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
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
