// Package metrics provides Prometheus metrics for the diarisk service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the diarisk service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets   []float64
	riskScoreBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring
	assessmentsScored     prometheus.Counter
	assessmentsDegenerate prometheus.Counter
	assessmentsInvalid    prometheus.Counter
	assessmentsByBand     *prometheus.CounterVec
	riskScore             prometheus.Histogram
	scoringLatency        prometheus.Histogram
	submissionsDuplicate  prometheus.Counter

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	workerRetries           prometheus.Counter

	// Narration
	narrationLatency *prometheus.HistogramVec
	narrationErrors  *prometheus.CounterVec
	reportsByStatus  *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeRecords prometheus.Gauge

	// Datasets
	datasetAnalyses *prometheus.CounterVec
	datasetRows     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Histogram defaults. Latencies are observed in milliseconds.
var (
	DefaultLatencyBuckets   = []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000, 30000} //nolint:gochecknoglobals // bucket table
	DefaultRiskScoreBuckets = prometheus.LinearBuckets(5, 10, 10)                                  //nolint:gochecknoglobals // bucket table
)

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
		namespace:        "diarisk",
		subsystem:        "service",
		latencyBuckets:   DefaultLatencyBuckets,
		riskScoreBuckets: DefaultRiskScoreBuckets,
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
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

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.latencyBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.assessmentsScored = m.counter("assessments_scored_total", "Total number of profiles scored")
	m.assessmentsDegenerate = m.counter("assessments_degenerate_total", "Profiles missing a mandatory metric")
	m.assessmentsInvalid = m.counter("assessments_invalid_total", "Profiles rejected for non-finite values")
	m.assessmentsByBand = m.counterVec("assessments_by_band_total", "Scored profiles by risk band", "band")
	m.riskScore = m.histogram("risk_score", "Distribution of risk scores", m.riskScoreBuckets)
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Scoring latency in milliseconds",
		m.latencyBuckets)
	m.submissionsDuplicate = m.counter("submissions_duplicate_total", "Duplicate submissions suppressed")

	m.queueSize = m.gauge("queue_size", "Current number of pending report jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of report jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of report jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Report jobs rejected by a full or closed queue")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds",
		"Time a report job waited in the queue in milliseconds", m.latencyBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of report workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Report job processing latency in milliseconds", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed report jobs")
	m.workerRetries = m.counter("worker_retries_total", "Total number of narration retries")

	m.narrationLatency = m.histogramVec("narration_latency_milliseconds",
		"Narrator call latency in milliseconds", "narrator")
	m.narrationErrors = m.counterVec("narration_errors_total", "Narrator failures by kind", "kind")
	m.reportsByStatus = m.counterVec("reports_total", "Report outcomes by status", "status")

	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"History store latency in milliseconds", "operation")
	m.storeRecords = m.gauge("store_records_total", "Number of stored assessments")

	m.datasetAnalyses = m.counterVec("dataset_analyses_total", "Dataset analyses by format", "format")
	m.datasetRows = m.counterVec("dataset_rows_total", "Dataset rows by outcome", "outcome")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds",
		m.latencyBuckets)
}

// RecordAssessmentScored records a scored profile, its risk score and band.
func RecordAssessmentScored(riskScore int, band string) {
	globalManager.assessmentsScored.Inc()
	globalManager.riskScore.Observe(float64(riskScore))
	globalManager.assessmentsByBand.WithLabelValues(band).Inc()
}

// RecordAssessmentDegenerate counts a profile that lacked a mandatory metric.
func RecordAssessmentDegenerate() {
	globalManager.assessmentsDegenerate.Inc()
}

// RecordAssessmentInvalid counts a profile rejected for non-finite input.
func RecordAssessmentInvalid() {
	globalManager.assessmentsInvalid.Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordSubmissionDuplicate increments the duplicate submissions counter.
func RecordSubmissionDuplicate() {
	globalManager.submissionsDuplicate.Inc()
}

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
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a job waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// IncWorkerActive marks one more worker as busy.
func IncWorkerActive() {
	globalManager.workerActiveCount.Inc()
}

// DecWorkerActive marks one worker as idle again.
func DecWorkerActive() {
	globalManager.workerActiveCount.Dec()
}

// RecordWorkerProcessingLatency records job processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerRetry increments the retry counter.
func RecordWorkerRetry() {
	globalManager.workerRetries.Inc()
}

// RecordNarrationLatency records a narrator call latency in milliseconds.
func RecordNarrationLatency(narrator string, latencyMs float64) {
	globalManager.narrationLatency.WithLabelValues(narrator).Observe(latencyMs)
}

// RecordNarrationError counts a narrator failure of the given kind.
func RecordNarrationError(kind string) {
	globalManager.narrationErrors.WithLabelValues(kind).Inc()
}

// RecordReport counts a report outcome (ready, failed, skipped).
func RecordReport(status string) {
	globalManager.reportsByStatus.WithLabelValues(status).Inc()
}

// RecordStoreLatency records a history store operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateStoreRecords sets the number of stored assessments.
func UpdateStoreRecords(count int) {
	globalManager.storeRecords.Set(float64(count))
}

// RecordDatasetAnalysis counts one dataset analysis of the given format.
func RecordDatasetAnalysis(format string) {
	globalManager.datasetAnalyses.WithLabelValues(format).Inc()
}

// RecordDatasetRows adds n rows with the given outcome (scored, skipped).
func RecordDatasetRows(outcome string, n int) {
	globalManager.datasetRows.WithLabelValues(outcome).Add(float64(n))
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
