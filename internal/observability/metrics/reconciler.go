// reconciler.go: Prometheus metrics for detection reconciliation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconcilerMetrics contains Prometheus metrics for the reconciliation engine.
type ReconcilerMetrics struct {
	registry *prometheus.Registry

	detectionsTotal *prometheus.CounterVec
	operationsTotal *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	cacheTotal      *prometheus.CounterVec
	duration        prometheus.Histogram
}

// NewReconcilerMetrics creates and registers new reconciler metrics.
func NewReconcilerMetrics(registry *prometheus.Registry) (*ReconcilerMetrics, error) {
	m := &ReconcilerMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ReconcilerMetrics) initMetrics() error {
	m.detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_detections_total",
			Help: "Total number of detections processed by outcome",
		},
		[]string{"outcome"}, // outcome: matched, created, skipped, unresolved
	)

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_operations_total",
			Help: "Total number of catalog and sighting operations",
		},
		[]string{"operation", "status"},
	)

	m.failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_failures_total",
			Help: "Total number of non-fatal per-detection failures",
		},
		[]string{"operation"},
	)

	m.cacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_catalog_cache_total",
			Help: "Total number of catalog lookup cache accesses",
		},
		[]string{"result"}, // result: hit, miss
	)

	m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "reconciler_duration_seconds",
		Help: "Time taken to reconcile one image's detections",
		// Reconciliation is database bound: 1ms to ~1s
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	return nil
}

// Describe implements the Collector interface
func (m *ReconcilerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.detectionsTotal.Describe(ch)
	m.operationsTotal.Describe(ch)
	m.failuresTotal.Describe(ch)
	m.cacheTotal.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements the Collector interface
func (m *ReconcilerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.detectionsTotal.Collect(ch)
	m.operationsTotal.Collect(ch)
	m.failuresTotal.Collect(ch)
	m.cacheTotal.Collect(ch)
	m.duration.Collect(ch)
}

// RecordDetection records the final outcome of one detection.
func (m *ReconcilerMetrics) RecordDetection(outcome string) {
	m.detectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordOperation records a catalog or sighting store operation.
func (m *ReconcilerMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordFailure records a non-fatal per-detection failure.
func (m *ReconcilerMetrics) RecordFailure(operation string) {
	m.failuresTotal.WithLabelValues(operation).Inc()
}

// RecordCacheAccess records a catalog cache hit or miss.
func (m *ReconcilerMetrics) RecordCacheAccess(result string) {
	m.cacheTotal.WithLabelValues(result).Inc()
}

// RecordDuration records the time taken to reconcile one image.
func (m *ReconcilerMetrics) RecordDuration(seconds float64) {
	m.duration.Observe(seconds)
}
