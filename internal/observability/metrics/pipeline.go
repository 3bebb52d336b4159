// pipeline.go: Prometheus metrics for the analysis pipeline orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for pipeline orchestration.
type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	batchSizes     prometheus.Histogram
	imageSizeBytes prometheus.Histogram
}

// NewPipelineMetrics creates and registers new pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() error {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"mode", "status"}, // mode: analyze, batch
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_run_duration_seconds",
			Help: "End-to-end duration of pipeline runs",
			// Dominated by the model call: 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"mode"},
	)

	m.batchSizes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_batch_size",
		Help:    "Number of images per batch submission",
		Buckets: prometheus.LinearBuckets(1, 2, 10),
	})

	m.imageSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_image_size_bytes",
		Help:    "Size of submitted photos in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount12),
	})

	return nil
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.batchSizes.Describe(ch)
	m.imageSizeBytes.Describe(ch)
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.batchSizes.Collect(ch)
	m.imageSizeBytes.Collect(ch)
}

// RecordRun records one pipeline run outcome.
func (m *PipelineMetrics) RecordRun(mode, status string) {
	m.runsTotal.WithLabelValues(mode, status).Inc()
}

// RecordRunDuration records the end-to-end duration of a pipeline run.
func (m *PipelineMetrics) RecordRunDuration(mode string, seconds float64) {
	m.runDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordBatchSize records the image count of a batch submission.
func (m *PipelineMetrics) RecordBatchSize(n int) {
	m.batchSizes.Observe(float64(n))
}

// RecordImageSize records the byte size of a submitted photo.
func (m *PipelineMetrics) RecordImageSize(bytes int) {
	m.imageSizeBytes.Observe(float64(bytes))
}
