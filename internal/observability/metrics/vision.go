// vision.go: Prometheus metrics for vision model calls and response parsing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VisionMetrics contains Prometheus metrics for the vision model service.
type VisionMetrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	parseTotal       *prometheus.CounterVec
	detectionsPerRun prometheus.Histogram
	confidence       prometheus.Histogram
}

// NewVisionMetrics creates and registers new vision service metrics.
func NewVisionMetrics(registry *prometheus.Registry) (*VisionMetrics, error) {
	m := &VisionMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VisionMetrics) initMetrics() error {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_requests_total",
			Help: "Total number of vision model requests",
		},
		[]string{"provider", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "vision_request_duration_seconds",
			Help: "Time taken by vision model requests",
			// Model calls are slow: 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"provider"},
	)

	m.parseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_parse_total",
			Help: "Total number of model response parse attempts",
		},
		[]string{"status"},
	)

	m.detectionsPerRun = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vision_detections_per_image",
		Help:    "Number of detections extracted per analyzed image",
		Buckets: prometheus.LinearBuckets(0, 1, 10),
	})

	m.confidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vision_detection_confidence",
		Help:    "Confidence distribution of extracted detections",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	return nil
}

// Describe implements the Collector interface
func (m *VisionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.parseTotal.Describe(ch)
	m.detectionsPerRun.Describe(ch)
	m.confidence.Describe(ch)
}

// Collect implements the Collector interface
func (m *VisionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.parseTotal.Collect(ch)
	m.detectionsPerRun.Collect(ch)
	m.confidence.Collect(ch)
}

// RecordRequest records a vision model request outcome.
func (m *VisionMetrics) RecordRequest(provider, status string) {
	m.requestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordRequestDuration records the duration of a vision model request.
func (m *VisionMetrics) RecordRequestDuration(provider string, seconds float64) {
	m.requestDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordParse records a model response parse outcome.
func (m *VisionMetrics) RecordParse(status string) {
	m.parseTotal.WithLabelValues(status).Inc()
}

// RecordDetections records the detection count and confidences of one run.
func (m *VisionMetrics) RecordDetections(confidences []float64) {
	m.detectionsPerRun.Observe(float64(len(confidences)))
	for _, c := range confidences {
		m.confidence.Observe(c)
	}
}
