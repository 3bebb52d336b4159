// annotate.go: Prometheus metrics for bounding box rendering.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AnnotateMetrics contains Prometheus metrics for the annotation renderer.
type AnnotateMetrics struct {
	registry *prometheus.Registry

	rendersTotal   *prometheus.CounterVec
	renderDuration prometheus.Histogram
	boxesPerRender prometheus.Histogram
}

// NewAnnotateMetrics creates and registers new annotation renderer metrics.
func NewAnnotateMetrics(registry *prometheus.Registry) (*AnnotateMetrics, error) {
	m := &AnnotateMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AnnotateMetrics) initMetrics() error {
	m.rendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotate_renders_total",
			Help: "Total number of annotation render operations",
		},
		[]string{"status"},
	)

	m.renderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "annotate_render_duration_seconds",
		Help: "Time taken to render annotations onto a photo",
		// Image decode and re-encode: 10ms to ~10s
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
	})

	m.boxesPerRender = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "annotate_boxes_per_render",
		Help:    "Number of bounding boxes drawn per render",
		Buckets: prometheus.LinearBuckets(0, 1, 10),
	})

	return nil
}

// Describe implements the Collector interface
func (m *AnnotateMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.rendersTotal.Describe(ch)
	m.renderDuration.Describe(ch)
	m.boxesPerRender.Describe(ch)
}

// Collect implements the Collector interface
func (m *AnnotateMetrics) Collect(ch chan<- prometheus.Metric) {
	m.rendersTotal.Collect(ch)
	m.renderDuration.Collect(ch)
	m.boxesPerRender.Collect(ch)
}

// RecordRender records one render operation outcome.
func (m *AnnotateMetrics) RecordRender(status string) {
	m.rendersTotal.WithLabelValues(status).Inc()
}

// RecordRenderDuration records the duration of a render operation.
func (m *AnnotateMetrics) RecordRenderDuration(seconds float64) {
	m.renderDuration.Observe(seconds)
}

// RecordBoxes records the number of boxes drawn in one render.
func (m *AnnotateMetrics) RecordBoxes(n int) {
	m.boxesPerRender.Observe(float64(n))
}
