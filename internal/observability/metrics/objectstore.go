// objectstore.go: Prometheus metrics for photo object storage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ObjectStoreMetrics contains Prometheus metrics for object store uploads.
type ObjectStoreMetrics struct {
	registry *prometheus.Registry

	uploadsTotal   *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadBytes    *prometheus.HistogramVec
}

// NewObjectStoreMetrics creates and registers new object store metrics.
func NewObjectStoreMetrics(registry *prometheus.Registry) (*ObjectStoreMetrics, error) {
	m := &ObjectStoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ObjectStoreMetrics) initMetrics() error {
	m.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_uploads_total",
			Help: "Total number of object store uploads",
		},
		[]string{"backend", "status"}, // backend: local, ftp, sftp
	)

	m.uploadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "objectstore_upload_duration_seconds",
			Help: "Time taken to upload an object",
			// Local writes are fast, remote uploads are not: 10ms to ~10s
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
		},
		[]string{"backend"},
	)

	m.uploadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_upload_bytes",
			Help:    "Size of uploaded objects in bytes",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount12),
		},
		[]string{"backend"},
	)

	return nil
}

// Describe implements the Collector interface
func (m *ObjectStoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.uploadsTotal.Describe(ch)
	m.uploadDuration.Describe(ch)
	m.uploadBytes.Describe(ch)
}

// Collect implements the Collector interface
func (m *ObjectStoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.uploadsTotal.Collect(ch)
	m.uploadDuration.Collect(ch)
	m.uploadBytes.Collect(ch)
}

// RecordUpload records one upload outcome.
func (m *ObjectStoreMetrics) RecordUpload(backend, status string) {
	m.uploadsTotal.WithLabelValues(backend, status).Inc()
}

// RecordUploadDuration records the duration of an upload.
func (m *ObjectStoreMetrics) RecordUploadDuration(backend string, seconds float64) {
	m.uploadDuration.WithLabelValues(backend).Observe(seconds)
}

// RecordUploadSize records the byte size of an uploaded object.
func (m *ObjectStoreMetrics) RecordUploadSize(backend string, bytes int) {
	m.uploadBytes.WithLabelValues(backend).Observe(float64(bytes))
}
