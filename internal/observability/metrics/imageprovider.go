// imageprovider.go: Prometheus metrics for species reference image fetching.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ImageProviderMetrics contains Prometheus metrics for reference image lookups.
type ImageProviderMetrics struct {
	registry *prometheus.Registry

	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cacheTotal    *prometheus.CounterVec
}

// NewImageProviderMetrics creates and registers new image provider metrics.
func NewImageProviderMetrics(registry *prometheus.Registry) (*ImageProviderMetrics, error) {
	m := &ImageProviderMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ImageProviderMetrics) initMetrics() error {
	m.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageprovider_fetches_total",
			Help: "Total number of reference image fetch operations",
		},
		[]string{"provider", "status"},
	)

	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "imageprovider_fetch_duration_seconds",
			Help: "Time taken to fetch a reference image",
			// Remote API round trips: 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"provider"},
	)

	m.cacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageprovider_cache_total",
			Help: "Total number of reference image cache accesses",
		},
		[]string{"result"}, // result: hit, miss, negative_hit
	)

	return nil
}

// Describe implements the Collector interface
func (m *ImageProviderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.fetchesTotal.Describe(ch)
	m.fetchDuration.Describe(ch)
	m.cacheTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *ImageProviderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.fetchesTotal.Collect(ch)
	m.fetchDuration.Collect(ch)
	m.cacheTotal.Collect(ch)
}

// RecordFetch records one reference image fetch outcome.
func (m *ImageProviderMetrics) RecordFetch(provider, status string) {
	m.fetchesTotal.WithLabelValues(provider, status).Inc()
}

// RecordFetchDuration records the duration of a reference image fetch.
func (m *ImageProviderMetrics) RecordFetchDuration(provider string, seconds float64) {
	m.fetchDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordCacheAccess records a cache hit, miss or negative-entry hit.
func (m *ImageProviderMetrics) RecordCacheAccess(result string) {
	m.cacheTotal.WithLabelValues(result).Inc()
}
