// mqtt.go: Prometheus metrics for MQTT sighting event publishing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains Prometheus metrics for the MQTT publisher.
type MQTTMetrics struct {
	registry *prometheus.Registry

	connectionStatus prometheus.Gauge
	publishesTotal   *prometheus.CounterVec
	publishDuration  prometheus.Histogram
}

// NewMQTTMetrics creates and registers new MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() error {
	m.connectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_connection_status",
		Help: "Current MQTT connection status (1 connected, 0 disconnected)",
	})

	m.publishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_publishes_total",
			Help: "Total number of MQTT publish attempts",
		},
		[]string{"status"},
	)

	m.publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "mqtt_publish_duration_seconds",
		Help: "Time taken to publish an MQTT message",
		// Broker round trips: 1ms to ~1s
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	return nil
}

// Describe implements the Collector interface
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.connectionStatus.Describe(ch)
	m.publishesTotal.Describe(ch)
	m.publishDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.connectionStatus.Collect(ch)
	m.publishesTotal.Collect(ch)
	m.publishDuration.Collect(ch)
}

// SetConnectionStatus updates the broker connection gauge.
func (m *MQTTMetrics) SetConnectionStatus(connected bool) {
	if connected {
		m.connectionStatus.Set(1)
	} else {
		m.connectionStatus.Set(0)
	}
}

// RecordPublish records one publish attempt outcome.
func (m *MQTTMetrics) RecordPublish(status string) {
	m.publishesTotal.WithLabelValues(status).Inc()
}

// RecordPublishDuration records the duration of a publish.
func (m *MQTTMetrics) RecordPublishDuration(seconds float64) {
	m.publishDuration.Observe(seconds)
}
