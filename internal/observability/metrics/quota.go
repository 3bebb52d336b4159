// quota.go: Prometheus metrics for the per-device quota gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// QuotaMetrics contains Prometheus metrics for quota gate operations.
type QuotaMetrics struct {
	registry *prometheus.Registry

	checksTotal *prometheus.CounterVec
	usageGauge  *prometheus.GaugeVec
}

// NewQuotaMetrics creates and registers new quota gate metrics.
func NewQuotaMetrics(registry *prometheus.Registry) (*QuotaMetrics, error) {
	m := &QuotaMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *QuotaMetrics) initMetrics() error {
	m.checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_checks_total",
			Help: "Total number of quota gate checks",
		},
		[]string{"device", "result"}, // result: allowed, denied
	)

	m.usageGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quota_usage",
			Help: "Current quota usage within the active window per device",
		},
		[]string{"device"},
	)

	return nil
}

// Describe implements the Collector interface
func (m *QuotaMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.checksTotal.Describe(ch)
	m.usageGauge.Describe(ch)
}

// Collect implements the Collector interface
func (m *QuotaMetrics) Collect(ch chan<- prometheus.Metric) {
	m.checksTotal.Collect(ch)
	m.usageGauge.Collect(ch)
}

// RecordCheck records a quota gate check outcome.
func (m *QuotaMetrics) RecordCheck(device, result string) {
	m.checksTotal.WithLabelValues(device, result).Inc()
}

// SetUsage updates the current usage gauge for a device.
func (m *QuotaMetrics) SetUsage(device string, used int) {
	m.usageGauge.WithLabelValues(device).Set(float64(used))
}
