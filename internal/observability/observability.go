// Package observability provides metrics and monitoring capabilities for the
// Reefey backend.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry      *prometheus.Registry
	Pipeline      *metrics.PipelineMetrics
	Quota         *metrics.QuotaMetrics
	Vision        *metrics.VisionMetrics
	Reconciler    *metrics.ReconcilerMetrics
	Annotate      *metrics.AnnotateMetrics
	ObjectStore   *metrics.ObjectStoreMetrics
	Datastore     *metrics.DatastoreMetrics
	HTTP          *metrics.HTTPMetrics
	ImageProvider *metrics.ImageProviderMetrics
	MQTT          *metrics.MQTTMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any collector fails to register.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	quotaMetrics, err := metrics.NewQuotaMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create quota metrics: %w", err)
	}

	visionMetrics, err := metrics.NewVisionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision metrics: %w", err)
	}

	reconcilerMetrics, err := metrics.NewReconcilerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler metrics: %w", err)
	}

	annotateMetrics, err := metrics.NewAnnotateMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create annotate metrics: %w", err)
	}

	objectStoreMetrics, err := metrics.NewObjectStoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	imageProviderMetrics, err := metrics.NewImageProviderMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create image provider metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry:      registry,
		Pipeline:      pipelineMetrics,
		Quota:         quotaMetrics,
		Vision:        visionMetrics,
		Reconciler:    reconcilerMetrics,
		Annotate:      annotateMetrics,
		ObjectStore:   objectStoreMetrics,
		Datastore:     datastoreMetrics,
		HTTP:          httpMetrics,
		ImageProvider: imageProviderMetrics,
		MQTT:          mqttMetrics,
	}, nil
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// Handler returns the promhttp handler for the registry, for embedding in
// other routers.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

// Gather exposes the underlying registry's Gather for tests and debugging.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
