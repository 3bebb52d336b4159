// Package mqtt publishes completed analysis events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
	"github.com/Reefey/Backend-sub000/internal/pipeline"
)

const (
	defaultTopic   = "reefey/sightings"
	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second

	// Milliseconds the paho client waits for in-flight work on disconnect.
	disconnectQuiesce = 250
)

var mqttLogger *slog.Logger

func init() {
	var err error
	mqttLogger, _, err = logging.NewFileLogger("logs/mqtt.log", "mqtt", slog.LevelInfo)
	if err != nil {
		mqttLogger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "mqtt")
	}
}

// detectionEvent is the wire form of one identified species in an analysis.
type detectionEvent struct {
	Species        string  `json:"species"`
	ScientificName string  `json:"scientificName,omitempty"`
	Confidence     float64 `json:"confidence"`
	Instances      int     `json:"instances"`
}

// analysisEvent is the wire form of one completed photo analysis.
type analysisEvent struct {
	DeviceID     string           `json:"deviceId"`
	Timestamp    time.Time        `json:"timestamp"`
	PhotoURL     string           `json:"photoUrl,omitempty"`
	AnnotatedURL string           `json:"annotatedUrl,omitempty"`
	SightingIDs  []uint           `json:"sightingIds,omitempty"`
	Detections   []detectionEvent `json:"detections"`
	Unknowns     int              `json:"unknownSpecies,omitempty"`
}

func newAnalysisEvent(deviceID string, result *pipeline.ImageResult, now time.Time) analysisEvent {
	ev := analysisEvent{
		DeviceID:     deviceID,
		Timestamp:    now,
		PhotoURL:     result.PhotoURL,
		AnnotatedURL: result.AnnotatedURL,
		SightingIDs:  result.SightingIDs,
		Detections:   make([]detectionEvent, 0, len(result.Detections)),
		Unknowns:     len(result.UnknownSpecies),
	}
	for i := range result.Detections {
		d := &result.Detections[i]
		ev.Detections = append(ev.Detections, detectionEvent{
			Species:        d.Species,
			ScientificName: d.ScientificName,
			Confidence:     d.Confidence,
			Instances:      len(d.Instances),
		})
	}
	return ev
}

// Publisher sends analysis events to a broker. It implements
// pipeline.EventPublisher; publish failures are logged and counted, never
// surfaced to the analysis request.
type Publisher struct {
	settings *conf.MQTTSettings
	topic    string
	client   pahomqtt.Client
	metrics  *metrics.MQTTMetrics
	now      func() time.Time

	mu sync.Mutex
}

// NewPublisher creates a publisher for the configured broker. Connect must
// be called before events flow.
func NewPublisher(settings *conf.MQTTSettings, m *metrics.MQTTMetrics) (*Publisher, error) {
	if settings.Broker == "" {
		return nil, errors.Newf("MQTT broker URL is required").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	topic := settings.Topic
	if topic == "" {
		topic = defaultTopic
	}
	return &Publisher{
		settings: settings,
		topic:    topic,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Connect establishes the broker connection. The underlying client keeps
// reconnecting on its own after the first successful connect.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := url.Parse(p.settings.Broker)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", p.settings.Broker).
			Build()
	}

	// Resolve up front so a bad hostname fails fast instead of spinning
	// inside the paho retry loop.
	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(err).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Context("broker", p.settings.Broker).
				Context("operation", "resolve_broker_host").
				Build()
		}
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.settings.Broker)
	opts.SetClientID(fmt.Sprintf("reefey-backend-%s", uuid.New().String()[:8]))
	opts.SetUsername(p.settings.Username)
	opts.SetPassword(p.settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)

	p.client = pahomqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("timeout connecting to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("broker", p.settings.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("broker", p.settings.Broker).
			Context("operation", "connect").
			Build()
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.IsConnected()
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
		p.setConnectionStatus(false)
	}
}

// PublishAnalysis sends one completed analysis to the sighting topic.
func (p *Publisher) PublishAnalysis(ctx context.Context, deviceID string, result *pipeline.ImageResult) {
	logger := mqttLogger.With("device_id", deviceID, "topic", p.topic)

	payload, err := json.Marshal(newAnalysisEvent(deviceID, result, p.now()))
	if err != nil {
		logger.Error("Failed to marshal analysis event", "error", err)
		p.recordPublish(metrics.StatusError)
		return
	}

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil || !client.IsConnected() {
		logger.Warn("Not connected to MQTT broker, dropping analysis event")
		p.recordPublish(metrics.StatusError)
		return
	}

	start := time.Now()
	token := client.Publish(p.topic, 0, p.settings.Retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		logger.Warn("Publish timed out")
		p.recordPublish(metrics.StatusError)
		return
	}
	if err := token.Error(); err != nil {
		logger.Error("Publish failed", "error", err)
		p.recordPublish(metrics.StatusError)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordPublishDuration(time.Since(start).Seconds())
	}
	p.recordPublish(metrics.StatusSuccess)
	logger.Debug("Analysis event published", "payload_size", len(payload))
}

func (p *Publisher) onConnect(_ pahomqtt.Client) {
	mqttLogger.Info("Connected to MQTT broker", "broker", p.settings.Broker)
	p.setConnectionStatus(true)
}

func (p *Publisher) onConnectionLost(_ pahomqtt.Client, err error) {
	mqttLogger.Warn("Connection to MQTT broker lost", "broker", p.settings.Broker, "error", err)
	p.setConnectionStatus(false)
}

func (p *Publisher) setConnectionStatus(connected bool) {
	if p.metrics != nil {
		p.metrics.SetConnectionStatus(connected)
	}
}

func (p *Publisher) recordPublish(status string) {
	if p.metrics != nil {
		p.metrics.RecordPublish(status)
	}
}
