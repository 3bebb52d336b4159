// Package vision calls the external vision model and turns its free-form
// text response into structured detections.
package vision

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
)

// Package-level logger for the vision service
var (
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/vision.log", "vision", levelVar)
	if err != nil || logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "vision")
	}
}

// Provider is a vision model backend. Analyze returns the model's raw text
// response; transport failures come back as plain errors and are wrapped by
// the service.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, imageData []byte) (string, error)
}

// Service wraps a Provider with rate limiting, response parsing and metrics.
type Service struct {
	provider Provider
	settings *conf.Settings
	metrics  *metrics.VisionMetrics
	limiter  *rate.Limiter
}

// NewService creates a vision service. metrics may be nil.
func NewService(provider Provider, settings *conf.Settings, m *metrics.VisionMetrics) *Service {
	s := &Service{
		provider: provider,
		settings: settings,
		metrics:  m,
	}
	if rpm := settings.Vision.RequestsPerMinute; rpm > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rpm/60), 1)
	}
	return s
}

// Analyze sends one image to the model and parses the response. Transport
// failures surface as model-unavailable errors; unparseable responses as
// parse errors. The service never retries.
func (s *Service) Analyze(ctx context.Context, imageData []byte) (*Analysis, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, errors.ModelUnavailableError(s.provider.Name(), err)
		}
	}

	start := time.Now()
	raw, err := s.provider.Analyze(ctx, imageData)
	elapsed := time.Since(start)

	if s.metrics != nil {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		s.metrics.RecordRequest(s.provider.Name(), status)
		s.metrics.RecordRequestDuration(s.provider.Name(), elapsed.Seconds())
	}

	if err != nil {
		logger.Error("Model request failed",
			"provider", s.provider.Name(), "duration", elapsed, "error", err)
		return nil, errors.ModelUnavailableError(s.provider.Name(), err)
	}

	analysis, parseErr := Parse(raw)
	if s.metrics != nil {
		status := metrics.StatusSuccess
		if parseErr != nil {
			status = metrics.StatusError
		}
		s.metrics.RecordParse(status)
	}
	if parseErr != nil {
		logger.Warn("Model response not parseable",
			"provider", s.provider.Name(), "response_bytes", len(raw))
		return nil, parseErr
	}

	if s.metrics != nil {
		confidences := make([]float64, 0, len(analysis.Detections))
		for i := range analysis.Detections {
			confidences = append(confidences, analysis.Detections[i].Confidence)
		}
		s.metrics.RecordDetections(confidences)
	}

	if s.settings.Vision.Debug {
		logger.Debug("Analysis complete",
			"provider", s.provider.Name(),
			"detections", len(analysis.Detections),
			"unknown_species", len(analysis.UnknownSpecies),
			"duration", elapsed)
	}
	return analysis, nil
}
