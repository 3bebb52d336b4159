// Package pipeline sequences one photo (or a batch) through quota check,
// vision analysis, photo persistence, annotation and reconciliation, and
// aggregates per-image outcomes.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Reefey/Backend-sub000/internal/annotate"
	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/objectstore"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
	"github.com/Reefey/Backend-sub000/internal/quota"
	"github.com/Reefey/Backend-sub000/internal/reconciler"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/pipeline.log", "pipeline", new(slog.LevelVar))
	if err != nil || logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "pipeline")
	}
}

// Run modes reported to metrics.
const (
	modeSingle = "single"
	modeBatch  = "batch"
)

// Image is one photo submitted for analysis.
type Image struct {
	Filename string
	Data     []byte
}

// ImageResult is the per-image outcome shape returned to the HTTP layer.
type ImageResult struct {
	Filename       string                        `json:"filename"`
	Success        bool                          `json:"success"`
	Detections     []vision.Detection            `json:"detections,omitempty"`
	UnknownSpecies []vision.UnknownSpecies       `json:"unknownSpecies,omitempty"`
	PhotoURL       string                        `json:"photoUrl,omitempty"`
	AnnotatedURL   string                        `json:"annotatedUrl,omitempty"`
	SightingIDs    []uint                        `json:"sightingIds,omitempty"`
	Failures       []reconciler.DetectionFailure `json:"failures,omitempty"`
	Error          string                        `json:"error,omitempty"`

	// Err keeps the typed error for callers that map it to a status code.
	Err error `json:"-"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	TotalImages        int     `json:"totalImages"`
	SuccessfulAnalyses int     `json:"successfulAnalyses"`
	FailedAnalyses     int     `json:"failedAnalyses"`
	TotalDetections    int     `json:"totalDetections"`
	AverageConfidence  float64 `json:"averageConfidence"`
}

// BatchResult is the outcome of a batch submission.
type BatchResult struct {
	Results []ImageResult `json:"results"`
	Summary BatchSummary  `json:"summary"`
}

// EventPublisher is told about completed analyses. Optional; used for the
// MQTT integration.
type EventPublisher interface {
	PublishAnalysis(ctx context.Context, deviceID string, result *ImageResult)
}

// Orchestrator wires the pipeline stages together. All collaborators are
// injected; a nil gate disables quota enforcement and a nil renderer
// disables annotation.
type Orchestrator struct {
	settings  *conf.Settings
	gate      *quota.Gate
	vision    *vision.Service
	store     objectstore.Store
	renderer  *annotate.Renderer
	engine    *reconciler.Engine
	metrics   *metrics.PipelineMetrics
	publisher EventPublisher
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPublisher announces completed analyses.
func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithRenderer enables annotated photo rendering.
func WithRenderer(r *annotate.Renderer) Option {
	return func(o *Orchestrator) { o.renderer = r }
}

// WithQuotaGate enables per-device quota enforcement.
func WithQuotaGate(g *quota.Gate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// New creates a pipeline orchestrator.
func New(settings *conf.Settings, visionSvc *vision.Service, store objectstore.Store, engine *reconciler.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings: settings,
		vision:   visionSvc,
		store:    store,
		engine:   engine,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AnalyzeImage runs the full pipeline for a single photo. The quota unit is
// consumed at the point of the model call; quota, model and parse failures
// are fatal for the request.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, deviceID string, img Image) (*ImageResult, error) {
	start := time.Now()
	result, err := o.analyzeOne(ctx, deviceID, img)
	o.recordRun(modeSingle, start, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AnalyzeBatch verifies quota capacity for all N images up front, then
// processes them sequentially. Per-image failures land in that image's slot;
// only the up-front capacity check fails the batch as a whole.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, deviceID string, images []Image) (*BatchResult, error) {
	start := time.Now()

	if len(images) == 0 {
		return nil, errors.ValidationError("batch contains no images")
	}
	if len(images) > conf.MaxBatchImages {
		return nil, errors.Newf("batch of %d images exceeds the limit of %d", len(images), conf.MaxBatchImages).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	if o.gate != nil {
		if err := o.gate.CheckCapacity(deviceID, len(images)); err != nil {
			o.recordRun(modeBatch, start, err)
			return nil, err
		}
	}

	batch := &BatchResult{Results: make([]ImageResult, 0, len(images))}
	var confidenceSum float64
	var confidenceCount int

	for i := range images {
		result, err := o.analyzeOne(ctx, deviceID, images[i])
		if err != nil {
			batch.Results = append(batch.Results, ImageResult{
				Filename: images[i].Filename,
				Error:    err.Error(),
				Err:      err,
			})
			batch.Summary.FailedAnalyses++
			continue
		}
		batch.Results = append(batch.Results, *result)
		batch.Summary.SuccessfulAnalyses++
		batch.Summary.TotalDetections += len(result.Detections)
		for j := range result.Detections {
			confidenceSum += result.Detections[j].Confidence
			confidenceCount++
		}
	}

	batch.Summary.TotalImages = len(images)
	if confidenceCount > 0 {
		batch.Summary.AverageConfidence = confidenceSum / float64(confidenceCount)
	}

	if o.metrics != nil {
		o.metrics.RecordBatchSize(len(images))
	}
	o.recordRun(modeBatch, start, nil)
	logger.Info("Batch complete",
		"device_id", deviceID,
		"total", batch.Summary.TotalImages,
		"succeeded", batch.Summary.SuccessfulAnalyses,
		"failed", batch.Summary.FailedAnalyses,
		"duration", time.Since(start))
	return batch, nil
}

func (o *Orchestrator) analyzeOne(ctx context.Context, deviceID string, img Image) (*ImageResult, error) {
	if deviceID == "" {
		return nil, errors.ValidationError("device id is required")
	}
	if len(img.Data) == 0 {
		return nil, errors.ValidationError("photo payload is empty")
	}
	if o.metrics != nil {
		o.metrics.RecordImageSize(len(img.Data))
	}

	// One quota unit per model call, consumed lazily right before it.
	if o.gate != nil {
		if err := o.gate.Allow(deviceID, 1); err != nil {
			return nil, err
		}
	}

	analysis, err := o.vision.Analyze(ctx, img.Data)
	if err != nil {
		return nil, err
	}

	photoURL, annotatedURL, err := o.persistPhotos(ctx, img.Data, analysis.Detections)
	if err != nil {
		return nil, err
	}

	rec, err := o.engine.Reconcile(ctx, deviceID, analysis, reconciler.PhotoRef{
		PhotoURL:     photoURL,
		AnnotatedURL: annotatedURL,
		TakenAt:      time.Now(),
	})
	if err != nil {
		return nil, err
	}

	result := &ImageResult{
		Filename:       img.Filename,
		Success:        true,
		Detections:     rec.Detections,
		UnknownSpecies: analysis.UnknownSpecies,
		PhotoURL:       photoURL,
		AnnotatedURL:   annotatedURL,
		SightingIDs:    rec.SightingIDs,
		Failures:       rec.Failures,
	}
	if o.publisher != nil {
		o.publisher.PublishAnalysis(ctx, deviceID, result)
	}
	return result, nil
}

// persistPhotos uploads the original photo and, when rendering is enabled,
// the annotated variant, in parallel. The original upload is fatal; the
// annotated variant is best-effort and simply omitted on failure.
func (o *Orchestrator) persistPhotos(ctx context.Context, data []byte, detections []vision.Detection) (photoURL, annotatedURL string, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		url, uploadErr := o.store.Upload(gctx, data, objectstore.ObjectPath("photos/originals", "jpg"), "image/jpeg")
		if uploadErr != nil {
			return uploadErr
		}
		photoURL = url
		return nil
	})

	if o.renderer != nil && o.settings.Annotate.Enabled {
		g.Go(func() error {
			annotated, renderErr := o.renderer.Render(data, detections)
			if renderErr != nil {
				logger.Warn("Annotation failed, keeping original only", "error", renderErr)
				return nil
			}
			url, uploadErr := o.store.Upload(gctx, annotated, objectstore.ObjectPath("photos/annotated", "jpg"), "image/jpeg")
			if uploadErr != nil {
				logger.Warn("Annotated upload failed, keeping original only", "error", uploadErr)
				return nil
			}
			annotatedURL = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return photoURL, annotatedURL, nil
}

func (o *Orchestrator) recordRun(mode string, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	o.metrics.RecordRun(mode, status)
	o.metrics.RecordRunDuration(mode, time.Since(start).Seconds())
}
