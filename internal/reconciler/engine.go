// Package reconciler matches vision detections against the species catalog
// and merges them into per-device sighting history with idempotent semantics.
package reconciler

import (
	"context"
	"io"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

// fold builds the case-insensitive cache key for a species name. A fresh
// caser per call: cases.Caser is not safe for concurrent use.
func fold(name string) string {
	return cases.Fold().String(name)
}

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/reconciler.log", "reconciler", new(slog.LevelVar))
	if err != nil || logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "reconciler")
	}
}

// Detection outcomes reported to metrics.
const (
	outcomeSkipped    = "skipped"
	outcomeMatched    = "matched"
	outcomeCreated    = "created"
	outcomeUnresolved = "unresolved"
)

const (
	defaultConfidenceThreshold = 0.7
	defaultAutoCreateThreshold = 0.8
	defaultCacheTTL            = 5 * time.Minute
)

// Conservative catalog defaults for auto-created entries.
const (
	autoCreateCategory = "Others"
	autoCreateRarity   = "Uncommon"
	autoCreateDanger   = "Low"
)

// PhotoRef carries the stored locations of one analyzed photo.
type PhotoRef struct {
	PhotoURL     string
	AnnotatedURL string
	TakenAt      time.Time
}

// DetectionFailure is a non-fatal per-detection store failure.
type DetectionFailure struct {
	Species string `json:"species"`
	Stage   string `json:"stage"` // catalog, sighting or photo
	Err     error  `json:"-"`
	Message string `json:"message"`
}

// Result reports what one reconciliation pass did. Detections are enriched
// copies of the input; Failures never abort the pass.
type Result struct {
	Detections  []vision.Detection
	SightingIDs []uint
	Failures    []DetectionFailure
}

// DayPeriodFunc classifies a timestamp into a day period label for the
// sighting photo. Optional.
type DayPeriodFunc func(time.Time) string

// Notifier is told about catalog entries the system discovered on its own.
// Optional.
type Notifier interface {
	SpeciesDiscovered(name, scientificName string, confidence float64)
}

// ImageEnricher fills in reference imagery for a species after the fact.
// Optional; failures are the enricher's problem.
type ImageEnricher interface {
	EnrichSpecies(speciesID uint, name, scientificName string)
}

// Engine reconciles detections for one image at a time. Safe for concurrent
// use; all state lives in the store and the read cache.
type Engine struct {
	ds       datastore.Interface
	settings *conf.ReconcilerSettings
	cache    *gocache.Cache
	metrics  *metrics.ReconcilerMetrics

	dayPeriod DayPeriodFunc
	notifier  Notifier
	enricher  ImageEnricher

	now func() time.Time
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithDayPeriod tags sighting photos with a day period label.
func WithDayPeriod(fn DayPeriodFunc) Option {
	return func(e *Engine) { e.dayPeriod = fn }
}

// WithNotifier announces auto-created catalog entries.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithImageEnricher fetches reference imagery for auto-created entries.
func WithImageEnricher(en ImageEnricher) Option {
	return func(e *Engine) { e.enricher = en }
}

// WithMetrics attaches reconciliation metrics.
func WithMetrics(m *metrics.ReconcilerMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a reconciliation engine over the given store.
func NewEngine(ds datastore.Interface, settings *conf.ReconcilerSettings, opts ...Option) *Engine {
	ttl := defaultCacheTTL
	if settings.CacheTTL > 0 {
		ttl = time.Duration(settings.CacheTTL) * time.Second
	}
	e := &Engine{
		ds:       ds,
		settings: settings,
		cache:    gocache.New(ttl, 2*ttl),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) confidenceThreshold() float64 {
	if e.settings.ConfidenceThreshold > 0 {
		return e.settings.ConfidenceThreshold
	}
	return defaultConfidenceThreshold
}

func (e *Engine) autoCreateThreshold() float64 {
	if e.settings.AutoCreateThreshold > 0 {
		return e.settings.AutoCreateThreshold
	}
	return defaultAutoCreateThreshold
}

// Reconcile processes the analysis for one photo, in detection order. It
// returns the enriched detections plus collected per-detection failures; the
// only fatal condition is a cancelled context.
func (e *Engine) Reconcile(ctx context.Context, deviceID string, analysis *vision.Analysis, photo PhotoRef) (*Result, error) {
	start := e.now()
	result := &Result{}
	threshold := e.confidenceThreshold()

	for i := range analysis.Detections {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err).
				Component("reconciler").
				Category(errors.CategorySighting).
				Context("device_id", deviceID).
				Build()
		}

		d := analysis.Detections[i] // copy, input is never mutated

		if d.Confidence < threshold {
			e.recordDetection(outcomeSkipped)
			result.Detections = append(result.Detections, d)
			continue
		}

		sp, outcome := e.resolveSpecies(&d, result)
		e.recordDetection(outcome)
		if sp == nil {
			result.Detections = append(result.Detections, d)
			continue
		}

		d.WasInDatabase = outcome == outcomeMatched
		d.SpeciesID = sp.ID

		sightingID, ok := e.mergeSighting(deviceID, sp.ID, &d, result)
		if ok {
			result.SightingIDs = append(result.SightingIDs, sightingID)
			e.attachPhoto(sightingID, &d, photo, result)
		}
		result.Detections = append(result.Detections, d)
	}

	if e.metrics != nil {
		e.metrics.RecordDuration(time.Since(start).Seconds())
	}
	if e.settings.Debug {
		logger.Debug("Reconciliation complete",
			"device_id", deviceID,
			"detections", len(result.Detections),
			"sightings", len(result.SightingIDs),
			"failures", len(result.Failures),
			"duration", time.Since(start))
	}
	return result, nil
}

// resolveSpecies finds or creates the catalog entry for a detection. A nil
// return means the detection stays unresolved.
func (e *Engine) resolveSpecies(d *vision.Detection, result *Result) (*datastore.Species, string) {
	if sp := e.lookup(d.Species); sp != nil {
		return sp, outcomeMatched
	}
	if d.ScientificName != "" {
		if sp := e.lookup(d.ScientificName); sp != nil {
			return sp, outcomeMatched
		}
	}

	// Catalog auto-expansion is deliberately conservative: only
	// high-confidence detections carrying a scientific name qualify.
	if !e.settings.AutoCreate || d.Confidence < e.autoCreateThreshold() || d.ScientificName == "" {
		return nil, outcomeUnresolved
	}

	sp := &datastore.Species{
		Name:           d.Species,
		ScientificName: d.ScientificName,
		Category:       autoCreateCategory,
		Rarity:         autoCreateRarity,
		Danger:         autoCreateDanger,
		Venomous:       false,
	}
	if err := e.ds.CreateSpecies(sp); err != nil {
		e.recordFailure("catalog")
		result.Failures = append(result.Failures, DetectionFailure{
			Species: d.Species,
			Stage:   "catalog",
			Err:     err,
			Message: "catalog entry could not be created",
		})
		logger.Warn("Catalog auto-create failed", "species", d.Species, "error", err)
		return nil, outcomeUnresolved
	}
	e.recordOperation(metrics.OpCatalogCreate, metrics.StatusSuccess)
	e.cacheSpecies(sp)

	logger.Info("Catalog entry auto-created",
		"species", sp.Name, "scientific_name", sp.ScientificName, "confidence", d.Confidence)
	if e.notifier != nil {
		e.notifier.SpeciesDiscovered(sp.Name, sp.ScientificName, d.Confidence)
	}
	if e.enricher != nil {
		e.enricher.EnrichSpecies(sp.ID, sp.Name, sp.ScientificName)
	}
	return sp, outcomeCreated
}

// lookup checks the read cache, then the store. Store misses are not cached:
// a later auto-create in the same batch must be visible immediately.
func (e *Engine) lookup(name string) *datastore.Species {
	if name == "" {
		return nil
	}
	key := fold(name)
	if cached, found := e.cache.Get(key); found {
		e.recordCache("hit")
		if sp, ok := cached.(*datastore.Species); ok {
			return sp
		}
	}
	e.recordCache("miss")

	sp, err := e.ds.GetSpeciesByName(name)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Error("Catalog lookup failed", "name", name, "error", err)
		}
		e.recordOperation(metrics.OpCatalogLookup, metrics.StatusError)
		return nil
	}
	e.recordOperation(metrics.OpCatalogLookup, metrics.StatusSuccess)
	e.cacheSpecies(sp)
	return sp
}

func (e *Engine) cacheSpecies(sp *datastore.Species) {
	e.cache.SetDefault(fold(sp.Name), sp)
	if sp.ScientificName != "" {
		e.cache.SetDefault(fold(sp.ScientificName), sp)
	}
}

// mergeSighting reuses the device's open sighting for the species or creates
// a new one. Reuse only bumps last-seen, so repeat calls stay idempotent.
func (e *Engine) mergeSighting(deviceID string, speciesID uint, d *vision.Detection, result *Result) (uint, bool) {
	now := e.now()

	open, err := e.ds.FindOpenSighting(deviceID, speciesID)
	switch {
	case err == nil:
		if touchErr := e.ds.TouchLastSeen(open.ID, deviceID, now); touchErr != nil {
			logger.Warn("Last-seen bump failed", "sighting_id", open.ID, "error", touchErr)
		}
		e.recordOperation(metrics.OpSightingReuse, metrics.StatusSuccess)
		return open.ID, true

	case errors.IsNotFound(err):
		s := &datastore.Sighting{
			DeviceID:    deviceID,
			SpeciesID:   &speciesID,
			Status:      datastore.StatusIdentified,
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		if createErr := e.ds.CreateSighting(s); createErr != nil {
			// A conflict means a concurrent request created the open sighting
			// between our lookup and insert; reuse that one.
			if errors.IsConflict(createErr) {
				if open, raceErr := e.ds.FindOpenSighting(deviceID, speciesID); raceErr == nil {
					if touchErr := e.ds.TouchLastSeen(open.ID, deviceID, now); touchErr != nil {
						logger.Warn("Last-seen bump failed", "sighting_id", open.ID, "error", touchErr)
					}
					e.recordOperation(metrics.OpSightingReuse, metrics.StatusSuccess)
					return open.ID, true
				}
			}
			e.recordFailure("sighting")
			result.Failures = append(result.Failures, DetectionFailure{
				Species: d.Species,
				Stage:   "sighting",
				Err:     createErr,
				Message: "sighting could not be created",
			})
			return 0, false
		}
		e.recordOperation(metrics.OpSightingCreate, metrics.StatusSuccess)
		return s.ID, true

	default:
		e.recordFailure("sighting")
		result.Failures = append(result.Failures, DetectionFailure{
			Species: d.Species,
			Stage:   "sighting",
			Err:     err,
			Message: "sighting lookup failed",
		})
		return 0, false
	}
}

func (e *Engine) attachPhoto(sightingID uint, d *vision.Detection, photo PhotoRef, result *Result) {
	p := &datastore.SightingPhoto{
		SightingID:   sightingID,
		PhotoURL:     photo.PhotoURL,
		AnnotatedURL: photo.AnnotatedURL,
		Confidence:   d.Confidence,
	}
	p.SetBox(d.FirstBox())

	takenAt := photo.TakenAt
	if takenAt.IsZero() {
		takenAt = e.now()
	}
	if e.dayPeriod != nil {
		p.DayPeriod = e.dayPeriod(takenAt)
	}

	if err := e.ds.AddPhoto(p); err != nil {
		e.recordFailure("photo")
		result.Failures = append(result.Failures, DetectionFailure{
			Species: d.Species,
			Stage:   "photo",
			Err:     err,
			Message: "photo record could not be attached",
		})
		return
	}
	e.recordOperation(metrics.OpPhotoAttach, metrics.StatusSuccess)
}

func (e *Engine) recordDetection(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordDetection(outcome)
	}
}

func (e *Engine) recordOperation(op, status string) {
	if e.metrics != nil {
		e.metrics.RecordOperation(op, status)
	}
}

func (e *Engine) recordFailure(stage string) {
	if e.metrics != nil {
		e.metrics.RecordFailure(stage)
	}
}

func (e *Engine) recordCache(result string) {
	if e.metrics != nil {
		e.metrics.RecordCacheAccess(result)
	}
}
