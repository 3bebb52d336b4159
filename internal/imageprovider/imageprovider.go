// Package imageprovider fetches reference imagery and summaries for catalog
// species from external sources.
package imageprovider

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
)

// ErrImageNotFound indicates the provider has no imagery for the species.
// Callers should treat this as an expected miss, not a failure.
var ErrImageNotFound = errors.NewStd("image not found by provider")

const (
	// Successful lookups are kept for a day, misses for an hour so a
	// species that gains a page is picked up without a restart.
	positiveCacheTTL = 24 * time.Hour
	negativeCacheTTL = time.Hour

	cacheResultHit         = "hit"
	cacheResultMiss        = "miss"
	cacheResultNegativeHit = "negative_hit"

	fetchTimeout = 30 * time.Second
)

var imageProviderLogger *slog.Logger

func init() {
	var err error
	imageProviderLogger, _, err = logging.NewFileLogger("logs/imageprovider.log", "imageprovider", slog.LevelInfo)
	if err != nil {
		imageProviderLogger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "imageprovider")
	}
}

// SpeciesImage holds a reference image with its attribution.
type SpeciesImage struct {
	URL            string
	ScientificName string
	Summary        string
	AuthorName     string
	AuthorURL      string
	LicenseName    string
	LicenseURL     string
	SourceProvider string
	CachedAt       time.Time
}

// Provider fetches a reference image for a scientific name.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, scientificName string) (SpeciesImage, error)
}

// NewProvider returns the configured reference image provider, or nil when
// reference image fetching is disabled.
func NewProvider(settings *conf.SpeciesImagesSettings) (Provider, error) {
	switch settings.Provider {
	case "", "wikimedia":
		return NewWikiMediaProvider(settings)
	case "none":
		return nil, nil
	default:
		return nil, errors.Newf("unknown reference image provider: %s", settings.Provider).
			Component("imageprovider").
			Category(errors.CategoryConfiguration).
			Context("provider", settings.Provider).
			Build()
	}
}

// Enricher fills in reference imagery and summaries for newly created
// catalog entries. Fetches run in the background so catalog writes are
// never blocked on a remote API.
type Enricher struct {
	provider Provider
	ds       datastore.Interface
	cache    *gocache.Cache
	metrics  *metrics.ImageProviderMetrics
	wg       sync.WaitGroup
}

// NewEnricher wires a provider to the catalog. A nil provider yields a nil
// enricher, which callers treat as enrichment disabled.
func NewEnricher(provider Provider, ds datastore.Interface, m *metrics.ImageProviderMetrics) *Enricher {
	if provider == nil {
		return nil
	}
	return &Enricher{
		provider: provider,
		ds:       ds,
		cache:    gocache.New(positiveCacheTTL, 2*positiveCacheTTL),
		metrics:  m,
	}
}

// EnrichSpecies fetches a reference image for the species and stores it on
// the catalog entry. The fetch happens asynchronously; use Wait to drain
// in-flight work before shutdown.
func (e *Enricher) EnrichSpecies(speciesID uint, name, scientificName string) {
	if scientificName == "" {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		e.enrich(ctx, speciesID, name, scientificName)
	}()
}

// Wait blocks until all in-flight enrichment fetches have finished.
func (e *Enricher) Wait() {
	e.wg.Wait()
}

func (e *Enricher) enrich(ctx context.Context, speciesID uint, name, scientificName string) {
	logger := imageProviderLogger.With("species", name, "scientific_name", scientificName)

	img, err := e.lookup(ctx, scientificName)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			logger.Info("No reference image available for species")
		} else {
			logger.Error("Reference image fetch failed", "error", err)
		}
		return
	}

	fields := map[string]any{"image_url": img.URL}
	if img.Summary != "" {
		fields["description"] = img.Summary
	}
	if err := e.ds.UpdateSpecies(speciesID, fields); err != nil {
		logger.Error("Failed to store reference image on catalog entry", "error", err)
		return
	}
	logger.Info("Catalog entry enriched with reference image",
		"image_url", img.URL,
		"provider", img.SourceProvider)
}

// lookup consults the in-memory cache before hitting the provider. Misses
// are cached too so species without pages are not re-queried on every
// sighting.
func (e *Enricher) lookup(ctx context.Context, scientificName string) (SpeciesImage, error) {
	if cached, found := e.cache.Get(scientificName); found {
		if img, ok := cached.(SpeciesImage); ok {
			e.recordCache(cacheResultHit)
			return img, nil
		}
		e.recordCache(cacheResultNegativeHit)
		return SpeciesImage{}, ErrImageNotFound
	}
	e.recordCache(cacheResultMiss)

	start := time.Now()
	img, err := e.provider.Fetch(ctx, scientificName)
	if e.metrics != nil {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		e.metrics.RecordFetch(e.provider.Name(), status)
		e.metrics.RecordFetchDuration(e.provider.Name(), time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			e.cache.Set(scientificName, notFoundMarker{}, negativeCacheTTL)
		}
		return SpeciesImage{}, err
	}

	img.CachedAt = time.Now()
	e.cache.Set(scientificName, img, positiveCacheTTL)
	return img, nil
}

func (e *Enricher) recordCache(result string) {
	if e.metrics != nil {
		e.metrics.RecordCacheAccess(result)
	}
}

type notFoundMarker struct{}
