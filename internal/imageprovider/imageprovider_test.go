package imageprovider

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/datastore"
)

type stubProvider struct {
	calls atomic.Int64
	image SpeciesImage
	err   error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, scientificName string) (SpeciesImage, error) {
	s.calls.Add(1)
	if s.err != nil {
		return SpeciesImage{}, s.err
	}
	img := s.image
	img.ScientificName = scientificName
	return img, nil
}

func newTestStore(t *testing.T) datastore.Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = fmt.Sprintf("file:imageprovider_%s?mode=memory&cache=shared", t.Name())
	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestEnricherStoresImageAndSummary(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	sp := &datastore.Species{Name: "Clownfish", ScientificName: "Amphiprion ocellaris"}
	require.NoError(t, ds.CreateSpecies(sp))

	provider := &stubProvider{image: SpeciesImage{
		URL:     "https://upload.example.org/clownfish.jpg",
		Summary: "A small reef fish that lives among sea anemones.",
	}}
	enricher := NewEnricher(provider, ds, nil)
	require.NotNil(t, enricher)

	enricher.EnrichSpecies(sp.ID, sp.Name, sp.ScientificName)
	enricher.Wait()

	updated, err := ds.GetSpeciesByID(sp.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example.org/clownfish.jpg", updated.ImageURL)
	assert.Equal(t, "A small reef fish that lives among sea anemones.", updated.Description)
}

func TestEnricherSkipsEmptyScientificName(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{}
	enricher := NewEnricher(provider, newTestStore(t), nil)

	enricher.EnrichSpecies(1, "Mystery Fish", "")
	enricher.Wait()

	assert.Zero(t, provider.calls.Load())
}

func TestEnricherCachesMisses(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	sp := &datastore.Species{Name: "Ghost Pipefish", ScientificName: "Solenostomus paradoxus"}
	require.NoError(t, ds.CreateSpecies(sp))

	provider := &stubProvider{err: ErrImageNotFound}
	enricher := NewEnricher(provider, ds, nil)

	enricher.EnrichSpecies(sp.ID, sp.Name, sp.ScientificName)
	enricher.Wait()
	enricher.EnrichSpecies(sp.ID, sp.Name, sp.ScientificName)
	enricher.Wait()

	assert.Equal(t, int64(1), provider.calls.Load(), "negative cache should suppress the second fetch")

	updated, err := ds.GetSpeciesByID(sp.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.ImageURL)
}

func TestEnricherCachesHits(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	sp := &datastore.Species{Name: "Manta Ray", ScientificName: "Mobula alfredi"}
	require.NoError(t, ds.CreateSpecies(sp))

	provider := &stubProvider{image: SpeciesImage{URL: "https://upload.example.org/manta.jpg"}}
	enricher := NewEnricher(provider, ds, nil)

	enricher.EnrichSpecies(sp.ID, sp.Name, sp.ScientificName)
	enricher.Wait()
	enricher.EnrichSpecies(sp.ID, sp.Name, sp.ScientificName)
	enricher.Wait()

	assert.Equal(t, int64(1), provider.calls.Load())
}

func TestNilProviderYieldsNilEnricher(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewEnricher(nil, nil, nil))
}

func TestNewProviderSelection(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(&conf.SpeciesImagesSettings{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewProvider(&conf.SpeciesImagesSettings{Provider: "flickr"})
	assert.Error(t, err)

	p, err = NewProvider(&conf.SpeciesImagesSettings{Provider: "wikimedia"})
	require.NoError(t, err)
	assert.Equal(t, "wikimedia", p.Name())
}

func TestExtractArtistInfo(t *testing.T) {
	t.Parallel()

	t.Run("prefers wikipedia user link", func(t *testing.T) {
		t.Parallel()
		artistHTML := `<a href="https://commons.wikimedia.org/wiki/Somewhere">Gallery</a>` +
			`<a href="https://en.wikipedia.org/wiki/User:ReefDiver">Reef Diver</a>`
		href, text, err := extractArtistInfo(artistHTML)
		require.NoError(t, err)
		assert.Equal(t, "https://en.wikipedia.org/wiki/User:ReefDiver", href)
		assert.Equal(t, "Reef Diver", text)
	})

	t.Run("falls back to first link", func(t *testing.T) {
		t.Parallel()
		href, text, err := extractArtistInfo(`<a href="https://example.org/diver">Diver</a>`)
		require.NoError(t, err)
		assert.Equal(t, "https://example.org/diver", href)
		assert.Equal(t, "Diver", text)
	})

	t.Run("plain text without links", func(t *testing.T) {
		t.Parallel()
		href, text, err := extractArtistInfo(`Jane Diver`)
		require.NoError(t, err)
		assert.Empty(t, href)
		assert.Equal(t, "Jane Diver", text)
	})
}

func TestBuildUserAgent(t *testing.T) {
	t.Parallel()
	ua := buildUserAgent("1.2.3")
	assert.Contains(t, ua, "Reefey-Backend/1.2.3")
	assert.Contains(t, ua, userAgentContact)

	assert.Contains(t, buildUserAgent(""), "Reefey-Backend/unknown")
}
