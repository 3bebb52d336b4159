package datastore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/geometry"
)

// newTestStore opens an in-memory SQLite store with migrations applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	// Named per test so parallel tests don't share the same shared-cache DB.
	settings.Output.SQLite.Path = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open(), "opening in-memory store should succeed")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func uintPtr(v uint) *uint { return &v }

func TestSpeciesLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	sp := &Species{Name: "Clown Anemonefish", ScientificName: "Amphiprion ocellaris", Category: "Fish"}
	require.NoError(t, store.CreateSpecies(sp))
	require.NotZero(t, sp.ID)

	byName, err := store.GetSpeciesByName("clown anemonefish")
	require.NoError(t, err)
	assert.Equal(t, sp.ID, byName.ID)

	// Falls back to the scientific name when the common name misses.
	byScientific, err := store.GetSpeciesByName("AMPHIPRION OCELLARIS")
	require.NoError(t, err)
	assert.Equal(t, sp.ID, byScientific.ID)

	_, err = store.GetSpeciesByName("Great White Shark")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "miss should surface as not-found, got %v", err)
}

func TestSpeciesUpdate(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	sp := &Species{Name: "Blue Tang", ScientificName: "Paracanthurus hepatus"}
	require.NoError(t, store.CreateSpecies(sp))

	require.NoError(t, store.UpdateSpecies(sp.ID, map[string]any{
		"description": "Surgeonfish of Indo-Pacific reefs",
		"image_url":   "https://example.org/blue-tang.jpg",
	}))

	got, err := store.GetSpeciesByID(sp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Surgeonfish of Indo-Pacific reefs", got.Description)
	assert.Equal(t, "https://example.org/blue-tang.jpg", got.ImageURL)

	err = store.UpdateSpecies(99999, map[string]any{"rarity": "Rare"})
	assert.True(t, errors.IsNotFound(err))
}

func TestFindOpenSightingReuse(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	sp := &Species{Name: "Hawksbill Turtle", ScientificName: "Eretmochelys imbricata"}
	require.NoError(t, store.CreateSpecies(sp))

	_, err := store.FindOpenSighting("device-1", sp.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "fresh device should have no open sighting")

	first := &Sighting{DeviceID: "device-1", SpeciesID: uintPtr(sp.ID), Status: StatusIdentified}
	require.NoError(t, store.CreateSighting(first))
	assert.False(t, first.FirstSeenAt.IsZero())

	// A repeat detection finds the same open sighting instead of creating one.
	open, err := store.FindOpenSighting("device-1", sp.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, open.ID)

	later := first.LastSeenAt.Add(time.Hour)
	require.NoError(t, store.TouchLastSeen(open.ID, "device-1", later))

	got, err := store.GetSighting(open.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later, got.LastSeenAt, time.Second)
	assert.WithinDuration(t, first.FirstSeenAt, got.FirstSeenAt, time.Second, "first seen must not move")

	// Another device keeps its own sighting window.
	_, err = store.FindOpenSighting("device-2", sp.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteSightingCascadesPhotos(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	sp := &Species{Name: "Giant Moray", ScientificName: "Gymnothorax javanicus"}
	require.NoError(t, store.CreateSpecies(sp))

	s := &Sighting{DeviceID: "device-9", SpeciesID: uintPtr(sp.ID), Status: StatusIdentified}
	require.NoError(t, store.CreateSighting(s))

	photo := &SightingPhoto{
		SightingID: s.ID,
		PhotoURL:   "https://example.org/originals/moray.jpg",
		Confidence: 0.91,
	}
	photo.SetBox(geometry.BoundingBox{X: 0.1, Y: 0.2, Width: 0.5, Height: 0.4})
	require.NoError(t, store.AddPhoto(photo))

	got, err := store.GetSighting(s.ID)
	require.NoError(t, err)
	require.Len(t, got.Photos, 1)
	assert.InDelta(t, 0.5, got.Photos[0].Box().Width, 1e-9)

	require.NoError(t, store.DeleteSighting(s.ID, "device-9"))

	_, err = store.GetSighting(s.ID)
	assert.True(t, errors.IsNotFound(err))

	var orphaned int64
	require.NoError(t, store.DB.Model(&SightingPhoto{}).Where("sighting_id = ?", s.ID).Count(&orphaned).Error)
	assert.Zero(t, orphaned, "photos must be removed with their sighting")

	err = store.DeleteSighting(s.ID, "device-9")
	assert.True(t, errors.IsNotFound(err), "double delete reports not-found")
}

func TestGetSightingsOrderAndPaging(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	names := []string{"Reef Manta Ray", "Spotted Eagle Ray", "Blue Spotted Ray"}
	base := time.Now().Add(-3 * time.Hour)
	for i := range 3 {
		sp := &Species{Name: names[i], ScientificName: names[i]}
		require.NoError(t, store.CreateSpecies(sp))
		s := &Sighting{
			DeviceID:    "device-5",
			SpeciesID:   uintPtr(sp.ID),
			Status:      StatusIdentified,
			FirstSeenAt: base.Add(time.Duration(i) * time.Hour),
			LastSeenAt:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.CreateSighting(s))
	}

	all, err := store.GetSightings("device-5", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].LastSeenAt.After(all[1].LastSeenAt), "newest first")

	page, err := store.GetSightings("device-5", 2, 1)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)

	none, err := store.GetSightings("device-none", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSightingOwnershipScoping(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	sp := &Species{Name: "Clown Triggerfish", ScientificName: "Balistoides conspicillum"}
	require.NoError(t, store.CreateSpecies(sp))

	s := &Sighting{DeviceID: "owner-device", SpeciesID: uintPtr(sp.ID), Status: StatusIdentified}
	require.NoError(t, store.CreateSighting(s))

	err := store.TouchLastSeen(s.ID, "other-device", time.Now())
	assert.True(t, errors.IsNotFound(err), "touch from another device must not match")

	err = store.DeleteSighting(s.ID, "other-device")
	assert.True(t, errors.IsNotFound(err), "delete from another device must not match")

	got, err := store.GetSighting(s.ID)
	require.NoError(t, err, "sighting survives a foreign delete attempt")
	assert.Equal(t, "owner-device", got.DeviceID)

	require.NoError(t, store.DeleteSighting(s.ID, "owner-device"))
	_, err = store.GetSighting(s.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateSightingDuplicateOpenConflict(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	sp := &Species{Name: "Napoleon Wrasse", ScientificName: "Cheilinus undulatus"}
	require.NoError(t, store.CreateSpecies(sp))

	first := &Sighting{DeviceID: "device-7", SpeciesID: uintPtr(sp.ID), Status: StatusIdentified}
	require.NoError(t, store.CreateSighting(first))

	dup := &Sighting{DeviceID: "device-7", SpeciesID: uintPtr(sp.ID), Status: StatusIdentified}
	err := store.CreateSighting(dup)
	require.Error(t, err, "second open sighting for the same device and species must be rejected")
	assert.True(t, errors.IsConflict(err))

	// The original row is untouched and still the open one.
	open, err := store.FindOpenSighting("device-7", sp.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, open.ID)
}
