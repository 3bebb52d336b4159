package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

// TestMySQLStoreRoundTrip runs the store contract against a real MySQL
// instance in a throwaway container. Skipped with -short or when no
// container runtime is available.
func TestMySQLStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("reefey"),
		tcmysql.WithUsername("reefey"),
		tcmysql.WithPassword("reefey-test"),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("could not start mysql container: %v", err)
	}

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Host = host
	settings.Output.MySQL.Port = port.Port()
	settings.Output.MySQL.Database = "reefey"
	settings.Output.MySQL.Username = "reefey"
	settings.Output.MySQL.Password = "reefey-test"

	store := &MySQLStore{Settings: settings}
	require.NoError(t, store.Open(), "open should connect and migrate")
	t.Cleanup(func() { _ = store.Close() })

	sp := &Species{Name: "Whale Shark", ScientificName: "Rhincodon typus", Category: "Fish"}
	require.NoError(t, store.CreateSpecies(sp))

	found, err := store.GetSpeciesByName("whale shark")
	require.NoError(t, err)
	assert.Equal(t, sp.ID, found.ID)

	speciesID := sp.ID
	s := &Sighting{DeviceID: "it-device", SpeciesID: &speciesID, Status: StatusIdentified}
	require.NoError(t, store.CreateSighting(s))

	open, err := store.FindOpenSighting("it-device", sp.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, open.ID)

	photo := &SightingPhoto{SightingID: s.ID, PhotoURL: "https://example.org/whale-shark.jpg", Confidence: 0.95}
	require.NoError(t, store.AddPhoto(photo))

	require.NoError(t, store.DeleteSighting(s.ID, "it-device"))
	_, err = store.GetSighting(s.ID)
	assert.True(t, errors.IsNotFound(err))
}
