// Package datastore persists the species catalog and sighting history behind
// a small interface with SQLite and MySQL backends.
package datastore

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Reefey/Backend-sub000/internal/conf"
	reefeyerrors "github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
)

// Package-level logger for database operations
var (
	logger      *slog.Logger
	levelVar    = new(slog.LevelVar)
	closeLogger func() error
)

func init() {
	var err error
	logger, closeLogger, err = logging.NewFileLogger("logs/datastore.log", "datastore", levelVar)
	if err != nil || logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "datastore")
		closeLogger = func() error { return nil }
	}
}

// Interface abstracts the persistence layer for the catalog and sightings.
type Interface interface {
	Open() error
	Close() error

	// Species catalog
	GetSpeciesByName(name string) (*Species, error)
	GetSpeciesByID(id uint) (*Species, error)
	GetAllSpecies() ([]Species, error)
	CreateSpecies(sp *Species) error
	UpdateSpecies(id uint, fields map[string]any) error

	// Sightings
	FindOpenSighting(deviceID string, speciesID uint) (*Sighting, error)
	CreateSighting(s *Sighting) error
	TouchLastSeen(sightingID uint, deviceID string, seenAt time.Time) error
	AddPhoto(photo *SightingPhoto) error
	GetSighting(id uint) (Sighting, error)
	GetSightings(deviceID string, limit, offset int) ([]Sighting, error)
	DeleteSighting(id uint, deviceID string) error

	SetMetrics(m *metrics.DatastoreMetrics)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB
	metrics *metrics.DatastoreMetrics
}

// New creates a store for the backend enabled in the output settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// SetMetrics attaches operation metrics to the store. Safe to leave unset.
func (ds *DataStore) SetMetrics(m *metrics.DatastoreMetrics) {
	ds.metrics = m
}

// observe records the outcome and duration of a store operation.
func (ds *DataStore) observe(op string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil && !reefeyerrors.IsNotFound(err) {
		status = metrics.StatusError
		ds.metrics.RecordError(op, "query")
	}
	ds.metrics.RecordOperation(op, status)
	ds.metrics.RecordOperationDuration(op, time.Since(start).Seconds())
}

func notFound(format string, args ...any) error {
	return reefeyerrors.Newf(format, args...).
		Component("datastore").
		Category(reefeyerrors.CategoryNotFound).
		Build()
}

// GetSpeciesByName looks up a catalog entry case-insensitively by common
// name, falling back to the scientific name. Returns a not-found error when
// neither matches.
func (ds *DataStore) GetSpeciesByName(name string) (sp *Species, err error) {
	start := time.Now()
	defer func() { ds.observe("species_lookup", start, err) }()

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, notFound("species lookup with empty name")
	}

	var result Species
	dbErr := ds.DB.Where("LOWER(name) = ?", needle).First(&result).Error
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		dbErr = ds.DB.Where("LOWER(scientific_name) = ?", needle).First(&result).Error
	}
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return nil, notFound("species %q not found", name)
	}
	if dbErr != nil {
		return nil, reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategoryDatabase).
			Context("operation", "species_lookup").
			Context("name", name).
			Build()
	}
	return &result, nil
}

// GetSpeciesByID retrieves a catalog entry by primary key.
func (ds *DataStore) GetSpeciesByID(id uint) (sp *Species, err error) {
	start := time.Now()
	defer func() { ds.observe("species_get", start, err) }()

	var result Species
	dbErr := ds.DB.First(&result, id).Error
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return nil, notFound("species %d not found", id)
	}
	if dbErr != nil {
		return nil, reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategoryDatabase).
			Context("operation", "species_get").
			Build()
	}
	return &result, nil
}

// GetAllSpecies returns the full catalog ordered by common name.
func (ds *DataStore) GetAllSpecies() (species []Species, err error) {
	start := time.Now()
	defer func() { ds.observe("species_list", start, err) }()

	if dbErr := ds.DB.Order("name ASC").Find(&species).Error; dbErr != nil {
		return nil, reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategoryDatabase).
			Context("operation", "species_list").
			Build()
	}
	return species, nil
}

// CreateSpecies inserts a new catalog entry.
func (ds *DataStore) CreateSpecies(sp *Species) (err error) {
	start := time.Now()
	defer func() { ds.observe("species_create", start, err) }()

	if dbErr := ds.DB.Create(sp).Error; dbErr != nil {
		return reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategoryCatalog).
			Context("operation", "species_create").
			Context("name", sp.Name).
			Build()
	}
	logger.Info("Species created", "id", sp.ID, "name", sp.Name)
	return nil
}

// UpdateSpecies applies a partial update to a catalog entry.
func (ds *DataStore) UpdateSpecies(id uint, fields map[string]any) (err error) {
	start := time.Now()
	defer func() { ds.observe("species_update", start, err) }()

	result := ds.DB.Model(&Species{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return reefeyerrors.New(result.Error).
			Component("datastore").
			Category(reefeyerrors.CategoryCatalog).
			Context("operation", "species_update").
			Build()
	}
	if result.RowsAffected == 0 {
		return notFound("species %d not found", id)
	}
	return nil
}

// FindOpenSighting returns the open (non-closed) sighting for a device and
// species, or a not-found error when the device has none.
func (ds *DataStore) FindOpenSighting(deviceID string, speciesID uint) (s *Sighting, err error) {
	start := time.Now()
	defer func() { ds.observe("sighting_find_open", start, err) }()

	var result Sighting
	dbErr := ds.DB.
		Where("device_id = ? AND species_id = ? AND status = ?", deviceID, speciesID, StatusIdentified).
		Order("last_seen_at DESC").
		First(&result).Error
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return nil, notFound("no open sighting for device %s species %d", deviceID, speciesID)
	}
	if dbErr != nil {
		return nil, reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategorySighting).
			Context("operation", "sighting_find_open").
			Build()
	}
	return &result, nil
}

// CreateSighting inserts a new sighting. FirstSeenAt and LastSeenAt default
// to now when unset.
func (ds *DataStore) CreateSighting(s *Sighting) (err error) {
	start := time.Now()
	defer func() { ds.observe("sighting_create", start, err) }()

	now := time.Now()
	if s.FirstSeenAt.IsZero() {
		s.FirstSeenAt = now
	}
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = now
	}
	if dbErr := ds.DB.Create(s).Error; dbErr != nil {
		// The unique open-sighting index turns a concurrent find-or-create
		// race into a duplicate-key error; report it so callers can re-fetch.
		if errors.Is(dbErr, gorm.ErrDuplicatedKey) {
			return reefeyerrors.New(dbErr).
				Component("datastore").
				Category(reefeyerrors.CategoryConflict).
				Context("operation", "sighting_create").
				Context("device_id", s.DeviceID).
				Build()
		}
		return reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategorySighting).
			Context("operation", "sighting_create").
			Context("device_id", s.DeviceID).
			Build()
	}
	logger.Info("Sighting created", "id", s.ID, "device_id", s.DeviceID, "status", s.Status)
	return nil
}

// TouchLastSeen bumps the last-seen timestamp of the device's sighting. A
// sighting belonging to another device reports not-found.
func (ds *DataStore) TouchLastSeen(sightingID uint, deviceID string, seenAt time.Time) (err error) {
	start := time.Now()
	defer func() { ds.observe("sighting_touch", start, err) }()

	result := ds.DB.Model(&Sighting{}).
		Where("id = ? AND device_id = ?", sightingID, deviceID).
		Update("last_seen_at", seenAt)
	if result.Error != nil {
		return reefeyerrors.New(result.Error).
			Component("datastore").
			Category(reefeyerrors.CategorySighting).
			Context("operation", "sighting_touch").
			Build()
	}
	if result.RowsAffected == 0 {
		return notFound("sighting %d not found", sightingID)
	}
	return nil
}

// AddPhoto attaches an analyzed photo to a sighting.
func (ds *DataStore) AddPhoto(photo *SightingPhoto) (err error) {
	start := time.Now()
	defer func() { ds.observe("photo_add", start, err) }()

	if dbErr := ds.DB.Create(photo).Error; dbErr != nil {
		return reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategorySighting).
			Context("operation", "photo_add").
			Context("sighting_id", photo.SightingID).
			Build()
	}
	return nil
}

// GetSighting retrieves a sighting with its photos preloaded.
func (ds *DataStore) GetSighting(id uint) (s Sighting, err error) {
	start := time.Now()
	defer func() { ds.observe("sighting_get", start, err) }()

	dbErr := ds.DB.Preload("Photos").First(&s, id).Error
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return Sighting{}, notFound("sighting %d not found", id)
	}
	if dbErr != nil {
		return Sighting{}, reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategorySighting).
			Context("operation", "sighting_get").
			Build()
	}
	return s, nil
}

// GetSightings returns a device's sightings newest first. A limit of zero or
// less disables paging.
func (ds *DataStore) GetSightings(deviceID string, limit, offset int) (sightings []Sighting, err error) {
	start := time.Now()
	defer func() { ds.observe("sighting_list", start, err) }()

	query := ds.DB.Preload("Photos").Where("device_id = ?", deviceID).Order("last_seen_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if dbErr := query.Find(&sightings).Error; dbErr != nil {
		return nil, reefeyerrors.New(dbErr).
			Component("datastore").
			Category(reefeyerrors.CategorySighting).
			Context("operation", "sighting_list").
			Build()
	}
	return sightings, nil
}

// DeleteSighting removes the device's sighting and its photos in one
// transaction. A sighting belonging to another device reports not-found and
// nothing is deleted.
func (ds *DataStore) DeleteSighting(id uint, deviceID string) (err error) {
	start := time.Now()
	defer func() { ds.observe("sighting_delete", start, err) }()

	txErr := ds.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND device_id = ?", id, deviceID).Delete(&Sighting{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("sighting_id = ?", id).Delete(&SightingPhoto{}).Error
	})
	if errors.Is(txErr, gorm.ErrRecordNotFound) {
		return notFound("sighting %d not found", id)
	}
	if txErr != nil {
		return reefeyerrors.New(txErr).
			Component("datastore").
			Category(reefeyerrors.CategorySighting).
			Context("operation", "sighting_delete").
			Build()
	}
	logger.Info("Sighting deleted", "id", id, "device_id", deviceID)
	return nil
}
