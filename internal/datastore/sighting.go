package datastore

import "time"

// StatusIdentified marks a sighting whose species is known.
const StatusIdentified = "identified"

// Sighting groups the photos of one species seen by one device. At most one
// sighting per (device, species) is kept open at a time; repeat detections
// reuse the open sighting and only bump LastSeenAt. The unique index backs
// that invariant in the database, so concurrent find-or-create races surface
// as duplicate-key errors instead of duplicate rows.
type Sighting struct {
	ID          uint   `gorm:"primaryKey"`
	DeviceID    string `gorm:"size:100;not null;uniqueIndex:idx_sightings_open,priority:1"`
	SpeciesID   *uint  `gorm:"uniqueIndex:idx_sightings_open,priority:2"`
	Status      string `gorm:"size:20;not null;uniqueIndex:idx_sightings_open,priority:3"`
	FirstSeenAt time.Time
	LastSeenAt  time.Time

	Photos []SightingPhoto `gorm:"foreignKey:SightingID"`
}

func (Sighting) TableName() string {
	return "sightings"
}
