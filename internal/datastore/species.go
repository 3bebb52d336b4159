package datastore

import "time"

// Species is a catalog entry describing a marine species known to the system.
// Entries are either seeded by operators or auto-created by the reconciler
// when a high-confidence detection carries a scientific name.
type Species struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:255;not null;uniqueIndex:idx_species_name"`
	ScientificName string `gorm:"size:255;index:idx_species_scientific_name"`
	Category       string `gorm:"size:100"`
	Rarity         string `gorm:"size:50"`
	Danger         string `gorm:"size:50"`
	Venomous       bool
	Description    string `gorm:"type:text"`
	ImageURL       string `gorm:"size:512"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Species) TableName() string {
	return "species"
}
