package datastore

import (
	"time"

	"github.com/Reefey/Backend-sub000/internal/geometry"
)

// SightingPhoto records one analyzed photo attached to a sighting, with the
// bounding box of the detection flattened into fractional columns.
type SightingPhoto struct {
	ID           uint   `gorm:"primaryKey"`
	SightingID   uint   `gorm:"not null;index:idx_sighting_photos_sighting"`
	PhotoURL     string `gorm:"size:512;not null"`
	AnnotatedURL string `gorm:"size:512"`
	BoxX         float64
	BoxY         float64
	BoxWidth     float64
	BoxHeight    float64
	Confidence   float64
	DayPeriod    string `gorm:"size:20"`
	CreatedAt    time.Time
}

func (SightingPhoto) TableName() string {
	return "sighting_photos"
}

// Box reassembles the flattened bounding box columns.
func (p *SightingPhoto) Box() geometry.BoundingBox {
	return geometry.BoundingBox{X: p.BoxX, Y: p.BoxY, Width: p.BoxWidth, Height: p.BoxHeight}
}

// SetBox flattens a bounding box into the photo's columns.
func (p *SightingPhoto) SetBox(b geometry.BoundingBox) {
	p.BoxX, p.BoxY, p.BoxWidth, p.BoxHeight = b.X, b.Y, b.Width, b.Height
}
