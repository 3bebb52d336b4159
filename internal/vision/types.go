package vision

import "github.com/Reefey/Backend-sub000/internal/geometry"

// Instance is one occurrence of a detected organism in the image.
type Instance struct {
	Box        geometry.BoundingBox `json:"boundingBox"`
	Confidence float64              `json:"confidence"`
}

// Detection is one model-proposed species occurrence. It lives only for the
// pipeline run that produced it; the reconciler decides what persists.
type Detection struct {
	Species        string     `json:"species"`
	ScientificName string     `json:"scientificName,omitempty"`
	Confidence     float64    `json:"confidence"`
	Instances      []Instance `json:"instances"`
	WasInDatabase  bool       `json:"wasInDatabase"`
	SpeciesID      uint       `json:"speciesId,omitempty"`
	Attributes     string     `json:"attributes,omitempty"`
}

// FirstBox returns the bounding box of the first instance, or the full frame
// when the detection carries no geometry.
func (d *Detection) FirstBox() geometry.BoundingBox {
	if len(d.Instances) == 0 {
		return geometry.FullFrame()
	}
	return d.Instances[0].Box
}

// UnknownSpecies is an organism the model saw but could not identify. The
// original model text is kept as evidence for later review.
type UnknownSpecies struct {
	Description string               `json:"description"`
	Confidence  float64              `json:"confidence"`
	Box         geometry.BoundingBox `json:"boundingBox"`
	Evidence    string               `json:"evidence,omitempty"`
}

// Analysis is the structured result of one vision model call.
type Analysis struct {
	Detections     []Detection      `json:"detections"`
	UnknownSpecies []UnknownSpecies `json:"unknownSpecies"`
}
