package vision

import (
	"math"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/geometry"
)

// Parse extracts a structured Analysis from raw model text. The model is
// prompted for JSON but routinely wraps it in prose, so the parser takes the
// greedy span from the first '{' to the last '}' and treats everything inside
// as untrusted: field shapes vary (string vs number confidences, missing
// boxes) and every field falls back to a safe default.
func Parse(raw string) (*Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, errors.ParseError(errors.NewStd("no JSON object found in model response"))
	}

	root, err := jason.NewObjectFromBytes([]byte(raw[start : end+1]))
	if err != nil {
		return nil, errors.ParseError(err)
	}

	analysis := &Analysis{}

	if detections, err := root.GetObjectArray("detections"); err == nil {
		for _, det := range detections {
			analysis.Detections = append(analysis.Detections, parseDetection(det))
		}
	}

	if unknowns, err := root.GetValueArray("unknownSpecies"); err == nil {
		for _, v := range unknowns {
			if entry, ok := parseUnknown(v); ok {
				analysis.UnknownSpecies = append(analysis.UnknownSpecies, entry)
			}
		}
	}

	return analysis, nil
}

func parseDetection(obj *jason.Object) Detection {
	species := stringField(obj, "species", "name")
	if species == "" {
		species = conf.UnknownSpeciesName
	}

	confidence := confidenceField(obj, "confidence")
	d := Detection{
		Species:        species,
		ScientificName: stringField(obj, "scientificName", "scientific_name"),
		Confidence:     confidence,
		Attributes:     stringField(obj, "attributes", "notes"),
	}

	// Some responses nest per-instance geometry, most carry a single box at
	// the detection level. Either way the result is at least one instance.
	if instances, err := obj.GetObjectArray("instances"); err == nil && len(instances) > 0 {
		for _, inst := range instances {
			instConfidence := confidenceField(inst, "confidence")
			if instConfidence == 0 {
				instConfidence = confidence
			}
			d.Instances = append(d.Instances, Instance{
				Box:        boxField(inst),
				Confidence: instConfidence,
			})
		}
	} else {
		d.Instances = []Instance{{Box: boxField(obj), Confidence: confidence}}
	}

	return d
}

func parseUnknown(v *jason.Value) (UnknownSpecies, bool) {
	// Entries arrive either as bare strings or as objects.
	if s, err := v.String(); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return UnknownSpecies{}, false
		}
		return UnknownSpecies{
			Description: s,
			Box:         geometry.FullFrame(),
			Evidence:    s,
		}, true
	}

	obj, err := v.Object()
	if err != nil {
		return UnknownSpecies{}, false
	}

	entry := UnknownSpecies{
		Description: stringField(obj, "description", "species", "name"),
		Confidence:  confidenceField(obj, "confidence"),
		Box:         boxField(obj),
	}
	if entry.Description == "" {
		entry.Description = conf.UnknownSpeciesName
	}
	if evidence, marshalErr := v.Marshal(); marshalErr == nil {
		entry.Evidence = string(evidence)
	} else {
		entry.Evidence = entry.Description
	}
	return entry, true
}

// stringField returns the first non-empty string among the candidate keys.
func stringField(obj *jason.Object, keys ...string) string {
	for _, key := range keys {
		if s, err := obj.GetString(key); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// confidenceField reads a confidence that may be a number, a numeric string,
// or a percentage string, clamped to [0,1]. Anything unreadable is 0.
func confidenceField(obj *jason.Object, key string) float64 {
	if f, err := obj.GetFloat64(key); err == nil {
		return clampConfidence(f)
	}
	if s, err := obj.GetString(key); err == nil {
		s = strings.TrimSpace(s)
		percent := strings.HasSuffix(s, "%")
		s = strings.TrimSuffix(s, "%")
		if f, parseErr := strconv.ParseFloat(s, 64); parseErr == nil {
			if percent {
				f /= 100
			}
			return clampConfidence(f)
		}
	}
	if n, err := obj.GetInt64(key); err == nil {
		return clampConfidence(float64(n))
	}
	return 0
}

func clampConfidence(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// boxField assembles and normalizes a bounding box from any of the box key
// variants the model uses. A missing box normalizes to the full frame.
func boxField(obj *jason.Object) geometry.BoundingBox {
	for _, key := range []string{"boundingBox", "bounding_box", "box", "bbox"} {
		if raw, err := obj.GetObject(key); err == nil {
			return geometry.Normalize(geometry.BoundingBox{
				X:      numberField(raw, "x"),
				Y:      numberField(raw, "y"),
				Width:  numberField(raw, "width", "w"),
				Height: numberField(raw, "height", "h"),
			})
		}
	}
	return geometry.Normalize(geometry.BoundingBox{})
}

func numberField(obj *jason.Object, keys ...string) float64 {
	for _, key := range keys {
		if f, err := obj.GetFloat64(key); err == nil {
			return f
		}
		if s, err := obj.GetString(key); err == nil {
			if f, parseErr := strconv.ParseFloat(strings.TrimSpace(s), 64); parseErr == nil {
				return f
			}
		}
	}
	return 0
}
