package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/geometry"
)

func TestParseProseWrappedJSON(t *testing.T) {
	t.Parallel()

	raw := `noise noise {"detections":[{"species":"Clownfish","confidence":0.9}]} trailing`
	analysis, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, analysis.Detections, 1)
	d := analysis.Detections[0]
	assert.Equal(t, "Clownfish", d.Species)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)
	require.Len(t, d.Instances, 1)
	assert.Equal(t, geometry.FullFrame(), d.Instances[0].Box, "missing box defaults to full frame")
	assert.False(t, d.WasInDatabase)
}

func TestParseNoBracesIsParseError(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"I could not find any marine life in this photo.",
		"",
		"} backwards {",
	} {
		_, err := Parse(raw)
		require.Error(t, err, "input %q", raw)
		assert.True(t, errors.IsParseError(err), "input %q should be a parse error, got %v", raw, err)
	}
}

func TestParseInvalidJSONIsParseError(t *testing.T) {
	t.Parallel()

	_, err := Parse(`{"detections": [unterminated`)
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
}

func TestParseToleratesFieldShapeVariants(t *testing.T) {
	t.Parallel()

	raw := `{
		"detections": [
			{"species": "", "confidence": "0.85", "boundingBox": {"x": "0.1", "y": 0.2, "width": 0.3, "height": 0.4}},
			{"name": "Blue Tang", "scientific_name": "Paracanthurus hepatus", "confidence": "91%"},
			{"species": "Moray Eel", "confidence": 7}
		],
		"unknownSpecies": [
			"striped organism near the coral",
			{"description": "translucent shrimp", "confidence": 0.4, "box": {"x": 0.5, "y": 0.5, "width": 0.1, "height": 0.1}}
		]
	}`

	analysis, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, analysis.Detections, 3)

	empty := analysis.Detections[0]
	assert.Equal(t, conf.UnknownSpeciesName, empty.Species, "empty species gets the shared fallback name")
	assert.InDelta(t, 0.85, empty.Confidence, 1e-9, "string confidences are accepted")
	assert.InDelta(t, 0.1, empty.Instances[0].Box.X, 1e-9, "string coordinates are accepted")

	tang := analysis.Detections[1]
	assert.Equal(t, "Blue Tang", tang.Species)
	assert.Equal(t, "Paracanthurus hepatus", tang.ScientificName)
	assert.InDelta(t, 0.91, tang.Confidence, 1e-9, "percent confidences scale down")

	eel := analysis.Detections[2]
	assert.InDelta(t, 1.0, eel.Confidence, 1e-9, "out-of-range confidence clamps to 1")

	require.Len(t, analysis.UnknownSpecies, 2)
	assert.Equal(t, "striped organism near the coral", analysis.UnknownSpecies[0].Description)
	assert.Equal(t, geometry.FullFrame(), analysis.UnknownSpecies[0].Box)
	assert.Equal(t, "translucent shrimp", analysis.UnknownSpecies[1].Description)
	assert.InDelta(t, 0.5, analysis.UnknownSpecies[1].Box.X, 1e-9)
	assert.NotEmpty(t, analysis.UnknownSpecies[1].Evidence, "object entries keep their original text as evidence")
}

func TestParseMultipleInstances(t *testing.T) {
	t.Parallel()

	raw := `{"detections": [{"species": "Sergeant Major", "confidence": 0.8,
		"instances": [
			{"boundingBox": {"x": 0.1, "y": 0.1, "width": 0.2, "height": 0.2}, "confidence": 0.75},
			{"boundingBox": {"x": 0.6, "y": 0.3, "width": 0.2, "height": 0.2}}
		]}]}`

	analysis, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, analysis.Detections, 1)

	d := analysis.Detections[0]
	require.Len(t, d.Instances, 2)
	assert.InDelta(t, 0.75, d.Instances[0].Confidence, 1e-9)
	assert.InDelta(t, 0.8, d.Instances[1].Confidence, 1e-9, "instance without confidence inherits the detection's")
	assert.InDelta(t, 0.6, d.Instances[1].Box.X, 1e-9)
}

func TestParseEmptyObject(t *testing.T) {
	t.Parallel()

	analysis, err := Parse("{}")
	require.NoError(t, err)
	assert.Empty(t, analysis.Detections)
	assert.Empty(t, analysis.UnknownSpecies)
}
