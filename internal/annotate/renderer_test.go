package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/geometry"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

// testJPEG encodes a uniform 200x150 image.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	for y := range 150 {
		for x := range 200 {
			img.Set(x, y, color.RGBA{R: 20, G: 60, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestRenderer() *Renderer {
	return NewRenderer(&conf.AnnotateSettings{Quality: 85, LineWidth: 2}, nil)
}

func TestRenderZeroDetectionsIsValidJPEG(t *testing.T) {
	t.Parallel()

	out, err := newTestRenderer().Render(testJPEG(t), nil)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err, "output must stay decodable")
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())
}

func TestRenderDrawsBoxes(t *testing.T) {
	t.Parallel()

	detections := []vision.Detection{
		{
			Species:    "Clownfish",
			Confidence: 0.92,
			Instances: []vision.Instance{
				{Box: geometry.BoundingBox{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5}, Confidence: 0.92},
			},
		},
	}

	original := testJPEG(t)
	out, err := newTestRenderer().Render(original, detections)
	require.NoError(t, err)
	assert.NotEqual(t, original, out, "drawing must change the image")

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// The box edge at x=50 should no longer be background blue.
	r, g, b, _ := img.At(50, 75).RGBA()
	bg := color.RGBA{R: 20, G: 60, B: 120}
	changed := uint8(r>>8) != bg.R || uint8(g>>8) != bg.G || uint8(b>>8) != bg.B
	assert.True(t, changed, "pixel on the box outline should be recolored")
}

func TestRenderLabelClampedAtTopEdge(t *testing.T) {
	t.Parallel()

	// Box touching the top edge: the label has no room above and must be
	// clamped into the canvas rather than drawn off it.
	detections := []vision.Detection{
		{
			Species:    "Manta Ray",
			Confidence: 0.8,
			Instances: []vision.Instance{
				{Box: geometry.BoundingBox{X: 0.1, Y: 0, Width: 0.4, Height: 0.3}},
			},
		},
	}

	out, err := newTestRenderer().Render(testJPEG(t), detections)
	require.NoError(t, err)
	_, _, err = image.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestRenderCorruptBufferFails(t *testing.T) {
	t.Parallel()

	_, err := newTestRenderer().Render([]byte("not an image"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageDecode))
}

func TestRenderCyclesPalette(t *testing.T) {
	t.Parallel()

	var detections []vision.Detection
	for i := range 8 {
		x := 0.05 + float64(i)*0.1
		detections = append(detections, vision.Detection{
			Species:    "Fish",
			Confidence: 0.9,
			Instances: []vision.Instance{
				{Box: geometry.BoundingBox{X: x, Y: 0.4, Width: 0.05, Height: 0.2}},
			},
		})
	}

	out, err := newTestRenderer().Render(testJPEG(t), detections)
	require.NoError(t, err)
	_, _, err = image.Decode(bytes.NewReader(out))
	assert.NoError(t, err, "more detections than palette entries must still render")
}
