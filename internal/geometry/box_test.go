package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeIsTotal verifies that Normalize produces a valid unit-square
// box for any input, including non-finite and negative components.
func TestNormalizeIsTotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input BoundingBox
	}{
		{"zero value", BoundingBox{}},
		{"valid box", BoundingBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}},
		{"negative origin", BoundingBox{X: -0.5, Y: -2, Width: 0.5, Height: 0.5}},
		{"negative dimensions", BoundingBox{X: 0.2, Y: 0.2, Width: -1, Height: -1}},
		{"oversized", BoundingBox{X: 0.9, Y: 0.9, Width: 5, Height: 5}},
		{"nan components", BoundingBox{X: math.NaN(), Y: math.NaN(), Width: math.NaN(), Height: math.NaN()}},
		{"positive infinity", BoundingBox{X: math.Inf(1), Y: 0, Width: math.Inf(1), Height: 0.5}},
		{"negative infinity", BoundingBox{X: math.Inf(-1), Y: 0.5, Width: 0.2, Height: math.Inf(-1)}},
		{"tiny dimensions", BoundingBox{X: 0.5, Y: 0.5, Width: 1e-9, Height: 1e-9}},
		{"origin at far corner", BoundingBox{X: 1, Y: 1, Width: 0.5, Height: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Normalize(tt.input)

			assert.GreaterOrEqual(t, got.X, 0.0, "X must be >= 0")
			assert.LessOrEqual(t, got.X, 1.0, "X must be <= 1")
			assert.GreaterOrEqual(t, got.Y, 0.0, "Y must be >= 0")
			assert.LessOrEqual(t, got.Y, 1.0, "Y must be <= 1")
			assert.GreaterOrEqual(t, got.Width, MinDimension, "Width must not be degenerate")
			assert.GreaterOrEqual(t, got.Height, MinDimension, "Height must not be degenerate")
			assert.LessOrEqual(t, got.X+got.Width, 1.0, "box must stay inside unit square horizontally")
			assert.LessOrEqual(t, got.Y+got.Height, 1.0, "box must stay inside unit square vertically")
		})
	}
}

// TestNormalizeDefaults verifies the canonical defaults for absent geometry.
func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	// A zero-value box carries no usable geometry and becomes the full frame.
	assert.Equal(t, FullFrame(), Normalize(BoundingBox{}), "empty box should normalize to full frame")

	// Non-finite everything is also treated as absent geometry.
	all := BoundingBox{X: math.NaN(), Y: math.NaN(), Width: math.NaN(), Height: math.NaN()}
	assert.Equal(t, FullFrame(), Normalize(all), "non-finite box should normalize to full frame")

	// A well-formed box passes through unchanged.
	b := BoundingBox{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5}
	assert.Equal(t, b, Normalize(b), "valid box should be unchanged")
}

// TestNormalizeClamping verifies clamping behavior for partially invalid boxes.
func TestNormalizeClamping(t *testing.T) {
	t.Parallel()

	// Width extending past the right edge is trimmed, not rejected.
	got := Normalize(BoundingBox{X: 0.8, Y: 0.1, Width: 0.5, Height: 0.2})
	assert.InDelta(t, 0.8, got.X, 1e-9)
	assert.InDelta(t, 0.2, got.Width, 1e-9, "width should be trimmed to the image edge")

	// A box at the very corner keeps the minimum dimension with the origin
	// pulled back inside.
	got = Normalize(BoundingBox{X: 1, Y: 1, Width: 0.1, Height: 0.1})
	assert.InDelta(t, 1.0, got.X+got.Width, 1e-9)
	assert.InDelta(t, 1.0, got.Y+got.Height, 1e-9)
	assert.GreaterOrEqual(t, got.Width, MinDimension)
	assert.GreaterOrEqual(t, got.Height, MinDimension)
}

// TestToPixels verifies fraction to pixel conversion at render time.
func TestToPixels(t *testing.T) {
	t.Parallel()

	x, y, w, h := ToPixels(BoundingBox{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25}, 800, 600)
	assert.Equal(t, 200, x)
	assert.Equal(t, 300, y)
	assert.Equal(t, 400, w)
	assert.Equal(t, 150, h)

	// Full frame maps to the whole image.
	x, y, w, h = ToPixels(FullFrame(), 640, 480)
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	// Degenerate fractions still produce at least one pixel.
	_, _, w, h = ToPixels(BoundingBox{X: 0.5, Y: 0.5, Width: MinDimension, Height: MinDimension}, 100, 100)
	assert.GreaterOrEqual(t, w, 1)
	assert.GreaterOrEqual(t, h, 1)
}

// TestFromPixels verifies pixel to fraction conversion.
func TestFromPixels(t *testing.T) {
	t.Parallel()

	b := FromPixels(100, 150, 200, 300, 400, 600)
	assert.InDelta(t, 0.25, b.X, 1e-9)
	assert.InDelta(t, 0.25, b.Y, 1e-9)
	assert.InDelta(t, 0.5, b.Width, 1e-9)
	assert.InDelta(t, 0.5, b.Height, 1e-9)

	// Invalid image dimensions fall back to the full frame.
	assert.Equal(t, FullFrame(), FromPixels(10, 10, 50, 50, 0, 0))
}
