// Package geometry normalizes detection bounding boxes into the unit square.
//
// Box coordinates are stored as fractions of the image dimensions with the
// origin at the top-left corner. Pixel conversion happens only at render
// time so the same box can annotate images that were resized or re-encoded
// after detection.
package geometry

import "math"

// MinDimension is the smallest allowed normalized width or height. Boxes
// that clamp below this are raised to it to avoid degenerate zero-area
// geometry.
const MinDimension = 1.0 / 10000

// BoundingBox describes a region of an image as fractions of its width and
// height, origin at the top-left. All four fields are in [0,1] after
// Normalize.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullFrame returns the box covering the entire image. It is the canonical
// default for detections that arrive without usable geometry.
func FullFrame() BoundingBox {
	return BoundingBox{X: 0, Y: 0, Width: 1, Height: 1}
}

// Normalize returns a well-formed unit-square box for any input. The
// function is total: it never fails, it clamps. Non-finite components are
// treated as absent, absent origins default to 0 and absent dimensions to
// the full frame. The result always satisfies X+Width <= 1, Y+Height <= 1
// and Width, Height >= MinDimension.
func Normalize(b BoundingBox) BoundingBox {
	x := sanitize(b.X, 0)
	y := sanitize(b.Y, 0)
	w := sanitize(b.Width, 1)
	h := sanitize(b.Height, 1)

	// A box with no usable geometry at all gets the canonical full-frame
	// default rather than a degenerate sliver at the origin.
	if x == 0 && y == 0 && w <= 0 && h <= 0 {
		return FullFrame()
	}

	x = clamp(x, 0, 1)
	y = clamp(y, 0, 1)
	w = clamp(w, 0, 1)
	h = clamp(h, 0, 1)

	// Keep the box inside the unit square, pulling the origin back when the
	// minimum dimension would not otherwise fit.
	if x+w > 1 {
		w = 1 - x
	}
	if w < MinDimension {
		w = MinDimension
		if x+w > 1 {
			x = 1 - w
		}
	}
	if y+h > 1 {
		h = 1 - y
	}
	if h < MinDimension {
		h = MinDimension
		if y+h > 1 {
			y = 1 - h
		}
	}

	return BoundingBox{X: x, Y: y, Width: w, Height: h}
}

// FromPixels converts a pixel-space box to normalized fractions of the
// given image dimensions. Invalid image dimensions yield the full frame.
func FromPixels(x, y, w, h float64, imgW, imgH int) BoundingBox {
	if imgW <= 0 || imgH <= 0 {
		return FullFrame()
	}
	fw := float64(imgW)
	fh := float64(imgH)
	return Normalize(BoundingBox{
		X:      x / fw,
		Y:      y / fh,
		Width:  w / fw,
		Height: h / fh,
	})
}

// ToPixels converts a normalized box to pixel coordinates for an image of
// the given dimensions. The returned rectangle is clamped to the image.
func ToPixels(b BoundingBox, imgW, imgH int) (x, y, w, h int) {
	nb := Normalize(b)
	x = int(math.Round(nb.X * float64(imgW)))
	y = int(math.Round(nb.Y * float64(imgH)))
	w = int(math.Round(nb.Width * float64(imgW)))
	h = int(math.Round(nb.Height * float64(imgH)))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if x+w > imgW {
		x = imgW - w
	}
	if y+h > imgH {
		y = imgH - h
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y, w, h
}

// sanitize replaces non-finite values with the given default.
func sanitize(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
