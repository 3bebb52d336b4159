// Package annotate composites bounding boxes and species labels onto a
// source photo, producing a human-reviewable JPEG.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // PNG source photos decode through image.Decode
	"io"
	"log/slog"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/geometry"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/annotate.log", "annotate", new(slog.LevelVar))
	if err != nil || logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "annotate")
	}
}

// palette is cycled by detection index so each detection keeps a stable color.
var palette = [6]color.RGBA{
	{R: 0xE6, G: 0x3B, B: 0x2E, A: 0xFF}, // red
	{R: 0x2E, G: 0xCC, B: 0x40, A: 0xFF}, // green
	{R: 0x00, G: 0x74, B: 0xD9, A: 0xFF}, // blue
	{R: 0xFF, G: 0xDC, B: 0x00, A: 0xFF}, // yellow
	{R: 0xB1, G: 0x0D, B: 0xC9, A: 0xFF}, // magenta
	{R: 0x39, G: 0xCC, B: 0xCC, A: 0xFF}, // cyan
}

const (
	defaultQuality   = 85
	defaultLineWidth = 3
	labelPadding     = 2
)

// Renderer draws detection overlays onto photos.
type Renderer struct {
	quality   int
	lineWidth int
	metrics   *metrics.AnnotateMetrics
}

// NewRenderer creates a renderer from the annotate settings. metrics may be nil.
func NewRenderer(settings *conf.AnnotateSettings, m *metrics.AnnotateMetrics) *Renderer {
	quality := settings.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}
	lineWidth := settings.LineWidth
	if lineWidth <= 0 {
		lineWidth = defaultLineWidth
	}
	return &Renderer{quality: quality, lineWidth: lineWidth, metrics: m}
}

// Render decodes the photo, draws one rectangle and label per detection
// instance, and re-encodes as JPEG. Zero detections still produce a valid
// image. Failures come back as annotation errors; callers treat them as
// non-fatal and keep the original photo.
func (r *Renderer) Render(imageData []byte, detections []vision.Detection) (out []byte, err error) {
	start := time.Now()
	boxes := 0
	defer func() {
		if r.metrics == nil {
			return
		}
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		r.metrics.RecordRender(status)
		r.metrics.RecordRenderDuration(time.Since(start).Seconds())
		if err == nil {
			r.metrics.RecordBoxes(boxes)
		}
	}()

	src, format, decodeErr := image.Decode(bytes.NewReader(imageData))
	if decodeErr != nil {
		return nil, errors.New(decodeErr).
			Component("annotate").
			Category(errors.CategoryImageDecode).
			Context("operation", "render").
			Build()
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for i := range detections {
		det := &detections[i]
		col := palette[i%len(palette)]
		label := fmt.Sprintf("%s (%.0f%%)", det.Species, det.Confidence*100)
		for j := range det.Instances {
			r.drawInstance(canvas, det.Instances[j].Box, col, label)
			boxes++
		}
	}

	var buf bytes.Buffer
	if encodeErr := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: r.quality}); encodeErr != nil {
		return nil, errors.New(encodeErr).
			Component("annotate").
			Category(errors.CategoryAnnotation).
			Context("operation", "encode").
			Build()
	}

	logger.Debug("Rendered annotated photo",
		"source_format", format,
		"boxes", boxes,
		"bytes", buf.Len(),
		"duration", time.Since(start))
	return buf.Bytes(), nil
}

func (r *Renderer) drawInstance(canvas *image.RGBA, box geometry.BoundingBox, col color.RGBA, label string) {
	width := canvas.Bounds().Dx()
	height := canvas.Bounds().Dy()
	x, y, w, h := geometry.ToPixels(box, width, height)

	r.strokeRect(canvas, x, y, w, h, col)
	r.drawLabel(canvas, x, y, col, label)
}

// strokeRect draws a rectangle outline of the configured line width.
func (r *Renderer) strokeRect(canvas *image.RGBA, x, y, w, h int, col color.RGBA) {
	bounds := canvas.Bounds()
	for t := range r.lineWidth {
		rect := image.Rect(x-t, y-t, x+w+t, y+h+t).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		for px := rect.Min.X; px < rect.Max.X; px++ {
			canvas.Set(px, rect.Min.Y, col)
			canvas.Set(px, rect.Max.Y-1, col)
		}
		for py := rect.Min.Y; py < rect.Max.Y; py++ {
			canvas.Set(rect.Min.X, py, col)
			canvas.Set(rect.Max.X-1, py, col)
		}
	}
}

// drawLabel paints the label on a filled background above the box top-left
// corner, clamped so the text never leaves the canvas.
func (r *Renderer) drawLabel(canvas *image.RGBA, boxX, boxY int, col color.RGBA, label string) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()
	labelHeight := face.Metrics().Height.Ceil() + 2*labelPadding

	// Keep the label inside the image for boxes touching the top edge.
	top := boxY - labelHeight
	if top < 0 {
		top = 0
	}
	left := boxX
	if left < 0 {
		left = 0
	}
	if maxLeft := canvas.Bounds().Max.X - textWidth - 2*labelPadding; left > maxLeft && maxLeft >= 0 {
		left = maxLeft
	}

	bg := image.Rect(left, top, left+textWidth+2*labelPadding, top+labelHeight).Intersect(canvas.Bounds())
	draw.Draw(canvas, bg, &image.Uniform{C: col}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(left + labelPadding),
			Y: fixed.I(top + labelPadding + face.Metrics().Ascent.Ceil()),
		},
	}
	drawer.DrawString(label)
}
