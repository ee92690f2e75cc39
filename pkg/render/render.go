// Package render draws the annotations of an image on top of it for review.
package render

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cvatkit/pkg/annotation"
	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/types"
)

// Options controls how shapes are drawn
type Options struct {
	// Stroke is the outline width in pixels, 0 scales it with the image
	Stroke int
	// FillOpacity is the alpha used to tint masks, polygons and ellipses
	FillOpacity uint8
	// Labels supplies label colors; labels without one get a stable fallback
	Labels []types.Label
}

// DefaultOptions returns the options used by New
func DefaultOptions() Options {
	return Options{FillOpacity: 96}
}

// Renderer draws annotation overlays
type Renderer struct {
	opts   Options
	colors map[string]color.NRGBA
}

// New creates a renderer
func New(opts Options) *Renderer {
	r := &Renderer{opts: opts, colors: make(map[string]color.NRGBA)}
	for _, l := range opts.Labels {
		if c, err := ParseColor(l.Color); err == nil {
			r.colors[l.Name] = c
		}
	}
	return r
}

// Overlay returns a copy of img with every shape of ann drawn on it.
// Shapes are rasterised at the size of img.
func (r *Renderer) Overlay(img image.Image, ann *annotation.ImageAnnotation) (*image.NRGBA, error) {
	out := imaging.Clone(img)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()

	stroke := r.opts.Stroke
	if stroke <= 0 {
		stroke = int(math.Max(2, 0.004*float64(min(w, h))))
	}
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	for _, m := range ann.Masks {
		if err := r.fill(out, m); err != nil {
			return nil, err
		}
	}
	for _, p := range ann.Polygons {
		if err := r.fill(out, p); err != nil {
			return nil, err
		}
		drawPath(out, p.Points, true, r.Color(p.Label), stroke)
	}
	for _, e := range ann.Ellipses {
		if err := r.fill(out, e); err != nil {
			return nil, err
		}
		c := r.Color(e.Label)
		drawPath(out, e.Polygon().Points, true, c, stroke)
		px, py := int(e.CX+0.5), int(e.CY+0.5)
		drawHLine(out, py, px-cross, px+cross, c)
		drawVLine(out, px, py-cross, py+cross, c)
	}
	for _, b := range ann.Boxes {
		drawBox(out, b, r.Color(b.Label), stroke)
	}
	for _, l := range ann.Polylines {
		drawPath(out, l.Points, false, r.Color(l.Label), stroke)
	}

	// tags become swatches along the top edge
	size := max(8, 3*stroke)
	for i, t := range ann.Tags {
		x0 := 2 + i*(size+2)
		for s := 0; s < size; s++ {
			drawHLine(out, 2+s, x0, x0+size, r.Color(t.Label))
		}
	}
	return out, nil
}

// Color returns the color used for label
func (r *Renderer) Color(label string) color.NRGBA {
	if c, ok := r.colors[label]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(label))
	sum := h.Sum32()
	c := color.NRGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
	r.colors[label] = c
	return c
}

func (r *Renderer) fill(img *image.NRGBA, s shape.Segmenter) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	seg, err := s.Segmentation(h, w)
	if err != nil {
		return fmt.Errorf("render %s %q: %w", s.Kind(), s.Base().Label, err)
	}
	c := r.Color(s.Base().Label)
	a := uint32(r.opts.FillOpacity)
	for y := 0; y < h; y++ {
		i := y * img.Stride
		for x := 0; x < w; x++ {
			if seg.At(y, x) {
				img.Pix[i+0] = blend(img.Pix[i+0], c.R, a)
				img.Pix[i+1] = blend(img.Pix[i+1], c.G, a)
				img.Pix[i+2] = blend(img.Pix[i+2], c.B, a)
			}
			i += 4
		}
	}
	return nil
}

func blend(dst, src uint8, alpha uint32) uint8 {
	return uint8((uint32(dst)*(255-alpha) + uint32(src)*alpha) / 255)
}

// ParseColor parses "#rrggbb" or "#rgb"
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func drawBox(img *image.NRGBA, b *shape.Box, c color.NRGBA, stroke int) {
	x0, y0 := int(math.Round(b.XTL)), int(math.Round(b.YTL))
	x1, y1 := int(math.Round(b.XBR)), int(math.Round(b.YBR))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawPath(img *image.NRGBA, points []types.Point, closed bool, c color.NRGBA, stroke int) {
	n := len(points)
	if n == 0 {
		return
	}
	segments := n - 1
	if closed {
		segments = n
	}
	for i := 0; i < segments; i++ {
		a, b := points[i], points[(i+1)%n]
		drawLine(img, a, b, c, stroke)
	}
	if n == 1 {
		drawLine(img, points[0], points[0], c, stroke)
	}
}

// drawLine steps along the segment one pixel at a time and paints a square
// brush of the stroke width
func drawLine(img *image.NRGBA, a, b types.Point, c color.NRGBA, stroke int) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	half := stroke / 2
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		x := int(math.Round(a.X + t*dx))
		y := int(math.Round(a.Y + t*dy))
		for s := 0; s < stroke; s++ {
			drawHLine(img, y-half+s, x-half, x-half+stroke, c)
		}
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	if x0 >= x1 {
		return
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	if y0 >= y1 {
		return
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
