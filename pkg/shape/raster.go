package shape

import (
	"image"
	"image/draw"

	"golang.org/x/image/vector"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/types"
)

// rasterize fills the closed outline through points into a height x width bitmap
func rasterize(points []types.Point, height, width int) rle.Bitmap {
	b := rle.NewBitmap(height, width)
	if height == 0 || width == 0 || len(points) < 3 {
		return b
	}

	r := vector.NewRasterizer(width, height)
	r.DrawOp = draw.Src
	r.MoveTo(float32(points[0].X), float32(points[0].Y))
	for _, p := range points[1:] {
		r.LineTo(float32(p.X), float32(p.Y))
	}
	r.ClosePath()

	coverage := image.NewAlpha(image.Rect(0, 0, width, height))
	r.Draw(coverage, coverage.Bounds(), image.Opaque, image.Point{})
	for i, a := range coverage.Pix {
		b.Pix[i] = a > 0
	}
	return b
}
