package shape

import (
	"math"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/types"
)

// DefaultEllipsePoints is the number of vertices used to approximate an ellipse
const DefaultEllipsePoints = 32

// Box is an axis aligned rectangle given by its top-left and bottom-right corners
type Box struct {
	Meta `msgpack:",inline"`
	XTL  float64 `msgpack:"xtl"`
	YTL  float64 `msgpack:"ytl"`
	XBR  float64 `msgpack:"xbr"`
	YBR  float64 `msgpack:"ybr"`
}

// Polygon returns the four corners clockwise starting at the top-left one
func (b *Box) Polygon() *Polygon {
	return &Polygon{
		Meta: b.Meta,
		Points: []types.Point{
			{X: b.XTL, Y: b.YTL},
			{X: b.XBR, Y: b.YTL},
			{X: b.XBR, Y: b.YBR},
			{X: b.XTL, Y: b.YBR},
		},
	}
}

// Segmentation rasterises the box
func (b *Box) Segmentation(height, width int) (rle.Bitmap, error) {
	return b.Polygon().Segmentation(height, width)
}

// Polygon is a closed outline
type Polygon struct {
	Meta   `msgpack:",inline"`
	Points []types.Point `msgpack:"points"`
}

// NewPolygon validates the points and builds a polygon
func NewPolygon(meta Meta, points []types.Point) (*Polygon, error) {
	if len(points) == 0 {
		return nil, ErrEmptyPoints
	}
	return &Polygon{Meta: meta, Points: points}, nil
}

// Polygon returns the polygon itself
func (p *Polygon) Polygon() *Polygon { return p }

// Segmentation rasterises the polygon. Every pixel the outline covers is set.
func (p *Polygon) Segmentation(height, width int) (rle.Bitmap, error) {
	if _, err := rle.Size(height, width); err != nil {
		return rle.Bitmap{}, err
	}
	return rasterize(p.Points, height, width), nil
}

// Translate returns a copy moved by (dx, dy)
func (p *Polygon) Translate(dx, dy float64) *Polygon {
	points := make([]types.Point, len(p.Points))
	for i, pt := range p.Points {
		points[i] = types.Point{X: pt.X + dx, Y: pt.Y + dy}
	}
	return &Polygon{Meta: p.Meta, Points: points}
}

func (p *Polygon) Leftmost() float64 {
	minX, _, _, _ := bounds(p.Points)
	return minX
}

func (p *Polygon) Rightmost() float64 {
	_, _, maxX, _ := bounds(p.Points)
	return maxX
}

func (p *Polygon) Topmost() float64 {
	_, minY, _, _ := bounds(p.Points)
	return minY
}

func (p *Polygon) Bottommost() float64 {
	_, _, _, maxY := bounds(p.Points)
	return maxY
}

// Polyline is an open sequence of connected points
type Polyline struct {
	Meta   `msgpack:",inline"`
	Points []types.Point `msgpack:"points"`
}

// NewPolyline validates the points and builds a polyline
func NewPolyline(meta Meta, points []types.Point) (*Polyline, error) {
	if len(points) == 0 {
		return nil, ErrEmptyPoints
	}
	return &Polyline{Meta: meta, Points: points}, nil
}

func (l *Polyline) Leftmost() float64 {
	minX, _, _, _ := bounds(l.Points)
	return minX
}

func (l *Polyline) Rightmost() float64 {
	_, _, maxX, _ := bounds(l.Points)
	return maxX
}

func (l *Polyline) Topmost() float64 {
	_, minY, _, _ := bounds(l.Points)
	return minY
}

func (l *Polyline) Bottommost() float64 {
	_, _, _, maxY := bounds(l.Points)
	return maxY
}

// Length returns the summed length of all segments
func (l *Polyline) Length() float64 {
	var total float64
	for i := 1; i < len(l.Points); i++ {
		total += math.Hypot(l.Points[i].X-l.Points[i-1].X, l.Points[i].Y-l.Points[i-1].Y)
	}
	return total
}

// Ellipse is an axis aligned ellipse with center (CX, CY) and radii RX, RY
type Ellipse struct {
	Meta `msgpack:",inline"`
	CX   float64 `msgpack:"cx"`
	CY   float64 `msgpack:"cy"`
	RX   float64 `msgpack:"rx"`
	RY   float64 `msgpack:"ry"`
}

// Polygon approximates the ellipse with DefaultEllipsePoints vertices
func (e *Ellipse) Polygon() *Polygon {
	return e.PolygonN(DefaultEllipsePoints)
}

// PolygonN samples n points at angles 2πk/n on the ellipse outline
func (e *Ellipse) PolygonN(n int) *Polygon {
	if n < 1 {
		n = DefaultEllipsePoints
	}
	points := make([]types.Point, n)
	for k := range points {
		theta := 2 * math.Pi * float64(k) / float64(n)
		points[k] = types.Point{
			X: e.CX + e.RX*math.Cos(theta),
			Y: e.CY + e.RY*math.Sin(theta),
		}
	}
	return &Polygon{Meta: e.Meta, Points: points}
}

// Segmentation sets every pixel whose coordinates fall inside the ellipse
func (e *Ellipse) Segmentation(height, width int) (rle.Bitmap, error) {
	if _, err := rle.Size(height, width); err != nil {
		return rle.Bitmap{}, err
	}
	b := rle.NewBitmap(height, width)
	if e.RX <= 0 || e.RY <= 0 {
		return b, nil
	}

	y0 := max(0, int(math.Floor(e.CY-e.RY)))
	y1 := min(height-1, int(math.Ceil(e.CY+e.RY)))
	x0 := max(0, int(math.Floor(e.CX-e.RX)))
	x1 := min(width-1, int(math.Ceil(e.CX+e.RX)))
	for y := y0; y <= y1; y++ {
		dy := (float64(y) - e.CY) / e.RY
		for x := x0; x <= x1; x++ {
			dx := (float64(x) - e.CX) / e.RX
			if dx*dx+dy*dy <= 1 {
				b.Set(y, x, true)
			}
		}
	}
	return b, nil
}
