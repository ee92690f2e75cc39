// Package shape defines the annotation shapes that can be attached to an image.
//
// Shape is a closed set: Box, Polygon, Mask, Polyline, Ellipse and Tag. Shapes
// that cover an area implement Segmenter, shapes with an outline implement
// Polygonal. Polyline and Tag implement neither.
package shape

import (
	"errors"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/types"
)

var (
	// ErrEmptyMask is returned when building a mask from a segmentation without set pixels
	ErrEmptyMask = errors.New("cannot create mask from empty segmentation")
	// ErrEmptyPoints is returned for a polygon or polyline without vertices
	ErrEmptyPoints = errors.New("shape needs at least one point")
	// ErrNonFinite is returned for NaN or infinite coordinates
	ErrNonFinite = errors.New("coordinate is not a finite number")
)

// DefaultSource is the source recorded for hand drawn shapes
const DefaultSource = "manual"

// Kind identifies a shape variant
type Kind int

const (
	KindBox Kind = iota
	KindPolygon
	KindMask
	KindPolyline
	KindEllipse
	KindTag
)

var kindNames = [...]string{"box", "polygon", "mask", "polyline", "ellipse", "tag"}

// Kinds lists every variant in serialisation order
func Kinds() []Kind {
	return []Kind{KindBox, KindPolygon, KindMask, KindPolyline, KindEllipse, KindTag}
}

// String returns the element name used for the kind
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps an element name back to its kind
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Meta holds the fields shared by every geometric shape
type Meta struct {
	Label      string            `msgpack:"label"`
	Source     string            `msgpack:"source"`
	Occluded   int               `msgpack:"occluded"`
	ZOrder     int               `msgpack:"z_order"`
	Attributes []types.Attribute `msgpack:"attributes"`
}

// Base returns the shared fields
func (m *Meta) Base() Meta { return *m }

// Shape is implemented by the six shape variants of this package only
type Shape interface {
	Kind() Kind
	Base() Meta
	isShape()
}

// Segmenter is a shape that can be rendered as a boolean mask of the full image
type Segmenter interface {
	Shape
	Segmentation(height, width int) (rle.Bitmap, error)
}

// Polygonal is a shape that can be expressed as a closed polygon
type Polygonal interface {
	Shape
	Polygon() *Polygon
}

var (
	_ Segmenter = (*Box)(nil)
	_ Segmenter = (*Polygon)(nil)
	_ Segmenter = (*Mask)(nil)
	_ Segmenter = (*Ellipse)(nil)

	_ Polygonal = (*Box)(nil)
	_ Polygonal = (*Polygon)(nil)
	_ Polygonal = (*Ellipse)(nil)

	_ Shape = (*Polyline)(nil)
	_ Shape = (*Tag)(nil)
)

func (*Box) isShape()      {}
func (*Polygon) isShape()  {}
func (*Mask) isShape()     {}
func (*Polyline) isShape() {}
func (*Ellipse) isShape()  {}
func (*Tag) isShape()      {}

func (*Box) Kind() Kind      { return KindBox }
func (*Polygon) Kind() Kind  { return KindPolygon }
func (*Mask) Kind() Kind     { return KindMask }
func (*Polyline) Kind() Kind { return KindPolyline }
func (*Ellipse) Kind() Kind  { return KindEllipse }
func (*Tag) Kind() Kind      { return KindTag }

// Tag marks a whole image with a label
type Tag struct {
	Label      string            `msgpack:"label"`
	Source     string            `msgpack:"source"`
	Attributes []types.Attribute `msgpack:"attributes"`
}

// Base returns the label, source and attributes of the tag
func (t *Tag) Base() Meta {
	return Meta{Label: t.Label, Source: t.Source, Attributes: t.Attributes}
}
