package shape

import (
	"fmt"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/types"
)

// RequestOptions carries the service side identifiers needed to upload a shape
type RequestOptions struct {
	Frame   int
	LabelID int
	Group   int
	// AttributeIDs maps attribute names to their CVAT spec_id values
	AttributeIDs map[string]int
}

// AttributeValue is an attribute in service request form
type AttributeValue struct {
	SpecID int    `json:"spec_id"`
	Value  string `json:"value"`
}

// ShapeRequest is the JSON body the annotation service expects for a shape
type ShapeRequest struct {
	Type       string           `json:"type"`
	Frame      int              `json:"frame"`
	LabelID    int              `json:"label_id"`
	Group      int              `json:"group"`
	Source     string           `json:"source"`
	Occluded   bool             `json:"occluded"`
	ZOrder     int              `json:"z_order"`
	Rotation   float64          `json:"rotation"`
	Outside    bool             `json:"outside"`
	Attributes []AttributeValue `json:"attributes"`
	Points     []float64        `json:"points"`
}

// TagRequest is the JSON body the annotation service expects for a tag
type TagRequest struct {
	Frame      int              `json:"frame"`
	LabelID    int              `json:"label_id"`
	Group      int              `json:"group"`
	Source     string           `json:"source"`
	Attributes []AttributeValue `json:"attributes"`
}

// Request converts a geometric shape into its upload form.
// Tags have no points; use TagRequestFor for them.
func Request(s Shape, opt RequestOptions) (ShapeRequest, error) {
	var points []float64
	switch v := s.(type) {
	case *Box:
		points = []float64{v.XTL, v.YTL, v.XBR, v.YBR}
	case *Polygon:
		points = flatten(v.Points)
	case *Polyline:
		points = flatten(v.Points)
	case *Ellipse:
		points = []float64{v.CX, v.CY, v.CX + v.RX, v.CY - v.RY}
	case *Mask:
		counts, err := rle.ParseCounts(v.RLE)
		if err != nil {
			return ShapeRequest{}, fmt.Errorf("mask %q: %w", v.Label, err)
		}
		points = make([]float64, 0, len(counts)+4)
		for _, c := range counts {
			points = append(points, float64(c))
		}
		points = append(points,
			float64(v.Left), float64(v.Top),
			float64(v.Left+v.Width-1), float64(v.Top+v.Height-1))
	case *Tag:
		return ShapeRequest{}, fmt.Errorf("tag %q has no geometry", v.Label)
	default:
		return ShapeRequest{}, fmt.Errorf("unsupported shape %T", s)
	}

	meta := s.Base()
	attrs, err := attributeValues(meta.Attributes, opt.AttributeIDs)
	if err != nil {
		return ShapeRequest{}, err
	}
	kind := s.Kind().String()
	if s.Kind() == KindBox {
		kind = "rectangle"
	}
	return ShapeRequest{
		Type:       kind,
		Frame:      opt.Frame,
		LabelID:    opt.LabelID,
		Group:      opt.Group,
		Source:     meta.Source,
		Occluded:   meta.Occluded != 0,
		ZOrder:     meta.ZOrder,
		Attributes: attrs,
		Points:     points,
	}, nil
}

// TagRequestFor converts a tag into its upload form
func TagRequestFor(t *Tag, opt RequestOptions) (TagRequest, error) {
	attrs, err := attributeValues(t.Attributes, opt.AttributeIDs)
	if err != nil {
		return TagRequest{}, err
	}
	return TagRequest{
		Frame:      opt.Frame,
		LabelID:    opt.LabelID,
		Group:      opt.Group,
		Source:     t.Source,
		Attributes: attrs,
	}, nil
}

func attributeValues(attrs []types.Attribute, ids map[string]int) ([]AttributeValue, error) {
	out := make([]AttributeValue, 0, len(attrs))
	for _, a := range attrs {
		id, ok := ids[a.Name]
		if !ok {
			return nil, fmt.Errorf("attribute %q has no spec_id", a.Name)
		}
		out = append(out, AttributeValue{SpecID: id, Value: a.Value})
	}
	return out, nil
}

func flatten(points []types.Point) []float64 {
	out := make([]float64, 0, 2*len(points))
	for _, p := range points {
		out = append(out, p.X, p.Y)
	}
	return out
}
