package annotation

import (
	"fmt"
	"path"
	"strings"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
)

// ImageAnnotation holds every shape drawn on one image.
// Shape lists keep insertion order within each kind.
type ImageAnnotation struct {
	ID     string  `msgpack:"id"`
	Name   string  `msgpack:"name"`
	Subset *string `msgpack:"subset"`
	TaskID *string `msgpack:"task_id"`
	Width  int     `msgpack:"width"`
	Height int     `msgpack:"height"`

	Boxes     []*shape.Box      `msgpack:"boxes"`
	Polygons  []*shape.Polygon  `msgpack:"polygons"`
	Masks     []*shape.Mask     `msgpack:"masks"`
	Polylines []*shape.Polyline `msgpack:"polylines"`
	Ellipses  []*shape.Ellipse  `msgpack:"ellipses"`
	Tags      []*shape.Tag      `msgpack:"tags"`
}

// Basename returns the file name of the image without any directory
func (img *ImageAnnotation) Basename() string {
	return basename(img.Name)
}

// InTask reports whether the image belongs to the given task
func (img *ImageAnnotation) InTask(taskID string) bool {
	return img.TaskID != nil && *img.TaskID == taskID
}

// Add appends s to the list matching its kind
func (img *ImageAnnotation) Add(s shape.Shape) error {
	switch v := s.(type) {
	case *shape.Box:
		img.Boxes = append(img.Boxes, v)
	case *shape.Polygon:
		if len(v.Points) == 0 {
			return shape.ErrEmptyPoints
		}
		img.Polygons = append(img.Polygons, v)
	case *shape.Mask:
		img.Masks = append(img.Masks, v)
	case *shape.Polyline:
		if len(v.Points) == 0 {
			return shape.ErrEmptyPoints
		}
		img.Polylines = append(img.Polylines, v)
	case *shape.Ellipse:
		img.Ellipses = append(img.Ellipses, v)
	case *shape.Tag:
		img.Tags = append(img.Tags, v)
	default:
		return fmt.Errorf("cannot add %T to image %q", s, img.Name)
	}
	return nil
}

// Shapes returns all shapes, kind by kind in serialisation order
func (img *ImageAnnotation) Shapes() []shape.Shape {
	out := make([]shape.Shape, 0, img.Len())
	for _, s := range img.Boxes {
		out = append(out, s)
	}
	for _, s := range img.Polygons {
		out = append(out, s)
	}
	for _, s := range img.Masks {
		out = append(out, s)
	}
	for _, s := range img.Polylines {
		out = append(out, s)
	}
	for _, s := range img.Ellipses {
		out = append(out, s)
	}
	for _, s := range img.Tags {
		out = append(out, s)
	}
	return out
}

// Len returns the number of shapes on the image
func (img *ImageAnnotation) Len() int {
	return len(img.Boxes) + len(img.Polygons) + len(img.Masks) +
		len(img.Polylines) + len(img.Ellipses) + len(img.Tags)
}

// Segmentation merges every area shape carrying label into one image sized
// bitmap. An empty label merges all labels.
func (img *ImageAnnotation) Segmentation(label string) (rle.Bitmap, error) {
	if _, err := rle.Size(img.Height, img.Width); err != nil {
		return rle.Bitmap{}, fmt.Errorf("image %q: %w", img.Name, err)
	}
	out := rle.NewBitmap(img.Height, img.Width)
	for _, s := range img.Shapes() {
		seg, ok := s.(shape.Segmenter)
		if !ok || (label != "" && s.Base().Label != label) {
			continue
		}
		b, err := seg.Segmentation(img.Height, img.Width)
		if err != nil {
			return rle.Bitmap{}, fmt.Errorf("image %q: %w", img.Name, err)
		}
		for i, v := range b.Pix {
			if v {
				out.Pix[i] = true
			}
		}
	}
	return out, nil
}

func basename(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

func stem(name string) string {
	base := basename(name)
	return strings.TrimSuffix(base, path.Ext(base))
}
