package annotation

import (
	"fmt"

	"github.com/menta2k/cvatkit/pkg/shape"
)

// UploadRequests holds the service bodies for every shape of one image
type UploadRequests struct {
	Image  string               `json:"image"`
	Frame  int                  `json:"frame"`
	Shapes []shape.ShapeRequest `json:"shapes"`
	Tags   []shape.TagRequest   `json:"tags"`
}

// Requests converts the shapes of the named image into upload bodies.
// A negative frame is replaced by the image's frame index in its task.
// labelIDs maps label names to service ids and attributeIDs maps attribute
// names to spec ids.
func (d *Document) Requests(imageName string, frame int, labelIDs, attributeIDs map[string]int) (*UploadRequests, error) {
	img, err := d.Image(imageName)
	if err != nil {
		return nil, err
	}
	if frame < 0 {
		if frame, _, err = d.FrameIndex(img.Name); err != nil {
			return nil, err
		}
	}

	out := &UploadRequests{
		Image:  img.Name,
		Frame:  frame,
		Shapes: []shape.ShapeRequest{},
		Tags:   []shape.TagRequest{},
	}
	for _, s := range img.Shapes() {
		label := s.Base().Label
		id, ok := labelIDs[label]
		if !ok {
			return nil, &NotFoundError{Kind: "label id", Key: label}
		}
		opt := shape.RequestOptions{Frame: frame, LabelID: id, AttributeIDs: attributeIDs}

		if tag, ok := s.(*shape.Tag); ok {
			req, err := shape.TagRequestFor(tag, opt)
			if err != nil {
				return nil, fmt.Errorf("image %q: %w", img.Name, err)
			}
			out.Tags = append(out.Tags, req)
			continue
		}
		req, err := shape.Request(s, opt)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.Name, err)
		}
		out.Shapes = append(out.Shapes, req)
	}
	return out, nil
}
