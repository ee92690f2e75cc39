package shape

import (
	"fmt"
	"image"

	"github.com/menta2k/cvatkit/pkg/rle"
)

// Mask is a run-length encoded crop of a full image segmentation.
// Top, Left, Height and Width place the crop inside the image.
type Mask struct {
	Meta   `msgpack:",inline"`
	RLE    string `msgpack:"rle"`
	Top    int    `msgpack:"top"`
	Left   int    `msgpack:"left"`
	Height int    `msgpack:"height"`
	Width  int    `msgpack:"width"`
}

// FromSegmentation crops a full image segmentation to the bounding box of its
// set pixels and encodes the crop
func FromSegmentation(meta Meta, segmentation rle.Bitmap) (*Mask, error) {
	box, ok := segmentation.Bounds()
	if !ok {
		return nil, ErrEmptyMask
	}
	crop := segmentation.Crop(box)
	return &Mask{
		Meta:   meta,
		RLE:    rle.Encode(crop),
		Top:    box.Min.Y,
		Left:   box.Min.X,
		Height: box.Dy(),
		Width:  box.Dx(),
	}, nil
}

// FromImage binarises img with the given threshold and builds a mask from it
func FromImage(meta Meta, img image.Image, threshold uint8) (*Mask, error) {
	return FromSegmentation(meta, rle.FromImage(img, threshold))
}

// Rect returns the area of the image covered by the crop
func (m *Mask) Rect() image.Rectangle {
	return image.Rect(m.Left, m.Top, m.Left+m.Width, m.Top+m.Height)
}

// Crop decodes the stored crop
func (m *Mask) Crop() (rle.Bitmap, error) {
	crop, err := rle.Decode(m.RLE, m.Height, m.Width)
	if err != nil {
		return rle.Bitmap{}, fmt.Errorf("mask %q: %w", m.Label, err)
	}
	return crop, nil
}

// Segmentation decodes the crop and pastes it into an empty height x width canvas
func (m *Mask) Segmentation(height, width int) (rle.Bitmap, error) {
	if _, err := rle.Size(height, width); err != nil {
		return rle.Bitmap{}, err
	}
	crop, err := m.Crop()
	if err != nil {
		return rle.Bitmap{}, err
	}
	canvas := rle.NewBitmap(height, width)
	canvas.Paste(crop, m.Top, m.Left)
	return canvas, nil
}

// Area returns the number of set pixels in the crop
func (m *Mask) Area() (int, error) {
	crop, err := m.Crop()
	if err != nil {
		return 0, err
	}
	return crop.Count(), nil
}
