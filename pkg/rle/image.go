package rle

import (
	"image"
	"image/color"
)

// DefaultThreshold is the channel value from which a pixel counts as set
const DefaultThreshold uint8 = 128

// FromImage binarises an image. Images with a non-opaque alpha channel are
// thresholded on alpha, all others on luminance.
func FromImage(img image.Image, threshold uint8) Bitmap {
	bounds := img.Bounds()
	b := NewBitmap(bounds.Dy(), bounds.Dx())

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+b.Width]
			for x, v := range row {
				b.Pix[y*b.Width+x] = v >= threshold
			}
		}
		return b
	case *image.Alpha:
		for y := 0; y < b.Height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+b.Width]
			for x, v := range row {
				b.Pix[y*b.Width+x] = v >= threshold
			}
		}
		return b
	}

	useAlpha := false
	if o, ok := img.(interface{ Opaque() bool }); ok {
		useAlpha = !o.Opaque()
	}
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			var v uint8
			if useAlpha {
				_, _, _, a := c.RGBA()
				v = uint8(a >> 8)
			} else {
				v = color.GrayModel.Convert(c).(color.Gray).Y
			}
			b.Pix[y*b.Width+x] = v >= threshold
		}
	}
	return b
}

// Image renders the bitmap as a grayscale raster with 255 for set pixels
func (b Bitmap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for i, v := range b.Pix {
		if v {
			img.Pix[i] = 255
		}
	}
	return img
}
