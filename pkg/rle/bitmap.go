package rle

import (
	"bytes"
	"fmt"
	"image"
	"unsafe"
)

// Bitmap is a boolean matrix stored row-major
type Bitmap struct {
	Height int
	Width  int
	Pix    []bool
}

// NewBitmap allocates an all-false bitmap of the given size. Negative sizes
// are treated as zero; it panics when height*width overflows int.
func NewBitmap(height, width int) Bitmap {
	if height < 0 {
		height = 0
	}
	if width < 0 {
		width = 0
	}
	if _, err := Size(height, width); err != nil {
		panic(err)
	}
	return Bitmap{Height: height, Width: width, Pix: make([]bool, height*width)}
}

// FromRows builds a bitmap from a slice of equally long rows
func FromRows(rows [][]bool) (Bitmap, error) {
	if len(rows) == 0 {
		return NewBitmap(0, 0), nil
	}
	width := len(rows[0])
	b := NewBitmap(len(rows), width)
	for y, row := range rows {
		if len(row) != width {
			return Bitmap{}, fmt.Errorf("row %d has %d columns, expected %d", y, len(row), width)
		}
		copy(b.Pix[y*width:(y+1)*width], row)
	}
	return b, nil
}

// Rows returns a copy of the bitmap as a slice of rows
func (b Bitmap) Rows() [][]bool {
	rows := make([][]bool, b.Height)
	for y := range rows {
		rows[y] = make([]bool, b.Width)
		copy(rows[y], b.Pix[y*b.Width:(y+1)*b.Width])
	}
	return rows
}

// At reports the value of the pixel in row y, column x
func (b Bitmap) At(y, x int) bool {
	return b.Pix[y*b.Width+x]
}

// Set assigns the pixel in row y, column x
func (b Bitmap) Set(y, x int, v bool) {
	b.Pix[y*b.Width+x] = v
}

// Count returns the number of true pixels
func (b Bitmap) Count() int {
	return bytes.Count(asBytes(b.Pix), []byte{1})
}

// Equal reports whether both bitmaps have the same size and content
func (b Bitmap) Equal(o Bitmap) bool {
	return b.Height == o.Height && b.Width == o.Width && bytes.Equal(asBytes(b.Pix), asBytes(o.Pix))
}

// Bounds returns the tight bounding box of the true pixels.
// ok is false when the bitmap has no true pixel.
func (b Bitmap) Bounds() (r image.Rectangle, ok bool) {
	top, bottom := -1, -1
	left, right := b.Width, -1
	for y := 0; y < b.Height; y++ {
		row := asBytes(b.Pix[y*b.Width : (y+1)*b.Width])
		first := bytes.IndexByte(row, 1)
		if first < 0 {
			continue
		}
		last := bytes.LastIndexByte(row, 1)
		if top < 0 {
			top = y
		}
		bottom = y
		if first < left {
			left = first
		}
		if last > right {
			right = last
		}
	}
	if top < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(left, top, right+1, bottom+1), true
}

// Crop copies the pixels inside r into a new bitmap. r must lie inside the bitmap.
func (b Bitmap) Crop(r image.Rectangle) Bitmap {
	out := NewBitmap(r.Dy(), r.Dx())
	for y := 0; y < out.Height; y++ {
		src := (r.Min.Y+y)*b.Width + r.Min.X
		copy(out.Pix[y*out.Width:(y+1)*out.Width], b.Pix[src:src+out.Width])
	}
	return out
}

// Paste copies src into b with its top-left corner at (top, left).
// Pixels falling outside b are dropped.
func (b Bitmap) Paste(src Bitmap, top, left int) {
	dst := image.Rect(0, 0, b.Width, b.Height)
	area := image.Rect(left, top, left+src.Width, top+src.Height).Intersect(dst)
	if area.Empty() {
		return
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		sy := y - top
		sx := area.Min.X - left
		copy(b.Pix[y*b.Width+area.Min.X:y*b.Width+area.Max.X], src.Pix[sy*src.Width+sx:sy*src.Width+sx+area.Dx()])
	}
}

// asBytes views a bool slice as bytes. Go stores bool as a single byte holding 0 or 1.
func asBytes(p []bool) []byte {
	if len(p) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&p[0])), len(p))
}
