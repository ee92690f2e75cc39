// Package rle encodes boolean masks as comma separated run lengths.
//
// Runs alternate between false and true pixels in row-major order and the first
// count is always a false run, so a mask starting with a true pixel is encoded
// with a leading zero. Encode and Decode are the optimised implementations;
// EncodeSlow and DecodeSlow are pixel-by-pixel references that produce exactly
// the same output.
package rle

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrFormat is the sentinel wrapped by every FormatError
var ErrFormat = errors.New("malformed rle")

// FormatError reports an RLE string that cannot be decoded into the requested size
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", ErrFormat.Error(), e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

func formatErrorf(format string, args ...any) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// Encode run-length encodes the bitmap.
// Boundaries are located with bytes.IndexByte over the raw pixel buffer.
func Encode(b Bitmap) string {
	raw := asBytes(b.Pix)
	if len(raw) == 0 {
		return "0"
	}

	out := make([]byte, 0, 64)
	if raw[0] != 0 {
		out = append(out, '0', ',')
	}
	for i := 0; i < len(raw); {
		n := bytes.IndexByte(raw[i:], raw[i]^1)
		if n < 0 {
			n = len(raw) - i
		}
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendInt(out, int64(n), 10)
		i += n
	}
	return string(out)
}

// EncodeSlow is the reference encoder
func EncodeSlow(b Bitmap) string {
	if len(b.Pix) == 0 {
		return "0"
	}

	var counts []int
	prev := b.Pix[0]
	count := 1
	for _, pixel := range b.Pix[1:] {
		if pixel == prev {
			count++
		} else {
			counts = append(counts, count)
			count = 1
			prev = pixel
		}
	}
	counts = append(counts, count)

	if b.Pix[0] {
		counts = append([]int{0}, counts...)
	}

	var sb strings.Builder
	for i, c := range counts {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}

// Decode expands an RLE string into a height x width bitmap.
// Counts are validated before the bitmap is allocated.
func Decode(rle string, height, width int) (Bitmap, error) {
	total, err := Size(height, width)
	if err != nil {
		return Bitmap{}, err
	}

	sum := 0
	err = eachCount(rle, func(run, n int) error {
		if n > total-sum {
			return formatErrorf("counts exceed %d pixels (%dx%d)", total, height, width)
		}
		sum += n
		return nil
	})
	if err != nil {
		return Bitmap{}, err
	}
	if sum != total {
		return Bitmap{}, formatErrorf("counts sum to %d, expected %d (%dx%d)", sum, total, height, width)
	}

	b := NewBitmap(height, width)
	index := 0
	_ = eachCount(rle, func(run, n int) error {
		if run%2 == 1 {
			fillTrue(b.Pix[index : index+n])
		}
		index += n
		return nil
	})
	return b, nil
}

// eachCount calls fn with every run length of rle in order
func eachCount(rle string, fn func(run, n int) error) error {
	run := 0
	for start := 0; start <= len(rle); run++ {
		end := strings.IndexByte(rle[start:], ',')
		if end < 0 {
			end = len(rle)
		} else {
			end += start
		}
		n, ok := parseCount(rle[start:end])
		if !ok {
			return formatErrorf("count %d is not a non-negative integer: %q", run, rle[start:end])
		}
		if err := fn(run, n); err != nil {
			return err
		}
		start = end + 1
	}
	return nil
}

// Size returns the pixel count of a height x width bitmap. Negative sizes and
// products that overflow int are FormatErrors.
func Size(height, width int) (int, error) {
	if height < 0 || width < 0 {
		return 0, formatErrorf("invalid size %dx%d", height, width)
	}
	if width != 0 && height > math.MaxInt/width {
		return 0, formatErrorf("size %dx%d overflows", height, width)
	}
	return height * width, nil
}

// DecodeSlow is the reference decoder
func DecodeSlow(rle string, height, width int) (Bitmap, error) {
	total, err := Size(height, width)
	if err != nil {
		return Bitmap{}, err
	}
	counts, err := ParseCounts(rle)
	if err != nil {
		return Bitmap{}, err
	}

	sum := 0
	for _, n := range counts {
		if n > total-sum {
			return Bitmap{}, formatErrorf("counts exceed %d pixels (%dx%d)", total, height, width)
		}
		sum += n
	}
	if sum != total {
		return Bitmap{}, formatErrorf("counts sum to %d, expected %d (%dx%d)", sum, total, height, width)
	}

	b := NewBitmap(height, width)
	index := 0
	for i, n := range counts {
		for p := index; p < index+n; p++ {
			b.Pix[p] = i%2 == 1
		}
		index += n
	}
	return b, nil
}

// ParseCounts splits an RLE string into its run lengths. Blanks around a
// count are ignored since exports write "3, 2, 5".
func ParseCounts(rle string) ([]int, error) {
	tokens := strings.Split(rle, ",")
	counts := make([]int, len(tokens))
	for i, tok := range tokens {
		n, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 0)
		if err != nil || n > math.MaxInt {
			return nil, formatErrorf("count %d is not a non-negative integer: %q", i, tok)
		}
		counts[i] = int(n)
	}
	return counts, nil
}

// FormatCounts joins run lengths into an RLE string
func FormatCounts(counts []int) string {
	out := make([]byte, 0, len(counts)*4)
	for i, c := range counts {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendInt(out, int64(c), 10)
	}
	return string(out)
}

func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		d := int(s[i]) - '0'
		if d < 0 || d > 9 {
			return 0, false
		}
		if n > (math.MaxInt-d)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

// fillTrue sets every element of p by doubling the filled prefix
func fillTrue(p []bool) {
	if len(p) == 0 {
		return
	}
	p[0] = true
	for filled := 1; filled < len(p); filled *= 2 {
		copy(p[filled:], p[:filled])
	}
}
