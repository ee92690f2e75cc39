// Package maskio loads and saves the rasters that masks are built from:
// source images, binary mask images and the base64 payloads sent to vision
// models. PNG, JPEG, BMP, TIFF and WebP are supported.
package maskio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
)

// Config holds the encoding settings of a Codec
type Config struct {
	// Quality is used for JPEG and lossy WebP output
	Quality int
	// Lossless selects lossless WebP output
	Lossless bool
	// Threshold binarises mask images, see rle.FromImage
	Threshold uint8
}

// DefaultConfig returns the settings used by New
func DefaultConfig() Config {
	return Config{
		Quality:   90,
		Lossless:  true,
		Threshold: rle.DefaultThreshold,
	}
}

// Codec reads and writes images and mask rasters
type Codec struct {
	config Config
}

// New creates a Codec with default settings
func New() *Codec {
	return &Codec{config: DefaultConfig()}
}

// NewWithConfig creates a Codec with custom settings
func NewWithConfig(config Config) *Codec {
	return &Codec{config: config}
}

// Config returns the settings of the codec
func (c *Codec) Config() Config {
	return c.config
}

// LoadImage decodes the image at path
func (c *Codec) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageFromReader decodes an image from r
func (c *Codec) LoadImageFromReader(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ImageSize reads the dimensions of the image at path without decoding pixels
func (c *Codec) ImageSize(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// SaveImage writes img to path, picking the format from the extension
func (c *Codec) SaveImage(img image.Image, path string) error {
	switch Format(path) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		opts := &webp.Options{Lossless: c.config.Lossless, Quality: float32(c.config.Quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			return fmt.Errorf("failed to encode webp: %w", err)
		}
		return nil
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(c.config.Quality))
	case "png", "bmp", "gif", "tif", "tiff":
		return imaging.Save(img, path)
	default:
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(path))
	}
}

// LoadMask binarises the image at path into a bitmap
func (c *Codec) LoadMask(path string) (rle.Bitmap, error) {
	img, err := c.LoadImage(path)
	if err != nil {
		return rle.Bitmap{}, err
	}
	return rle.FromImage(img, c.config.Threshold), nil
}

// SaveMask writes b as a black and white image
func (c *Codec) SaveMask(b rle.Bitmap, path string) error {
	return c.SaveImage(b.Image(), path)
}

// MaskFromFile builds a mask shape from a mask image. Fails with
// shape.ErrEmptyMask when no pixel passes the threshold.
func (c *Codec) MaskFromFile(meta shape.Meta, path string) (*shape.Mask, error) {
	b, err := c.LoadMask(path)
	if err != nil {
		return nil, err
	}
	m, err := shape.FromSegmentation(meta, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// SaveShapeMask renders the full image segmentation of s and writes it to path
func (c *Codec) SaveShapeMask(s shape.Segmenter, height, width int, path string) error {
	b, err := s.Segmentation(height, width)
	if err != nil {
		return err
	}
	return c.SaveMask(b, path)
}

// EncodeBase64 prepares img for a vision model: it is shrunk so neither side
// exceeds maxDim (0 keeps the size) and encoded as PNG or JPEG.
func (c *Codec) EncodeBase64(img image.Image, format string, maxDim int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		if w, h := b.Dx(), b.Dy(); w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.config.Quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Format returns the lower case extension of path without the dot
func Format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// IsImageFile reports whether path has an extension the codec can read
func IsImageFile(path string) bool {
	switch Format(path) {
	case "jpg", "jpeg", "png", "bmp", "gif", "tif", "tiff", "webp":
		return true
	}
	return false
}
