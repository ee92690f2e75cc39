package maskio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
)

// createTestImage creates an image with a bright subject in the center
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func createTestMask(height, width int) rle.Bitmap {
	b := rle.NewBitmap(height, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x*7+y*3)%5 == 0 || x == y {
				b.Set(y, x, true)
			}
		}
	}
	return b
}

func TestNew(t *testing.T) {
	c := New()
	if c.Config().Threshold != rle.DefaultThreshold {
		t.Errorf("Expected threshold %d, got %d", rle.DefaultThreshold, c.Config().Threshold)
	}

	custom := NewWithConfig(Config{Quality: 70, Threshold: 10})
	if custom.Config().Quality != 70 {
		t.Errorf("Expected quality 70, got %d", custom.Config().Quality)
	}
}

func TestMaskRoundTrip(t *testing.T) {
	c := New()
	dir := t.TempDir()
	mask := createTestMask(37, 53)

	for _, name := range []string{"mask.png", "mask.bmp", "mask.webp"} {
		path := filepath.Join(dir, name)
		if err := c.SaveMask(mask, path); err != nil {
			t.Fatalf("SaveMask(%s) failed: %v", name, err)
		}
		loaded, err := c.LoadMask(path)
		if err != nil {
			t.Fatalf("LoadMask(%s) failed: %v", name, err)
		}
		if !loaded.Equal(mask) {
			t.Errorf("%s: loaded mask differs from saved mask", name)
		}
	}
}

func TestMaskFromFile(t *testing.T) {
	c := New()
	path := filepath.Join(t.TempDir(), "subject.png")
	if err := c.SaveImage(createTestImage(90, 60), path); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	m, err := c.MaskFromFile(shape.Meta{Label: "vegetation", Source: "file"}, path)
	if err != nil {
		t.Fatalf("MaskFromFile failed: %v", err)
	}
	if m.Top != 21 || m.Left != 31 || m.Height != 19 || m.Width != 29 {
		t.Errorf("Unexpected mask placement: top=%d left=%d %dx%d", m.Top, m.Left, m.Height, m.Width)
	}
	if m.RLE != "0,551" {
		t.Errorf("Expected a solid crop, got %q", m.RLE)
	}
}

func TestMaskFromEmptyFile(t *testing.T) {
	c := New()
	path := filepath.Join(t.TempDir(), "empty.png")
	if err := c.SaveMask(rle.NewBitmap(8, 8), path); err != nil {
		t.Fatalf("SaveMask failed: %v", err)
	}

	_, err := c.MaskFromFile(shape.Meta{Label: "vegetation"}, path)
	if !errors.Is(err, shape.ErrEmptyMask) {
		t.Errorf("Expected ErrEmptyMask, got %v", err)
	}
}

func TestImageSizeAndFormats(t *testing.T) {
	c := New()
	dir := t.TempDir()

	for _, name := range []string{"a.jpg", "a.png", "a.webp"} {
		path := filepath.Join(dir, name)
		if err := c.SaveImage(createTestImage(120, 80), path); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", name, err)
		}
		w, h, err := c.ImageSize(path)
		if err != nil {
			t.Fatalf("ImageSize(%s) failed: %v", name, err)
		}
		if w != 120 || h != 80 {
			t.Errorf("%s: expected 120x80, got %dx%d", name, w, h)
		}
		if _, err := c.LoadImage(path); err != nil {
			t.Errorf("LoadImage(%s) failed: %v", name, err)
		}
	}

	if err := c.SaveImage(createTestImage(4, 4), filepath.Join(dir, "a.xyz")); err == nil {
		t.Error("Expected error for unsupported output format")
	}
	if _, err := c.LoadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadImageFromReader(t *testing.T) {
	c := New()
	path := filepath.Join(t.TempDir(), "a.png")
	if err := c.SaveImage(createTestImage(30, 20), path); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	img, err := c.LoadImageFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadImageFromReader failed: %v", err)
	}
	if img.Bounds().Dx() != 30 {
		t.Errorf("Expected width 30, got %d", img.Bounds().Dx())
	}

	if _, err := c.LoadImageFromReader(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestSaveShapeMask(t *testing.T) {
	c := New()
	path := filepath.Join(t.TempDir(), "box.png")
	box := &shape.Box{Meta: shape.Meta{Label: "car"}, XTL: 2, YTL: 2, XBR: 6, YBR: 5}

	if err := c.SaveShapeMask(box, 10, 10, path); err != nil {
		t.Fatalf("SaveShapeMask failed: %v", err)
	}
	b, err := c.LoadMask(path)
	if err != nil {
		t.Fatalf("LoadMask failed: %v", err)
	}
	if b.Count() != 12 {
		t.Errorf("Expected 12 pixels, got %d", b.Count())
	}
}

func TestEncodeBase64(t *testing.T) {
	c := New()
	for _, format := range []string{"png", "jpg"} {
		b64, err := c.EncodeBase64(createTestImage(400, 200), format, 100)
		if err != nil {
			t.Fatalf("EncodeBase64(%s) failed: %v", format, err)
		}
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			t.Fatalf("invalid base64: %v", err)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("DecodeConfig failed: %v", err)
		}
		if cfg.Width != 100 || cfg.Height != 50 {
			t.Errorf("%s: expected 100x50, got %dx%d", format, cfg.Width, cfg.Height)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	cases := map[string]bool{
		"a.JPG":                         true,
		"dir/20240916_000854_2011T.bmp": true,
		"b.webp":                        true,
		"annotations.xml":               false,
		"noext":                         false,
	}
	for path, want := range cases {
		if got := IsImageFile(path); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func BenchmarkLoadMask(b *testing.B) {
	c := New()
	path := filepath.Join(b.TempDir(), "mask.png")
	if err := c.SaveMask(createTestMask(1000, 1000), path); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.LoadMask(path); err != nil {
			b.Fatal(err)
		}
	}
}
