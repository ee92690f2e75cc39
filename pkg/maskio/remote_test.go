package maskio

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoadImageURL(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(30, 20)); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/frames/a.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(buf.Bytes())
		case "/notes.txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	codec := New()
	img, err := codec.LoadSource(context.Background(), srv.URL+"/frames/a.png")
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Errorf("Expected 30x20, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := codec.LoadImageURL(context.Background(), srv.URL+"/notes.txt"); err == nil {
		t.Error("Expected error for non-image content type")
	}
	if _, err := codec.LoadImageURL(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Expected error for 404")
	}
	if _, err := codec.LoadImageURL(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

func TestSourceName(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/set/frame_01.jpg?sig=abc": "frame_01.jpg",
		"images/frame_02.png":                              "images/frame_02.png",
	}
	for in, want := range tests {
		if got := SourceName(in); got != want {
			t.Errorf("SourceName(%q) = %q, want %q", in, got, want)
		}
	}
	if IsURL("file.png") || !IsURL("http://x/y.png") {
		t.Error("IsURL returned wrong result")
	}
}
