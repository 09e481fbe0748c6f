package imageio

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestIsSupported(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"jpg", "photo.jpg", true},
		{"jpeg", "photo.jpeg", true},
		{"png", "photo.png", true},
		{"webp", "photo.webp", true},
		{"uppercase JPG", "PHOTO.JPG", true},
		{"mixed case WebP", "photo.WebP", true},
		{"gif unsupported", "photo.gif", false},
		{"bmp unsupported", "photo.bmp", false},
		{"no extension", "photo", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSupported(tt.path); got != tt.expected {
				t.Errorf("IsSupported(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestToBGRRaster(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img.Set(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	raster := ToBGRRaster(img)
	if raster.Width != 2 || raster.Height != 1 {
		t.Fatalf("raster dims = %dx%d, want 2x1", raster.Width, raster.Height)
	}

	b, g, r := raster.At(0, 0)
	if r != 255 || g != 0 || b != 0 {
		t.Errorf("pixel(0,0) BGR = (%d,%d,%d), want (0,0,255)", b, g, r)
	}

	b, g, r = raster.At(1, 0)
	if r != 0 || g != 255 || b != 0 {
		t.Errorf("pixel(1,0) BGR = (%d,%d,%d), want (0,255,0)", b, g, r)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load("testdata/does-not-exist.jpg")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("expected a *LoadError, got %T", err)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, _, err := Load("testdata/photo.gif")
	if err == nil {
		t.Fatal("expected an error for an unsupported extension")
	}
}
