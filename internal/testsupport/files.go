package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Gradient returns a smooth opaque RGBA test image.
func Gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// Transparent returns an image whose left half is fully transparent and whose
// right half is opaque red.
func Transparent(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := width / 2; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	return img
}

// WriteJPEG encodes a gradient of the given size at JPEG quality 100 and
// returns the written bytes.
func WriteJPEG(t testing.TB, path string, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(width, height), &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	writeBytes(t, path, buf.Bytes())
	return buf.Bytes()
}

// WritePNG encodes img as PNG at path and returns the written bytes.
func WritePNG(t testing.TB, path string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	writeBytes(t, path, buf.Bytes())
	return buf.Bytes()
}

// WriteGarbage writes bytes that no image decoder accepts.
func WriteGarbage(t testing.TB, path string) []byte {
	t.Helper()
	data := []byte("this is not an image at all")
	writeBytes(t, path, data)
	return data
}

func writeBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the file content or fails the test.
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
