package codec_test

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/webp"

	"imgvault/internal/codec"
	"imgvault/internal/fileutil"
	"imgvault/internal/logging"
	"imgvault/internal/services"
	"imgvault/internal/testsupport"
)

const testMemoryLimit = 256 << 20

func newBuiltin() *codec.Converter {
	return codec.NewConverter(testMemoryLimit, logging.NewNop(), codec.WebPEncoder{}, codec.AVIFEncoder{})
}

func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), fileutil.TempPrefix) {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestConvertJPEGToWebP(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	source := filepath.Join(srcDir, "a.jpg")
	original := testsupport.WriteJPEG(t, source, 128, 96)

	result, err := newBuiltin().Convert(context.Background(), codec.Request{
		Source:    source,
		Format:    "webp",
		Quality:   80,
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if result.Path != filepath.Join(outDir, "a.webp") {
		t.Fatalf("unexpected output path %q", result.Path)
	}
	if result.Width != 128 || result.Height != 96 || result.Flattened {
		t.Fatalf("unexpected result %+v", result)
	}

	file, err := os.Open(result.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	cfg, err := webp.DecodeConfig(file)
	if err != nil {
		t.Fatalf("output is not webp: %v", err)
	}
	if cfg.Width != 128 || cfg.Height != 96 {
		t.Fatalf("unexpected output dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if got := testsupport.ReadFile(t, source); string(got) != string(original) {
		t.Fatal("source must be untouched")
	}
	assertNoTemps(t, outDir)
}

func TestConvertDefaultsToSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.png")
	testsupport.WritePNG(t, source, testsupport.Transparent(16, 16))

	result, err := newBuiltin().Convert(context.Background(), codec.Request{Source: source, Format: "webp", Quality: 75})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if result.Path != filepath.Join(dir, "photo.webp") {
		t.Fatalf("unexpected output path %q", result.Path)
	}
	if !result.Flattened {
		t.Fatal("expected transparent source to be flattened")
	}
}

func TestConvertAVIF(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "a.jpg")
	testsupport.WriteJPEG(t, source, 32, 32)

	result, err := newBuiltin().Convert(context.Background(), codec.Request{Source: source, Format: "avif", Quality: 60})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if filepath.Ext(result.Path) != ".avif" || result.Size == 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.jpg")
	testsupport.WriteJPEG(t, good, 64, 64)
	garbage := filepath.Join(dir, "bad.jpg")
	testsupport.WriteGarbage(t, garbage)
	existingSrc := filepath.Join(dir, "taken.jpg")
	testsupport.WriteJPEG(t, existingSrc, 8, 8)
	testsupport.WriteGarbage(t, filepath.Join(dir, "taken.webp"))
	already := filepath.Join(dir, "already.webp")
	testsupport.WriteGarbage(t, already)

	tests := []struct {
		name   string
		conv   *codec.Converter
		req    codec.Request
		marker error
	}{
		{"undecodable", newBuiltin(), codec.Request{Source: garbage, Format: "webp", Quality: 80}, services.ErrConversionFailed},
		{"missing source", newBuiltin(), codec.Request{Source: filepath.Join(dir, "nope.jpg"), Format: "webp", Quality: 80}, services.ErrFileNotFound},
		{"memory bound", codec.NewConverter(1024, nil, codec.WebPEncoder{}), codec.Request{Source: good, Format: "webp", Quality: 80}, services.ErrConversionFailed},
		{"no encoder", codec.NewConverter(0, nil), codec.Request{Source: good, Format: "webp", Quality: 80}, services.ErrCodecUnavailable},
		{"quality", newBuiltin(), codec.Request{Source: good, Format: "webp", Quality: 0}, services.ErrValidation},
		{"existing output", newBuiltin(), codec.Request{Source: existingSrc, Format: "webp", Quality: 80}, services.ErrConversionFailed},
		{"overwrite source", newBuiltin(), codec.Request{Source: already, Format: "webp", Quality: 80}, services.ErrConversionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.conv.Convert(context.Background(), tt.req)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "bad.webp")); !os.IsNotExist(err) {
		t.Fatal("failed conversion must not leave output")
	}
	if got := testsupport.ReadFile(t, filepath.Join(dir, "taken.webp")); string(got) != "this is not an image at all" {
		t.Fatal("existing output must not be replaced")
	}
	assertNoTemps(t, dir)
}

type failingEncoder struct{}

func (failingEncoder) Format() string { return "webp" }

func (failingEncoder) Encode(_ context.Context, _ image.Image, dst string, _ int) error {
	if err := os.WriteFile(dst, []byte("half"), 0o644); err != nil {
		return err
	}
	return errors.New("encoder crashed")
}

func TestConvertRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "a.jpg")
	testsupport.WriteJPEG(t, source, 16, 16)

	conv := codec.NewConverter(testMemoryLimit, nil, failingEncoder{})
	_, err := conv.Convert(context.Background(), codec.Request{Source: source, Format: "webp", Quality: 80})
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected conversion failure, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.webp")); !os.IsNotExist(err) {
		t.Fatal("partial output must not be visible")
	}
	assertNoTemps(t, dir)
}

func TestExternalEncoderUsesBinary(t *testing.T) {
	binDir := t.TempDir()
	testsupport.WriteStubBinary(t, binDir, "cwebp", `#!/bin/sh
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then shift; out="$1"; fi
  shift
done
printf 'RIFFstub' > "$out"
`)
	testsupport.PrependPath(t, binDir)

	enc, err := codec.NewExternalEncoder("webp", "")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	source := filepath.Join(dir, "a.png")
	testsupport.WritePNG(t, source, testsupport.Gradient(8, 8))

	result, err := codec.NewConverter(testMemoryLimit, nil, enc).Convert(context.Background(),
		codec.Request{Source: source, Format: "webp", Quality: 70})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got := testsupport.ReadFile(t, result.Path); string(got) != "RIFFstub" {
		t.Fatalf("unexpected encoder output %q", got)
	}
	assertNoTemps(t, dir)
}

func TestExternalEncoderMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	enc, err := codec.NewExternalEncoder("avif", "")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	source := filepath.Join(dir, "a.png")
	testsupport.WritePNG(t, source, testsupport.Gradient(8, 8))

	_, err = codec.NewConverter(testMemoryLimit, nil, enc).Convert(context.Background(),
		codec.Request{Source: source, Format: "avif", Quality: 70})
	if !errors.Is(err, services.ErrCodecUnavailable) {
		t.Fatalf("expected codec unavailable, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.avif")); !os.IsNotExist(err) {
		t.Fatal("no output expected")
	}
}

func TestMIMEHelpers(t *testing.T) {
	if mime, ok := codec.MIMEForPath("/x/A.JPEG"); !ok || mime != "image/jpeg" {
		t.Fatalf("unexpected mime %q %v", mime, ok)
	}
	if _, ok := codec.MIMEForPath("/x/a.txt"); ok {
		t.Fatal("txt is not an image")
	}
	if got := codec.RestoredMIME("/x/a.unknown"); got != "image/jpeg" {
		t.Fatalf("expected jpeg fallback, got %q", got)
	}
	if got := codec.RestoredMIME("/x/a.tif"); got != "image/tiff" {
		t.Fatalf("unexpected restored mime %q", got)
	}
	if got := codec.MIMEForFormat("AVIF"); got != "image/avif" {
		t.Fatalf("unexpected format mime %q", got)
	}
}
