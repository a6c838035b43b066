package codec

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imgvault/internal/fileutil"
	"imgvault/internal/logging"
	"imgvault/internal/services"
)

const component = "codec"

// bytesPerPixel is the RGBA working-set cost of one decoded pixel.
const bytesPerPixel = 4

// Request describes one conversion.
type Request struct {
	Source  string
	Format  string
	Quality int
	// OutputDir receives <stem>.<ext>. Empty means the source directory.
	OutputDir string
}

// Result describes a finished conversion.
type Result struct {
	Path      string
	Size      int64
	Width     int
	Height    int
	Flattened bool
}

// Encoder writes an image to dst in one target format.
type Encoder interface {
	Format() string
	Encode(ctx context.Context, img image.Image, dst string, quality int) error
}

// Converter is stateless apart from its configuration and is safe for
// concurrent use on different files.
type Converter struct {
	encoders    map[string]Encoder
	memoryLimit int64
	logger      *slog.Logger
}

// NewConverter builds a converter around the given encoders. memoryLimit is
// in bytes; zero disables the bound.
func NewConverter(memoryLimit int64, logger *slog.Logger, encoders ...Encoder) *Converter {
	m := make(map[string]Encoder, len(encoders))
	for _, enc := range encoders {
		if enc != nil {
			m[enc.Format()] = enc
		}
	}
	return &Converter{
		encoders:    m,
		memoryLimit: memoryLimit,
		logger:      logging.NewComponentLogger(logger, component),
	}
}

// Extension returns the file extension (without dot) for a target format.
func Extension(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

// Supports reports whether an encoder is registered for format.
func (c *Converter) Supports(format string) bool {
	_, ok := c.encoders[Extension(format)]
	return ok
}

// OutputPath returns where Convert would write for req.
func OutputPath(req Request) string {
	dir := req.OutputDir
	if dir == "" {
		dir = filepath.Dir(req.Source)
	}
	base := filepath.Base(req.Source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"."+Extension(req.Format))
}

// Convert decodes req.Source and writes the re-encoded image. On any error no
// file is left at the output path.
func (c *Converter) Convert(ctx context.Context, req Request) (Result, error) {
	format := Extension(req.Format)
	if req.Quality < 1 || req.Quality > 100 {
		return Result{}, services.Wrap(services.ErrValidation, component, "convert",
			fmt.Sprintf("quality %d outside 1-100", req.Quality), nil)
	}
	enc, ok := c.encoders[format]
	if !ok {
		return Result{}, services.Wrap(services.ErrCodecUnavailable, component, "convert",
			fmt.Sprintf("no encoder for %q", format), nil)
	}

	out := OutputPath(req)
	if filepath.Clean(out) == filepath.Clean(req.Source) {
		return Result{}, services.Wrap(services.ErrConversionFailed, component, "convert",
			"output would overwrite the source", nil)
	}
	if _, err := os.Lstat(out); err == nil {
		return Result{}, services.Wrap(services.ErrConversionFailed, component, "convert",
			fmt.Sprintf("output %s already exists", out), nil)
	}

	img, flattened, err := c.load(req.Source)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, services.Wrap(services.ErrConversionFailed, component, "convert", "cancelled", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), fileutil.TempPrefix+"convert-*."+format)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConversionFailed, component, "write", "create temp output", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := enc.Encode(ctx, img, tmpPath, req.Quality); err != nil {
		if errors.Is(err, services.ErrCodecUnavailable) {
			return Result{}, err
		}
		return Result{}, services.Wrap(services.ErrConversionFailed, component, "encode", format, err)
	}

	if err := commit(tmpPath, out); err != nil {
		return Result{}, services.Wrap(services.ErrConversionFailed, component, "write", "commit output", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		_ = os.Remove(out)
		return Result{}, services.Wrap(services.ErrConversionFailed, component, "write", "stat output", err)
	}

	bounds := img.Bounds()
	c.logger.Debug("image converted",
		logging.String("source", req.Source),
		logging.String("output", out),
		logging.Int("quality", req.Quality),
		logging.Bool("flattened", flattened),
		logging.Int64("output_bytes", info.Size()),
	)
	return Result{
		Path:      out,
		Size:      info.Size(),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Flattened: flattened,
	}, nil
}

// commit publishes tmp at out without replacing anything that appeared there
// in the meantime. Filesystems without hard links fall back to rename.
func commit(tmp, out string) error {
	err := os.Link(tmp, out)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return err
	}
	return os.Rename(tmp, out)
}

func (c *Converter) load(path string) (image.Image, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, services.Wrap(services.ErrFileNotFound, component, "decode", path, err)
		}
		return nil, false, services.Wrap(services.ErrConversionFailed, component, "decode", "open source", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, false, services.Wrap(services.ErrConversionFailed, component, "decode", "read header", err)
	}
	if c.memoryLimit > 0 {
		need := int64(cfg.Width) * int64(cfg.Height) * bytesPerPixel
		if need > c.memoryLimit {
			return nil, false, services.Wrap(services.ErrConversionFailed, component, "decode",
				fmt.Sprintf("%dx%d image needs %d bytes, limit is %d", cfg.Width, cfg.Height, need, c.memoryLimit), nil)
		}
	}
	if _, err := file.Seek(0, 0); err != nil {
		return nil, false, services.Wrap(services.ErrConversionFailed, component, "decode", "rewind source", err)
	}
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, false, services.Wrap(services.ErrConversionFailed, component, "decode", "decode pixels", err)
	}
	if opaque(img) {
		return img, false, nil
	}
	return flatten(img), true, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// flatten composites img over an opaque white canvas. Transparency is lost.
func flatten(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Over)
	return canvas
}
