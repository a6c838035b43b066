package codec

import (
	"bufio"
	"context"
	"image"
	"os"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
)

// webpMethod trades encode time for size (0 fast, 6 slow).
const webpMethod = 4

// avifSpeed trades encode time for size (0 slow, 10 fast).
const avifSpeed = 8

// WebPEncoder encodes WebP in-process.
type WebPEncoder struct{}

func (WebPEncoder) Format() string { return "webp" }

func (WebPEncoder) Encode(ctx context.Context, img image.Image, dst string, quality int) error {
	return encodeToFile(ctx, dst, func(w *bufio.Writer) error {
		return webp.Encode(w, img, webp.Options{Quality: quality, Method: webpMethod})
	})
}

// AVIFEncoder encodes AVIF in-process.
type AVIFEncoder struct{}

func (AVIFEncoder) Format() string { return "avif" }

func (AVIFEncoder) Encode(ctx context.Context, img image.Image, dst string, quality int) error {
	return encodeToFile(ctx, dst, func(w *bufio.Writer) error {
		return avif.Encode(w, img, avif.Options{Quality: quality, Speed: avifSpeed})
	})
}

func encodeToFile(ctx context.Context, dst string, encode func(*bufio.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := encode(w); err != nil {
		_ = file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
