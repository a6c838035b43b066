package codec

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"imgvault/internal/deps"
	"imgvault/internal/fileutil"
	"imgvault/internal/services"
)

// ExternalEncoder shells out to cwebp or avifenc. The decoded (and possibly
// flattened) image is handed over as a temporary PNG so both backends see the
// same pixels.
type ExternalEncoder struct {
	format string
	binary string
}

// NewExternalEncoder returns an encoder for format backed by binary. An empty
// binary selects the default tool for the format.
func NewExternalEncoder(format, binary string) (*ExternalEncoder, error) {
	req, ok := deps.EncoderRequirement(Extension(format), false)
	if !ok {
		return nil, fmt.Errorf("no external encoder for format %q", format)
	}
	if strings.TrimSpace(binary) == "" {
		binary = req.Command
	}
	return &ExternalEncoder{format: Extension(format), binary: binary}, nil
}

func (e *ExternalEncoder) Format() string { return e.format }

func (e *ExternalEncoder) Encode(ctx context.Context, img image.Image, dst string, quality int) error {
	status := deps.CheckBinary(deps.Requirement{Name: e.binary, Command: e.binary})
	if !status.Available {
		return services.Wrap(services.ErrCodecUnavailable, component, "encode", status.Detail, nil)
	}

	input, err := os.CreateTemp(filepath.Dir(dst), fileutil.TempPrefix+"input-*.png")
	if err != nil {
		return fmt.Errorf("create encoder input: %w", err)
	}
	inputPath := input.Name()
	defer os.Remove(inputPath)
	if err := png.Encode(input, img); err != nil {
		_ = input.Close()
		return fmt.Errorf("write encoder input: %w", err)
	}
	if err := input.Close(); err != nil {
		return fmt.Errorf("close encoder input: %w", err)
	}

	q := strconv.Itoa(quality)
	var args []string
	switch e.format {
	case "webp":
		args = []string{"-quiet", "-q", q, inputPath, "-o", dst}
	case "avif":
		args = []string{"-q", q, inputPath, dst}
	}
	cmd := exec.CommandContext(ctx, status.Path, args...) //nolint:gosec // binary resolved from PATH, args built here
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", e.binary, err, strings.TrimSpace(string(output)))
	}
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("%s produced no output: %w", e.binary, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s produced an empty file", e.binary)
	}
	return nil
}
