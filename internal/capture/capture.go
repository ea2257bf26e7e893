// Package capture takes the screenshot for one item and checks that an
// image file actually came out of it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/config"
	"github.com/steveyegge/sitelapse/internal/region"
)

// ErrEmptyCapture is returned when the capture left no file or an empty one.
var ErrEmptyCapture = errors.New("capture produced no image")

// Capturer writes an image of r (or of url, for backends that render the
// page themselves) to path.
type Capturer interface {
	Capture(ctx context.Context, r region.Region, url, path string) error
}

// New returns the backend named in cfg.
func New(cfg config.CaptureConfig, logger *zap.Logger) (Capturer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	format, err := NormalizeFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendCommand, "":
		if len(cfg.Command) == 0 {
			return nil, errors.New("capture.command is empty")
		}
		return &Command{Argv: cfg.Command, Format: format, Logger: logger}, nil
	case config.BackendScreen:
		return &Screen{Format: format}, nil
	case config.BackendBrowser:
		return &Browser{Bin: cfg.BrowserBin, Format: format, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}

// NormalizeFormat maps a configured image format onto png or jpg.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png":
		return "png", nil
	case "jpg", "jpeg":
		return "jpg", nil
	default:
		return "", fmt.Errorf("unsupported image format %q (want png or jpg)", format)
	}
}

// removeStale deletes an image left at path by an earlier run, so only a
// file written by this capture can pass Verify.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing previous capture: %w", err)
	}
	return nil
}

// Verify checks that path exists and is not empty.
func Verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s was not written", ErrEmptyCapture, path)
		}
		return err
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrEmptyCapture, path)
	}
	return nil
}

func encode(w io.Writer, img image.Image, format string) error {
	if format == "jpg" {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	}
	return png.Encode(w, img)
}
