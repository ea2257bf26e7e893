package capture

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vova616/screenshot"

	"github.com/steveyegge/sitelapse/internal/region"
	"github.com/steveyegge/sitelapse/internal/util"
)

// Screen grabs the region straight from the display.
type Screen struct {
	Format string
}

func (s *Screen) Capture(ctx context.Context, r region.Region, _ string, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := removeStale(path); err != nil {
		return err
	}
	img, err := screenshot.CaptureRect(r.Rect())
	if err != nil {
		return fmt.Errorf("grabbing screen %s: %w", r, err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, s.Format); err != nil {
		return fmt.Errorf("encoding %s: %w", s.Format, err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return err
	}
	return Verify(path)
}
