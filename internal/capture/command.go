package capture

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/region"
	"github.com/steveyegge/sitelapse/internal/util"
)

// Command runs an external screenshot tool, by default macOS screencapture.
// Argv placeholders: {x} {y} {width} {height} {output} {url} {format}.
type Command struct {
	Argv   []string
	Format string
	Logger *zap.Logger
}

func (c *Command) Capture(ctx context.Context, r region.Region, url, path string) error {
	if err := removeStale(path); err != nil {
		return err
	}
	argv := Expand(c.Argv, r, url, path, c.Format)
	if c.Logger != nil {
		c.Logger.Debug("running capture command", zap.Strings("argv", argv))
	}
	if _, err := util.ExecWithOutputContext(ctx, "", argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("capture command: %w", err)
	}
	return Verify(path)
}

// Expand substitutes placeholders in every element of argv. Coordinates are
// rounded to whole pixels.
func Expand(argv []string, r region.Region, url, path, format string) []string {
	rect := r.Rect()
	rep := strings.NewReplacer(
		"{x}", strconv.Itoa(rect.Min.X),
		"{y}", strconv.Itoa(rect.Min.Y),
		"{width}", strconv.Itoa(rect.Dx()),
		"{height}", strconv.Itoa(rect.Dy()),
		"{output}", path,
		"{url}", url,
		"{format}", format,
	)
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = rep.Replace(a)
	}
	return out
}
