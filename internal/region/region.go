// Package region acquires the screen rectangle every capture in a run uses.
package region

import (
	"context"
	"fmt"
	"image"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/steveyegge/sitelapse/internal/config"
	"github.com/steveyegge/sitelapse/internal/util"
)

// Region is a screen rectangle in points. It is read once per run and then
// reused for every item, even if the source changes mid-run.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the region has an area.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Rect rounds the region to whole pixels.
func (r Region) Rect() image.Rectangle {
	x, y := int(math.Round(r.X)), int(math.Round(r.Y))
	return image.Rect(x, y, x+int(math.Round(r.Width)), y+int(math.Round(r.Height)))
}

func (r Region) String() string {
	return fmt.Sprintf("%s,%s %sx%s", num(r.X), num(r.Y), num(r.Width), num(r.Height))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Source yields a Region.
type Source interface {
	Acquire(ctx context.Context) (Region, error)
}

// Fixed is a Source that always returns the same Region.
type Fixed Region

func (f Fixed) Acquire(context.Context) (Region, error) {
	r := Region(f)
	if !r.Valid() {
		return Region{}, fmt.Errorf("region %s has no area", r)
	}
	return r, nil
}

// MacOS reads the last interactive screenshot selection from the
// com.apple.screencapture defaults domain.
type MacOS struct {
	// Exec runs a command and returns its stdout. Defaults to
	// util.ExecWithOutputContext.
	Exec func(ctx context.Context, workDir, name string, args ...string) (string, error)
}

func (m MacOS) Acquire(ctx context.Context) (Region, error) {
	exec := m.Exec
	if exec == nil {
		exec = util.ExecWithOutputContext
	}
	out, err := exec(ctx, "", "defaults", "read", "com.apple.screencapture", "last-selection")
	if err != nil {
		return Region{}, fmt.Errorf("reading last screenshot selection (take one with cmd-shift-4 first): %w", err)
	}
	return ParseDefaults(out)
}

var defaultsKey = regexp.MustCompile(`"?(\w+)"?\s*=\s*"?(-?[0-9.]+)"?\s*;`)

// ParseDefaults parses the dictionary printed by `defaults read`:
//
//	{
//	    Height = 600;
//	    Width = 800;
//	    X = 120;
//	    Y = "88.5";
//	}
func ParseDefaults(out string) (Region, error) {
	vals := make(map[string]float64)
	for _, m := range defaultsKey.FindAllStringSubmatch(out, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Region{}, fmt.Errorf("parsing %s=%q: %w", m[1], m[2], err)
		}
		vals[strings.ToLower(m[1])] = v
	}

	for _, k := range []string{"x", "y", "width", "height"} {
		if _, ok := vals[k]; !ok {
			return Region{}, fmt.Errorf("screen selection has no %s", k)
		}
	}
	r := Region{X: vals["x"], Y: vals["y"], Width: vals["width"], Height: vals["height"]}
	if !r.Valid() {
		return Region{}, fmt.Errorf("screen selection %s has no area", r)
	}
	return r, nil
}

// FromConfig returns the Source named by the [region] section.
func FromConfig(cfg config.RegionConfig) (Source, error) {
	switch cfg.Source {
	case config.RegionMacOS, "":
		return MacOS{}, nil
	case config.RegionConfigured:
		return Fixed{X: cfg.X, Y: cfg.Y, Width: cfg.Width, Height: cfg.Height}, nil
	default:
		return nil, fmt.Errorf("unknown region source %q", cfg.Source)
	}
}
