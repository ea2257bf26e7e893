package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/region"
	"github.com/steveyegge/sitelapse/internal/util"
)

const defaultNavigationTimeout = 30 * time.Second

// Browser renders the preview URL in a headless Chrome with a viewport the
// size of the region. It does not depend on what is on screen.
type Browser struct {
	// Bin is the browser executable; empty means rod's lookup.
	Bin        string
	Format     string
	Navigation time.Duration
	Logger     *zap.Logger
}

func (b *Browser) Capture(ctx context.Context, r region.Region, url, path string) error {
	if url == "" {
		return errors.New("browser capture needs the preview URL")
	}
	rect := r.Rect()
	if rect.Empty() {
		return fmt.Errorf("region %s has no area", r)
	}
	if err := removeStale(path); err != nil {
		return err
	}

	l := launcher.New().Headless(true)
	if b.Bin != "" {
		l = l.Bin(b.Bin)
	}
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             rect.Dx(),
		Height:            rect.Dy(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil && b.Logger != nil {
		b.Logger.Warn("failed to set viewport", zap.Error(err))
	}

	timeout := b.Navigation
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	nav := page.Context(ctx).Timeout(timeout)
	if err := nav.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for %s to load: %w", url, err)
	}

	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if b.Format == "jpg" {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
	}
	data, err := page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return err
	}
	return Verify(path)
}
