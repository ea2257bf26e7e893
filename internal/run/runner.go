// Package run drives one capture run: for each item it prepares the work
// tree, starts the preview, captures the screen, stops the preview and
// copies artifacts, strictly one item at a time.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/exitcode"
	"github.com/steveyegge/sitelapse/internal/preview"
	"github.com/steveyegge/sitelapse/internal/region"
	"github.com/steveyegge/sitelapse/internal/sequence"
	"github.com/steveyegge/sitelapse/internal/slides"
	"github.com/steveyegge/sitelapse/internal/style"
	"github.com/steveyegge/sitelapse/internal/workspace"
)

// State is where an item is in its lifecycle.
type State string

const (
	WorkspacePrepared State = "workspace-prepared"
	PreviewStarting   State = "preview-starting"
	PreviewReady      State = "preview-ready"
	Capturing         State = "capturing"
	PreviewStopping   State = "preview-stopping"
	ArtifactsCopied   State = "artifacts-copied"
	Done              State = "done"
	Failed            State = "failed"
)

// Previewer starts and stops previews. *preview.Controller implements it.
type Previewer interface {
	Start(ctx context.Context, req preview.Request) (*preview.Handle, error)
	Stop(h *preview.Handle)
}

// Capturer writes one screenshot. capture.Capturer implements it.
type Capturer interface {
	Capture(ctx context.Context, r region.Region, url, path string) error
}

// Copier copies an artifact into a directory. *artifact.Copier implements it.
type Copier interface {
	Copy(src, dir string) (string, error)
}

// Options configures a Runner.
type Options struct {
	OutputDir string
	InputDir  string
	// TargetFile is passed to every preview.
	TargetFile string
	// CopyFile, relative to InputDir, is copied into every item directory.
	CopyFile string

	// Screenshot is the file name written in each item directory.
	Screenshot    string
	PreStartDelay time.Duration

	Slides         bool
	SlidesTemplate string
	SlidesOutput   string

	// NoLock skips the run lock.
	NoLock bool

	Logger *zap.Logger
	// Out receives human progress lines. Nil discards them.
	Out io.Writer
}

// Runner owns the per-item loop.
type Runner struct {
	opts      Options
	provider  sequence.Provider
	mutator   workspace.Mutator
	previewer Previewer
	capturer  Capturer
	copier    Copier
	region    region.Source
	logger    *zap.Logger
	out       io.Writer

	// OnState observes every item transition. Used by tests.
	OnState func(item sequence.Item, s State)
}

// New returns a Runner. All collaborators are required except copier,
// which is only used when opts.CopyFile is set.
func New(opts Options, provider sequence.Provider, mutator workspace.Mutator,
	previewer Previewer, capturer Capturer, copier Copier, src region.Source) *Runner {
	if opts.Screenshot == "" {
		opts.Screenshot = "screenshot.png"
	}
	if opts.SlidesOutput == "" {
		opts.SlidesOutput = "slides.md"
	}
	r := &Runner{
		opts:      opts,
		provider:  provider,
		mutator:   mutator,
		previewer: previewer,
		capturer:  capturer,
		copier:    copier,
		region:    src,
		logger:    opts.Logger,
		out:       opts.Out,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.mutator == nil {
		r.mutator = workspace.Noop{}
	}
	return r
}

// Request derives the preview request for item under mode.
func Request(mode sequence.Mode, item sequence.Item, targetFile string) preview.Request {
	req := preview.Request{TargetFile: targetFile}
	if mode == sequence.ModeProfile {
		req.Profile = item.ID
	}
	return req
}

// Run processes every item in order and returns the manifest. Any fatal
// error aborts the run; the live preview is always stopped first.
func (r *Runner) Run(ctx context.Context) (*Manifest, error) {
	m := &Manifest{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Input:     r.opts.InputDir,
	}
	logger := r.logger.With(zap.String("run", m.RunID))

	if r.opts.CopyFile != "" {
		src := r.copySource()
		if _, err := os.Stat(src); err != nil {
			return nil, exitcode.Wrapf(exitcode.FatalArgument, err, "--copy-file %s", r.opts.CopyFile)
		}
		if r.copier == nil {
			return nil, exitcode.New(exitcode.Internal, "copy file set without a copier")
		}
	}

	if !r.opts.NoLock {
		lock, err := acquireLock(ctx, r.opts.InputDir)
		if err != nil {
			return nil, exitcode.Wrap(exitcode.WorkspaceFailed, "locking input", err)
		}
		defer func() { _ = lock.Unlock() }()
	}

	plan, err := sequence.NewPlan(ctx, r.provider)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.WorkspaceFailed, "building item list", err)
	}
	for _, item := range plan.Items {
		if err := checkID(item.ID); err != nil {
			return nil, exitcode.Wrap(exitcode.Internal, "invalid item", err)
		}
	}
	m.Mode = plan.Mode

	reg, err := r.region.Acquire(ctx)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigInvalid, "acquiring screen region", err)
	}
	m.Region = reg

	if err := os.MkdirAll(r.opts.OutputDir, 0755); err != nil {
		return nil, exitcode.Wrap(exitcode.FatalArgument, "creating output directory", err)
	}

	logger.Info("run started",
		zap.String("mode", string(plan.Mode)),
		zap.Int("items", len(plan.Items)),
		zap.Stringer("region", reg))

	defer func() {
		// Best effort: a failed restore must not mask the run's outcome.
		if err := r.mutator.Restore(context.Background()); err != nil {
			logger.Warn("restoring work tree", zap.Error(err))
			style.PrintWarning("could not restore work tree: %v", err)
		}
	}()

	for i, item := range plan.Items {
		fmt.Fprintf(r.out, "%s [%d/%d] %s %s\n", style.ArrowPrefix, i+1, len(plan.Items),
			style.Bold.Render(item.ID), style.Dim.Render(item.Description))

		entry, err := r.runItem(ctx, plan.Mode, item, reg, logger.With(zap.String("item", item.ID)))
		if err != nil {
			r.state(item, Failed)
			fmt.Fprintf(r.out, "%s %s: %v\n", style.ErrorPrefix, item.ID, err)
			return nil, err
		}
		m.Entries = append(m.Entries, entry)
		fmt.Fprintf(r.out, "%s %s\n", style.SuccessPrefix, filepath.Join(r.opts.OutputDir, entry.Screenshot))
	}

	if r.opts.Slides {
		if err := r.writeSlides(m); err != nil {
			return nil, exitcode.Wrap(exitcode.Internal, "writing slides", err)
		}
	}

	m.FinishedAt = time.Now().UTC()
	if err := m.Write(r.opts.OutputDir); err != nil {
		return nil, exitcode.Wrap(exitcode.Internal, "writing manifest", err)
	}
	logger.Info("run finished", zap.Int("items", len(m.Entries)),
		zap.Duration("elapsed", m.FinishedAt.Sub(m.StartedAt)))
	return m, nil
}

func (r *Runner) runItem(ctx context.Context, mode sequence.Mode, item sequence.Item, reg region.Region, logger *zap.Logger) (Entry, error) {
	entry := Entry{ItemID: item.ID, Description: item.Description}

	if err := r.mutator.Prepare(ctx, item); err != nil {
		return entry, exitcode.Wrapf(exitcode.WorkspaceFailed, err, "preparing %s", item.ID)
	}
	r.state(item, WorkspacePrepared)

	if err := sleep(ctx, r.opts.PreStartDelay); err != nil {
		return entry, err
	}

	r.state(item, PreviewStarting)
	h, err := r.previewer.Start(ctx, Request(mode, item, r.opts.TargetFile))
	if err != nil {
		return entry, classifyStart(item, err)
	}
	r.state(item, PreviewReady)
	entry.URL = h.URL
	logger.Debug("preview ready", zap.String("url", h.URL))

	dir := filepath.Join(r.opts.OutputDir, item.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		r.stop(item, h)
		return entry, exitcode.Wrapf(exitcode.Internal, err, "creating %s", dir)
	}

	r.state(item, Capturing)
	name := r.opts.Screenshot
	if err := r.capturer.Capture(ctx, reg, h.URL, filepath.Join(dir, name)); err != nil {
		logger.Error("capture failed, stopping preview", zap.Error(err))
		r.stop(item, h)
		return entry, exitcode.Wrapf(exitcode.CaptureFailed, err, "capturing %s", item.ID)
	}
	entry.Screenshot = filepath.Join(item.ID, name)

	r.stop(item, h)

	if r.opts.CopyFile != "" {
		dst, err := r.copier.Copy(r.copySource(), dir)
		if err != nil {
			return entry, exitcode.Wrapf(exitcode.CopyFailed, err, "copying %s for %s", r.opts.CopyFile, item.ID)
		}
		entry.Copied = filepath.Join(item.ID, filepath.Base(dst))
	}
	r.state(item, ArtifactsCopied)

	if err := ctx.Err(); err != nil {
		return entry, err
	}
	r.state(item, Done)
	return entry, nil
}

func (r *Runner) stop(item sequence.Item, h *preview.Handle) {
	r.state(item, PreviewStopping)
	r.previewer.Stop(h)
}

func (r *Runner) state(item sequence.Item, s State) {
	r.logger.Debug("item state", zap.String("item", item.ID), zap.String("state", string(s)))
	if r.OnState != nil {
		r.OnState(item, s)
	}
}

func (r *Runner) copySource() string {
	if filepath.IsAbs(r.opts.CopyFile) {
		return r.opts.CopyFile
	}
	return filepath.Join(r.opts.InputDir, r.opts.CopyFile)
}

func (r *Runner) writeSlides(m *Manifest) error {
	deck := slides.Deck{Title: slides.Title(filepath.Base(absOr(r.opts.InputDir)))}
	for _, e := range m.Entries {
		deck.Slides = append(deck.Slides, slides.NewSlide(e.ItemID, e.Description, e.Screenshot))
	}
	tmpl := r.opts.SlidesTemplate
	if tmpl != "" && !filepath.IsAbs(tmpl) {
		tmpl = filepath.Join(r.opts.InputDir, tmpl)
	}
	return slides.Write(filepath.Join(r.opts.OutputDir, r.opts.SlidesOutput), deck, tmpl)
}

func classifyStart(item sequence.Item, err error) error {
	switch {
	case errors.Is(err, preview.ErrReadinessTimeout):
		return exitcode.Wrapf(exitcode.ReadinessTimeout, err, "starting preview for %s", item.ID)
	case errors.Is(err, preview.ErrStreamEnded):
		return exitcode.Wrapf(exitcode.StreamEndedPrematurely, err, "starting preview for %s", item.ID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return exitcode.Wrapf(exitcode.Internal, err, "starting preview for %s", item.ID)
	}
}

// checkID rejects item IDs that would escape the output directory.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("item id %q cannot be used as a directory name", id)
	}
	return nil
}

func absOr(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
