package workspace

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/git"
	"github.com/steveyegge/sitelapse/internal/sequence"
	"github.com/steveyegge/sitelapse/internal/util"
)

// Mutator moves the shared work tree to the state an item needs.
type Mutator interface {
	Prepare(ctx context.Context, item sequence.Item) error
	// Restore puts the work tree back where the run found it.
	Restore(ctx context.Context) error
}

// Noop leaves the work tree alone. Used for profile and current-state runs.
type Noop struct{}

func (Noop) Prepare(context.Context, sequence.Item) error { return nil }
func (Noop) Restore(context.Context) error                { return nil }

// GitCheckout checks out each item's revision.
type GitCheckout struct {
	git      *git.Git
	logger   *zap.Logger
	original string
	retry    util.RetryConfig
}

// NewGitCheckout remembers the current ref for Restore. It refuses a work
// tree with modified tracked files, which checkout would either carry across
// every revision or refuse midway through the run.
func NewGitCheckout(g *git.Git, logger *zap.Logger) (*GitCheckout, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !g.IsRepo() {
		return nil, fmt.Errorf("%s is not a git repository", g.WorkDir())
	}
	dirty, err := g.HasUncommittedChanges()
	if err != nil {
		return nil, fmt.Errorf("checking work tree: %w", err)
	}
	if dirty {
		return nil, fmt.Errorf("%s has uncommitted changes; commit or stash them first", g.WorkDir())
	}
	ref, err := g.CurrentRef()
	if err != nil {
		return nil, fmt.Errorf("reading current ref: %w", err)
	}
	return &GitCheckout{
		git:      g,
		logger:   logger,
		original: ref,
		retry:    util.DefaultRetryConfig(),
	}, nil
}

// Original returns the ref Restore returns to.
func (m *GitCheckout) Original() string {
	return m.original
}

func (m *GitCheckout) Prepare(ctx context.Context, item sequence.Item) error {
	g := m.git.WithContext(ctx)
	err := util.RetryDo(ctx, m.retry, func() error {
		return g.Checkout(item.ID)
	})
	if err != nil {
		return fmt.Errorf("checking out %s: %w", item.ID, err)
	}
	m.logger.Debug("checked out", zap.String("item", item.ID))
	return nil
}

func (m *GitCheckout) Restore(ctx context.Context) error {
	if m.original == "" {
		return nil
	}
	g := m.git.WithContext(ctx)
	if err := util.RetryDo(ctx, m.retry, func() error { return g.Checkout(m.original) }); err != nil {
		return fmt.Errorf("restoring %s: %w", m.original, err)
	}
	m.logger.Debug("restored work tree", zap.String("ref", m.original))
	return nil
}
