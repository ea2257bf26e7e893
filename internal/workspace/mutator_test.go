package workspace

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sitelapse/internal/git"
	"github.com/steveyegge/sitelapse/internal/sequence"
	"github.com/steveyegge/sitelapse/internal/testutil"
)

func TestGitCheckout_PrepareAndRestore(t *testing.T) {
	repo := testutil.NewSiteRepo(t)
	first := repo.Commit("one", "first")
	repo.Commit("two", "second")

	m, err := NewGitCheckout(git.NewGit(repo.Root), nil)
	require.NoError(t, err)
	assert.Equal(t, "main", m.Original())

	ctx := context.Background()
	require.NoError(t, m.Prepare(ctx, sequence.Item{ID: first[:7]}))

	data, err := os.ReadFile(repo.Path(testutil.PageFile))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, m.Restore(ctx))
	assert.Equal(t, "main", repo.Git("rev-parse", "--abbrev-ref", "HEAD"))

	data, err = os.ReadFile(repo.Path(testutil.PageFile))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestGitCheckout_UnknownRevision(t *testing.T) {
	repo := testutil.NewSiteRepo(t)
	repo.Commit("one", "first")

	m, err := NewGitCheckout(git.NewGit(repo.Root), nil)
	require.NoError(t, err)

	err = m.Prepare(context.Background(), sequence.Item{ID: "deadbeef"})
	assert.ErrorContains(t, err, "checking out deadbeef")
}

func TestNewGitCheckout_RefusesDirtyTree(t *testing.T) {
	repo := testutil.NewSiteRepo(t)
	repo.Commit("one", "first")
	repo.WriteFile(testutil.PageFile, "edited")

	_, err := NewGitCheckout(git.NewGit(repo.Root), nil)
	assert.ErrorContains(t, err, "uncommitted changes")
}

func TestNewGitCheckout_NotARepo(t *testing.T) {
	_, err := NewGitCheckout(git.NewGit(t.TempDir()), nil)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var m Mutator = Noop{}
	assert.NoError(t, m.Prepare(context.Background(), sequence.Item{ID: "x"}))
	assert.NoError(t, m.Restore(context.Background()))
}
