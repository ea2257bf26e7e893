// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// PageFile is the file SiteRepo.Commit writes.
const PageFile = "index.qmd"

// SiteRepo is a throwaway git repository holding a one-page site.
type SiteRepo struct {
	t    *testing.T
	Root string
}

// NewSiteRepo initializes an empty repository on branch main in a temp dir.
func NewSiteRepo(t *testing.T) *SiteRepo {
	t.Helper()
	RequireBinary(t, "git")
	r := &SiteRepo{t: t, Root: t.TempDir()}
	r.Git("init", "--initial-branch=main")
	r.Git("config", "user.email", "test@test.com")
	r.Git("config", "user.name", "Test User")
	r.Git("config", "commit.gpgsign", "false")
	return r
}

// Git runs git in the repository and returns trimmed combined output.
func (r *SiteRepo) Git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Root
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to rel inside the repository without committing.
func (r *SiteRepo) WriteFile(rel, content string) {
	r.t.Helper()
	path := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		r.t.Fatalf("write %s: %v", rel, err)
	}
}

// Commit replaces PageFile with content, commits everything and returns the
// new HEAD.
func (r *SiteRepo) Commit(content, msg string) string {
	r.t.Helper()
	r.WriteFile(PageFile, content)
	r.Git("add", ".")
	r.Git("commit", "-m", msg)
	return r.Git("rev-parse", "HEAD")
}

// Path returns rel joined onto the repository root.
func (r *SiteRepo) Path(rel string) string {
	return filepath.Join(r.Root, rel)
}

// RequireBinary skips the test when name is not on PATH.
func RequireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not found in PATH", name)
	}
}
