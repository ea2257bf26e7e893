// Package git wraps the git CLI for walking a site's history and checking
// out revisions to preview.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitError carries the raw stderr of a failed git invocation.
type GitError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// Commit is one revision in history order.
type Commit struct {
	SHA      string
	ShortSHA string
	Subject  string
}

// Status summarizes `git status --porcelain`.
type Status struct {
	Clean     bool
	Modified  []string
	Untracked []string
}

// Git runs git commands in a working directory.
type Git struct {
	workDir string
	ctx     context.Context
}

// NewGit returns a Git bound to workDir.
func NewGit(workDir string) *Git {
	return &Git{workDir: workDir, ctx: context.Background()}
}

// WithContext returns a copy of g whose commands are bound to ctx.
func (g *Git) WithContext(ctx context.Context) *Git {
	cp := *g
	cp.ctx = ctx
	return &cp
}

// WorkDir returns the directory commands run in.
func (g *Git) WorkDir() string {
	return g.workDir
}

// IsRepo reports whether workDir is inside a git work tree.
func (g *Git) IsRepo() bool {
	if _, err := os.Stat(filepath.Join(g.workDir, ".git")); err == nil {
		return true
	}
	out, err := g.run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

func (g *Git) run(args ...string) (string, error) {
	cmd := exec.CommandContext(g.ctx, "git", args...)
	cmd.Dir = g.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &GitError{
			Command: args[0],
			Args:    args,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Rev resolves ref to a full commit hash.
func (g *Git) Rev(ref string) (string, error) {
	return g.run("rev-parse", "--verify", "--quiet", ref+"^{commit}")
}

// CurrentBranch returns the checked-out branch, or "" on a detached HEAD.
func (g *Git) CurrentBranch() (string, error) {
	out, err := g.run("symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		// symbolic-ref exits 1 with empty stderr when HEAD is detached.
		if ge, ok := err.(*GitError); ok && ge.Stderr == "" {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// CurrentRef returns the branch name, or the HEAD commit when detached.
// It is what Checkout needs to return the work tree to where it started.
func (g *Git) CurrentRef() (string, error) {
	branch, err := g.CurrentBranch()
	if err != nil {
		return "", err
	}
	if branch != "" {
		return branch, nil
	}
	return g.Rev("HEAD")
}

// Status returns the porcelain status of the work tree.
func (g *Git) Status() (*Status, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return nil, err
	}

	st := &Status{Clean: out == ""}
	if out == "" {
		return st, nil
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if strings.HasPrefix(line, "??") {
			st.Untracked = append(st.Untracked, path)
		} else {
			st.Modified = append(st.Modified, path)
		}
	}
	return st, nil
}

// HasUncommittedChanges reports modified tracked files. Untracked files are
// ignored: checkout carries them across revisions unchanged.
func (g *Git) HasUncommittedChanges() (bool, error) {
	st, err := g.Status()
	if err != nil {
		return false, err
	}
	return len(st.Modified) > 0, nil
}

// Checkout switches the work tree to ref.
func (g *Git) Checkout(ref string) error {
	_, err := g.run("checkout", "--quiet", ref)
	return err
}

// CommitsFrom returns start and every commit after it on the ancestry path
// to HEAD, oldest first.
func (g *Git) CommitsFrom(start string) ([]Commit, error) {
	sha, err := g.Rev(start)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", start, err)
	}

	first, err := g.run("log", "-1", "--format=%H%x1f%h%x1f%s", sha)
	if err != nil {
		return nil, err
	}
	commits := parseLog(first)

	rest, err := g.run("log", "--reverse", "--ancestry-path", "--format=%H%x1f%h%x1f%s", sha+"..HEAD")
	if err != nil {
		return nil, err
	}
	return append(commits, parseLog(rest)...), nil
}

// Subject returns the first line of ref's commit message.
func (g *Git) Subject(ref string) (string, error) {
	return g.run("log", "-1", "--format=%s", ref)
}

func parseLog(out string) []Commit {
	if out == "" {
		return nil
	}
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\x1f", 3)
		if len(parts) != 3 {
			continue
		}
		commits = append(commits, Commit{SHA: parts[0], ShortSHA: parts[1], Subject: parts[2]})
	}
	return commits
}
