// Package sequence produces the ordered items a run captures: one per git
// revision, one per rendering profile, or a single item for the current
// work tree.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/sitelapse/internal/git"
)

// Item is one unit of work in a run. Items are consumed once, in order.
type Item struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Mode says which provider produced a run's items.
type Mode string

const (
	ModeHistory Mode = "history"
	ModeProfile Mode = "profile"
	ModeCurrent Mode = "current"
)

// Provider yields the items of a run.
type Provider interface {
	Mode() Mode
	Items(ctx context.Context) ([]Item, error)
}

// ErrNoItems is returned when a provider has nothing to capture.
var ErrNoItems = errors.New("sequence is empty")

// History yields one item per revision from Start to HEAD, oldest first.
type History struct {
	Git   *git.Git
	Start string
}

func (h *History) Mode() Mode { return ModeHistory }

func (h *History) Items(ctx context.Context) ([]Item, error) {
	commits, err := h.Git.WithContext(ctx).CommitsFrom(h.Start)
	if err != nil {
		return nil, fmt.Errorf("listing history from %s: %w", h.Start, err)
	}
	if len(commits) == 0 {
		return nil, ErrNoItems
	}
	items := make([]Item, 0, len(commits))
	for _, c := range commits {
		items = append(items, Item{ID: c.ShortSHA, Description: c.Subject})
	}
	return items, nil
}

// Profiles yields one item per profile in a group of the project file.
//
// The project file follows Quarto's layout:
//
//	profile:
//	  group:
//	    - [draft, print]
//	    - [light, dark]
//
// A single flat list is treated as group 0.
type Profiles struct {
	ProjectFile string
	Group       int
}

func (p *Profiles) Mode() Mode { return ModeProfile }

func (p *Profiles) Items(ctx context.Context) ([]Item, error) {
	groups, err := LoadProfileGroups(p.ProjectFile)
	if err != nil {
		return nil, err
	}
	if p.Group < 0 || p.Group >= len(groups) {
		return nil, fmt.Errorf("profile group %d out of range: %s defines %d group(s)",
			p.Group, filepath.Base(p.ProjectFile), len(groups))
	}
	group := groups[p.Group]
	if len(group) == 0 {
		return nil, ErrNoItems
	}
	items := make([]Item, 0, len(group))
	for _, name := range group {
		items = append(items, Item{ID: name, Description: "profile " + name})
	}
	return items, nil
}

type projectFile struct {
	Profile struct {
		Group yaml.Node `yaml:"group"`
	} `yaml:"profile"`
}

// LoadProfileGroups reads the profile groups declared in a project file.
func LoadProfileGroups(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	var pf projectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	node := pf.Profile.Group
	if node.Kind == 0 {
		return nil, fmt.Errorf("%s declares no profile groups", filepath.Base(path))
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s: profile.group must be a list", filepath.Base(path))
	}

	// [a, b] is one group; [[a, b], [c]] is several.
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.ScalarNode {
		var flat []string
		if err := node.Decode(&flat); err != nil {
			return nil, fmt.Errorf("%s: profile.group: %w", filepath.Base(path), err)
		}
		return [][]string{clean(flat)}, nil
	}

	var groups [][]string
	if err := node.Decode(&groups); err != nil {
		return nil, fmt.Errorf("%s: profile.group: %w", filepath.Base(path), err)
	}
	for i := range groups {
		groups[i] = clean(groups[i])
	}
	return groups, nil
}

func clean(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Current yields a single item for the work tree as it is. The ID is the
// short HEAD hash inside a git repository and "current" otherwise.
type Current struct {
	Git *git.Git
}

func (c *Current) Mode() Mode { return ModeCurrent }

func (c *Current) Items(ctx context.Context) ([]Item, error) {
	item := Item{ID: "current", Description: "working tree"}
	if c.Git == nil || !c.Git.IsRepo() {
		return []Item{item}, nil
	}
	g := c.Git.WithContext(ctx)
	sha, err := g.Rev("HEAD")
	if err != nil {
		// Unborn branch: nothing committed yet.
		return []Item{item}, nil
	}
	if len(sha) > 7 {
		item.ID = sha[:7]
	}
	if subject, err := g.Subject(sha); err == nil {
		item.Description = subject
	}
	return []Item{item}, nil
}

// Plan is the resolved item list for a run.
type Plan struct {
	Mode  Mode   `json:"mode"`
	Items []Item `json:"items"`
}

// NewPlan asks p for its items once and freezes them.
func NewPlan(ctx context.Context, p Provider) (*Plan, error) {
	items, err := p.Items(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return &Plan{Mode: p.Mode(), Items: items}, nil
}
