package run

import (
	"path/filepath"
	"time"

	"github.com/steveyegge/sitelapse/internal/region"
	"github.com/steveyegge/sitelapse/internal/sequence"
	"github.com/steveyegge/sitelapse/internal/util"
)

// ManifestFile is written at the root of the output directory.
const ManifestFile = "manifest.json"

// Manifest records what a completed run produced.
type Manifest struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Mode       sequence.Mode `json:"mode"`
	Input      string        `json:"input"`
	Region     region.Region `json:"region"`
	Entries    []Entry       `json:"entries"`
}

// Entry is one captured item. Paths are relative to the output directory.
type Entry struct {
	ItemID      string `json:"item_id"`
	Description string `json:"description"`
	Screenshot  string `json:"screenshot"`
	Copied      string `json:"copied,omitempty"`
	URL         string `json:"url"`
}

// Write stores the manifest in outputDir.
func (m *Manifest) Write(outputDir string) error {
	return util.AtomicWriteJSON(filepath.Join(outputDir, ManifestFile), m)
}
