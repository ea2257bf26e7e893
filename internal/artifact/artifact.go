// Package artifact copies auxiliary files into an item's output directory.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Copier copies one file per item.
type Copier struct {
	Logger *zap.Logger
}

// Copy copies src into dir under its base name and returns the new path.
// The copy is written to a temp file and renamed, so a failed copy never
// leaves a partial file behind.
func (c *Copier) Copy(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", src)
	}

	dst := filepath.Join(dir, filepath.Base(src))
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(src)+".*")
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("renaming into %s: %w", dst, err)
	}

	if c.Logger != nil {
		c.Logger.Debug("copied artifact",
			zap.String("src", src),
			zap.String("dst", dst),
			zap.String("size", humanize.Bytes(uint64(n))))
	}
	return dst, nil
}
