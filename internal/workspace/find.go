// Package workspace locates the site project and moves its work tree to the
// state each run item needs.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound indicates no project root was found.
var ErrNotFound = errors.New("not inside a site project")

// Find locates the project root by walking up from startDir until a
// directory containing marker (the project file, e.g. _quarto.yml) is found.
// Returns "" with no error when nothing matches.
// Does not resolve symlinks to stay consistent with os.Getwd().
func Find(startDir, marker string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	current := absDir
	for {
		if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// FindOrError is like Find but returns ErrNotFound if nothing matches.
func FindOrError(startDir, marker string) (string, error) {
	root, err := Find(startDir, marker)
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", fmt.Errorf("%w: no %s above %s", ErrNotFound, marker, startDir)
	}
	return root, nil
}

// IsProject checks if dir itself holds the project file.
func IsProject(dir, marker string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}
	_, err = os.Stat(filepath.Join(absDir, marker))
	return err == nil, nil
}
