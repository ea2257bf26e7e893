package run

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockTimeout = 2 * time.Second

// LockPath returns the run lock file for an input directory. It lives outside
// the work tree so checkouts never see it.
func LockPath(inputDir string) (string, error) {
	abs, err := filepath.Abs(inputDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", inputDir, err)
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), "sitelapse-"+hex.EncodeToString(sum[:6])+".lock"), nil
}

// acquireLock takes the run lock for inputDir, waiting briefly in case a
// previous run is still exiting.
func acquireLock(ctx context.Context, inputDir string) (*flock.Flock, error) {
	lockPath, err := LockPath(inputDir)
	if err != nil {
		return nil, err
	}

	lock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("another run is using %s (lock held: %s): %w", inputDir, lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("another run is using %s (lock held: %s)", inputDir, lockPath)
	}
	return lock, nil
}
