// Package util provides shared helpers for running commands, writing files
// atomically and retrying transient failures.
package util

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecWithOutput runs a command in workDir and returns trimmed stdout.
// On failure the error includes the command's stderr.
func ExecWithOutput(workDir, name string, args ...string) (string, error) {
	return ExecWithOutputContext(context.Background(), workDir, name, args...)
}

// ExecWithOutputContext is ExecWithOutput bound to ctx.
func ExecWithOutputContext(ctx context.Context, workDir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
