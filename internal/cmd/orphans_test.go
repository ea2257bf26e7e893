package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/sitelapse/internal/preview"
)

func TestProcessTable(t *testing.T) {
	out := processTable([]preview.Process{
		{PID: 4242, PPID: 1, Args: "quarto preview --profile dark --no-browser"},
		{PID: 4250, PPID: 4242, Args: "deno run esbuild"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Contains(t, lines[0], "PID")
	assert.Contains(t, lines[0], "COMMAND")
	assert.Contains(t, out, "4242")
	assert.Contains(t, out, "quarto preview --profile dark --no-browser")
	assert.Contains(t, out, "deno run esbuild")
}
