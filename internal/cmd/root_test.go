package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sitelapse/internal/exitcode"
	"github.com/steveyegge/sitelapse/internal/preview"
)

// testApp returns an app writing to buffers whose controller factory
// counts every controller built.
func testApp() (*app, *bytes.Buffer, *int) {
	var out bytes.Buffer
	built := 0
	a := newApp(&out, &out)
	a.newController = func(opts preview.Options) (*preview.Controller, error) {
		built++
		return preview.New(opts)
	}
	return a, &out, &built
}

func executeArgs(t *testing.T, a *app, args ...string) error {
	t.Helper()
	root := newRootCmd(a)
	root.SetArgs(args)
	return execute(context.Background(), root, a)
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"start-commit with profile-group", []string{"out", "--start-commit", "abc123", "--profile-group", "0"}},
		{"unknown flag", []string{"out", "--frobnicate"}},
		{"missing output dir", []string{}},
		{"two output dirs", []string{"out", "more"}},
		{"bad profile group value", []string{"out", "--profile-group", "first"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, built := testApp()
			a.input = t.TempDir()

			err := executeArgs(t, a, tt.args...)
			require.Error(t, err)
			assert.True(t, exitcode.Is(err, exitcode.FatalArgument), "kind = %s: %v", exitcode.KindOf(err), err)
			assert.Equal(t, exitcode.ErrGeneral, exitcode.Code(err))
			assert.Zero(t, *built, "preview controller built before argument check")
		})
	}
}

func TestRun_ExitCodes(t *testing.T) {
	a, out, _ := testApp()
	code := runArgs(context.Background(), []string{"out", "--start-commit", "a", "--profile-group", "1"}, a)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "start-commit")

	a, _, _ = testApp()
	assert.Equal(t, 0, runArgs(context.Background(), []string{"version"}, a))
}

func TestNegativeProfileGroup(t *testing.T) {
	a, _, built := testApp()
	dir := t.TempDir()

	err := executeArgs(t, a, "out", "--input", dir, "--profile-group", "-1")
	assert.True(t, exitcode.Is(err, exitcode.FatalArgument))
	assert.Zero(t, *built)
}

func TestStartCommitOutsideRepo(t *testing.T) {
	a, _, built := testApp()
	dir := t.TempDir()

	err := executeArgs(t, a, "out", "--input", dir, "--start-commit", "HEAD~3")
	assert.True(t, exitcode.Is(err, exitcode.FatalArgument), "%v", err)
	assert.Zero(t, *built)
}

func TestInputMustBeDirectory(t *testing.T) {
	a, _, _ := testApp()
	err := executeArgs(t, a, "out", "--input", "/definitely/not/here")
	assert.True(t, exitcode.Is(err, exitcode.FatalArgument))
}

func TestVersion(t *testing.T) {
	a, out, _ := testApp()
	require.NoError(t, executeArgs(t, a, "version"))
	assert.True(t, strings.HasPrefix(out.String(), "sitelapse "+Version))
}
