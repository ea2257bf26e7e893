//go:build !windows

package preview

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sitelapse/internal/config"
)

func testOptions() Options {
	def := config.DefaultConfig().Preview
	return Options{
		Command:          "sh",
		ListeningPattern: def.ListeningPattern,
		RequestPattern:   def.RequestPattern,
		ReadyTimeout:     5 * time.Second,
		SettleDelay:      20 * time.Millisecond,
		StopTimeout:      time.Second,
		SweepGrace:       20 * time.Millisecond,
	}
}

// script writes body to a file and returns options that run it with sh.
func script(t *testing.T, opts Options, body string) Options {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preview.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	opts.Args = []string{path}
	return opts
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// exitedHandle is a handle whose process is already gone.
func exitedHandle(t *testing.T, pid int) *Handle {
	t.Helper()
	r1, w1, err := os.Pipe()
	require.NoError(t, err)
	r2, w2, err := os.Pipe()
	require.NoError(t, err)
	w1.Close()
	w2.Close()
	return &Handle{
		PID:     pid,
		exited:  closedChan(),
		stdout:  r1,
		stderr:  r2,
		drained: closedChan(),
		scan:    &scanner{done: closedChan()},
	}
}

func TestNew_Validation(t *testing.T) {
	opts := testOptions()
	opts.Command = ""
	_, err := New(opts)
	assert.Error(t, err)

	opts = testOptions()
	opts.ReadyTimeout = 0
	_, err = New(opts)
	assert.Error(t, err)

	opts = testOptions()
	opts.ListeningPattern = "no group"
	_, err = New(opts)
	assert.ErrorContains(t, err, "capture group")
}

func TestStop_ExitedProcessStillSweeps(t *testing.T) {
	table := &fakeTable{
		procs: []Process{
			{PID: 4243, PPID: 4242, Args: "esbuild --service"},
			{PID: 5001, PPID: 1, Args: "quarto preview --profile dark"},
			{PID: 5002, PPID: 1, Args: "quarto preview"},
		},
		stubborn: map[int]bool{4243: true, 5001: true},
	}
	opts := testOptions()
	opts.Table = table
	opts.Signature = "quarto preview"
	c, err := New(opts)
	require.NoError(t, err)

	h := exitedHandle(t, 4242)
	c.live = h

	assert.NotPanics(t, func() { c.Stop(h) })

	want := []sent{
		{pid: 4242, sig: syscall.SIGTERM, group: true},
		{pid: 4243, sig: syscall.SIGKILL},
		{pid: 5001, sig: syscall.SIGTERM},
		{pid: 5002, sig: syscall.SIGTERM},
		{pid: 5001, sig: syscall.SIGKILL},
	}
	assert.Equal(t, want, table.signals())
	assert.Empty(t, table.procs)
	assert.Nil(t, c.Live())
	assert.Equal(t, 1, c.Stops())
	assert.Empty(t, c.owned)
}

func TestStop_RunningProcessGetsDirectSignals(t *testing.T) {
	table := &fakeTable{}
	opts := testOptions()
	opts.Table = table
	opts.StopTimeout = 20 * time.Millisecond
	c, err := New(opts)
	require.NoError(t, err)

	h := exitedHandle(t, 4300)
	h.exited = make(chan struct{})
	c.Stop(h)

	want := []sent{
		{pid: 4300, sig: syscall.SIGTERM},
		{pid: 4300, sig: syscall.SIGTERM, group: true},
		{pid: 4300, sig: syscall.SIGKILL},
		{pid: 4300, sig: syscall.SIGKILL, group: true},
	}
	assert.Equal(t, want, table.signals())
}

func TestStop_Idempotent(t *testing.T) {
	table := &fakeTable{}
	opts := testOptions()
	opts.Table = table
	opts.Signature = "quarto preview"
	c, err := New(opts)
	require.NoError(t, err)

	h := exitedHandle(t, 4242)
	c.Stop(h)
	n := len(table.signals())
	c.Stop(h)
	c.Stop(nil)

	assert.Len(t, table.signals(), n)
	assert.Equal(t, 1, c.Stops())
}

func TestStop_ListFailureIsAbsorbed(t *testing.T) {
	table := &fakeTable{listErr: errors.New("ps: not found")}
	opts := testOptions()
	opts.Table = table
	opts.Signature = "quarto preview"
	c, err := New(opts)
	require.NoError(t, err)

	h := exitedHandle(t, 4242)
	assert.NotPanics(t, func() { c.Stop(h) })
	assert.GreaterOrEqual(t, table.listCalls(), 2)
	assert.Equal(t, 1, c.Stops())
}

func TestStart_RejectsSecondPreview(t *testing.T) {
	c, err := New(testOptions())
	require.NoError(t, err)
	c.live = &Handle{PID: 1}

	_, err = c.Start(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrPreviewActive)
	assert.Equal(t, 0, c.Starts())
}

func TestStart_CommandNotFound(t *testing.T) {
	opts := testOptions()
	opts.Command = filepath.Join(t.TempDir(), "no-such-preview")
	c, err := New(opts)
	require.NoError(t, err)

	_, err = c.Start(context.Background(), Request{})
	assert.Error(t, err)
	assert.Nil(t, c.Live())
	assert.Equal(t, 0, c.Starts())
}

func TestStartStop_RealProcess(t *testing.T) {
	opts := script(t, testOptions(), `
echo "Preparing to preview" >&2
echo "rendering site"
echo "Browse at http://localhost:4321/" >&2
echo "GET: /" >&2
exec sleep 30
`)
	c, err := New(opts)
	require.NoError(t, err)

	start := time.Now()
	h, err := c.Start(context.Background(), Request{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), opts.SettleDelay)
	assert.Equal(t, "http://localhost:4321/", h.URL)
	assert.Same(t, h, c.Live())
	assert.False(t, h.Exited())

	c.Stop(h)
	assert.True(t, h.Exited())
	assert.Nil(t, c.Live())
	assert.Equal(t, 1, c.Starts())
	assert.Equal(t, 1, c.Stops())
}

func TestStartStop_ProcessAlreadyExited(t *testing.T) {
	opts := script(t, testOptions(), `
echo "Browse at http://localhost:4321/" >&2
echo "GET: /" >&2
`)
	table := &fakeTable{}
	opts.Table = table
	opts.Signature = "quarto preview"
	c, err := New(opts)
	require.NoError(t, err)

	h, err := c.Start(context.Background(), Request{})
	require.NoError(t, err)
	require.Eventually(t, h.Exited, 2*time.Second, 10*time.Millisecond)

	c.Stop(h)
	// One listing for descendants, one for the sweep.
	assert.GreaterOrEqual(t, table.listCalls(), 2)
	assert.Equal(t, 1, c.Stops())
}

func TestStop_EscalatesToKill(t *testing.T) {
	opts := script(t, testOptions(), `
trap '' TERM
echo "Browse at http://localhost:4321/" >&2
echo "GET: /" >&2
while :; do sleep 1; done
`)
	opts.StopTimeout = 200 * time.Millisecond
	c, err := New(opts)
	require.NoError(t, err)

	h, err := c.Start(context.Background(), Request{})
	require.NoError(t, err)

	start := time.Now()
	c.Stop(h)
	assert.GreaterOrEqual(t, time.Since(start), opts.StopTimeout)
	assert.True(t, h.Exited())
}

func TestStart_StreamEndedStopsProcess(t *testing.T) {
	opts := script(t, testOptions(), `
echo "Browse at http://localhost:4321/" >&2
echo "ERROR: render failed" >&2
exit 1
`)
	c, err := New(opts)
	require.NoError(t, err)

	_, err = c.Start(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrStreamEnded)
	assert.Nil(t, c.Live())
	assert.Equal(t, 1, c.Starts())
	assert.Equal(t, 1, c.Stops())
}

func TestStart_TimeoutStopsProcess(t *testing.T) {
	opts := script(t, testOptions(), `
echo "Browse at http://localhost:4321/" >&2
exec sleep 30
`)
	opts.ReadyTimeout = 300 * time.Millisecond
	c, err := New(opts)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Start(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrReadinessTimeout)
	assert.GreaterOrEqual(t, time.Since(start), opts.ReadyTimeout)
	assert.Nil(t, c.Live())
	assert.Equal(t, 1, c.Stops())

	// The slot is free again.
	_, err = c.Start(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrReadinessTimeout)
	assert.Equal(t, 2, c.Starts())
	assert.Equal(t, 2, c.Stops())
}

func TestStopProcess_BareProcess(t *testing.T) {
	opts := script(t, testOptions(), "exec sleep 30\n")
	c, err := New(opts)
	require.NoError(t, err)

	p, err := os.StartProcess("/bin/sh", []string{"sh", opts.Args[0]}, &os.ProcAttr{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		c.StopProcess(p)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopProcess did not return")
	}
	assert.False(t, SystemTable{}.Alive(p.Pid))
}

func TestSweep_KillsMatchingProcesses(t *testing.T) {
	opts := script(t, testOptions(), `
trap '' TERM
while :; do sleep 1; done
`)
	opts.Signature = opts.Args[0]
	c, err := New(opts)
	require.NoError(t, err)

	p, err := os.StartProcess("/bin/sh", []string{"sh", opts.Args[0]}, &os.ProcAttr{
		Sys: &syscall.SysProcAttr{Setpgid: true},
	})
	require.NoError(t, err)
	waited := make(chan struct{})
	go func() {
		_, _ = p.Wait()
		close(waited)
	}()

	require.Eventually(t, func() bool {
		procs, err := c.Leftovers()
		return err == nil && len(procs) == 1
	}, 2*time.Second, 20*time.Millisecond)

	n, err := c.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("swept process still running")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Preview.Env = map[string]string{"QUARTO_LOG_LEVEL": "INFO"}
	require.NoError(t, cfg.Validate())

	opts := OptionsFromConfig(cfg.Preview, "/site")
	assert.Equal(t, "quarto", opts.Command)
	assert.Equal(t, "/site", opts.Dir)
	assert.Equal(t, "quarto preview", opts.Signature)
	assert.Equal(t, []string{"NO_COLOR=1", "QUARTO_LOG_LEVEL=INFO"}, opts.Env)
	assert.Equal(t, 30*time.Second, opts.ReadyTimeout)
}

// gone reports whether pid has exited. A zombie counts as gone: whether it
// is reaped promptly depends on the init process of the test machine.
func gone(pid int) bool {
	if !(SystemTable{}).Alive(pid) {
		return true
	}
	out, err := exec.Command("ps", "-o", "stat=", "-p", strconv.Itoa(pid)).Output()
	return err != nil || strings.HasPrefix(strings.TrimSpace(string(out)), "Z")
}

func TestStop_KillsGrandchild(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	opts := script(t, testOptions(), `
sleep 30 &
echo $! > `+pidFile+`
echo "Browse at http://localhost:4321/" >&2
echo "GET: /" >&2
wait
`)
	c, err := New(opts)
	require.NoError(t, err)

	h, err := c.Start(context.Background(), Request{})
	require.NoError(t, err)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	child, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	require.False(t, gone(child))

	c.Stop(h)
	assert.Eventually(t, func() bool { return gone(child) }, 3*time.Second, 20*time.Millisecond)
	assert.True(t, h.Exited())
}
