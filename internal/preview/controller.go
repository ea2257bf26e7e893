// Package preview runs the site preview server for one item at a time: it
// starts the server, watches its log until a request has been served, and
// tears it down again together with anything it spawned.
package preview

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/config"
)

// ErrPreviewActive is returned by Start while another preview is live.
var ErrPreviewActive = errors.New("a preview is already running")

// Options configures a Controller.
type Options struct {
	Command     string
	Args        []string
	ExtraArgs   []string
	ProfileFlag string
	// Dir is the working directory of the preview server.
	Dir string
	// Env is appended to the inherited environment.
	Env []string

	ListeningPattern string
	RequestPattern   string
	// Signature identifies leftover preview processes in the process table.
	Signature string

	ReadyTimeout time.Duration
	SettleDelay  time.Duration
	StopTimeout  time.Duration
	SweepGrace   time.Duration

	// NewDetector overrides the log detector built from the patterns.
	NewDetector func() Detector
	// Table defaults to SystemTable.
	Table  ProcessTable
	Logger *zap.Logger
}

// OptionsFromConfig maps the [preview] config section onto Options.
func OptionsFromConfig(p config.PreviewConfig, dir string) Options {
	return Options{
		Command:          p.Command,
		Args:             p.Args,
		ExtraArgs:        p.ExtraArgs,
		ProfileFlag:      p.ProfileFlag,
		Dir:              dir,
		Env:              config.PreviewEnv(p),
		ListeningPattern: p.ListeningPattern,
		RequestPattern:   p.RequestPattern,
		Signature:        p.Signature,
		ReadyTimeout:     p.ReadyTimeout.Duration,
		SettleDelay:      p.SettleDelay.Duration,
		StopTimeout:      p.StopTimeout.Duration,
		SweepGrace:       p.SweepGrace.Duration,
	}
}

// Handle is a live preview. It is owned by the Controller that started it
// and is invalid once passed to Stop.
type Handle struct {
	PID     int
	URL     string
	Process *os.Process

	cmd     *exec.Cmd
	exited  chan struct{}
	stdout  *os.File
	stderr  *os.File
	drained chan struct{}
	scan    *scanner
	stopped bool
}

// Exited reports whether the preview process has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

// Controller starts and stops previews, one at a time.
type Controller struct {
	opts   Options
	table  ProcessTable
	logger *zap.Logger

	mu     sync.Mutex
	live   *Handle
	owned  map[int]struct{}
	starts int
	stops  int
}

// New validates opts and returns a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Command == "" {
		return nil, errors.New("preview command is empty")
	}
	if opts.ReadyTimeout <= 0 {
		return nil, fmt.Errorf("ready timeout must be positive, got %s", opts.ReadyTimeout)
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	if opts.NewDetector == nil {
		// Compile once up front so bad patterns fail before anything spawns.
		if _, err := NewLogDetector(opts.ListeningPattern, opts.RequestPattern); err != nil {
			return nil, err
		}
		listening, request := opts.ListeningPattern, opts.RequestPattern
		opts.NewDetector = func() Detector {
			d, _ := NewLogDetector(listening, request)
			return d
		}
	}

	c := &Controller{
		opts:   opts,
		table:  opts.Table,
		logger: opts.Logger,
		owned:  make(map[int]struct{}),
	}
	if c.table == nil {
		c.table = SystemTable{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Starts returns how many previews were spawned.
func (c *Controller) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

// Stops returns how many previews were stopped.
func (c *Controller) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// Live returns the live handle, or nil.
func (c *Controller) Live() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Signature returns the command-line substring the sweep matches on.
func (c *Controller) Signature() string {
	return c.opts.Signature
}
