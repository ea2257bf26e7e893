package preview

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const maxLogLine = 1 << 20

// Start spawns the preview for req and blocks until it is ready, the ready
// timeout passes, or ctx is done. On any failure after the spawn the process
// is stopped before Start returns.
func (c *Controller) Start(ctx context.Context, req Request) (*Handle, error) {
	c.mu.Lock()
	if c.live != nil {
		c.mu.Unlock()
		return nil, ErrPreviewActive
	}

	args := req.Args(c.opts.Args, c.opts.ProfileFlag, c.opts.ExtraArgs)
	h, err := c.spawn(args)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.live = h
	c.starts++
	c.owned[h.PID] = struct{}{}
	c.mu.Unlock()

	c.logger.Info("preview started",
		zap.Int("pid", h.PID),
		zap.String("command", c.opts.Command),
		zap.Strings("args", args))

	url, err := h.scan.wait(ctx, c.opts.ReadyTimeout, c.opts.SettleDelay)
	if err != nil {
		c.logger.Warn("preview not ready, stopping it", zap.Int("pid", h.PID), zap.Error(err))
		c.Stop(h)
		return nil, err
	}

	h.URL = url
	c.logger.Info("preview ready", zap.Int("pid", h.PID), zap.String("url", url))
	return h, nil
}

// spawn starts the process with its own process group and one pipe per
// output stream. The child holds the only write ends, so both readers see
// EOF when it and everything it spawned have closed them.
func (c *Controller) spawn(args []string) (*Handle, error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	cmd := exec.Command(c.opts.Command, args...)
	cmd.Dir = c.opts.Dir
	if len(c.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), c.opts.Env...)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.SysProcAttr = sysProcAttr()

	startErr := cmd.Start()
	outW.Close()
	errW.Close()
	if startErr != nil {
		outR.Close()
		errR.Close()
		return nil, fmt.Errorf("starting %s: %w", c.opts.Command, startErr)
	}

	h := &Handle{
		PID:     cmd.Process.Pid,
		Process: cmd.Process,
		cmd:     cmd,
		exited:  make(chan struct{}),
		stdout:  outR,
		stderr:  errR,
		drained: make(chan struct{}),
	}

	logger := c.logger.With(zap.Int("pid", h.PID))
	go func() {
		_ = cmd.Wait()
		close(h.exited)
	}()
	go drain(outR, logger.With(zap.String("stream", "stdout")), h.drained)
	h.scan = startScan(errR, c.opts.NewDetector(), logger.With(zap.String("stream", "stderr")))
	return h, nil
}

// drain logs r line by line until EOF or the read end is closed.
func drain(r io.Reader, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	readLines(r, func(line string) { logger.Debug(line) })
}

// readLines calls fn for every line of r until EOF or a read error. Lines
// longer than maxLogLine are cut to maxLogLine bytes and the rest of the
// line is dropped, so one oversized line never stops the scan.
func readLines(r io.Reader, fn func(line string)) {
	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if room := maxLogLine - len(buf); room > 0 {
			buf = append(buf, chunk[:min(len(chunk), room)]...)
		}
		if err != nil {
			if len(buf) > 0 {
				fn(string(buf))
			}
			return
		}
		if isPrefix {
			continue
		}
		fn(string(buf))
		buf = buf[:0]
	}
}

// scanner feeds the preview's stderr to a Detector on its own goroutine and
// keeps draining after the verdict so the child never blocks on a full pipe.
type scanner struct {
	verdict chan Verdict
	cancel  chan struct{}
	done    chan struct{}
}

func startScan(r io.Reader, d Detector, logger *zap.Logger) *scanner {
	s := &scanner{
		verdict: make(chan Verdict, 1),
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run(r, d, logger)
	return s
}

func (s *scanner) run(r io.Reader, d Detector, logger *zap.Logger) {
	defer close(s.done)

	decided := false
	readLines(r, func(line string) {
		logger.Debug(line)
		if decided {
			return
		}
		if v := d.Feed(line); v.Kind != Pending {
			decided = true
			s.deliver(v)
		}
	})
	if !decided {
		s.deliver(d.End())
	}
}

// deliver hands v to wait unless wait already gave up. A verdict that
// arrives after the timeout is dropped.
func (s *scanner) deliver(v Verdict) {
	select {
	case <-s.cancel:
		return
	default:
	}
	s.verdict <- v
}

// wait races the verdict against the timeout and ctx. A Ready verdict is
// followed by the settle delay, still bounded by the same deadline.
func (s *scanner) wait(ctx context.Context, timeout, settle time.Duration) (string, error) {
	defer close(s.cancel)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var v Verdict
	select {
	case v = <-s.verdict:
	case <-deadline.C:
		return "", fmt.Errorf("%w (%s)", ErrReadinessTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if v.Kind != Ready {
		return "", v.Err
	}
	if settle <= 0 {
		return v.URL, nil
	}

	settled := time.NewTimer(settle)
	defer settled.Stop()
	select {
	case <-settled.C:
		return v.URL, nil
	case <-deadline.C:
		return "", fmt.Errorf("%w (%s, while settling)", ErrReadinessTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// awaitReady runs a Detector over r and waits for its verdict.
func awaitReady(ctx context.Context, r io.Reader, d Detector, timeout, settle time.Duration, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return startScan(r, d, logger).wait(ctx, timeout, settle)
}
