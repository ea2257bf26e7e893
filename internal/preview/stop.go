package preview

import (
	"context"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// killWait bounds the wait for exit after SIGKILL.
	killWait = time.Second
	// readerWait bounds the wait for log readers after their pipes close.
	readerWait = time.Second
	pollEvery  = 50 * time.Millisecond
)

// Stop tears down h and anything it spawned. It never fails: every problem
// is logged and absorbed so the caller can always move on.
//
// Order: the process and its group get SIGTERM, then SIGKILL if they outlive
// the stop timeout, then known descendants get SIGKILL. After that, any
// process matching the signature gets SIGTERM and, after a short grace,
// SIGKILL. The signature sweep is the safety net for processes that left
// both the tree and the group.
func (c *Controller) Stop(h *Handle) {
	if h == nil {
		return
	}

	c.mu.Lock()
	if h.stopped {
		c.mu.Unlock()
		c.logger.Debug("preview already stopped", zap.Int("pid", h.PID))
		return
	}
	h.stopped = true
	c.mu.Unlock()

	c.terminate(h.PID, h.exited)
	c.sweep(context.Background())

	h.stdout.Close()
	h.stderr.Close()
	waitFor(h.drained, readerWait)
	waitFor(h.scan.done, readerWait)

	c.mu.Lock()
	if c.live == h {
		c.live = nil
	}
	c.stops++
	c.mu.Unlock()

	c.logger.Info("preview stopped", zap.Int("pid", h.PID))
}

// StopProcess is Stop for a process the controller did not start.
func (c *Controller) StopProcess(p *os.Process) {
	if p == nil {
		return
	}

	exited := make(chan struct{})
	quit := make(chan struct{})
	go func() {
		if _, err := p.Wait(); err == nil {
			close(exited)
			return
		}
		// Not our child: poll until it is gone.
		tick := time.NewTicker(pollEvery)
		defer tick.Stop()
		for {
			if !c.table.Alive(p.Pid) {
				close(exited)
				return
			}
			select {
			case <-tick.C:
			case <-quit:
				return
			}
		}
	}()

	c.terminate(p.Pid, exited)
	close(quit)
	c.sweep(context.Background())
	c.logger.Info("process stopped", zap.Int("pid", p.Pid))
}

// terminate signals pid and its process group, escalating to SIGKILL, then
// kills whatever is left of its descendants.
func (c *Controller) terminate(pid int, exited <-chan struct{}) {
	logger := c.logger.With(zap.Int("pid", pid))

	tree := c.adoptDescendants(pid)

	// A reaped pid may already have been reused; only its group, which
	// still holds any children it left behind, is signalled.
	if !isClosed(exited) {
		c.signal(pid, syscall.SIGTERM, logger)
	} else {
		logger.Debug("preview already exited, signalling its group only")
	}
	c.signalGroup(pid, syscall.SIGTERM, logger)

	if !waitFor(exited, c.opts.StopTimeout) {
		logger.Warn("preview ignored SIGTERM, killing", zap.Duration("waited", c.opts.StopTimeout))
		c.signal(pid, syscall.SIGKILL, logger)
		c.signalGroup(pid, syscall.SIGKILL, logger)
		if !waitFor(exited, killWait) {
			logger.Warn("preview still running after SIGKILL")
		}
	} else {
		logger.Debug("preview exited after SIGTERM")
	}

	c.mu.Lock()
	delete(c.owned, pid)
	c.mu.Unlock()

	for _, child := range tree {
		if c.table.Alive(child) {
			logger.Debug("killing leftover descendant", zap.Int("child", child))
			c.signal(child, syscall.SIGKILL, logger)
		}
		c.mu.Lock()
		delete(c.owned, child)
		c.mu.Unlock()
	}
}

// adoptDescendants records pid's current descendants as owned so they are
// killed even after reparenting takes them out of the tree.
func (c *Controller) adoptDescendants(pid int) []int {
	procs, err := c.table.List()
	if err != nil {
		c.logger.Warn("listing processes", zap.Error(err))
		return nil
	}
	tree := descendants(procs, pid)

	c.mu.Lock()
	for _, p := range tree {
		c.owned[p] = struct{}{}
	}
	c.mu.Unlock()
	return tree
}

// Sweep runs the signature sweep on its own: SIGTERM every match, wait the
// grace period, SIGKILL what survived. It returns how many processes were
// found on the first pass.
func (c *Controller) Sweep(ctx context.Context) (int, error) {
	procs, err := c.Leftovers()
	if err != nil {
		return 0, err
	}
	if len(procs) == 0 {
		return 0, nil
	}

	for _, p := range procs {
		c.signal(p.PID, syscall.SIGTERM, c.logger.With(zap.Int("pid", p.PID)))
	}

	if c.opts.SweepGrace > 0 {
		t := time.NewTimer(c.opts.SweepGrace)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	survivors, err := c.Leftovers()
	if err != nil {
		return len(procs), err
	}
	for _, p := range survivors {
		c.logger.Warn("killing leftover preview process",
			zap.Int("pid", p.PID), zap.String("args", p.Args))
		c.signal(p.PID, syscall.SIGKILL, c.logger.With(zap.Int("pid", p.PID)))
	}
	return len(procs), nil
}

func (c *Controller) sweep(ctx context.Context) {
	n, err := c.Sweep(ctx)
	if err != nil {
		c.logger.Warn("orphan sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		c.logger.Info("swept leftover preview processes", zap.Int("count", n))
	}
}

// Leftovers lists processes matching the signature, excluding this one.
func (c *Controller) Leftovers() ([]Process, error) {
	if c.opts.Signature == "" {
		return nil, nil
	}
	procs, err := c.table.List()
	if err != nil {
		return nil, err
	}
	return matchSignature(procs, c.opts.Signature), nil
}

func (c *Controller) signal(pid int, sig syscall.Signal, logger *zap.Logger) {
	if err := c.table.Signal(pid, sig); err != nil {
		logger.Warn("signal failed", zap.Stringer("signal", sig), zap.Error(err))
	}
}

func (c *Controller) signalGroup(pgid int, sig syscall.Signal, logger *zap.Logger) {
	if err := c.table.SignalGroup(pgid, sig); err != nil {
		logger.Warn("group signal failed", zap.Stringer("signal", sig), zap.Error(err))
	}
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// waitFor reports whether ch closed within d.
func waitFor(ch <-chan struct{}, d time.Duration) bool {
	if ch == nil {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
