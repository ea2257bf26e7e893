//go:build !windows

package preview

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/steveyegge/sitelapse/internal/util"
)

// SystemTable is the ProcessTable backed by ps and kill(2).
type SystemTable struct{}

func (SystemTable) List() ([]Process, error) {
	out, err := util.ExecWithOutput("", "ps", "-ww", "-eo", "pid=,ppid=,args=")
	if err != nil {
		return nil, err
	}
	return parsePS(out), nil
}

func (SystemTable) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func (SystemTable) Signal(pid int, sig syscall.Signal) error {
	if pid <= 1 {
		return nil
	}
	return ignoreGone(unix.Kill(pid, sig))
}

func (SystemTable) SignalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 1 || pgid == unix.Getpgrp() {
		return nil
	}
	return ignoreGone(unix.Kill(-pgid, sig))
}

func ignoreGone(err error) error {
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
