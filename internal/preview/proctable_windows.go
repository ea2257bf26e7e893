//go:build windows

package preview

import (
	"errors"
	"os"
	"syscall"
)

// SystemTable on Windows can signal known PIDs but cannot list processes,
// so the signature sweep finds nothing.
type SystemTable struct{}

func (SystemTable) List() ([]Process, error) {
	return nil, errors.New("process listing is not supported on windows")
}

func (SystemTable) Alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func (SystemTable) Signal(pid int, sig syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (SystemTable) SignalGroup(int, syscall.Signal) error { return nil }

func sysProcAttr() *syscall.SysProcAttr { return nil }
