package preview

import (
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Process is one row of the process table.
type Process struct {
	PID  int
	PPID int
	Args string
}

// ProcessTable lists and signals system processes. Signalling a process
// that no longer exists is not an error.
type ProcessTable interface {
	List() ([]Process, error)
	Alive(pid int) bool
	Signal(pid int, sig syscall.Signal) error
	SignalGroup(pgid int, sig syscall.Signal) error
}

// parsePS parses `ps -ww -eo pid=,ppid=,args=` output.
func parsePS(out string) []Process {
	var procs []Process
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		procs = append(procs, Process{PID: pid, PPID: ppid, Args: strings.Join(fields[2:], " ")})
	}
	return procs
}

// descendants returns every process below root, children before grandchildren.
func descendants(procs []Process, root int) []int {
	children := make(map[int][]int)
	for _, p := range procs {
		children[p.PPID] = append(children[p.PPID], p.PID)
	}

	var out []int
	seen := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, c := range children[pid] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// matchSignature returns processes whose command line contains sig,
// leaving out this process and its parent.
func matchSignature(procs []Process, sig string) []Process {
	if sig == "" {
		return nil
	}
	self, parent := os.Getpid(), os.Getppid()
	var out []Process
	for _, p := range procs {
		if p.PID == self || p.PID == parent || p.PID <= 1 {
			continue
		}
		if strings.Contains(p.Args, sig) {
			out = append(out, p)
		}
	}
	return out
}
