package lifecycle

import (
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Table abstracts the OS process table so the tree-walk and staleness logic
// can be tested against an in-memory fake.
type Table interface {
	// Alive reports whether a process with the given pid exists.
	Alive(pid int) bool
	// Cmdline returns the full command line of the process.
	Cmdline(pid int) (string, error)
	// Children returns the direct children of pid.
	Children(pid int) ([]int, error)
	// StartUnix returns the process start time as Unix seconds, or 0 when
	// unavailable.
	StartUnix(pid int) int64
	// Terminate sends the polite termination signal.
	Terminate(pid int) error
	// Kill sends the forceful kill signal.
	Kill(pid int) error
	// FindBySignature returns the pids of all processes whose command line
	// contains the given marker.
	FindBySignature(marker string) ([]int, error)
}

// SystemTable is the gopsutil-backed Table used outside of tests.
type SystemTable struct{}

func (SystemTable) Alive(pid int) bool {
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}

func (SystemTable) Cmdline(pid int) (string, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Cmdline()
}

func (SystemTable) Children(pid int) ([]int, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	kids, err := p.Children()
	if err != nil {
		// gopsutil reports an error when there are no children; treat an
		// empty result as such rather than failing the tree walk.
		return nil, nil
	}
	pids := make([]int, 0, len(kids))
	for _, k := range kids {
		pids = append(pids, int(k.Pid))
	}
	return pids, nil
}

func (SystemTable) StartUnix(pid int) int64 {
	return procStartUnix(pid)
}

func (SystemTable) Terminate(pid int) error {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Terminate()
}

func (SystemTable) Kill(pid int) error {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

func (SystemTable) FindBySignature(marker string) ([]int, error) {
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, marker) {
			pids = append(pids, int(p.Pid))
		}
	}
	return pids, nil
}
