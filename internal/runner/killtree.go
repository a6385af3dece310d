//go:build !windows

package runner

import (
	"syscall"

	gops "github.com/mitchellh/go-ps"
)

// killProcessTree terminates pid and every descendant process, grounded
// on the source watcher's pkill-by-parent-pid approach but implemented
// with go-ps for portability instead of shelling out to pkill.
func killProcessTree(pid int) {
	for _, child := range childPids(pid) {
		killProcessTree(child)
	}
	_ = syscall.Kill(pid, syscall.SIGKILL)
}

func childPids(parent int) []int {
	procs, err := gops.Processes()
	if err != nil {
		return nil
	}
	var children []int
	for _, p := range procs {
		if p.PPid() == parent {
			children = append(children, p.Pid())
		}
	}
	return children
}
