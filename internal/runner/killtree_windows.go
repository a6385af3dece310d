//go:build windows

package runner

import (
	"os/exec"
	"strconv"
)

// killProcessTree terminates pid and every descendant process on Windows
// via taskkill, which natively understands process trees.
func killProcessTree(pid int) {
	_ = exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}
