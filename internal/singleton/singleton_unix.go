//go:build !windows

// Package singleton enforces that only one supervisor instance runs
// against a given queue directory at a time, via an exclusive flock held
// for the process's lifetime (SPEC_FULL.md §4.J).
package singleton

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Guard holds the lock file descriptor; releasing it (by process exit or
// explicit Release) drops the lock.
type Guard struct {
	f *os.File
}

// ErrAlreadyRunning is returned when another instance already holds the
// lock; Acquire includes the other instance's recorded PID in its error.
type ErrAlreadyRunning struct {
	PID string
}

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("another instance is already running (pid %s)", e.PID)
}

// Acquire opens (or creates) pidPath, takes a non-blocking exclusive
// flock on it, and writes this process's PID. The fd must be kept open
// (not passed to Release) for as long as the singleton should hold.
func Acquire(pidPath string) (*Guard, error) {
	f, err := os.OpenFile(pidPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		existing, _ := os.ReadFile(pidPath)
		f.Close()
		if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
			return nil, &ErrAlreadyRunning{PID: string(existing)}
		}
		return nil, err
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.Sync()

	return &Guard{f: f}, nil
}

// Release drops the lock and closes the pid file. Safe to call on a nil
// Guard.
func (g *Guard) Release() {
	if g == nil || g.f == nil {
		return
	}
	unix.Flock(int(g.f.Fd()), unix.LOCK_UN)
	g.f.Close()
}
