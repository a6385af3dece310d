//go:build !windows

package relaypaths

import (
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is an advisory exclusive lock on a <target>.lock sibling file.
// Acquisition is always non-blocking: the supervisor and the runner must
// never stall a scan or a commit on lock contention, they skip instead.
type FileLock struct {
	f *os.File
}

// TryLock attempts a non-blocking exclusive flock on target+".lock".
// Returns (nil, false, nil) on contention, (nil, false, err) on a real
// error, and (lock, true, nil) on success.
func TryLock(target string) (*FileLock, bool, error) {
	path := target + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &FileLock{f: f}, true, nil
}

// Release drops the lock. Tolerates a closed or already-released
// descriptor: Close's error is ignored the same way the teacher's
// terminal cleanup tolerates a double-close.
func (l *FileLock) Release() {
	if l == nil || l.f == nil {
		return
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
}
