//go:build windows

package relaypaths

import (
	"os"
)

// FileLock is the lock-token fallback for platforms without flock: a
// sibling file created with O_EXCL, unlinked on release. Per §9, tests
// must cover a lock-holder that died without releasing; a stale token is
// recovered by the supervisor's orphan-lock reaper (OLD_LOCK_AGE_DAYS),
// not by this package.
type FileLock struct {
	path string
}

// TryLock creates target+".lock" exclusively. Returns (nil, false, nil)
// if the token already exists (lock held, or a dead holder pending reap).
func TryLock(target string) (*FileLock, bool, error) {
	path := target + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	f.Close()
	return &FileLock{path: path}, true, nil
}

// Release removes the lock token.
func (l *FileLock) Release() {
	if l == nil {
		return
	}
	os.Remove(l.path)
}
