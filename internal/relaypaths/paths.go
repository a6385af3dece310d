// Package relaypaths computes the per-user directory layout for the job
// relay and provides the atomic-write and advisory-lock primitives every
// other package builds on.
package relaypaths

import (
	"os"
	"path/filepath"
)

// DefaultUser is the deployment's backwards-compatible default; its
// directories keep the unsuffixed base name.
const DefaultUser = "axion"

// Layout holds the resolved directories for one relay user.
type Layout struct {
	User          string
	Queue         string
	History       string
	Temp          string
	Screenshots   string
	ProjectsBase  string
}

// userDir applies the single canonicalization rule for per-user directory
// names: the default user keeps the bare name, everyone else gets a
// "-<user>" suffix. This is a deployment convention, not a logical
// namespace, so it lives behind this one function.
func userDir(root, base, user string) string {
	if user == DefaultUser {
		return filepath.Join(root, base)
	}
	return filepath.Join(root, base+"-"+user)
}

// NewLayout resolves all relay directories under root for the given user
// (empty user falls back to DefaultUser) and creates them if missing.
func NewLayout(root, user, projectsBase string) (*Layout, error) {
	if user == "" {
		user = DefaultUser
	}
	l := &Layout{
		User:         user,
		Queue:        userDir(root, ".queue", user),
		History:      userDir(root, ".history", user),
		Temp:         userDir(root, ".temp", user),
		Screenshots:  userDir(root, ".screenshots", user),
		ProjectsBase: projectsBase,
	}
	for _, dir := range []string{l.Queue, l.History, l.Temp, l.Screenshots} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// AtomicWriteFile writes data to a sibling temp file, fsyncs, then renames
// it onto path. On any failure the temp file is removed and the error is
// surfaced to the caller; readers never observe a partially-written file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadFileOrDefault reads path and reports whether it could be read. A
// missing or unreadable file yields (nil, false) without an error, so
// callers fall back to their own default and do not distinguish absence
// from other read failures.
func ReadFileOrDefault(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}
