package supervisor

import "sync"

// projectTracker enforces the one-job-per-project invariant across the
// in-process worker pool (SPEC_FULL.md invariant 4), mirroring the
// original's mark_project_active/mark_project_idle/is_project_busy trio.
type projectTracker struct {
	mu     sync.Mutex
	active map[string]bool
}

func newProjectTracker() *projectTracker {
	return &projectTracker{active: make(map[string]bool)}
}

// IsBusy reports whether project already has a job running, in this
// process or (per the caller's own reap pass) potentially a prior one.
func (t *projectTracker) IsBusy(project string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[project]
}

// Activate marks project active. Returns false if it was already active.
func (t *projectTracker) Activate(project string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[project] {
		return false
	}
	t.active[project] = true
	return true
}

// Deactivate marks project idle again.
func (t *projectTracker) Deactivate(project string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, project)
}

// Count returns the number of currently active projects.
func (t *projectTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
