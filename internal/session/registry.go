// Package session implements the persistent project -> session id table
// (relay_sessions.json) with a short-lived in-memory cache.
package session

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaywatch/internal/relaypaths"
	"relaywatch/pkg/cache"
	"relaywatch/pkg/logger"
)

const (
	sessionsFileName = "relay_sessions.json"
	defaultTTL       = 30 * time.Second
)

// ArtifactChecker reports whether the external tool's on-disk session
// artifact for the given session id still exists. Production wiring
// points this at the AI CLI's own session-index directory; tests supply
// a fake.
type ArtifactChecker func(sessionID string) bool

// Registry is the project -> session_id table described in the job
// record's session-selection contract (SPEC_FULL.md §4.B).
type Registry struct {
	path     string
	cache    *cache.Cache[string]
	mu       sync.Mutex // guards read-modify-write of the on-disk table
	artifact ArtifactChecker
}

// New constructs a Registry rooted at queueDir/relay_sessions.json.
// artifactExists may be nil, in which case every saved id is trusted
// (useful in tests that don't model the external tool's artifacts).
func New(queueDir string, artifactExists ArtifactChecker) *Registry {
	if artifactExists == nil {
		artifactExists = func(string) bool { return true }
	}
	return &Registry{
		path:     filepath.Join(queueDir, sessionsFileName),
		cache:    cache.New[string](defaultTTL, 4096),
		artifact: artifactExists,
	}
}

func (r *Registry) loadTable() map[string]string {
	data, ok := relaypaths.ReadFileOrDefault(r.path)
	table := map[string]string{}
	if !ok {
		return table
	}
	if err := json.Unmarshal(data, &table); err != nil {
		logger.Get().Warn("corrupt relay_sessions.json, treating as empty", "error", err)
		return map[string]string{}
	}
	return table
}

func (r *Registry) persistTable(table map[string]string) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	return relaypaths.AtomicWriteFile(r.path, data, 0o644)
}

// GetOrCreate returns the session id for project, minting a fresh uuid4
// if none exists yet or the saved one's artifact is gone. isNew tells the
// runner whether to start a new conversation or resume an existing one.
//
// The invariant this must uphold: the returned id is always either
// freshly minted or known-present on disk at the moment of return.
func (r *Registry) GetOrCreate(project string) (id string, isNew bool, err error) {
	if project == "" {
		project = "default"
	}

	if cached, ok := r.cache.Get(project); ok && r.artifact(cached) {
		return cached, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	table := r.loadTable()
	if saved, ok := table[project]; ok && r.artifact(saved) {
		r.cache.Set(project, saved)
		return saved, false, nil
	}

	fresh := uuid.NewString()
	table[project] = fresh
	if err := r.persistTable(table); err != nil {
		return "", false, err
	}
	r.cache.Set(project, fresh)
	return fresh, true, nil
}

// Forget drops a project's cached entry, forcing the next GetOrCreate to
// re-read the on-disk table. Used by tests and by corrupt-artifact
// recovery paths.
func (r *Registry) Forget(project string) {
	r.cache.Delete(project)
}
