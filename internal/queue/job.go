// Package queue implements the on-disk job state machine: one JSON file
// per job plus its sidecars, the reserved-name scanner, and the
// claim/commit protocol that hands a job to a runner under lock.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"relaywatch/internal/relaypaths"
	"relaywatch/pkg/logger"
)

// Status is one of the job state machine's five values.
type Status string

const (
	StatusPending            Status = "pending"
	StatusProcessing         Status = "processing"
	StatusWaitingForAnswers  Status = "waiting_for_answers"
	StatusCompleted          Status = "completed"
	StatusError              Status = "error"
	// statusAnswersProvided is tolerated on read for interop with an
	// external producer (see SPEC_FULL.md §9 open-question decision) but
	// never written by this package.
	statusAnswersProvided Status = "answers_provided"
)

// JobType controls session policy and history-append behavior.
type JobType string

const (
	JobTypeChat    JobType = "chat"
	JobTypeFormat  JobType = "format"
	JobTypeExplain JobType = "explain"
	JobTypeQA      JobType = "qa"
	JobTypeModify  JobType = "modify"
)

// PausesForbidden reports whether this job type may never enter
// waiting_for_answers (SPEC_FULL.md invariant 7).
func (t JobType) PausesForbidden() bool {
	return t == JobTypeQA || t == JobTypeExplain || t == JobTypeFormat
}

// Image is one attached, base64-encoded image.
type Image struct {
	Data string `json:"data"`
	Type string `json:"type"`
}

// Job is the persisted record for one unit of work.
type Job struct {
	ID             string  `json:"id"`
	Status         Status  `json:"status"`
	Message        string  `json:"message"`
	Model          string  `json:"model"`
	Project        string  `json:"project"`
	Images         []Image `json:"images,omitempty"`
	Created        float64 `json:"created"`
	StartedAt      float64 `json:"started_at,omitempty"`
	Activity       string  `json:"activity,omitempty"`
	ContextAnswers string  `json:"context_answers,omitempty"`
	JobType        JobType `json:"job_type,omitempty"`
	Personality    string  `json:"personality,omitempty"`
}

// EffectiveProject normalizes the empty-project sentinel.
func (j *Job) EffectiveProject() string {
	if j.Project == "" {
		return "default"
	}
	return j.Project
}

// EffectiveJobType defaults an empty job_type to chat.
func (j *Job) EffectiveJobType() JobType {
	if j.JobType == "" {
		return JobTypeChat
	}
	return j.JobType
}

// reservedNames are never treated as job files by the scanner.
var reservedNames = map[string]bool{
	"watcher.heartbeat":   true,
	"relay_sessions.json": true,
	"AXION_OUTBOX.json":   true,
}

// Queue is the on-disk job directory.
type Queue struct {
	dir string
}

// New returns a Queue rooted at dir (the relay layout's Queue directory).
func New(dir string) *Queue {
	return &Queue{dir: dir}
}

// Dir returns the queue's root directory.
func (q *Queue) Dir() string { return q.dir }

func (q *Queue) jobPath(id string) string       { return filepath.Join(q.dir, id+".json") }
func (q *Queue) streamPath(id string) string    { return filepath.Join(q.dir, id+".stream") }
func (q *Queue) resultPath(id string) string    { return filepath.Join(q.dir, id+".result") }
func (q *Queue) questionsPath(id string) string { return filepath.Join(q.dir, id+".questions") }

// StreamPath, ResultPath and QuestionsPath expose sidecar paths for the
// runner and the alternate backend.
func (q *Queue) StreamPath(id string) string    { return q.streamPath(id) }
func (q *Queue) ResultPath(id string) string    { return q.resultPath(id) }
func (q *Queue) QuestionsPath(id string) string { return q.questionsPath(id) }

// Load reads and parses job id's record. A missing or malformed file
// returns an error; callers scanning the whole queue should treat both
// identically (skip this scan, per SPEC_FULL.md §7).
func (q *Queue) Load(id string) (*Job, error) {
	data, ok := relaypaths.ReadFileOrDefault(q.jobPath(id))
	if !ok {
		return nil, fmt.Errorf("queue: job %s not found", id)
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("queue: job %s has malformed record: %w", id, err)
	}
	return &j, nil
}

// Save atomically persists a job record.
func (q *Queue) Save(j *Job) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return relaypaths.AtomicWriteFile(q.jobPath(j.ID), data, 0o644)
}

// Create writes a brand-new pending job record. Intended for producers
// and for tests; the HTTP-facing producer path lives in the peripheral
// handlers package.
func (q *Queue) Create(j *Job) error {
	if j.Status == "" {
		j.Status = StatusPending
	}
	return q.Save(j)
}

// Delete removes a job's record and every sidecar, per the completion
// protocol (SPEC_FULL.md §6).
func (q *Queue) Delete(id string) {
	for _, p := range []string{q.jobPath(id), q.streamPath(id), q.resultPath(id), q.questionsPath(id), q.jobPath(id) + ".lock"} {
		os.Remove(p)
	}
}

// All loads every job record currently in the queue directory, for the
// supervisor's stale- and old-job reap passes. Unreadable records are
// skipped rather than failing the whole pass.
func (q *Queue) All() ([]*Job, error) {
	ids, err := q.scanIDs()
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		j, err := q.Load(id)
		if err != nil {
			logger.Get().Debug("skipping unreadable job during All scan", "id", id, "error", err)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// scanIDs lists every job id currently present in the queue directory,
// skipping reserved names and non-.json entries.
func (q *Queue) scanIDs() ([]string, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if reservedNames[name] {
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	// Stable order for test determinism; the spec explicitly does not
	// guarantee scan order carries cross-project semantics (§5).
	sort.Strings(ids)
	return ids, nil
}

func dispatchEligible(s Status) bool {
	return s == StatusPending || s == statusAnswersProvided
}

// Claimed is the outcome of a successful claim: the job record as it now
// stands (status=processing, started_at stamped) plus the lock the
// caller must release once the runner has finished mutating the file.
type Claimed struct {
	Job  *Job
	lock *relaypaths.FileLock
}

// Release drops the claim's file lock.
func (c *Claimed) Release() {
	if c == nil {
		return
	}
	c.lock.Release()
}

// ScanAndClaim implements the claim protocol of SPEC_FULL.md §4.D: peek
// without locking to filter candidates by status/eligible-project, then
// for each candidate try a non-blocking lock, re-verify under the lock,
// and claim the first one that is still eligible. isProjectBusy reports
// whether a project already has a processing job (enforcing invariant 4
// before the caller even attempts the pool-capacity check).
func (q *Queue) ScanAndClaim(isProjectBusy func(project string) bool) (*Claimed, error) {
	ids, err := q.scanIDs()
	if err != nil {
		return nil, err
	}

	log := logger.Get()

	for _, id := range ids {
		j, err := q.Load(id)
		if err != nil {
			log.Debug("skipping unreadable job during scan", "id", id, "error", err)
			continue
		}
		if !dispatchEligible(j.Status) {
			continue
		}
		if isProjectBusy(j.EffectiveProject()) {
			continue
		}

		lock, ok, err := relaypaths.TryLock(q.jobPath(id))
		if err != nil {
			log.Debug("lock error during scan", "id", id, "error", err)
			continue
		}
		if !ok {
			continue
		}

		// Re-read under the lock: another thread may have claimed it
		// between the peek and the lock.
		j, err = q.Load(id)
		if err != nil || !dispatchEligible(j.Status) {
			lock.Release()
			continue
		}

		j.Status = StatusProcessing
		j.StartedAt = float64(time.Now().Unix())
		if err := q.Save(j); err != nil {
			lock.Release()
			return nil, err
		}

		return &Claimed{Job: j, lock: lock}, nil
	}

	return nil, nil
}
