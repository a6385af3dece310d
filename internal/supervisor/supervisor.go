// Package supervisor implements the main watch loop: it scans the queue
// for claimable jobs, dispatches each to the CLI runner or the external
// HTTPS backend, enforces per-project serialization and pool capacity,
// and periodically reaps stale and aged job records (SPEC_FULL.md §4.H).
package supervisor

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
	"relaywatch/internal/runner"
	"relaywatch/pkg/logger"
	"relaywatch/pkg/metrics"
)

const (
	pollInterval      = 500 * time.Millisecond
	heartbeatInterval = 3 * time.Second
	staleCheckInterval = 2 * time.Minute
	oldJobCleanupInterval = time.Hour
	shutdownDrainTimeout = 10 * time.Second
)

// CLIRunner drives one CLI-backed job; satisfied by *runner.Runner.
type CLIRunner interface {
	Run(ctx context.Context, claimed *queue.Claimed) error
}

// ExternalRunner drives one HTTPS-backed job; satisfied by *backend.Runner.
type ExternalRunner interface {
	Run(ctx context.Context, claimed *queue.Claimed) error
}

// Supervisor owns the worker pool and periodic maintenance for one
// relay user's queue.
type Supervisor struct {
	Queue   *queue.Queue
	Layout  *relaypaths.Layout
	CLI     CLIRunner
	Backend ExternalRunner

	maxParallel          int
	oldJobCleanupEnabled bool

	tracker *projectTracker
	sem     *semaphore.Weighted
	eg      errgroup.Group

	jobsProcessed atomic.Int64
}

// Options configures a Supervisor.
type Options struct {
	MaxParallelProjects  int
	OldJobCleanupEnabled bool
}

// New builds a Supervisor ready to Run.
func New(q *queue.Queue, layout *relaypaths.Layout, cli CLIRunner, ext ExternalRunner, opts Options) *Supervisor {
	if opts.MaxParallelProjects <= 0 {
		opts.MaxParallelProjects = 4
	}
	return &Supervisor{
		Queue:                q,
		Layout:               layout,
		CLI:                  cli,
		Backend:              ext,
		maxParallel:          opts.MaxParallelProjects,
		oldJobCleanupEnabled: opts.OldJobCleanupEnabled,
		tracker:              newProjectTracker(),
		sem:                  semaphore.NewWeighted(int64(opts.MaxParallelProjects)),
	}
}

// Run blocks, scanning and dispatching jobs until ctx is canceled, then
// drains in-flight jobs before returning (SPEC_FULL.md §4.H, §7).
func (s *Supervisor) Run(ctx context.Context) error {
	log := logger.Get()
	log.Info("starting supervisor",
		"queue_dir", s.Queue.Dir(),
		"max_parallel_projects", s.maxParallel,
	)

	s.cleanupStale()

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()
	staleTicker := time.NewTicker(staleCheckInterval)
	defer staleTicker.Stop()
	oldJobTicker := time.NewTicker(oldJobCleanupInterval)
	defer oldJobTicker.Stop()

	s.writeHeartbeat()

	for {
		select {
		case <-ctx.Done():
			log.Info("supervisor shutting down, draining active jobs")
			return s.drain()

		case <-pollTicker.C:
			s.dispatchAvailable(ctx)

		case <-heartbeatTicker.C:
			s.writeHeartbeat()

		case <-staleTicker.C:
			s.cleanupStale()

		case <-oldJobTicker.C:
			if s.oldJobCleanupEnabled {
				s.cleanupOld()
			}
		}
	}
}

// dispatchAvailable claims and starts as many jobs as there is free pool
// capacity for, never blocking the poll loop on a full pool.
func (s *Supervisor) dispatchAvailable(ctx context.Context) {
	log := logger.Get()
	for {
		if !s.sem.TryAcquire(1) {
			return
		}

		claimed, err := s.Queue.ScanAndClaim(s.tracker.IsBusy)
		if err != nil {
			log.Warn("scan failed", "error", err)
			metrics.RecordLockContention()
			s.sem.Release(1)
			return
		}
		if claimed == nil {
			s.sem.Release(1)
			return
		}

		project := claimed.Job.EffectiveProject()
		if !s.tracker.Activate(project) {
			// Lost a race with another claim of the same project; put
			// the job back to pending and release our slot.
			claimed.Job.Status = queue.StatusPending
			if err := s.Queue.Save(claimed.Job); err != nil {
				log.Warn("failed to requeue raced job", "job", claimed.Job.ID, "error", err)
			}
			claimed.Release()
			s.sem.Release(1)
			metrics.RecordLockContention()
			continue
		}

		log.Info("dispatching job", "job", claimed.Job.ID, "project", project, "model", claimed.Job.Model)
		s.eg.Go(func() error {
			s.runJob(ctx, claimed, project)
			return nil
		})
	}
}

func (s *Supervisor) runJob(ctx context.Context, claimed *queue.Claimed, project string) {
	defer s.sem.Release(1)
	defer s.tracker.Deactivate(project)

	var err error
	backendName := "cli"
	if runner.IsExternalModel(claimed.Job.Model) {
		backendName = "external"
		err = s.Backend.Run(ctx, claimed)
	} else {
		err = s.CLI.Run(ctx, claimed)
	}
	outcome := "completed"
	if err != nil {
		outcome = "error"
		logger.Get().Error("job failed", "job", claimed.Job.ID, "project", project, "error", err)
	} else if reloaded, loadErr := s.Queue.Load(claimed.Job.ID); loadErr == nil {
		outcome = string(reloaded.Status)
	}
	metrics.RecordJobProcessed(backendName, outcome)
	s.jobsProcessed.Add(1)
}

// drain waits for in-flight jobs to finish, up to shutdownDrainTimeout.
// runJob never returns a non-nil error to the group (failures are logged
// and folded into the job's own error status), so Wait only ever reports
// exhaustion of the drain window via the select below.
func (s *Supervisor) drain() error {
	done := make(chan struct{})
	go func() {
		s.eg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(shutdownDrainTimeout):
		logger.Get().Warn("shutdown drain timed out with jobs still active")
		return nil
	}
}

type heartbeat struct {
	Timestamp       float64 `json:"timestamp"`
	PID             int     `json:"pid"`
	JobsProcessed   int64   `json:"jobs_processed"`
	ActiveProjects  int     `json:"active_projects"`
	Status          string  `json:"status"`
}

func (s *Supervisor) writeHeartbeat() {
	active := s.tracker.Count()
	metrics.SetActiveProjects(active)
	if jobs, err := s.Queue.All(); err == nil {
		depth := 0
		for _, j := range jobs {
			if j.Status == queue.StatusPending {
				depth++
			}
		}
		metrics.SetQueueDepth(depth)
	}
	status := "Idle - waiting for jobs"
	if active > 0 {
		status = heartbeatStatus(active)
	}
	hb := heartbeat{
		Timestamp:      float64(time.Now().Unix()),
		PID:            pid(),
		JobsProcessed:  s.jobsProcessed.Load(),
		ActiveProjects: active,
		Status:         status,
	}
	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		return
	}
	if err := relaypaths.AtomicWriteFile(heartbeatPath(s.Layout), data, 0o644); err != nil {
		logger.Get().Warn("failed to write heartbeat", "error", err)
	}
}
