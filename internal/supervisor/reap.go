package supervisor

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
	"relaywatch/pkg/logger"
	"relaywatch/pkg/metrics"
)

// staleThreshold matches the source's 5-minute orphan window: a
// processing job with no result file and no in-process owner past this
// age is presumed crashed.
const staleThreshold = 5 * time.Minute

const (
	oldJobAge       = 3 * 24 * time.Hour
	oldQuestionsAge = 2 * 24 * time.Hour
	oldLockAge      = 1 * 24 * time.Hour
)

// cleanupStale resolves jobs stuck in "processing" from a prior run: one
// whose result already landed just needed its status fixed, one this
// process still owns is left alone, an orphan younger than staleThreshold
// is put back to pending for retry, and an older orphan gets an
// "interrupted" error result and is marked completed so it stops blocking
// its project slot (SPEC_FULL.md §4.H).
func (s *Supervisor) cleanupStale() {
	log := logger.Get()
	jobs, err := s.Queue.All()
	if err != nil {
		log.Warn("cleanupStale: failed to scan queue", "error", err)
		return
	}

	now := time.Now()
	for _, job := range jobs {
		if job.Status != queue.StatusProcessing {
			continue
		}
		project := job.EffectiveProject()

		if _, err := os.Stat(s.Queue.ResultPath(job.ID)); err == nil {
			log.Info("fixing completed job with stale processing status", "job", job.ID)
			job.Status = queue.StatusCompleted
			if err := s.Queue.Save(job); err != nil {
				log.Warn("cleanupStale: failed to save fixed job", "job", job.ID, "error", err)
			}
			metrics.RecordReap("stale_fixed")
			continue
		}

		if s.tracker.IsBusy(project) {
			continue
		}

		startedAt := job.StartedAt
		if startedAt == 0 {
			startedAt = job.Created
		}
		age := now.Sub(time.Unix(int64(startedAt), 0))
		if age < staleThreshold {
			log.Info("resetting interrupted job to pending", "job", job.ID, "project", project, "age", age)
			job.Status = queue.StatusPending
			job.Activity = "Interrupted - queued for retry"
			if err := s.Queue.Save(job); err != nil {
				log.Warn("cleanupStale: failed to requeue interrupted job", "job", job.ID, "error", err)
			}
			continue
		}

		log.Warn("marking orphaned job as interrupted", "job", job.ID, "project", project, "age", age)
		msg := "Error: Job was interrupted: no active process found."
		if err := relaypaths.AtomicWriteFile(s.Queue.ResultPath(job.ID), []byte(msg), 0o644); err != nil {
			log.Warn("cleanupStale: failed to write interrupted result", "job", job.ID, "error", err)
		}
		job.Status = queue.StatusCompleted
		job.Activity = "Job interrupted: no active process found"
		if err := s.Queue.Save(job); err != nil {
			log.Warn("cleanupStale: failed to save orphaned job", "job", job.ID, "error", err)
		}
		metrics.RecordReap("stale_orphaned")
	}
}

// cleanupOld deletes completed job records, stuck question sidecars (whose
// waiting parent jobs are marked completed with a timed-out result), and
// orphaned lock files past their respective age thresholds
// (SPEC_FULL.md §4.H, grounded on the source's cleanup_old_jobs).
func (s *Supervisor) cleanupOld() {
	log := logger.Get()
	jobs, err := s.Queue.All()
	if err != nil {
		log.Warn("cleanupOld: failed to scan queue", "error", err)
		return
	}

	now := time.Now()
	for _, job := range jobs {
		if job.Status != queue.StatusCompleted && job.Status != queue.StatusError {
			continue
		}
		info, err := os.Stat(filepath.Join(s.Queue.Dir(), job.ID+".json"))
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= oldJobAge {
			continue
		}
		log.Info("deleting old completed job", "job", job.ID, "age", now.Sub(info.ModTime()))
		s.Queue.Delete(job.ID)
		metrics.RecordReap("old_job")
	}

	s.reapByGlob("*.questions", oldQuestionsAge, "old_questions")
	s.reapByGlob("*.lock", oldLockAge, "old_lock")
}

func (s *Supervisor) reapByGlob(pattern string, maxAge time.Duration, kind string) {
	log := logger.Get()
	matches, err := filepath.Glob(filepath.Join(s.Queue.Dir(), pattern))
	if err != nil {
		log.Warn("reapByGlob: glob failed", "pattern", pattern, "error", err)
		return
	}
	now := time.Now()
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Warn("reapByGlob: failed to remove stale file", "path", path, "error", err)
			continue
		}
		metrics.RecordReap(kind)
		log.Info("removed stale sidecar file", "path", path)
		if kind == "old_questions" {
			id := strings.TrimSuffix(filepath.Base(path), ".questions")
			if job, err := s.Queue.Load(id); err == nil && job.Status == queue.StatusWaitingForAnswers {
				relaypaths.AtomicWriteFile(s.Queue.ResultPath(id), []byte("Error: Question timed out waiting for answers."), 0o644)
				job.Status = queue.StatusCompleted
				job.Activity = "Question timed out"
				if err := s.Queue.Save(job); err != nil {
					log.Warn("reapByGlob: failed to complete timed-out job", "job", id, "error", err)
				}
			}
		}
	}
}
