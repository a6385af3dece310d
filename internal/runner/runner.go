package runner

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"relaywatch/internal/events"
	"relaywatch/internal/history"
	"relaywatch/internal/questions"
	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
	"relaywatch/internal/session"
	"relaywatch/pkg/logger"
	"relaywatch/pkg/pool"
)

// DefaultMaxRuntime bounds a single job's wall-clock execution
// (SPEC_FULL.md §4.G, §5).
const DefaultMaxRuntime = 30 * time.Minute

// ActivityUpdateInterval batches stream-file and activity writes so a
// busy worker does not hammer disk on every PTY chunk.
const ActivityUpdateInterval = 2 * time.Second

// externalModelPrefixes identifies jobs that must be routed to the
// alternate HTTPS backend runner (SPEC_FULL.md §4.I) instead of this
// CLI-backed runner.
var externalModelPrefixes = []string{
	"nvidia/", "meta/", "deepseek-ai/", "qwen/", "mistralai/",
	"microsoft/", "google/", "moonshotai/", "openai/",
}

// IsExternalModel reports whether model must be dispatched to the
// alternate backend rather than spawned as a Claude CLI child.
func IsExternalModel(model string) bool {
	for _, p := range externalModelPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// Runner owns one user's job-relay child-process lifecycle: claim a job,
// spawn the CLI under a PTY, pump its output, and commit the outcome.
type Runner struct {
	Queue    *queue.Queue
	Sessions *session.Registry
	History  *history.Store
	Layout   *relaypaths.Layout

	starter    PTYStarter
	signaler   ProcessSignaler
	maxRuntime time.Duration
}

// New returns a Runner wired to the platform PTY implementation.
func New(q *queue.Queue, sessions *session.Registry, hist *history.Store, layout *relaypaths.Layout) *Runner {
	return &Runner{
		Queue:      q,
		Sessions:   sessions,
		History:    hist,
		Layout:     layout,
		starter:    NewPTYStarter(),
		signaler:   NewProcessSignaler(),
		maxRuntime: DefaultMaxRuntime,
	}
}

// SetMaxRuntime overrides the default per-job wall-clock budget.
func (r *Runner) SetMaxRuntime(d time.Duration) {
	if d > 0 {
		r.maxRuntime = d
	}
}

// resolveProjectDir maps a project name onto a directory under
// ProjectsBase, falling back to a case-insensitive match, grounded on
// the source watcher's get_project_dir.
func resolveProjectDir(projectsBase, project string) string {
	if project == "" || project == "default" {
		return ""
	}
	direct := filepath.Join(projectsBase, project)
	if st, err := os.Stat(direct); err == nil && st.IsDir() {
		return direct
	}
	if strings.Contains(project, "/") {
		return ""
	}
	entries, err := os.ReadDir(projectsBase)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), project) {
			return filepath.Join(projectsBase, e.Name())
		}
	}
	return ""
}

// Run executes one claimed Claude-CLI job to completion (or pause), then
// releases the claim's lock. The caller is responsible for marking the
// job's project idle once Run returns, regardless of outcome.
func (r *Runner) Run(ctx context.Context, claimed *queue.Claimed) error {
	defer claimed.Release()
	job := claimed.Job
	log := logger.Get()

	job.Activity = "Starting Claude..."
	if err := r.Queue.Save(job); err != nil {
		log.Warn("failed to persist starting activity", "job", job.ID, "error", err)
	}

	project := job.EffectiveProject()
	cwd := resolveProjectDir(r.Layout.ProjectsBase, project)
	if cwd == "" {
		cwd = r.Layout.ProjectsBase
	}

	imagePaths := saveImages(r.Layout.Temp, job.ID, job.Images)
	defer cleanupImages(r.Layout.Temp, job.ID)

	built, err := BuildCommand(job, r.Sessions, imagePaths, r.Layout.Screenshots, r.Layout.Temp)
	if err != nil {
		return r.commitError(job, "Error: failed to build command: "+err.Error())
	}

	cmd := exec.Command(built.Args[0], built.Args[1:]...)
	cmd.Dir = cwd
	cmd.Stdin = nil

	pty, err := r.starter.Start(cmd)
	if err != nil {
		return r.commitError(job, "Error: failed to start Claude process: "+err.Error())
	}
	defer pty.Close()

	runCtx, cancel := context.WithTimeout(ctx, r.maxRuntime)
	defer cancel()

	acc := events.NewAccumulator()
	var rawOutput strings.Builder
	timedOut := r.pump(runCtx, cmd, pty, acc, &rawOutput, job)

	exitCode := r.wait(cmd)

	var response string
	switch {
	case timedOut:
		response = timeoutResponse(int(r.maxRuntime / time.Minute))
	default:
		response = acc.Text()
		if response == "" {
			if msg, found := detectAuthFailure(rawOutput.String()); found {
				response = msg
			} else if exitCode != 0 {
				response = exitErrorResponse(exitCode, rawOutput.String())
			}
		}
	}
	if response == "" {
		response = "No response"
	}
	response = sanitizeResponse(response)

	jobType := job.EffectiveJobType()
	if !timedOut && !jobType.PausesForbidden() {
		if qs, shouldWait := questions.Detect(response); questions.ShouldPromote(shouldWait, jobType.PausesForbidden()) {
			return r.commitWaiting(job, qs, response)
		}
	}

	return r.commitComplete(job, project, response)
}

// pump reads PTY output until the child exits, the context deadline
// fires, or the pipe closes, feeding every chunk to acc and periodically
// flushing the stream file and job activity. Returns true if the job was
// killed for exceeding its runtime budget.
func (r *Runner) pump(ctx context.Context, cmd *exec.Cmd, p PTY, acc *events.Accumulator, rawOutput *strings.Builder, job *queue.Job) bool {
	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk, 16)
	go func() {
		buf := pool.GetBuffer()
		defer pool.PutBuffer(buf)
		for {
			n, err := p.Read(buf)
			if n > 0 {
				cp := make([]byte, n)
				copy(cp, buf[:n])
				chunks <- chunk{data: cp}
			}
			if err != nil {
				chunks <- chunk{err: err}
				return
			}
		}
	}()

	log := logger.Get()
	lastUpdate := time.Time{}

	for {
		select {
		case <-ctx.Done():
			log.Error("job exceeded max runtime, terminating process tree", "job", job.ID)
			_ = r.signaler.Terminate(cmd)
			if cmd.Process != nil {
				killProcessTree(cmd.Process.Pid)
			}
			return true
		case c := <-chunks:
			if c.err != nil {
				return false
			}
			rawOutput.Write(c.data)
			acc.Feed(c.data)
			if time.Since(lastUpdate) >= ActivityUpdateInterval {
				lastUpdate = time.Now()
				r.flushProgress(job, rawOutput.String(), acc.Activity())
			}
		}
	}
}

func (r *Runner) flushProgress(job *queue.Job, fullOutput, activity string) {
	log := logger.Get()
	if err := relaypaths.AtomicWriteFile(r.Queue.StreamPath(job.ID), []byte(fullOutput), 0o644); err != nil {
		log.Warn("failed to write stream file", "job", job.ID, "error", err)
	}
	current, err := r.Queue.Load(job.ID)
	if err != nil {
		return
	}
	current.Activity = activity
	if err := r.Queue.Save(current); err != nil {
		log.Warn("failed to update job activity", "job", job.ID, "error", err)
	}
}

// wait blocks for the child to exit, killing it if it does not exit
// promptly once its output pipe has closed, and returns its exit code
// (or -1 if the code could not be determined).
func (r *Runner) wait(cmd *exec.Cmd) int {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			return 0
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		return -1
	case <-time.After(5 * time.Second):
		if cmd.Process != nil {
			killProcessTree(cmd.Process.Pid)
		}
		<-done
		return -1
	}
}

func (r *Runner) commitError(job *queue.Job, message string) error {
	if err := relaypaths.AtomicWriteFile(r.Queue.ResultPath(job.ID), []byte(message), 0o644); err != nil {
		logger.Get().Warn("failed to write error result", "job", job.ID, "error", err)
	}
	job.Status = queue.StatusCompleted
	return r.Queue.Save(job)
}

func (r *Runner) commitWaiting(job *queue.Job, qs []questions.Question, responseSoFar string) error {
	payload := struct {
		JobID           string                `json:"job_id"`
		Questions       []questions.Question  `json:"questions"`
		ResponseSoFar   string                `json:"response_so_far"`
		Waiting         bool                  `json:"waiting"`
	}{JobID: job.ID, Questions: qs, ResponseSoFar: responseSoFar, Waiting: true}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := relaypaths.AtomicWriteFile(r.Queue.QuestionsPath(job.ID), data, 0o644); err != nil {
		return err
	}

	job.Status = queue.StatusWaitingForAnswers
	job.Activity = questionWaitActivity(len(qs))
	return r.Queue.Save(job)
}

func questionWaitActivity(n int) string {
	if n == 1 {
		return "Waiting for 1 answer..."
	}
	return "Waiting for " + strconv.Itoa(n) + " answers..."
}

func (r *Runner) commitComplete(job *queue.Job, project, response string) error {
	if err := relaypaths.AtomicWriteFile(r.Queue.ResultPath(job.ID), []byte(response), 0o644); err != nil {
		return err
	}

	job.Status = queue.StatusCompleted
	if err := r.Queue.Save(job); err != nil {
		return err
	}

	if job.EffectiveJobType() != queue.JobTypeFormat {
		if err := r.History.Append(project, job.Message, response, time.Now()); err != nil {
			logger.Get().Warn("failed to append history", "job", job.ID, "error", err)
		}
	}

	os.Remove(r.Queue.StreamPath(job.ID))
	return nil
}
