// Package handlers implements the thin peripheral HTTP surface over the
// job queue: producers create jobs and poll their progress here, while
// the supervisor and runners do all the actual work against the queue
// directory directly (SPEC_FULL.md §1).
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"relaywatch/internal/history"
	"relaywatch/internal/questions"
	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
	apierrors "relaywatch/pkg/errors"
	"relaywatch/pkg/validator"
)

// JobsHandler serves job creation, polling, answer submission, and
// project history over HTTP.
type JobsHandler struct {
	Queue   *queue.Queue
	History *history.Store
}

// NewJobsHandler builds a JobsHandler over the given queue and history
// store (one relay user's layout).
func NewJobsHandler(q *queue.Queue, hist *history.Store) *JobsHandler {
	return &JobsHandler{Queue: q, History: hist}
}

// Create handles POST /api/jobs: validates the request and writes a new
// pending job record.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := validator.DecodeAndValidate(r, validator.ValidateCreateJob)
	if err != nil {
		apierrors.WriteErrorFromError(w, err)
		return
	}

	job := &queue.Job{
		ID:          uuid.NewString(),
		Message:     req.Message,
		Project:     req.Project,
		Model:       req.Model,
		JobType:     queue.JobType(req.JobType),
		Personality: req.Personality,
		Created:     float64(time.Now().Unix()),
	}
	for _, data := range req.Images {
		job.Images = append(job.Images, queue.Image{Data: data})
	}

	if err := h.Queue.Create(job); err != nil {
		WriteInternalError(w, "failed to create job: "+err.Error())
		return
	}

	WriteCreated(w, map[string]any{"id": job.ID, "status": job.Status})
}

// List handles GET /api/jobs, optionally filtered by ?project= and
// ?status=.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Queue.All()
	if err != nil {
		WriteInternalError(w, "failed to list jobs: "+err.Error())
		return
	}

	project := r.URL.Query().Get("project")
	status := r.URL.Query().Get("status")

	filtered := make([]*queue.Job, 0, len(jobs))
	for _, j := range jobs {
		if project != "" && j.EffectiveProject() != project {
			continue
		}
		if status != "" && string(j.Status) != status {
			continue
		}
		filtered = append(filtered, j)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Created < filtered[j].Created })

	WriteSuccess(w, filtered)
}

// Get handles GET /api/jobs/{id}: status, activity, and (while running)
// the partial stream content, mirroring the source's status-poll
// endpoint shape.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := URLParam(r, "id")
	job, err := h.Queue.Load(id)
	if err != nil {
		WriteNotFound(w, "job")
		return
	}

	resp := map[string]any{
		"id":       job.ID,
		"status":   job.Status,
		"activity": job.Activity,
	}
	if data, ok := relaypaths.ReadFileOrDefault(h.Queue.StreamPath(id)); ok {
		resp["stream"] = string(data)
	}
	if job.Status == queue.StatusWaitingForAnswers {
		if data, ok := relaypaths.ReadFileOrDefault(h.Queue.QuestionsPath(id)); ok {
			var payload struct {
				Questions     []questions.Question `json:"questions"`
				ResponseSoFar string                `json:"response_so_far"`
			}
			if json.Unmarshal(data, &payload) == nil {
				resp["questions"] = payload.Questions
				resp["response_so_far"] = payload.ResponseSoFar
			}
		}
	}
	WriteSuccess(w, resp)
}

// Result handles GET /api/jobs/{id}/result: the final response text.
func (h *JobsHandler) Result(w http.ResponseWriter, r *http.Request) {
	id := URLParam(r, "id")
	job, err := h.Queue.Load(id)
	if err != nil {
		WriteNotFound(w, "job")
		return
	}
	if job.Status != queue.StatusCompleted && job.Status != queue.StatusError {
		WriteErrorMsg(w, apierrors.ErrCodeConflict, "job has not finished yet")
		return
	}
	data, ok := relaypaths.ReadFileOrDefault(h.Queue.ResultPath(id))
	if !ok {
		WriteNotFound(w, "job result")
		return
	}
	WriteSuccess(w, map[string]any{"id": job.ID, "result": string(data)})
}

// Answers handles POST /api/jobs/{id}/answers: folds the submitted
// answers into context_answers and puts the job back on the queue
// (SPEC_FULL.md §6 resume protocol, grounded on the source's
// handle_chat_answers).
func (h *JobsHandler) Answers(w http.ResponseWriter, r *http.Request) {
	id := URLParam(r, "id")
	job, err := h.Queue.Load(id)
	if err != nil {
		WriteNotFound(w, "job")
		return
	}
	if job.Status != queue.StatusWaitingForAnswers {
		WriteErrorMsg(w, apierrors.ErrCodeConflict, "job is not waiting for answers")
		return
	}

	req, err := validator.DecodeAndValidate(r, validator.ValidateAnswers)
	if err != nil {
		apierrors.WriteErrorFromError(w, err)
		return
	}

	ids := make([]string, 0, len(req.Answers))
	for qid := range req.Answers {
		ids = append(ids, qid)
	}
	sort.Strings(ids)
	lines := make([]string, 0, len(ids))
	for _, qid := range ids {
		lines = append(lines, qid+": "+req.Answers[qid])
	}
	answersText := strings.Join(lines, "\n")

	if job.ContextAnswers != "" {
		job.ContextAnswers += "\n\n" + answersText
	} else {
		job.ContextAnswers = answersText
	}
	job.Status = queue.StatusPending
	job.Activity = "Continuing with answers..."

	if err := h.Queue.Save(job); err != nil {
		WriteInternalError(w, "failed to save job: "+err.Error())
		return
	}
	os.Remove(h.Queue.QuestionsPath(id))

	WriteSuccess(w, map[string]string{"status": "answers_submitted"})
}

// Cancel handles DELETE /api/jobs/{id}: removes the job record and all
// its sidecars.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := URLParam(r, "id")
	if _, err := h.Queue.Load(id); err != nil {
		WriteNotFound(w, "job")
		return
	}
	h.Queue.Delete(id)
	WriteSuccess(w, map[string]string{"status": "cancelled"})
}

// ProjectHistory handles GET /api/history/{project}.
func (h *JobsHandler) ProjectHistory(w http.ResponseWriter, r *http.Request) {
	project := URLParamDecoded(r, "project")
	WriteSuccess(w, h.History.List(project))
}
