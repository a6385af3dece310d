package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaywatch/internal/history"
	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
)

func newTestRouter(t *testing.T) (chi.Router, *queue.Queue) {
	t.Helper()
	dir := t.TempDir()
	q := queue.New(dir)
	hist := history.New(t.TempDir())
	h := NewJobsHandler(q, hist)

	r := chi.NewRouter()
	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Cancel)
			r.Get("/result", h.Result)
			r.Post("/answers", h.Answers)
		})
	})
	r.Get("/api/history/{project}", h.ProjectHistory)
	return r, q
}

func TestCreateJobWritesRecord(t *testing.T) {
	r, q := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"message":"hello","project":"demo"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	jobs, err := q.All()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "hello", jobs[0].Message)
	assert.Equal(t, queue.StatusPending, jobs[0].Status)
}

func TestCreateJobRejectsEmptyMessage(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"message":""}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetJobReturnsStatusAndStream(t *testing.T) {
	r, q := newTestRouter(t)
	job := &queue.Job{ID: "j1", Message: "hi", Project: "demo"}
	require.NoError(t, q.Create(job))
	require.NoError(t, relaypaths.AtomicWriteFile(q.StreamPath("j1"), []byte("partial output"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "partial output")
}

func TestGetJobMissingReturns404(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestResultBeforeCompletionIsConflict(t *testing.T) {
	r, q := newTestRouter(t)
	job := &queue.Job{ID: "j2", Message: "hi", Project: "demo"}
	require.NoError(t, q.Create(job))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/j2/result", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAnswersResumesWaitingJob(t *testing.T) {
	r, q := newTestRouter(t)
	job := &queue.Job{ID: "j3", Message: "hi", Project: "demo", Status: queue.StatusWaitingForAnswers}
	require.NoError(t, q.Create(job))
	require.NoError(t, relaypaths.AtomicWriteFile(q.QuestionsPath("j3"), []byte(`{"questions":[]}`), 0o644))

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/j3/answers", strings.NewReader(`{"answers":{"q1":"yes"}}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	reloaded, err := q.Load("j3")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, reloaded.Status)
	assert.Equal(t, "q1: yes", reloaded.ContextAnswers)
}

func TestCancelRemovesJob(t *testing.T) {
	r, q := newTestRouter(t)
	job := &queue.Job{ID: "j4", Message: "hi", Project: "demo"}
	require.NoError(t, q.Create(job))

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/j4", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, err := q.Load("j4")
	assert.Error(t, err)
}

func TestHistoryReturnsEmptyListForUnknownProject(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history/demo", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "[]")
}
