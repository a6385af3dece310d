package supervisor

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
}

func (f *fakeRunner) Run(ctx context.Context, claimed *queue.Claimed) error {
	f.mu.Lock()
	f.runs = append(f.runs, claimed.Job.ID)
	f.mu.Unlock()
	claimed.Release()
	return nil
}

func newTestSupervisor(t *testing.T, cli, ext *fakeRunner, opts Options) (*Supervisor, *queue.Queue) {
	t.Helper()
	dir := t.TempDir()
	q := queue.New(dir)
	layout := &relaypaths.Layout{Queue: dir}
	return New(q, layout, cli, ext, opts), q
}

func TestDispatchAvailableRunsClaimedJob(t *testing.T) {
	cli, ext := &fakeRunner{}, &fakeRunner{}
	s, q := newTestSupervisor(t, cli, ext, Options{MaxParallelProjects: 2})

	job := &queue.Job{ID: "j1", Message: "hi", Project: "demo"}
	if err := q.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.dispatchAvailable(context.Background())
	s.eg.Wait()

	cli.mu.Lock()
	defer cli.mu.Unlock()
	if len(cli.runs) != 1 || cli.runs[0] != "j1" {
		t.Errorf("cli.runs = %v, want [j1]", cli.runs)
	}
}

func TestDispatchAvailableRoutesExternalModel(t *testing.T) {
	cli, ext := &fakeRunner{}, &fakeRunner{}
	s, q := newTestSupervisor(t, cli, ext, Options{MaxParallelProjects: 2})

	job := &queue.Job{ID: "j2", Message: "hi", Project: "demo", Model: "nvidia/llama-3.1-70b"}
	if err := q.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.dispatchAvailable(context.Background())
	s.eg.Wait()

	ext.mu.Lock()
	if len(ext.runs) != 1 {
		t.Errorf("ext.runs = %v, want 1 entry", ext.runs)
	}
	ext.mu.Unlock()

	cli.mu.Lock()
	defer cli.mu.Unlock()
	if len(cli.runs) != 0 {
		t.Errorf("cli.runs = %v, want none", cli.runs)
	}
}

func TestDispatchAvailableRespectsPoolCapacity(t *testing.T) {
	cli, ext := &fakeRunner{}, &fakeRunner{}
	s, q := newTestSupervisor(t, cli, ext, Options{MaxParallelProjects: 1})

	for i, name := range []string{"joba", "jobb", "jobc"} {
		job := &queue.Job{ID: name, Message: "hi", Project: name}
		if err := q.Create(job); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	// Hold the only slot so dispatch can claim nothing.
	s.sem.TryAcquire(1)

	s.dispatchAvailable(context.Background())
	s.eg.Wait()

	cli.mu.Lock()
	defer cli.mu.Unlock()
	if len(cli.runs) != 0 {
		t.Errorf("expected no dispatch while pool saturated, got %v", cli.runs)
	}
}

func TestDispatchAvailableSkipsBusyProject(t *testing.T) {
	cli, ext := &fakeRunner{}, &fakeRunner{}
	s, q := newTestSupervisor(t, cli, ext, Options{MaxParallelProjects: 2})

	job1 := &queue.Job{ID: "j1", Message: "hi", Project: "demo"}
	job2 := &queue.Job{ID: "j2", Message: "hi", Project: "demo"}
	if err := q.Create(job1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := q.Create(job2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.tracker.Activate("demo")

	s.dispatchAvailable(context.Background())
	s.eg.Wait()

	cli.mu.Lock()
	defer cli.mu.Unlock()
	if len(cli.runs) != 0 {
		t.Errorf("expected no dispatch for a busy project, got %v", cli.runs)
	}
}

func TestWriteHeartbeatProducesFile(t *testing.T) {
	s, _ := newTestSupervisor(t, &fakeRunner{}, &fakeRunner{}, Options{MaxParallelProjects: 2})

	s.writeHeartbeat()

	if _, err := os.Stat(heartbeatPath(s.Layout)); err != nil {
		t.Errorf("expected heartbeat file: %v", err)
	}
}

func TestRunDispatchesAndRespondsToCancellation(t *testing.T) {
	cli, ext := &fakeRunner{}, &fakeRunner{}
	s, q := newTestSupervisor(t, cli, ext, Options{MaxParallelProjects: 2})

	job := &queue.Job{ID: "j3", Message: "hi", Project: "demo"}
	if err := q.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
