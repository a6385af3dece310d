package queue

import (
	"os"
	"testing"
)

func noBusy(string) bool { return false }

func TestCreateAndLoad(t *testing.T) {
	q := New(t.TempDir())
	j := &Job{ID: "abcd1234", Message: "hello", Model: "sonnet", Project: "demo", Created: 1000}
	if err := q.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := q.Load("abcd1234")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Status != StatusPending {
		t.Errorf("Status = %q, want pending", loaded.Status)
	}
	if loaded.Message != "hello" {
		t.Errorf("Message = %q", loaded.Message)
	}
}

func TestScanAndClaimSkipsReservedNames(t *testing.T) {
	dir := t.TempDir()
	q := New(dir)
	j := &Job{ID: "job1", Project: "demo", Created: 1}
	if err := q.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Write a reserved-name file alongside; it must never be claimed.
	if err := q.Save(&Job{ID: "relay_sessions", Status: StatusPending}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	claimed, err := q.ScanAndClaim(noBusy)
	if err != nil {
		t.Fatalf("ScanAndClaim: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claim")
	}
	defer claimed.Release()
	if claimed.Job.ID != "job1" {
		t.Errorf("claimed wrong job: %q", claimed.Job.ID)
	}
}

func TestScanAndClaimSkipsBusyProject(t *testing.T) {
	q := New(t.TempDir())
	if err := q.Create(&Job{ID: "job1", Project: "x", Created: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := q.ScanAndClaim(func(p string) bool { return p == "x" })
	if err != nil {
		t.Fatalf("ScanAndClaim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected no claim for busy project, got %v", claimed.Job)
	}
}

func TestScanAndClaimMarksProcessingAndStampsStartedAt(t *testing.T) {
	q := New(t.TempDir())
	if err := q.Create(&Job{ID: "job1", Project: "x", Created: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := q.ScanAndClaim(noBusy)
	if err != nil {
		t.Fatalf("ScanAndClaim: %v", err)
	}
	defer claimed.Release()

	if claimed.Job.Status != StatusProcessing {
		t.Errorf("Status = %q, want processing", claimed.Job.Status)
	}
	if claimed.Job.StartedAt == 0 {
		t.Errorf("StartedAt not stamped")
	}

	onDisk, err := q.Load("job1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if onDisk.Status != StatusProcessing {
		t.Errorf("on-disk status = %q, want processing", onDisk.Status)
	}
}

func TestScanAndClaimSecondCallSkipsAlreadyClaimed(t *testing.T) {
	q := New(t.TempDir())
	if err := q.Create(&Job{ID: "job1", Project: "x", Created: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := q.ScanAndClaim(noBusy)
	if err != nil || claimed == nil {
		t.Fatalf("first claim failed: %v %v", claimed, err)
	}
	defer claimed.Release()

	second, err := q.ScanAndClaim(noBusy)
	if err != nil {
		t.Fatalf("ScanAndClaim: %v", err)
	}
	if second != nil {
		t.Fatalf("expected no second claim while job is processing")
	}
}

func TestDeleteRemovesAllSidecars(t *testing.T) {
	dir := t.TempDir()
	q := New(dir)
	j := &Job{ID: "job1", Project: "x", Created: 1}
	q.Create(j)
	relaypathsWrite(t, q.StreamPath("job1"))
	relaypathsWrite(t, q.ResultPath("job1"))
	relaypathsWrite(t, q.QuestionsPath("job1"))

	q.Delete("job1")

	if _, err := q.Load("job1"); err == nil {
		t.Errorf("job record still readable after delete")
	}
	for _, p := range []string{q.StreamPath("job1"), q.ResultPath("job1"), q.QuestionsPath("job1")} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("sidecar %s still present after delete", p)
		}
	}
}

func TestJobTypePausesForbidden(t *testing.T) {
	cases := map[JobType]bool{
		JobTypeChat:    false,
		JobTypeModify:  false,
		JobTypeQA:      true,
		JobTypeExplain: true,
		JobTypeFormat:  true,
	}
	for jt, want := range cases {
		if got := jt.PausesForbidden(); got != want {
			t.Errorf("%s.PausesForbidden() = %v, want %v", jt, got, want)
		}
	}
}

func relaypathsWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
