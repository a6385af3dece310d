package metrics

import "testing"

func TestNormalizePathCollapsesJobID(t *testing.T) {
	got := normalizePath("/api/jobs/abc-123")
	if got != "/api/jobs/:id" {
		t.Errorf("normalizePath = %q, want /api/jobs/:id", got)
	}
}

func TestNormalizePathCollapsesJobSubresource(t *testing.T) {
	got := normalizePath("/api/jobs/abc-123/stream")
	if got != "/api/jobs/:id/stream" {
		t.Errorf("normalizePath = %q, want /api/jobs/:id/stream", got)
	}
}

func TestNormalizePathCollapsesHistoryProject(t *testing.T) {
	got := normalizePath("/api/history/my-project")
	if got != "/api/history/:project" {
		t.Errorf("normalizePath = %q, want /api/history/:project", got)
	}
}

func TestNormalizePathLeavesOtherPathsAlone(t *testing.T) {
	if got := normalizePath("/api/health"); got != "/api/health" {
		t.Errorf("normalizePath = %q, want unchanged", got)
	}
}
