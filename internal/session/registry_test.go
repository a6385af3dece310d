package session

import (
	"testing"
)

func TestGetOrCreateMintsOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)

	id, isNew, err := r.GetOrCreate("demo")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !isNew {
		t.Errorf("expected isNew=true on first use")
	}
	if id == "" {
		t.Errorf("expected non-empty id")
	}
}

func TestGetOrCreateTwiceReturnsSameID(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)

	id1, _, err := r.GetOrCreate("demo")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	id2, isNew2, err := r.GetOrCreate("demo")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %q vs %q", id1, id2)
	}
	if isNew2 {
		t.Errorf("expected isNew=false on second call")
	}
}

func TestGetOrCreateEmptyProjectNormalizesToDefault(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)

	idEmpty, _, err := r.GetOrCreate("")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	idDefault, _, err := r.GetOrCreate("default")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if idEmpty != idDefault {
		t.Errorf("empty project not bucketed under default: %q vs %q", idEmpty, idDefault)
	}
}

func TestGetOrCreateRemintsWhenArtifactMissing(t *testing.T) {
	dir := t.TempDir()
	missing := map[string]bool{}
	r := New(dir, func(id string) bool { return !missing[id] })

	id1, _, err := r.GetOrCreate("demo")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	missing[id1] = true
	r.Forget("demo")

	id2, isNew, err := r.GetOrCreate("demo")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if id2 == id1 {
		t.Errorf("expected a fresh id once artifact is missing")
	}
	if !isNew {
		t.Errorf("expected isNew=true after remint")
	}
}
