package history

import (
	"testing"
	"time"
)

func TestAppendGrowsHistory(t *testing.T) {
	s := New(t.TempDir())
	now := time.Unix(1000, 0)

	if err := s.Append("demo", "hello", "hi there", now); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries := s.List("demo")
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].User != "hello" || entries[0].Assistant != "hi there" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestAppendDedupesIdenticalUserText(t *testing.T) {
	s := New(t.TempDir())
	now := time.Unix(1000, 0)

	if err := s.Append("demo", "hello", "short", now); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("demo", "hello", "a much longer reply", now); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries := s.List("demo")
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (deduped)", len(entries))
	}
	if entries[0].Assistant != "a much longer reply" {
		t.Errorf("expected longer assistant text to win, got %q", entries[0].Assistant)
	}
}

func TestAppendDoesNotGrowOnExactRepeat(t *testing.T) {
	s := New(t.TempDir())
	now := time.Unix(1000, 0)

	s.Append("demo", "hello", "hi there", now)
	s.Append("demo", "hello", "hi there", now)

	if len(s.List("demo")) != 1 {
		t.Fatalf("repeat append grew the file")
	}
}

func TestAppendCapsAt100Entries(t *testing.T) {
	s := New(t.TempDir())
	now := time.Unix(1000, 0)

	for i := 0; i < 150; i++ {
		userText := string(rune('a' + (i % 26)))
		if err := s.Append("demo", userText+string(rune(i)), "reply", now); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries := s.List("demo")
	if len(entries) != MaxEntries {
		t.Fatalf("len(entries) = %d, want %d", len(entries), MaxEntries)
	}
}

func TestListMissingFileIsEmpty(t *testing.T) {
	s := New(t.TempDir())
	if entries := s.List("nonexistent"); len(entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(entries))
	}
}
