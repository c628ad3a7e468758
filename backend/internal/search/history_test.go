package search

import (
	"fmt"
	"testing"
)

func TestHistory_RecordAndSuggest(t *testing.T) {
	h := NewHistory(10)
	h.Record("u1", "project kickoff")
	h.Record("u1", "project retro")
	h.Record("u1", "dentist appointment")

	got := h.Suggestions("u1", "project", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %v", len(got), got)
	}
	if got[0] != "project retro" || got[1] != "project kickoff" {
		t.Errorf("expected newest first, got %v", got)
	}
}

func TestHistory_PrefixIsCaseInsensitive(t *testing.T) {
	h := NewHistory(10)
	h.Record("u1", "Quarterly Review")

	got := h.Suggestions("u1", "quart", 10)
	if len(got) != 1 || got[0] != "Quarterly Review" {
		t.Errorf("expected case-insensitive prefix match, got %v", got)
	}
}

func TestHistory_RepeatMovesToFront(t *testing.T) {
	h := NewHistory(10)
	h.Record("u1", "alpha")
	h.Record("u1", "beta")
	h.Record("u1", "ALPHA")

	got := h.Suggestions("u1", "", 10)
	if len(got) != 2 {
		t.Fatalf("expected repeat to be deduplicated, got %v", got)
	}
	if got[0] != "ALPHA" || got[1] != "beta" {
		t.Errorf("expected [ALPHA beta], got %v", got)
	}
}

func TestHistory_CapsPerUser(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Record("u1", fmt.Sprintf("query %d", i))
	}

	got := h.Suggestions("u1", "", 10)
	if len(got) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(got))
	}
	if got[0] != "query 4" || got[2] != "query 2" {
		t.Errorf("expected newest 3 kept, got %v", got)
	}
}

func TestHistory_IgnoresBlankEntries(t *testing.T) {
	h := NewHistory(10)
	h.Record("", "orphan query")
	h.Record("u1", "   ")

	if got := h.Suggestions("u1", "", 10); len(got) != 0 {
		t.Errorf("expected no entries, got %v", got)
	}
}

func TestHistory_UsersAreIsolated(t *testing.T) {
	h := NewHistory(10)
	h.Record("u1", "groceries")
	h.Record("u2", "gym schedule")

	if got := h.Suggestions("u1", "gym", 10); len(got) != 0 {
		t.Errorf("expected no cross-user suggestions, got %v", got)
	}
}
