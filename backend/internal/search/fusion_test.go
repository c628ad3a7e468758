package search

import (
	"testing"

	"notegraph/backend/internal/graph"
)

func TestFuse_DeduplicatesKeepingBestScore(t *testing.T) {
	batches := [][]graph.SearchResult{
		{
			{ID: "n1", Snippet: "standup notes", Score: 0.7, SourceType: "note"},
			{ID: "n2", Snippet: "release plan", Score: 0.5, SourceType: "note"},
		},
		{
			{ID: "n1", Snippet: "standup notes", Score: 0.9, SourceType: "note"},
		},
	}

	merged, total := fuse(batches, 10)

	if len(merged) != 2 {
		t.Fatalf("expected 2 results, got %d", len(merged))
	}
	if total != 2 {
		t.Errorf("expected total 2, got %d", total)
	}
	if merged[0].ID != "n1" || merged[0].Score != 0.9 {
		t.Errorf("expected n1 at 0.9 first, got %s at %v", merged[0].ID, merged[0].Score)
	}
	if merged[1].ID != "n2" {
		t.Errorf("expected n2 second, got %s", merged[1].ID)
	}
}

func TestFuse_SortsAndTruncates(t *testing.T) {
	batches := [][]graph.SearchResult{
		{
			{ID: "a", Score: 0.3},
			{ID: "b", Score: 0.9},
			{ID: "c", Score: 0.5},
		},
	}

	merged, total := fuse(batches, 2)

	if len(merged) != 2 {
		t.Fatalf("expected 2 results, got %d", len(merged))
	}
	if total != 3 {
		t.Errorf("expected total 3 before truncation, got %d", total)
	}
	if merged[0].ID != "b" || merged[1].ID != "c" {
		t.Errorf("expected [b c], got [%s %s]", merged[0].ID, merged[1].ID)
	}
}

func TestFuse_TieBreaksByID(t *testing.T) {
	batches := [][]graph.SearchResult{
		{{ID: "zz", Score: 0.5}},
		{{ID: "aa", Score: 0.5}},
	}

	merged, _ := fuse(batches, 10)

	if len(merged) != 2 {
		t.Fatalf("expected 2 results, got %d", len(merged))
	}
	if merged[0].ID != "aa" {
		t.Errorf("expected aa first on a score tie, got %s", merged[0].ID)
	}
}

func TestFuse_EmptyInput(t *testing.T) {
	merged, total := fuse(nil, 10)
	if merged == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(merged) != 0 || total != 0 {
		t.Errorf("expected 0 results and total 0, got %d and %d", len(merged), total)
	}
}
