package search

import (
	"sort"

	"notegraph/backend/internal/graph"
)

// fuse merges per-strategy batches into one ranked list. A document found by
// several strategies appears once with its best score. Ties sort by id so
// repeated searches return a stable order. The second return value is the
// deduplicated match count before truncation.
func fuse(batches [][]graph.SearchResult, limit int) ([]graph.SearchResult, int) {
	best := make(map[string]graph.SearchResult)
	for _, batch := range batches {
		for _, r := range batch {
			if cur, ok := best[r.ID]; !ok || r.Score > cur.Score {
				best[r.ID] = r
			}
		}
	}

	merged := make([]graph.SearchResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	total := len(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, total
}
