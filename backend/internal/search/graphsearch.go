package search

import (
	"context"

	"notegraph/backend/internal/graph"
)

// runGraph is the relation leg: entities named in the query are expanded
// through mention edges. A query without recognizable entities legitimately
// returns nothing here; that is not a failure.
func (e *Engine) runGraph(ctx context.Context, userID, query string, limit int) ([]graph.SearchResult, error) {
	entities := e.planner.ExtractQueryEntities(ctx, query)
	if len(entities) == 0 {
		return []graph.SearchResult{}, nil
	}

	hits, err := e.store.EntityMentionSearch(ctx, userID, entities, limit)
	if err != nil {
		return nil, err
	}
	return textHitsToResults(hits, graphScore), nil
}
