package search

import (
	"context"

	"notegraph/backend/internal/graph"
)

// runLexical is the keyword leg: notes and events whose text contains the
// query, within the active filters. Every lexical hit carries the same fixed
// score; ordering among lexical hits is by recency at the store level.
func (e *Engine) runLexical(ctx context.Context, userID, query string, filters graph.SearchFilters, limit int) ([]graph.SearchResult, error) {
	hits, err := e.store.LexicalSearch(ctx, userID, query, filters, limit)
	if err != nil {
		return nil, err
	}
	return textHitsToResults(hits, lexicalScore), nil
}
