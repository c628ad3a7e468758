package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/graph"
)

// runVector is the semantic leg: the query is embedded and ranked against
// the user's cached note vectors. Scores are raw cosine similarities, so
// only matches above the configured floor surface.
func (e *Engine) runVector(ctx context.Context, userID, query string, limit int) ([]graph.SearchResult, error) {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, ok := e.cache.Get(userID)
	if !ok {
		docs, err = e.loadUserVectors(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	results := []graph.SearchResult{}
	for id, doc := range docs {
		sim := adapter.CosineSimilarity(queryVec, doc.Vector)
		if sim < e.cfg.SimilarityFloor {
			continue
		}
		results = append(results, graph.SearchResult{
			ID:         id,
			Snippet:    snippet(doc.Content),
			Score:      sim,
			SourceType: "note",
			Metadata:   map[string]interface{}{"similarity": sim},
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// loadUserVectors fills the cache slot for one user from their recent notes
func (e *Engine) loadUserVectors(ctx context.Context, userID string) (map[string]adapter.DocVector, error) {
	notes, err := e.store.NotesForUser(ctx, userID, corpusLimit)
	if err != nil {
		return nil, err
	}

	docs := make(map[string]adapter.DocVector, len(notes))
	if len(notes) == 0 {
		e.cache.Put(userID, docs)
		return docs, nil
	}

	texts := make([]string, len(notes))
	for i, n := range notes {
		texts[i] = n.Content
	}

	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	for i, n := range notes {
		docs[n.ID] = adapter.DocVector{Vector: vecs[i], Content: n.Content}
	}
	e.cache.Put(userID, docs)

	e.logger.Debug("Built vector cache slot",
		zap.String("user_id", userID),
		zap.Int("docs", len(docs)),
	)
	return docs, nil
}

// SyncEmbeddings rebuilds missing cache slots for active users so the
// request path rarely has to embed a whole corpus. The scheduler runs this;
// slots invalidated by note writes get refilled here.
func (e *Engine) SyncEmbeddings(ctx context.Context) error {
	users, err := e.store.ActiveUserIDs(ctx, corpusLimit)
	if err != nil {
		return err
	}

	synced, failed := 0, 0
	for _, userID := range users {
		if _, ok := e.cache.Get(userID); ok {
			continue
		}
		if _, err := e.loadUserVectors(ctx, userID); err != nil {
			failed++
			e.logger.Warn("Embedding sync failed for user",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		synced++
	}

	e.logger.Info("Embedding sync complete",
		zap.Int("users", len(users)),
		zap.Int("synced", synced),
		zap.Int("failed", failed),
	)

	if failed > 0 && synced == 0 {
		return fmt.Errorf("embedding sync failed for all %d stale users", failed)
	}
	return nil
}
