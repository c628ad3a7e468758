package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "notegraph/backend/pkg/errors"
)

// FindDuplicateEntities reports pairs of entities whose names are identical
// ignoring case, or where one name contains the other. Pairs are ordered by
// name so each duplicate shows up once.
func (r *Repository) FindDuplicateEntities(ctx context.Context, limit int) ([]DuplicatePair, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e1:Entity), (e2:Entity)
		WHERE e1.name < e2.name
		  AND (toLower(e1.name) = toLower(e2.name)
		   OR toLower(e1.name) CONTAINS toLower(e2.name)
		   OR toLower(e2.name) CONTAINS toLower(e1.name))
		RETURN e1.id as a_id, e1.name as a_name, e2.id as b_id, e2.name as b_name,
		       toLower(e1.name) = toLower(e2.name) as exact
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, storeError("find duplicates", err)
	}

	pairs := []DuplicatePair{}
	for result.Next(ctx) {
		record := result.Record()
		pairs = append(pairs, DuplicatePair{
			AID:   getStringFromRecord(record, "a_id"),
			AName: getStringFromRecord(record, "a_name"),
			BID:   getStringFromRecord(record, "b_id"),
			BName: getStringFromRecord(record, "b_name"),
			Exact: getBoolFromRecord(record, "exact"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, storeError("find duplicates", err)
	}

	return pairs, nil
}

// MergeEntities re-points incoming MENTIONS edges from the removed entity to
// the surviving one, then drops the removed entity with whatever edges it has
// left. A moved edge keeps its properties; where the survivor already holds a
// MENTIONS edge from the same source, the higher weight wins. Returns the
// number of re-pointed edges. Runs in a single transaction and is never
// retried.
func (r *Repository) MergeEntities(ctx context.Context, survivorID, removeID string) (int64, error) {
	if survivorID == removeID {
		return 0, apperrors.NewInvalidArgument("survivor and removed entity must differ")
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return 0, storeError("merge entities", err)
	}
	defer tx.Close(ctx)

	params := map[string]interface{}{
		"keepID":   survivorID,
		"removeID": removeID,
	}

	check, err := tx.Run(ctx, `
		OPTIONAL MATCH (keep:Entity {id: $keepID})
		OPTIONAL MATCH (remove:Entity {id: $removeID})
		RETURN keep.id as keep_id, remove.id as remove_id
	`, params)
	if err != nil {
		return 0, storeError("merge entities", err)
	}
	record, err := check.Single(ctx)
	if err != nil {
		return 0, storeError("merge entities", err)
	}
	if getStringFromRecord(record, "keep_id") == "" {
		return 0, apperrors.NewNodeNotFound(survivorID)
	}
	if getStringFromRecord(record, "remove_id") == "" {
		return 0, apperrors.NewNodeNotFound(removeID)
	}

	moved, err := tx.Run(ctx, `
		MATCH (n)-[m:MENTIONS]->(remove:Entity {id: $removeID})
		MATCH (keep:Entity {id: $keepID})
		MERGE (n)-[r:MENTIONS]->(keep)
		ON CREATE SET r = properties(m)
		ON MATCH SET r.weight = CASE
			WHEN r.weight IS NULL OR m.weight > r.weight THEN m.weight
			ELSE r.weight END
		DELETE m
		RETURN count(m) as moved
	`, params)
	if err != nil {
		return 0, storeError("merge entities", err)
	}
	movedRecord, err := moved.Single(ctx)
	if err != nil {
		return 0, storeError("merge entities", err)
	}
	movedCount := getInt64FromRecord(movedRecord, "moved")

	if _, err := tx.Run(ctx, `
		MATCH (remove:Entity {id: $removeID})
		DETACH DELETE remove
	`, params); err != nil {
		return 0, storeError("merge entities", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeError("merge entities", err)
	}

	r.logger.Info("Merged duplicate entities",
		zap.String("survivor", survivorID),
		zap.String("removed", removeID),
		zap.Int64("repointed", movedCount))

	return movedCount, nil
}

// RemoveOrphans deletes nodes with no relationships at all. User nodes are
// exempt; pass a variant to restrict the sweep to one label. Never retried.
func (r *Repository) RemoveOrphans(ctx context.Context, variant NodeVariant) (int64, error) {
	var query string
	if variant == "" {
		query = `
			MATCH (n)
			WHERE NOT (n)--() AND NOT n:User
			DELETE n
			RETURN count(n) as removed
		`
	} else {
		if !ValidVariant(variant) {
			return 0, apperrors.NewUnknownVariant(string(variant))
		}
		if variant == VariantUser {
			return 0, apperrors.NewInvalidArgument("user nodes are exempt from orphan removal")
		}
		query = fmt.Sprintf(`
			MATCH (n:%s)
			WHERE NOT (n)--()
			DELETE n
			RETURN count(n) as removed
		`, variant)
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]interface{}{})
	if err != nil {
		return 0, storeError("remove orphans", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, storeError("remove orphans", err)
	}

	removed := getInt64FromRecord(record, "removed")
	r.logger.Info("Removed orphan nodes",
		zap.String("variant", string(variant)),
		zap.Int64("removed", removed))

	return removed, nil
}

// CountOrphans counts relationship-less nodes without deleting them.
func (r *Repository) CountOrphans(ctx context.Context) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n)
		WHERE NOT (n)--() AND NOT n:User
		RETURN count(n) as orphans
	`, map[string]interface{}{})
	if err != nil {
		return 0, storeError("count orphans", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, storeError("count orphans", err)
	}

	return getInt64FromRecord(record, "orphans"), nil
}

// ConsolidateByTopic replaces a user's notes matching a keyword with a single
// summary note, carrying the originals' entity mentions and tags over to it.
// Returns the summary note's id and how many notes were folded in. A no-op
// when nothing matches.
func (r *Repository) ConsolidateByTopic(ctx context.Context, userID, keyword, summaryText string) (string, int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return "", 0, storeError("consolidate notes", err)
	}
	defer tx.Close(ctx)

	collect, err := tx.Run(ctx, `
		MATCH (u:User {id: $userID})-[:CREATED]->(n:Note)
		WHERE toLower(n.content) CONTAINS toLower($keyword)
		RETURN collect(n.id) as ids
	`, map[string]interface{}{
		"userID":  userID,
		"keyword": keyword,
	})
	if err != nil {
		return "", 0, storeError("consolidate notes", err)
	}
	collected, err := collect.Single(ctx)
	if err != nil {
		return "", 0, storeError("consolidate notes", err)
	}
	ids := getStringSliceFromRecord(collected, "ids")
	if len(ids) == 0 {
		return "", 0, nil
	}

	summaryID := uuid.New().String()
	params := map[string]interface{}{
		"userID":    userID,
		"summaryID": summaryID,
		"summary":   summaryText,
		"ids":       ids,
		"now":       time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := tx.Run(ctx, `
		MATCH (u:User {id: $userID})
		CREATE (s:Note {id: $summaryID, content: $summary, type: 'summary', created_at: datetime($now)})
		MERGE (u)-[:CREATED]->(s)
	`, params); err != nil {
		return "", 0, storeError("consolidate notes", err)
	}

	if _, err := tx.Run(ctx, `
		MATCH (n:Note)-[:MENTIONS]->(e:Entity)
		WHERE n.id IN $ids
		MATCH (s:Note {id: $summaryID})
		MERGE (s)-[:MENTIONS]->(e)
	`, params); err != nil {
		return "", 0, storeError("consolidate notes", err)
	}

	if _, err := tx.Run(ctx, `
		MATCH (n:Note)-[:TAGGED_WITH]->(t:Tag)
		WHERE n.id IN $ids
		MATCH (s:Note {id: $summaryID})
		MERGE (s)-[:TAGGED_WITH]->(t)
	`, params); err != nil {
		return "", 0, storeError("consolidate notes", err)
	}

	dropped, err := tx.Run(ctx, `
		MATCH (n:Note)
		WHERE n.id IN $ids
		DETACH DELETE n
		RETURN count(n) as removed
	`, params)
	if err != nil {
		return "", 0, storeError("consolidate notes", err)
	}
	droppedRecord, err := dropped.Single(ctx)
	if err != nil {
		return "", 0, storeError("consolidate notes", err)
	}
	removed := getInt64FromRecord(droppedRecord, "removed")

	if err := tx.Commit(ctx); err != nil {
		return "", 0, storeError("consolidate notes", err)
	}

	r.logger.Info("Consolidated notes into summary",
		zap.String("user_id", userID),
		zap.String("keyword", keyword),
		zap.String("summary_id", summaryID),
		zap.Int64("folded", removed))

	return summaryID, removed, nil
}

// Stats returns node counts by label, relationship counts by type, and the
// current orphan count.
func (r *Repository) Stats(ctx context.Context) (*GraphStats, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	stats := &GraphStats{
		NodeCounts:     map[string]int64{},
		RelationCounts: map[string]int64{},
		GeneratedAt:    time.Now().UTC(),
	}

	nodes, err := session.Run(ctx, `
		MATCH (n)
		RETURN labels(n)[0] as label, count(n) as count
	`, map[string]interface{}{})
	if err != nil {
		return nil, storeError("graph stats", err)
	}
	for nodes.Next(ctx) {
		record := nodes.Record()
		stats.NodeCounts[getStringFromRecord(record, "label")] = getInt64FromRecord(record, "count")
	}
	if err := nodes.Err(); err != nil {
		return nil, storeError("graph stats", err)
	}

	rels, err := session.Run(ctx, `
		MATCH ()-[r]->()
		RETURN type(r) as type, count(r) as count
	`, map[string]interface{}{})
	if err != nil {
		return nil, storeError("graph stats", err)
	}
	for rels.Next(ctx) {
		record := rels.Record()
		stats.RelationCounts[getStringFromRecord(record, "type")] = getInt64FromRecord(record, "count")
	}
	if err := rels.Err(); err != nil {
		return nil, storeError("graph stats", err)
	}

	orphans, err := session.Run(ctx, `
		MATCH (n)
		WHERE NOT (n)--() AND NOT n:User
		RETURN count(n) as orphans
	`, map[string]interface{}{})
	if err != nil {
		return nil, storeError("graph stats", err)
	}
	orphanRecord, err := orphans.Single(ctx)
	if err != nil {
		return nil, storeError("graph stats", err)
	}
	stats.OrphanCount = getInt64FromRecord(orphanRecord, "orphans")

	return stats, nil
}
