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

// UpsertEdge creates or merges the edge identified by (source, target, type).
// A repeated upsert keeps the higher weight and concatenates distinct reasons
// instead of duplicating the edge. The endpoint check and the merge run in
// one transaction so a concurrent node delete cannot slip between them.
func (r *Repository) UpsertEdge(ctx context.Context, input EdgeInput) (string, error) {
	if !ValidRelationType(input.Type) {
		return "", apperrors.NewInvalidRelationType(input.Type)
	}
	if input.SourceID == "" || input.TargetID == "" {
		return "", apperrors.NewInvalidArgument("edge endpoints must not be empty")
	}

	// The relation type is validated above; Cypher has no parameter position
	// for it, hence the interpolation.
	mergeQuery := fmt.Sprintf(`
		MATCH (a {id: $source})
		MATCH (b {id: $target})
		MERGE (a)-[r:%s]->(b)
		ON CREATE SET
			r.id = $edgeID,
			r.weight = $weight,
			r.confidence = $confidence,
			r.reason = $reason,
			r.auto_generated = $autoGenerated,
			r.created_at = datetime($now),
			r.updated_at = datetime($now)
		ON MATCH SET
			r.weight = CASE
				WHEN $weight IS NULL THEN r.weight
				WHEN r.weight IS NULL OR $weight > r.weight THEN $weight
				ELSE r.weight
			END,
			r.reason = CASE
				WHEN $reason = '' THEN r.reason
				WHEN r.reason IS NULL OR r.reason = '' THEN $reason
				WHEN r.reason CONTAINS $reason THEN r.reason
				ELSE r.reason + '; ' + $reason
			END,
			r.updated_at = datetime($now)
		RETURN r.id as id
	`, input.Type)

	var edgeID string
	err := r.runIdempotentWrite(ctx, "upsert edge", func(ctx context.Context) error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		tx, err := session.BeginTransaction(ctx)
		if err != nil {
			return storeError("upsert edge", err)
		}
		defer tx.Close(ctx)

		check, err := tx.Run(ctx, `
			OPTIONAL MATCH (a {id: $source})
			OPTIONAL MATCH (b {id: $target})
			RETURN a.id as source, b.id as target
		`, map[string]interface{}{
			"source": input.SourceID,
			"target": input.TargetID,
		})
		if err != nil {
			return storeError("upsert edge", err)
		}
		record, err := check.Single(ctx)
		if err != nil {
			return storeError("upsert edge", err)
		}
		if getStringFromRecord(record, "source") == "" {
			return apperrors.NewNodeNotFound(input.SourceID)
		}
		if getStringFromRecord(record, "target") == "" {
			return apperrors.NewNodeNotFound(input.TargetID)
		}

		result, err := tx.Run(ctx, mergeQuery, map[string]interface{}{
			"source":        input.SourceID,
			"target":        input.TargetID,
			"edgeID":        uuid.New().String(),
			"weight":        floatParam(input.Weight),
			"confidence":    floatParam(input.Confidence),
			"reason":        input.Reason,
			"autoGenerated": input.AutoGenerated,
			"now":           time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return storeError("upsert edge", err)
		}
		merged, err := result.Single(ctx)
		if err != nil {
			return storeError("upsert edge", err)
		}
		edgeID = getStringFromRecord(merged, "id")

		if err := tx.Commit(ctx); err != nil {
			return storeError("upsert edge", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.logger.Debug("Upserted edge",
		zap.String("edge_id", edgeID),
		zap.String("type", input.Type),
		zap.String("source", input.SourceID),
		zap.String("target", input.TargetID),
	)
	return edgeID, nil
}

// GetEdge fetches an edge by id
func (r *Repository) GetEdge(ctx context.Context, edgeID string) (*Edge, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (a)-[r {id: $id}]->(b)
		RETURN type(r) as rel_type, properties(r) as rel_props,
		       a.id as source_id, b.id as target_id
		LIMIT 1
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": edgeID})
	if err != nil {
		return nil, storeError("get edge", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, storeError("get edge", err)
		}
		return nil, apperrors.NewEdgeNotFound(edgeID)
	}

	edge := edgeFromRecord(result.Record())
	return &edge, nil
}

// DeleteEdge removes an edge by id. Destructive: never retried.
func (r *Repository) DeleteEdge(ctx context.Context, edgeID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH ()-[r {id: $id}]->()
		DELETE r
		RETURN count(r) as deleted
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": edgeID})
	if err != nil {
		return storeError("delete edge", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return storeError("delete edge", err)
		}
		return fmt.Errorf("delete edge: no row returned")
	}
	if getInt64FromRecord(result.Record(), "deleted") == 0 {
		return apperrors.NewEdgeNotFound(edgeID)
	}

	r.logger.Info("Deleted edge", zap.String("edge_id", edgeID))
	return nil
}

// QueryNeighbors returns the edges incident to a node together with the node
// on the far side, optionally restricted by direction and relation type.
func (r *Repository) QueryNeighbors(ctx context.Context, nodeID string, direction Direction, typeFilter string) ([]Neighbor, error) {
	if typeFilter != "" && !ValidRelationType(typeFilter) {
		return nil, apperrors.NewInvalidRelationType(typeFilter)
	}

	relPart := ""
	if typeFilter != "" {
		relPart = ":" + typeFilter
	}

	var pattern string
	switch direction {
	case DirectionOut:
		pattern = fmt.Sprintf("-[r%s]->", relPart)
	case DirectionIn:
		pattern = fmt.Sprintf("<-[r%s]-", relPart)
	case DirectionBoth, "":
		pattern = fmt.Sprintf("-[r%s]-", relPart)
	default:
		return nil, apperrors.NewInvalidArgument(fmt.Sprintf("unknown direction: %s", direction))
	}

	query := fmt.Sprintf(`
		MATCH (n {id: $id})
		OPTIONAL MATCH (n)%s(m)
		RETURN m.id as m_id, labels(m) as labels, properties(m) as props,
		       type(r) as rel_type, properties(r) as rel_props,
		       startNode(r).id as source_id, endNode(r).id as target_id
	`, pattern)

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]interface{}{"id": nodeID})
	if err != nil {
		return nil, storeError("query neighbors", err)
	}

	found := false
	neighbors := []Neighbor{}
	for result.Next(ctx) {
		found = true
		record := result.Record()
		// A row with a null relationship means the node exists but has no
		// matching edges.
		if getStringFromRecord(record, "rel_type") == "" {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Edge: edgeFromRecord(record),
			Node: *nodeFromRecord(record),
		})
	}
	if err := result.Err(); err != nil {
		return nil, storeError("query neighbors", err)
	}
	if !found {
		return nil, apperrors.NewNodeNotFound(nodeID)
	}

	return neighbors, nil
}

// RelatedNotes returns notes connected to the given note through weighted
// relation edges, strongest first.
func (r *Repository) RelatedNotes(ctx context.Context, noteID string, limit int) ([]RelatedNote, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (n:Note {id: $id})-[r:RELATED_TO|SIMILAR_TO|CAUSED_BY]-(m:Note)
		WHERE r.weight IS NOT NULL
		RETURN m.id as id, m.content as content, type(r) as rel_type, r.weight as weight
		ORDER BY r.weight DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":    noteID,
		"limit": limit,
	})
	if err != nil {
		return nil, storeError("related notes", err)
	}

	related := []RelatedNote{}
	for result.Next(ctx) {
		record := result.Record()
		related = append(related, RelatedNote{
			ID:           getStringFromRecord(record, "id"),
			Content:      getStringFromRecord(record, "content"),
			RelationType: getStringFromRecord(record, "rel_type"),
			Weight:       getFloat64FromRecord(record, "weight"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, storeError("related notes", err)
	}

	return related, nil
}

// floatParam converts an optional float into a driver parameter; nil keeps
// the property absent
func floatParam(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// edgeFromRecord builds an Edge from rel_type/rel_props/source_id/target_id
// columns
func edgeFromRecord(record *neo4j.Record) Edge {
	props := getMapFromRecord(record, "rel_props")
	return Edge{
		ID:            getStringFromMap(props, "id", ""),
		Type:          getStringFromRecord(record, "rel_type"),
		SourceID:      getStringFromRecord(record, "source_id"),
		TargetID:      getStringFromRecord(record, "target_id"),
		Weight:        getFloatPtrFromMap(props, "weight"),
		Confidence:    getFloatPtrFromMap(props, "confidence"),
		Reason:        getStringFromMap(props, "reason", ""),
		AutoGenerated: getBoolFromMap(props, "auto_generated", false),
		CreatedAt:     getTimeFromMap(props, "created_at"),
		UpdatedAt:     getTimeFromMap(props, "updated_at"),
	}
}
