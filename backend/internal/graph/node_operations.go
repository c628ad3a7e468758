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

// UpsertNode creates or finds a node of the given variant, merging on its
// natural key. Passing an empty key for an id-keyed variant creates a fresh
// node with a generated id; name-keyed variants require the name.
func (r *Repository) UpsertNode(ctx context.Context, variant NodeVariant, naturalKey string, attrs map[string]interface{}) (string, error) {
	keyProp, ok := naturalKeys[variant]
	if !ok {
		return "", apperrors.NewUnknownVariant(string(variant))
	}

	key := naturalKey
	if key == "" {
		if keyProp != "id" {
			return "", apperrors.NewInvalidArgument(fmt.Sprintf("%s upsert requires a name", variant))
		}
		key = uuid.New().String()
	}
	newID := key
	if keyProp != "id" {
		newID = uuid.New().String()
	}

	// The natural key, id and creation timestamp are managed here; attrs
	// must not override them.
	props := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if k == "id" || k == "created_at" || k == keyProp {
			continue
		}
		props[k] = v
	}

	query := fmt.Sprintf(`
		MERGE (n:%s {%s: $key})
		ON CREATE SET n.id = $newID, n.created_at = datetime($now)
		SET n += $props
		RETURN n.id as id
	`, variant, keyProp)

	var nodeID string
	err := r.runIdempotentWrite(ctx, "upsert node", func(ctx context.Context) error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		result, err := session.Run(ctx, query, map[string]interface{}{
			"key":   key,
			"newID": newID,
			"now":   time.Now().UTC().Format(time.RFC3339),
			"props": props,
		})
		if err != nil {
			return storeError("upsert node", err)
		}

		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return storeError("upsert node", err)
			}
			return fmt.Errorf("upsert node: no row returned")
		}
		nodeID = getStringFromRecord(result.Record(), "id")
		return nil
	})
	if err != nil {
		return "", err
	}

	r.logger.Debug("Upserted node",
		zap.String("variant", string(variant)),
		zap.String("node_id", nodeID),
	)
	return nodeID, nil
}

// GetNode fetches a node by id across all variants
func (r *Repository) GetNode(ctx context.Context, nodeID string) (*Node, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (n {id: $id})
		RETURN labels(n) as labels, properties(n) as props
		LIMIT 1
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": nodeID})
	if err != nil {
		return nil, storeError("get node", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, storeError("get node", err)
		}
		return nil, apperrors.NewNodeNotFound(nodeID)
	}

	return nodeFromRecord(result.Record()), nil
}

// DeleteNode detach-deletes a node together with all its incident edges.
// Destructive: never retried.
func (r *Repository) DeleteNode(ctx context.Context, nodeID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (n {id: $id})
		DETACH DELETE n
		RETURN count(n) as deleted
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": nodeID})
	if err != nil {
		return storeError("delete node", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return storeError("delete node", err)
		}
		return fmt.Errorf("delete node: no row returned")
	}
	if getInt64FromRecord(result.Record(), "deleted") == 0 {
		return apperrors.NewNodeNotFound(nodeID)
	}

	r.logger.Info("Deleted node", zap.String("node_id", nodeID))
	return nil
}

// nodeFromRecord builds a Node from labels/props columns
func nodeFromRecord(record *neo4j.Record) *Node {
	props := getMapFromRecord(record, "props")

	var variant NodeVariant
	for _, label := range getStringSliceFromRecord(record, "labels") {
		if ValidVariant(NodeVariant(label)) {
			variant = NodeVariant(label)
			break
		}
	}

	return &Node{
		ID:        getStringFromMap(props, "id", ""),
		Variant:   variant,
		Props:     props,
		CreatedAt: getTimeFromMap(props, "created_at"),
	}
}
