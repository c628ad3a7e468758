package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "notegraph/backend/pkg/errors"
)

// SampleNodes returns the newest nodes of one variant, used to assemble the
// working set for a global analysis pass.
func (r *Repository) SampleNodes(ctx context.Context, variant NodeVariant, limit int) ([]Node, error) {
	if !ValidVariant(variant) {
		return nil, apperrors.NewUnknownVariant(string(variant))
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (n:%s)
		RETURN labels(n) as labels, properties(n) as props
		ORDER BY n.created_at DESC
		LIMIT $limit
	`, variant)

	result, err := session.Run(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, storeError("sample nodes", err)
	}

	nodes := []Node{}
	for result.Next(ctx) {
		nodes = append(nodes, *nodeFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, storeError("sample nodes", err)
	}

	return nodes, nil
}

// GraphContext collects everything within two hops of a user, as compact
// display entries for prompt building. Other users are excluded.
func (r *Repository) GraphContext(ctx context.Context, userID string, limit int) ([]ContextEntry, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[*1..2]-(n)
		WHERE NOT n:User
		RETURN DISTINCT n.id as id, labels(n)[0] as label,
		       coalesce(n.name, n.title, left(n.content, 100), '') as display
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
		"limit":  limit,
	})
	if err != nil {
		return nil, storeError("graph context", err)
	}

	entries := []ContextEntry{}
	for result.Next(ctx) {
		record := result.Record()
		entries = append(entries, ContextEntry{
			ID:      getStringFromRecord(record, "id"),
			Variant: NodeVariant(getStringFromRecord(record, "label")),
			Display: getStringFromRecord(record, "display"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, storeError("graph context", err)
	}

	return entries, nil
}
