package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// LexicalSearch finds notes and events whose text contains the query string,
// within the given filters. Scoring is the retrieval engine's concern; this
// returns raw hits.
func (r *Repository) LexicalSearch(ctx context.Context, userID, query string, filters SearchFilters, limit int) ([]TextHit, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	params := map[string]interface{}{
		"userID": userID,
		"query":  strings.ToLower(query),
		"limit":  limit,
	}

	noteConds := []string{"toLower(n.content) CONTAINS $query"}
	eventConds := []string{"(toLower(e.title) CONTAINS $query OR toLower(e.description) CONTAINS $query)"}

	if filters.Category != "" {
		noteConds = append(noteConds, "(n)-[:BELONGS_TO]->(:Category {name: $category})")
		eventConds = append(eventConds, "(e)-[:BELONGS_TO]->(:Category {name: $category})")
		params["category"] = filters.Category
	}
	if filters.StartDate != nil {
		noteConds = append(noteConds, "n.created_at >= datetime($startDate)")
		eventConds = append(eventConds, "e.created_at >= datetime($startDate)")
		params["startDate"] = filters.StartDate.UTC().Format(time.RFC3339)
	}
	if filters.EndDate != nil {
		noteConds = append(noteConds, "n.created_at <= datetime($endDate)")
		eventConds = append(eventConds, "e.created_at <= datetime($endDate)")
		params["endDate"] = filters.EndDate.UTC().Format(time.RFC3339)
	}

	noteQuery := fmt.Sprintf(`
		MATCH (u:User {id: $userID})-[:CREATED]->(n:Note)
		WHERE %s
		RETURN n.id as id, n.content as text, 'note' as kind, n.created_at as created_at
		ORDER BY n.created_at DESC
		LIMIT $limit
	`, strings.Join(noteConds, " AND "))

	eventQuery := fmt.Sprintf(`
		MATCH (u:User {id: $userID})-[:CREATED]->(e:Event)
		WHERE %s
		RETURN e.id as id, e.title + ' ' + coalesce(e.description, '') as text, 'event' as kind, e.created_at as created_at
		ORDER BY e.created_at DESC
		LIMIT $limit
	`, strings.Join(eventConds, " AND "))

	hits := []TextHit{}
	for _, q := range []string{noteQuery, eventQuery} {
		result, err := session.Run(ctx, q, params)
		if err != nil {
			return nil, storeError("lexical search", err)
		}
		for result.Next(ctx) {
			hits = append(hits, textHitFromRecord(result.Record()))
		}
		if err := result.Err(); err != nil {
			return nil, storeError("lexical search", err)
		}
	}

	return hits, nil
}

// EntityMentionSearch finds notes and events mentioning or titled with any of
// the given entity names, either through a MENTIONS edge or literal text.
func (r *Repository) EntityMentionSearch(ctx context.Context, userID string, entities []string, limit int) ([]TextHit, error) {
	if len(entities) == 0 {
		return []TextHit{}, nil
	}

	lowered := make([]string, 0, len(entities))
	for _, name := range entities {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			lowered = append(lowered, strings.ToLower(trimmed))
		}
	}
	if len(lowered) == 0 {
		return []TextHit{}, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	params := map[string]interface{}{
		"userID":   userID,
		"entities": lowered,
		"limit":    limit,
	}

	noteQuery := `
		MATCH (u:User {id: $userID})-[:CREATED]->(n:Note)
		WHERE any(name IN $entities WHERE toLower(n.content) CONTAINS name)
		   OR EXISTS {
			MATCH (n)-[:MENTIONS]->(ent:Entity)
			WHERE toLower(ent.name) IN $entities
		   }
		RETURN DISTINCT n.id as id, n.content as text, 'note' as kind, n.created_at as created_at
		LIMIT $limit
	`

	eventQuery := `
		MATCH (u:User {id: $userID})-[:CREATED]->(e:Event)
		WHERE any(name IN $entities WHERE toLower(e.title) CONTAINS name
		   OR toLower(e.description) CONTAINS name)
		RETURN DISTINCT e.id as id, e.title + ' ' + coalesce(e.description, '') as text, 'event' as kind, e.created_at as created_at
		LIMIT $limit
	`

	hits := []TextHit{}
	for _, q := range []string{noteQuery, eventQuery} {
		result, err := session.Run(ctx, q, params)
		if err != nil {
			return nil, storeError("entity mention search", err)
		}
		for result.Next(ctx) {
			hits = append(hits, textHitFromRecord(result.Record()))
		}
		if err := result.Err(); err != nil {
			return nil, storeError("entity mention search", err)
		}
	}

	return hits, nil
}

// NotesForUser returns the user's most recent notes, newest first. The
// retrieval engine uses this to build the document side of the vector cache.
func (r *Repository) NotesForUser(ctx context.Context, userID string, limit int) ([]Note, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:CREATED]->(n:Note)
		OPTIONAL MATCH (n)-[:BELONGS_TO]->(c:Category)
		RETURN n.id as id, n.content as content, c.name as category, n.created_at as created_at
		ORDER BY n.created_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
		"limit":  limit,
	})
	if err != nil {
		return nil, storeError("notes for user", err)
	}

	notes := []Note{}
	for result.Next(ctx) {
		record := result.Record()
		notes = append(notes, Note{
			ID:        getStringFromRecord(record, "id"),
			Content:   getStringFromRecord(record, "content"),
			Category:  getStringFromRecord(record, "category"),
			CreatedAt: getTimeFromRecord(record, "created_at"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, storeError("notes for user", err)
	}

	return notes, nil
}

// ActiveUserIDs returns ids of users who have created at least one note
func (r *Repository) ActiveUserIDs(ctx context.Context, limit int) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User)-[:CREATED]->(:Note)
		RETURN DISTINCT u.id as id
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, storeError("active users", err)
	}

	ids := []string{}
	for result.Next(ctx) {
		ids = append(ids, getStringFromRecord(result.Record(), "id"))
	}
	if err := result.Err(); err != nil {
		return nil, storeError("active users", err)
	}

	return ids, nil
}

func textHitFromRecord(record *neo4j.Record) TextHit {
	return TextHit{
		ID:        getStringFromRecord(record, "id"),
		Text:      getStringFromRecord(record, "text"),
		Kind:      getStringFromRecord(record, "kind"),
		CreatedAt: getTimeFromRecord(record, "created_at"),
	}
}
