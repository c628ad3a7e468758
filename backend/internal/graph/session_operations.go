package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "notegraph/backend/pkg/errors"
)

// EnsureSession creates the user and session nodes if they do not exist yet
// and links them. Safe to call on every message.
func (r *Repository) EnsureSession(ctx context.Context, userID, sessionID string) error {
	query := `
		MERGE (u:User {id: $userID})
		ON CREATE SET u.created_at = datetime($now)
		MERGE (s:Session {id: $sessionID})
		ON CREATE SET s.created_at = datetime($now)
		MERGE (u)-[:CREATED]->(s)
	`

	return r.runIdempotentWrite(ctx, "ensure session", func(ctx context.Context) error {
		session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		_, err := session.Run(ctx, query, map[string]interface{}{
			"userID":    userID,
			"sessionID": sessionID,
			"now":       time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return storeError("ensure session", err)
		}
		return nil
	})
}

// AppendMessage records a message under an existing session and returns the
// message id. The session must already exist; appends are not retried since a
// replay would duplicate the message.
func (r *Repository) AppendMessage(ctx context.Context, sessionID, role, content string) (string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	msgID := uuid.New().String()

	query := `
		MATCH (s:Session {id: $sessionID})
		CREATE (m:Message {
			id: $msgID,
			role: $role,
			content: $content,
			timestamp: datetime($now)
		})
		MERGE (s)-[:HAS_MESSAGE]->(m)
		RETURN m.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"sessionID": sessionID,
		"msgID":     msgID,
		"role":      role,
		"content":   content,
		"now":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", storeError("append message", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", storeError("append message", err)
		}
		return "", apperrors.NewNodeNotFound(sessionID)
	}

	return msgID, nil
}

// SessionMessages returns the most recent messages of a session in
// chronological order.
func (r *Repository) SessionMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 20
	}

	query := `
		MATCH (s:Session {id: $sessionID})-[:HAS_MESSAGE]->(m:Message)
		RETURN m.id as id, m.role as role, m.content as content, m.timestamp as timestamp
		ORDER BY m.timestamp DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"sessionID": sessionID,
		"limit":     limit,
	})
	if err != nil {
		return nil, storeError("session messages", err)
	}

	var messages []Message
	for result.Next(ctx) {
		record := result.Record()
		messages = append(messages, Message{
			ID:        getStringFromRecord(record, "id"),
			Role:      getStringFromRecord(record, "role"),
			Content:   getStringFromRecord(record, "content"),
			Timestamp: getTimeFromRecord(record, "timestamp"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, storeError("session messages", err)
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// TrimSessionMessages drops all but the newest keep messages of one session.
// Returns the number of deleted messages. Destructive, never retried.
func (r *Repository) TrimSessionMessages(ctx context.Context, sessionID string, keep int) (int64, error) {
	if keep < 0 {
		return 0, apperrors.NewInvalidArgument("keep must not be negative")
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return 0, storeError("trim session", err)
	}
	defer tx.Close(ctx)

	params := map[string]interface{}{
		"sessionID": sessionID,
		"keep":      keep,
	}

	check, err := tx.Run(ctx, `
		OPTIONAL MATCH (s:Session {id: $sessionID})
		RETURN s.id as id
	`, params)
	if err != nil {
		return 0, storeError("trim session", err)
	}
	record, err := check.Single(ctx)
	if err != nil {
		return 0, storeError("trim session", err)
	}
	if getStringFromRecord(record, "id") == "" {
		return 0, apperrors.NewNodeNotFound(sessionID)
	}

	result, err := tx.Run(ctx, `
		MATCH (s:Session {id: $sessionID})-[:HAS_MESSAGE]->(m:Message)
		WITH m ORDER BY m.timestamp DESC
		SKIP $keep
		DETACH DELETE m
		RETURN count(m) as removed
	`, params)
	if err != nil {
		return 0, storeError("trim session", err)
	}
	trimmed, err := result.Single(ctx)
	if err != nil {
		return 0, storeError("trim session", err)
	}
	removed := getInt64FromRecord(trimmed, "removed")

	if err := tx.Commit(ctx); err != nil {
		return 0, storeError("trim session", err)
	}

	r.logger.Info("Trimmed session messages",
		zap.String("session_id", sessionID),
		zap.Int("keep", keep),
		zap.Int64("removed", removed))

	return removed, nil
}

// TrimAllSessions applies the same message cap to every session. Used by the
// nightly cleanup job.
func (r *Repository) TrimAllSessions(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, apperrors.NewInvalidArgument("keep must not be negative")
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (s:Session)-[:HAS_MESSAGE]->(m:Message)
		WITH s, m ORDER BY m.timestamp DESC
		WITH s, collect(m) as msgs
		UNWIND msgs[$keep..] as old
		DETACH DELETE old
		RETURN count(old) as removed
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"keep": keep})
	if err != nil {
		return 0, storeError("trim all sessions", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, storeError("trim all sessions", err)
	}

	removed := getInt64FromRecord(record, "removed")
	r.logger.Info("Trimmed stale session messages",
		zap.Int("keep", keep),
		zap.Int64("removed", removed))

	return removed, nil
}
