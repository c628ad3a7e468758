package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// DecayWeights multiplies the weight of every automated weighted edge by the
// given factor. Edges without a weight attribute and user-asserted edges are
// untouched. The read-modify-write happens inside a single statement, so
// overlapping runs cannot lose updates.
func (r *Repository) DecayWeights(ctx context.Context, factor float64) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH ()-[r]->()
		WHERE r.auto_generated = true AND r.weight IS NOT NULL
		SET r.weight = r.weight * $factor
		RETURN count(r) as updated
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"factor": factor})
	if err != nil {
		return 0, storeError("decay weights", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return 0, storeError("decay weights", err)
		}
		return 0, fmt.Errorf("decay weights: no row returned")
	}
	updated := getInt64FromRecord(result.Record(), "updated")

	r.logger.Info("Decayed edge weights",
		zap.Int64("updated", updated),
		zap.Float64("factor", factor),
	)
	return updated, nil
}

// BoostRecentWeights adds increment to every automated weighted edge that
// touches a node created within the last windowDays days, clamping the result
// at cap. The directed match guarantees each edge is boosted once per run
// even when both endpoints are recent.
func (r *Repository) BoostRecentWeights(ctx context.Context, increment, cap float64, windowDays int) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (a)-[r]->(b)
		WHERE r.auto_generated = true AND r.weight IS NOT NULL
		  AND (a.created_at > datetime() - duration({days: $days})
		   OR b.created_at > datetime() - duration({days: $days}))
		SET r.weight = CASE
			WHEN r.weight + $increment > $cap THEN $cap
			ELSE r.weight + $increment
		END
		RETURN count(r) as updated
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"increment": increment,
		"cap":       cap,
		"days":      windowDays,
	})
	if err != nil {
		return 0, storeError("boost weights", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return 0, storeError("boost weights", err)
		}
		return 0, fmt.Errorf("boost weights: no row returned")
	}
	updated := getInt64FromRecord(result.Record(), "updated")

	r.logger.Info("Boosted recent edge weights",
		zap.Int64("updated", updated),
		zap.Float64("increment", increment),
		zap.Int("window_days", windowDays),
	)
	return updated, nil
}

// PruneLowWeights hard-deletes automated edges whose weight has fallen below
// threshold. User-asserted edges are never pruned regardless of weight.
// Destructive: never retried.
func (r *Repository) PruneLowWeights(ctx context.Context, threshold float64) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH ()-[r]->()
		WHERE r.auto_generated = true AND r.weight IS NOT NULL AND r.weight < $threshold
		DELETE r
		RETURN count(r) as deleted
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"threshold": threshold})
	if err != nil {
		return 0, storeError("prune weights", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return 0, storeError("prune weights", err)
		}
		return 0, fmt.Errorf("prune weights: no row returned")
	}
	deleted := getInt64FromRecord(result.Record(), "deleted")

	r.logger.Info("Pruned low-weight edges",
		zap.Int64("deleted", deleted),
		zap.Float64("threshold", threshold),
	)
	return deleted, nil
}
