package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// Repository handles all Neo4j database operations. It is the sole owner of
// mutation access to nodes and edges; every other component issues its reads
// and writes through these methods instead of talking to the store directly.
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Named("graph"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// storeError classifies a driver failure. Connectivity problems become
// retryable upstream errors; everything else is wrapped as-is.
func storeError(operation string, err error) error {
	if neo4j.IsConnectivityError(err) {
		return apperrors.NewStoreUnavailable(operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// runIdempotentWrite executes an idempotent write, retrying exactly once when
// the store is transiently unreachable. Destructive operations (delete,
// merge) must not go through here: a second attempt after a partial failure
// risks double-deletion, so those surface their error for manual retry.
func (r *Repository) runIdempotentWrite(ctx context.Context, operation string, work func(ctx context.Context) error) error {
	err := work(ctx)
	if err == nil || !apperrors.IsRetryable(err) {
		return err
	}
	r.logger.Warn("Retrying write after transient store failure",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return work(ctx)
}
