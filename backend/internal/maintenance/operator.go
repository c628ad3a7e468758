package maintenance

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"notegraph/backend/internal/graph"
	"notegraph/backend/pkg/config"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

const defaultDuplicateLimit = 20

// Store is the slice of the graph repository the operator works against
type Store interface {
	FindDuplicateEntities(ctx context.Context, limit int) ([]graph.DuplicatePair, error)
	MergeEntities(ctx context.Context, survivorID, removeID string) (int64, error)
	RemoveOrphans(ctx context.Context, variant graph.NodeVariant) (int64, error)
	TrimSessionMessages(ctx context.Context, sessionID string, keep int) (int64, error)
	TrimAllSessions(ctx context.Context, keep int) (int64, error)
	ConsolidateByTopic(ctx context.Context, userID, keyword, summaryText string) (string, int64, error)
	Stats(ctx context.Context) (*graph.GraphStats, error)
}

// Operator runs the destructive housekeeping operations. None of them are
// retried; a failed run surfaces the error and the next scheduled pass picks
// the work up again.
type Operator struct {
	store  Store
	cfg    *config.Config
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*entityLock

	statsMu   sync.RWMutex
	lastStats *graph.GraphStats
}

// NewOperator creates a maintenance operator
func NewOperator(store Store, cfg *config.Config) *Operator {
	return &Operator{
		store:  store,
		cfg:    cfg,
		logger: logger.Named("maintenance"),
		locks:  make(map[string]*entityLock),
	}
}

// DetectDuplicates lists candidate entity pairs without mutating anything
func (o *Operator) DetectDuplicates(ctx context.Context, limit int) ([]graph.DuplicatePair, error) {
	if limit <= 0 {
		limit = defaultDuplicateLimit
	}
	pairs, err := o.store.FindDuplicateEntities(ctx, limit)
	if err != nil {
		return nil, err
	}
	o.logger.Info("Duplicate detection complete", zap.Int("candidates", len(pairs)))
	return pairs, nil
}

// MergeEntities folds one entity of a duplicate pair into the other. The
// survivor must be one of the pair. Overlapping merges touching the same
// entities are serialized through per-entity locks taken in id order, so two
// concurrent merges cannot deadlock or race on the same node.
func (o *Operator) MergeEntities(ctx context.Context, aID, bID, survivorID string) (int64, error) {
	if aID == "" || bID == "" {
		return 0, apperrors.NewInvalidArgument("merge requires two entity ids")
	}
	if aID == bID {
		return 0, apperrors.NewInvalidArgument("merge pair must name two distinct entities")
	}
	if survivorID != aID && survivorID != bID {
		return 0, apperrors.NewInvalidMergeSurvivor(survivorID)
	}

	removeID := aID
	if survivorID == aID {
		removeID = bID
	}

	first, second := aID, bID
	if second < first {
		first, second = second, first
	}
	firstLock := o.lockEntity(first)
	defer o.unlockEntity(first, firstLock)
	secondLock := o.lockEntity(second)
	defer o.unlockEntity(second, secondLock)

	moved, err := o.store.MergeEntities(ctx, survivorID, removeID)
	if err != nil {
		return 0, err
	}

	o.logger.Info("Merged duplicate entities",
		zap.String("survivor_id", survivorID),
		zap.String("removed_id", removeID),
		zap.Int64("edges_moved", moved),
	)
	return moved, nil
}

// RemoveOrphans deletes nodes with no incident edges. An empty variant sweeps
// every label; user nodes are always left alone.
func (o *Operator) RemoveOrphans(ctx context.Context, variant graph.NodeVariant) (int64, error) {
	removed, err := o.store.RemoveOrphans(ctx, variant)
	if err != nil {
		return 0, err
	}
	o.logger.Info("Orphan sweep complete",
		zap.String("variant", string(variant)),
		zap.Int64("removed", removed),
	)
	return removed, nil
}

// TrimSession hard-deletes all but the most recent messages of one session.
// keep <= 0 falls back to the configured keep-count.
func (o *Operator) TrimSession(ctx context.Context, sessionID string, keep int) (int64, error) {
	if sessionID == "" {
		return 0, apperrors.NewInvalidArgument("session id must not be empty")
	}
	if keep <= 0 {
		keep = o.cfg.SessionKeepRecent
	}
	deleted, err := o.store.TrimSessionMessages(ctx, sessionID, keep)
	if err != nil {
		return 0, err
	}
	o.logger.Info("Trimmed session",
		zap.String("session_id", sessionID),
		zap.Int("keep", keep),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

// TrimAllSessions applies the configured keep-count to every session. The
// cleanup job calls this.
func (o *Operator) TrimAllSessions(ctx context.Context) (int64, error) {
	deleted, err := o.store.TrimAllSessions(ctx, o.cfg.SessionKeepRecent)
	if err != nil {
		return 0, err
	}
	o.logger.Info("Trimmed all sessions",
		zap.Int("keep", o.cfg.SessionKeepRecent),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

// ConsolidateByTopic replaces a user's notes matching a keyword with a single
// summary note that inherits their entity and tag edges. No matches is a
// no-op.
func (o *Operator) ConsolidateByTopic(ctx context.Context, userID, keyword, summaryText string) (string, int64, error) {
	if userID == "" {
		return "", 0, apperrors.NewInvalidArgument("user id must not be empty")
	}
	if keyword == "" {
		return "", 0, apperrors.NewInvalidArgument("keyword must not be empty")
	}
	if summaryText == "" {
		return "", 0, apperrors.NewInvalidArgument("summary text must not be empty")
	}

	summaryID, consolidated, err := o.store.ConsolidateByTopic(ctx, userID, keyword, summaryText)
	if err != nil {
		return "", 0, err
	}
	if consolidated == 0 {
		o.logger.Info("Nothing to consolidate",
			zap.String("user_id", userID),
			zap.String("keyword", keyword),
		)
		return "", 0, nil
	}

	o.logger.Info("Consolidated notes",
		zap.String("user_id", userID),
		zap.String("keyword", keyword),
		zap.String("summary_id", summaryID),
		zap.Int64("consolidated", consolidated),
	)
	return summaryID, consolidated, nil
}

// Snapshot computes a fresh view of graph composition and caches it. The
// statistics job refreshes the cache on its daily tick.
func (o *Operator) Snapshot(ctx context.Context) (*graph.GraphStats, error) {
	stats, err := o.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	o.statsMu.Lock()
	o.lastStats = stats
	o.statsMu.Unlock()

	var nodes, relations int64
	for _, c := range stats.NodeCounts {
		nodes += c
	}
	for _, c := range stats.RelationCounts {
		relations += c
	}
	o.logger.Info("Graph snapshot",
		zap.Int64("nodes", nodes),
		zap.Int64("relations", relations),
		zap.Int64("orphans", stats.OrphanCount),
	)
	return stats, nil
}

// CachedSnapshot returns the last computed snapshot, if any. The stats
// endpoint serves this and only computes when nothing is cached yet.
func (o *Operator) CachedSnapshot() (*graph.GraphStats, bool) {
	o.statsMu.RLock()
	defer o.statsMu.RUnlock()
	if o.lastStats == nil {
		return nil, false
	}
	return o.lastStats, true
}

// entityLock is a reference-counted mutex. Entries leave the lock map once
// the last holder releases them, so the map stays bounded by the number of
// merges in flight.
type entityLock struct {
	mu   sync.Mutex
	refs int
}

func (o *Operator) lockEntity(id string) *entityLock {
	o.mu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &entityLock{}
		o.locks[id] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return l
}

func (o *Operator) unlockEntity(id string, l *entityLock) {
	l.mu.Unlock()

	o.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(o.locks, id)
	}
	o.mu.Unlock()
}
