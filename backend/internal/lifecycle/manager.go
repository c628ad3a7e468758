package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"notegraph/backend/pkg/config"
	"notegraph/backend/pkg/logger"
)

// Store is the slice of the graph repository the lifecycle needs
type Store interface {
	DecayWeights(ctx context.Context, factor float64) (int64, error)
	BoostRecentWeights(ctx context.Context, increment, cap float64, windowDays int) (int64, error)
	PruneLowWeights(ctx context.Context, threshold float64) (int64, error)
}

// Manager drives the weight lifecycle of auto-generated edges: periodic
// decay with a recency boost, and pruning of edges that decayed below the
// floor. Manual edges carry no weight and are never touched.
type Manager struct {
	store  Store
	cfg    *config.Config
	logger *zap.Logger
}

// NewManager creates a new lifecycle manager
func NewManager(store Store, cfg *config.Config) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger.Named("lifecycle"),
	}
}

// Decay multiplies every auto-generated weight by the configured factor
func (m *Manager) Decay(ctx context.Context) (int64, error) {
	return m.store.DecayWeights(ctx, m.cfg.DecayFactor)
}

// Boost raises weights on auto-generated edges with a recently created
// endpoint, clamped at the configured cap
func (m *Manager) Boost(ctx context.Context) (int64, error) {
	return m.store.BoostRecentWeights(ctx, m.cfg.BoostIncrement, m.cfg.WeightCap, m.cfg.BoostWindowDays)
}

// Prune drops auto-generated edges whose weight fell below the threshold
func (m *Manager) Prune(ctx context.Context) (int64, error) {
	return m.store.PruneLowWeights(ctx, m.cfg.PruneThreshold)
}

// RunDecayCycle is the hourly job body: decay everything, then boost what is
// attached to recent activity. Pruning runs on its own, slower schedule so a
// briefly idle graph is not stripped bare.
func (m *Manager) RunDecayCycle(ctx context.Context) error {
	decayed, err := m.Decay(ctx)
	if err != nil {
		return fmt.Errorf("decay: %w", err)
	}

	boosted, err := m.Boost(ctx)
	if err != nil {
		return fmt.Errorf("boost: %w", err)
	}

	m.logger.Info("Weight cycle complete",
		zap.Int64("decayed", decayed),
		zap.Int64("boosted", boosted),
	)
	return nil
}
