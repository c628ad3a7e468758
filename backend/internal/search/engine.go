package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/graph"
	"notegraph/backend/pkg/config"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// Strategies the engine can run. Auto defers the choice to the planner.
const (
	StrategyAuto    = "auto"
	StrategyLexical = "lexical"
	StrategyVector  = "vector"
	StrategyGraph   = "graph"
	StrategyHybrid  = "hybrid"
)

const (
	lexicalScore     = 0.8
	graphScore       = 0.7
	snippetRuneLimit = 200
	corpusLimit      = 100
	maxLimit         = 50
)

// Store is the slice of the graph repository the engine reads from
type Store interface {
	LexicalSearch(ctx context.Context, userID, query string, filters graph.SearchFilters, limit int) ([]graph.TextHit, error)
	EntityMentionSearch(ctx context.Context, userID string, entities []string, limit int) ([]graph.TextHit, error)
	NotesForUser(ctx context.Context, userID string, limit int) ([]graph.Note, error)
	ActiveUserIDs(ctx context.Context, limit int) ([]string, error)
}

// Planner decides how a query should be executed and narrates the outcome
type Planner interface {
	Analyze(ctx context.Context, query string) *adapter.QueryAnalysis
	ExtractQueryEntities(ctx context.Context, query string) []string
	SummarizeResults(ctx context.Context, query string, snippets []string) string
}

// Request carries one search invocation
type Request struct {
	UserID      string
	Query       string
	Strategy    string
	Category    string
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
	WithSummary bool
}

// StrategyOutcome reports how one strategy fared during the fan-out
type StrategyOutcome struct {
	Strategy string `json:"strategy"`
	Hits     int    `json:"hits"`
	Error    string `json:"error,omitempty"`
}

// Response is a fused result set together with its execution report
type Response struct {
	Results    []graph.SearchResult `json:"results"`
	TotalCount int                  `json:"total_count"`
	Summary    string               `json:"summary,omitempty"`
	Strategy   string               `json:"strategy"`
	Outcomes   []StrategyOutcome    `json:"outcomes"`
}

// Engine fans a query out over the retrieval strategies and fuses what comes
// back. One failing strategy degrades the result set instead of failing the
// search; only when every strategy fails does the caller see an error.
type Engine struct {
	store    Store
	embedder adapter.Embedder
	cache    *adapter.VectorCache
	planner  Planner
	history  *History
	cfg      *config.Config
	logger   *zap.Logger
}

// NewEngine creates a new retrieval engine
func NewEngine(store Store, embedder adapter.Embedder, cache *adapter.VectorCache, planner Planner, cfg *config.Config) *Engine {
	return &Engine{
		store:    store,
		embedder: embedder,
		cache:    cache,
		planner:  planner,
		history:  NewHistory(100),
		cfg:      cfg,
		logger:   logger.Named("search"),
	}
}

// History exposes the per-user query history for the suggestions endpoint
func (e *Engine) History() *History {
	return e.history
}

// Search executes one query
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apperrors.NewInvalidArgument("query must not be empty")
	}
	if req.UserID == "" {
		return nil, apperrors.NewInvalidArgument("user id must not be empty")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.SearchLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	filters := graph.SearchFilters{
		Category:  req.Category,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	// The planner only runs in auto mode. An explicitly requested strategy
	// is taken at face value, and an unknown one is the caller's mistake.
	strategy := strings.ToLower(strings.TrimSpace(req.Strategy))
	execQuery := query
	switch {
	case strategy == "" || strategy == StrategyAuto:
		analysis := e.planner.Analyze(ctx, query)
		strategy = normalizeStrategy(analysis.Strategy)
		if refined := strings.TrimSpace(analysis.RefinedQuery); refined != "" {
			execQuery = refined
		}
		mergeSuggestedFilters(&filters, analysis)
	case validStrategy(strategy):
	default:
		return nil, apperrors.NewInvalidArgument(fmt.Sprintf("unknown search strategy: %s", req.Strategy))
	}

	runs := strategyRuns(strategy)
	batches := make([][]graph.SearchResult, len(runs))
	outcomes := make([]StrategyOutcome, len(runs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(runs))
	var mu sync.Mutex

	for i, name := range runs {
		idx, runName := i, name
		g.Go(func() error {
			hits, err := e.runStrategy(gctx, runName, req.UserID, execQuery, filters, limit)
			mu.Lock()
			defer mu.Unlock()
			outcomes[idx] = StrategyOutcome{Strategy: runName, Hits: len(hits)}
			if err != nil {
				outcomes[idx].Error = err.Error()
				e.logger.Warn("Search strategy failed",
					zap.String("strategy", runName),
					zap.Error(err),
				)
				// A failed strategy must not cancel its siblings
				return nil
			}
			batches[idx] = hits
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	if failed == len(runs) {
		return nil, fmt.Errorf("all search strategies failed: %s", outcomes[0].Error)
	}

	results, total := fuse(batches, limit)

	var summary string
	if req.WithSummary && len(results) > 0 {
		snippets := make([]string, 0, len(results))
		for _, r := range results {
			snippets = append(snippets, r.Snippet)
		}
		summary = e.planner.SummarizeResults(ctx, query, snippets)
	}

	e.history.Record(req.UserID, query)

	e.logger.Info("Search complete",
		zap.String("user_id", req.UserID),
		zap.String("strategy", strategy),
		zap.Int("results", len(results)),
		zap.Int("failed_strategies", failed),
	)

	return &Response{
		Results:    results,
		TotalCount: total,
		Summary:    summary,
		Strategy:   strategy,
		Outcomes:   outcomes,
	}, nil
}

func (e *Engine) runStrategy(ctx context.Context, name, userID, query string, filters graph.SearchFilters, limit int) ([]graph.SearchResult, error) {
	switch name {
	case StrategyLexical:
		return e.runLexical(ctx, userID, query, filters, limit)
	case StrategyVector:
		return e.runVector(ctx, userID, query, limit)
	case StrategyGraph:
		return e.runGraph(ctx, userID, query, limit)
	}
	return nil, fmt.Errorf("unknown strategy %s", name)
}

func strategyRuns(strategy string) []string {
	if strategy == StrategyHybrid {
		return []string{StrategyLexical, StrategyVector, StrategyGraph}
	}
	return []string{strategy}
}

func validStrategy(s string) bool {
	switch s {
	case StrategyLexical, StrategyVector, StrategyGraph, StrategyHybrid:
		return true
	}
	return false
}

// normalizeStrategy maps planner output onto a runnable strategy, falling
// back to hybrid when the model invented something
func normalizeStrategy(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if validStrategy(s) {
		return s
	}
	return StrategyHybrid
}

// mergeSuggestedFilters applies planner filter suggestions where the caller
// left the field empty. Explicit request filters always win.
func mergeSuggestedFilters(filters *graph.SearchFilters, analysis *adapter.QueryAnalysis) {
	if filters.Category == "" && analysis.Category != "" {
		filters.Category = analysis.Category
	}
	if filters.StartDate == nil && analysis.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, analysis.StartDate); err == nil {
			filters.StartDate = &t
		}
	}
	if filters.EndDate == nil && analysis.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, analysis.EndDate); err == nil {
			filters.EndDate = &t
		}
	}
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRuneLimit {
		return text
	}
	return string(runes[:snippetRuneLimit]) + "..."
}

func textHitsToResults(hits []graph.TextHit, score float64) []graph.SearchResult {
	results := make([]graph.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, graph.SearchResult{
			ID:         h.ID,
			Snippet:    snippet(h.Text),
			Score:      score,
			SourceType: h.Kind,
			Metadata:   map[string]interface{}{"created_at": h.CreatedAt},
		})
	}
	return results
}
