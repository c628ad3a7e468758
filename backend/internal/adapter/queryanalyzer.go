package adapter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/pkg/logger"
)

// QueryAnalysis is the strategy recommendation for one search. Dates are
// RFC3339 strings or empty; the retrieval engine parses and validates them.
type QueryAnalysis struct {
	RefinedQuery string `json:"refined_query"`
	Strategy     string `json:"strategy"`
	Category     string `json:"category"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Explanation  string `json:"explanation"`
}

// QueryAnalyzer asks the LLM how a search should be executed. Every method
// degrades to a usable default when the model is unreachable; a search must
// never fail because planning did.
type QueryAnalyzer struct {
	llm    *LLMAdapter
	logger *zap.Logger
}

// NewQueryAnalyzer creates a new query analyzer
func NewQueryAnalyzer(llm *LLMAdapter) *QueryAnalyzer {
	return &QueryAnalyzer{
		llm:    llm,
		logger: logger.Named("query_analyzer"),
	}
}

const analyzeSystemPrompt = `You are a search planner for a personal knowledge graph.

Available strategies:
- lexical: keyword match over note and event text
- vector: semantic similarity search
- graph: relation traversal from entities found in the query
- hybrid: all of the above combined

Pick the strategy that fits the query, refine the query text, and suggest
filters when the query implies them (a category, a date range in RFC3339).

Respond with JSON only:
{"refined_query": "...", "strategy": "lexical|vector|graph|hybrid",
 "category": "", "start_date": "", "end_date": "", "explanation": "..."}`

// Analyze recommends a strategy and filters for the query. On any failure it
// falls back to a hybrid search of the original query.
func (q *QueryAnalyzer) Analyze(ctx context.Context, query string) *QueryAnalysis {
	fallback := &QueryAnalysis{
		RefinedQuery: query,
		Strategy:     "hybrid",
		Explanation:  "analysis unavailable, using default strategy",
	}

	reply, err := q.llm.CompleteJSON(ctx, analyzeSystemPrompt, "Search query: "+query)
	if err != nil {
		q.logger.Warn("Query analysis failed, falling back to hybrid", zap.Error(err))
		return fallback
	}

	var analysis QueryAnalysis
	if err := unmarshalObject(reply, &analysis); err != nil {
		q.logger.Warn("Query analysis reply unparseable, falling back to hybrid", zap.Error(err))
		return fallback
	}

	if strings.TrimSpace(analysis.RefinedQuery) == "" {
		analysis.RefinedQuery = query
	}

	q.logger.Debug("Analyzed query",
		zap.String("refined", analysis.RefinedQuery),
		zap.String("strategy", analysis.Strategy),
	)

	return &analysis
}

// ExtractQueryEntities pulls entity names out of the query text, one per
// line. Failures yield an empty list.
func (q *QueryAnalyzer) ExtractQueryEntities(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(`Extract the key entities (people, places, events, concepts) from this search query, one per line:
%s

Output only the entity list, nothing else.`, query)

	reply, err := q.llm.Complete(ctx, "You extract entity names from search queries.", prompt)
	if err != nil {
		q.logger.Warn("Query entity extraction failed", zap.Error(err))
		return []string{}
	}

	entities := []string{}
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-* "))
		if line != "" {
			entities = append(entities, line)
		}
	}

	return entities
}

// SummarizeResults produces a one-sentence summary of the top results. A
// failed call degrades to a plain result count.
func (q *QueryAnalyzer) SummarizeResults(ctx context.Context, query string, snippets []string) string {
	if len(snippets) == 0 {
		return "No matching entries found"
	}

	top := snippets
	if len(top) > 5 {
		top = top[:5]
	}
	var b strings.Builder
	for _, s := range top {
		if len(s) > 150 {
			s = s[:150] + "..."
		}
		fmt.Fprintf(&b, "- %s\n", s)
	}

	prompt := fmt.Sprintf(`Summarize these search results in one short sentence (at most 50 words):
Query: %s

Results:
%s
Output only the summary, nothing else.`, query, b.String())

	reply, err := q.llm.Complete(ctx, "You summarize search results.", prompt)
	if err != nil {
		q.logger.Warn("Result summarization failed", zap.Error(err))
		return fmt.Sprintf("Found %d matching entries", len(snippets))
	}

	return strings.TrimSpace(reply)
}
