package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/graph"
	"notegraph/backend/pkg/config"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

const (
	tagConfidence = 0.95
	contextLimit  = 100
	sampleLimit   = 100
	displayRunes  = 100
)

// sampleVariants are the node kinds offered to the global pass, in render order
var sampleVariants = []graph.NodeVariant{
	graph.VariantCategory,
	graph.VariantTag,
	graph.VariantEvent,
	graph.VariantNote,
}

// Store is the slice of the graph repository the orchestrator reads and
// writes through
type Store interface {
	UpsertNode(ctx context.Context, variant graph.NodeVariant, naturalKey string, attrs map[string]interface{}) (string, error)
	UpsertEdge(ctx context.Context, input graph.EdgeInput) (string, error)
	SampleNodes(ctx context.Context, variant graph.NodeVariant, limit int) ([]graph.Node, error)
	GraphContext(ctx context.Context, userID string, limit int) ([]graph.ContextEntry, error)
}

// Extractor is the model-backed capability that proposes graph candidates
type Extractor interface {
	Extract(ctx context.Context, content, graphContext string) (*adapter.ExtractionResult, error)
	SuggestRelations(ctx context.Context, corpus string) ([]adapter.SuggestedRelation, error)
}

// Report counts what one analysis pass wrote and what it threw away
type Report struct {
	Entities  int `json:"entities"`
	Tags      int `json:"tags"`
	Relations int `json:"relations"`
	Skipped   int `json:"skipped"`
}

// Orchestrator turns extractor output into ledger writes. Both of its modes
// only ever add; anything malformed or below the confidence gate is dropped
// before it reaches the graph.
type Orchestrator struct {
	store     Store
	extractor Extractor
	contexts  *ContextCache
	vectors   *adapter.VectorCache
	gate      float64
	logger    *zap.Logger
}

// NewOrchestrator creates an analysis orchestrator
func NewOrchestrator(store Store, extractor Extractor, contexts *ContextCache, vectors *adapter.VectorCache, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:     store,
		extractor: extractor,
		contexts:  contexts,
		vectors:   vectors,
		gate:      cfg.ConfidenceThreshold,
		logger:    logger.Named("analysis"),
	}
}

// AnalyzeIncremental analyzes one new note against the user's cached graph
// context. Extracted entities become Entity nodes with MENTIONS edges, tags
// become Tag nodes with TAGGED_WITH edges, relations link the note to
// existing nodes. The context snapshot and the user's vector cache slot are
// invalidated afterward.
func (o *Orchestrator) AnalyzeIncremental(ctx context.Context, userID, noteID, text string) (*Report, error) {
	snapshot, ok := o.contexts.Get(userID)
	if !ok {
		var err error
		snapshot, err = o.store.GraphContext(ctx, userID, contextLimit)
		if err != nil {
			return nil, fmt.Errorf("load graph context: %w", err)
		}
		o.contexts.Put(userID, snapshot)
	}

	result, err := o.extractor.Extract(ctx, text, renderContext(snapshot))
	if err != nil {
		return nil, err
	}

	report := &Report{}

	for _, entity := range result.Entities {
		name := cleanName(entity.Name)
		if name == "" {
			report.Skipped++
			continue
		}
		confidence := clampConfidence(entity.Confidence)
		if confidence < o.gate {
			report.Skipped++
			continue
		}

		entityID, err := o.store.UpsertNode(ctx, graph.VariantEntity, name, map[string]interface{}{
			"type": strings.TrimSpace(entity.Type),
		})
		if err != nil {
			if !candidateError(err) {
				return report, err
			}
			o.skip(report, "entity", name, err)
			continue
		}

		written, err := o.writeEdge(ctx, report, graph.EdgeInput{
			SourceID:      noteID,
			TargetID:      entityID,
			Type:          graph.RelMentions,
			Weight:        graph.Float(confidence),
			Confidence:    graph.Float(confidence),
			AutoGenerated: true,
		})
		if err != nil {
			return report, err
		}
		if written {
			report.Entities++
		}
	}

	for _, tag := range result.Tags {
		name := cleanName(strings.ToLower(tag))
		if name == "" {
			report.Skipped++
			continue
		}

		tagID, err := o.store.UpsertNode(ctx, graph.VariantTag, name, nil)
		if err != nil {
			if !candidateError(err) {
				return report, err
			}
			o.skip(report, "tag", name, err)
			continue
		}

		written, err := o.writeEdge(ctx, report, graph.EdgeInput{
			SourceID:      noteID,
			TargetID:      tagID,
			Type:          graph.RelTaggedWith,
			Weight:        graph.Float(tagConfidence),
			Confidence:    graph.Float(tagConfidence),
			AutoGenerated: true,
		})
		if err != nil {
			return report, err
		}
		if written {
			report.Tags++
		}
	}

	for _, rel := range result.Relations {
		relType, multiplier, ok := resolveRelation(rel.Type)
		if !ok {
			o.skip(report, "relation", rel.Type, fmt.Errorf("unknown relation type"))
			continue
		}
		confidence := clampConfidence(rel.Confidence)
		if confidence < o.gate || rel.TargetRef == "" {
			report.Skipped++
			continue
		}

		written, err := o.writeEdge(ctx, report, graph.EdgeInput{
			SourceID:      noteID,
			TargetID:      rel.TargetRef,
			Type:          relType,
			Weight:        graph.Float(initialWeight(confidence, multiplier)),
			Confidence:    graph.Float(confidence),
			Reason:        rel.Reason,
			AutoGenerated: true,
		})
		if err != nil {
			return report, err
		}
		if written {
			report.Relations++
		}
	}

	o.contexts.Invalidate(userID)
	o.vectors.Invalidate(userID)

	o.logger.Info("Incremental analysis complete",
		zap.String("user_id", userID),
		zap.String("note_id", noteID),
		zap.Int("entities", report.Entities),
		zap.Int("tags", report.Tags),
		zap.Int("relations", report.Relations),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// AnalyzeGlobal relates one new high-importance item to a bounded sample of
// the existing graph. Only edges between already-existing nodes are written.
func (o *Orchestrator) AnalyzeGlobal(ctx context.Context, userID, itemID, itemText string) (*Report, error) {
	var corpus strings.Builder
	fmt.Fprintf(&corpus, "New item %s:\n%s\n", itemID, truncateRunes(itemText, displayRunes*4))

	for _, variant := range sampleVariants {
		nodes, err := o.store.SampleNodes(ctx, variant, sampleLimit)
		if err != nil {
			return nil, fmt.Errorf("sample %s nodes: %w", strings.ToLower(string(variant)), err)
		}
		if len(nodes) == 0 {
			continue
		}
		fmt.Fprintf(&corpus, "\nExisting %s nodes:\n", strings.ToLower(string(variant)))
		for _, n := range nodes {
			fmt.Fprintf(&corpus, "- %s | %s\n", n.ID, nodeDisplay(n))
		}
	}

	suggestions, err := o.extractor.SuggestRelations(ctx, corpus.String())
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, s := range suggestions {
		relType, multiplier, ok := resolveRelation(s.Type)
		if !ok {
			o.skip(report, "relation", s.Type, fmt.Errorf("unknown relation type"))
			continue
		}
		confidence := clampConfidence(s.Confidence)
		if confidence < o.gate || s.SourceRef == "" || s.TargetRef == "" || s.SourceRef == s.TargetRef {
			report.Skipped++
			continue
		}

		written, err := o.writeEdge(ctx, report, graph.EdgeInput{
			SourceID:      s.SourceRef,
			TargetID:      s.TargetRef,
			Type:          relType,
			Weight:        graph.Float(initialWeight(confidence, multiplier)),
			Confidence:    graph.Float(confidence),
			Reason:        s.Reason,
			AutoGenerated: true,
		})
		if err != nil {
			return report, err
		}
		if written {
			report.Relations++
		}
	}

	o.contexts.Invalidate(userID)

	o.logger.Info("Global analysis complete",
		zap.String("user_id", userID),
		zap.String("item_id", itemID),
		zap.Int("relations", report.Relations),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// writeEdge upserts one candidate edge and reports whether it was written.
// Candidate-level failures (a vanished target, a rejected type) are skipped;
// store failures abort the pass.
func (o *Orchestrator) writeEdge(ctx context.Context, report *Report, input graph.EdgeInput) (bool, error) {
	if _, err := o.store.UpsertEdge(ctx, input); err != nil {
		if !candidateError(err) {
			return false, err
		}
		o.skip(report, "edge", input.TargetID, err)
		return false, nil
	}
	return true, nil
}

func (o *Orchestrator) skip(report *Report, kind, ref string, err error) {
	report.Skipped++
	o.logger.Warn("Dropped extraction candidate",
		zap.String("kind", kind),
		zap.String("ref", ref),
		zap.Error(err),
	)
}

// candidateError distinguishes a bad candidate from a broken store
func candidateError(err error) bool {
	return apperrors.IsNotFound(err) ||
		apperrors.IsConstraintViolation(err) ||
		apperrors.IsInvalidArgument(err)
}

func renderContext(entries []graph.ContextEntry) string {
	if len(entries) == 0 {
		return "(empty graph)"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s | %s | %s\n", e.ID, e.Variant, e.Display)
	}
	return b.String()
}

func nodeDisplay(n graph.Node) string {
	for _, key := range []string{"name", "title", "content"} {
		if v, ok := n.Props[key].(string); ok && v != "" {
			return truncateRunes(v, displayRunes)
		}
	}
	return string(n.Variant)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
