package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/pkg/logger"
)

// ExtractedEntity is a named thing found in a note
type ExtractedEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// ExtractedRelation links the analyzed note to an existing graph node
type ExtractedRelation struct {
	Type       string  `json:"type"`
	TargetRef  string  `json:"target"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// SuggestedRelation connects two existing nodes found during a global pass
type SuggestedRelation struct {
	SourceRef  string  `json:"source"`
	TargetRef  string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ExtractionResult is the structured output of one note analysis
type ExtractionResult struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Tags      []string            `json:"tags"`
	Relations []ExtractedRelation `json:"relations"`
}

// Extractor turns free text into graph candidates using the LLM
type Extractor struct {
	llm    *LLMAdapter
	logger *zap.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(llm *LLMAdapter) *Extractor {
	return &Extractor{
		llm:    llm,
		logger: logger.Named("extractor"),
	}
}

const extractionSystemPrompt = `You are an information extraction assistant for a personal knowledge graph.
Given a note and a summary of the user's existing graph, extract:
- entities: people, places, organizations and concepts mentioned in the note
- tags: short lowercase topic labels for the note
- relations: links from this note to nodes of the existing graph

Allowed relation types: related_to, part_of, caused_by, similar_to, contains.
Every entity and relation needs a confidence between 0 and 1; relations also
need a short reason.

Respond with JSON only, no prose:
{"entities": [{"name": "...", "type": "person|place|organization|concept", "confidence": 0.9}],
 "tags": ["..."],
 "relations": [{"target": "<node id>", "type": "related_to", "confidence": 0.8, "reason": "..."}]}`

// Extract analyzes one note against the user's graph context and returns the
// entities, tags and relations the model found. Callers decide what to do
// with an upstream failure; a parse failure is reported the same way.
func (e *Extractor) Extract(ctx context.Context, content, graphContext string) (*ExtractionResult, error) {
	userMsg := fmt.Sprintf("Note:\n%s\n\nExisting graph:\n%s", content, graphContext)

	reply, err := e.llm.CompleteJSON(ctx, extractionSystemPrompt, userMsg)
	if err != nil {
		return nil, err
	}

	result, err := parseExtraction(reply)
	if err != nil {
		return nil, fmt.Errorf("parse extraction reply: %w", err)
	}

	e.logger.Debug("Extraction complete",
		zap.Int("entities", len(result.Entities)),
		zap.Int("tags", len(result.Tags)),
		zap.Int("relations", len(result.Relations)),
	)

	return result, nil
}

const relationSystemPrompt = `You are a knowledge graph analyst.
Given a sample of nodes from a personal knowledge graph, propose relations
between pairs of them that are clearly supported by their content.

Allowed relation types: related_to, part_of, caused_by, similar_to, contains.
Every relation needs a confidence between 0 and 1 and a short reason.
Only propose relations you are confident about; fewer is better.

Respond with a JSON array only, no prose:
[{"source": "<node id>", "target": "<node id>", "type": "related_to", "confidence": 0.8, "reason": "..."}]`

// SuggestRelations runs the global pass over a rendered node sample and
// returns candidate relations between existing nodes.
func (e *Extractor) SuggestRelations(ctx context.Context, corpus string) ([]SuggestedRelation, error) {
	reply, err := e.llm.CompleteJSON(ctx, relationSystemPrompt, corpus)
	if err != nil {
		return nil, err
	}

	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in reply")
	}

	var relations []SuggestedRelation
	if err := json.Unmarshal([]byte(reply[start:end+1]), &relations); err != nil {
		return nil, fmt.Errorf("unmarshal relations: %w", err)
	}

	e.logger.Debug("Relation suggestions complete", zap.Int("relations", len(relations)))

	return relations, nil
}

// parseExtraction pulls the JSON object out of a model reply that may carry
// wrapper text around it.
func parseExtraction(content string) (*ExtractionResult, error) {
	var result ExtractionResult
	if err := unmarshalObject(content, &result); err != nil {
		return nil, fmt.Errorf("unmarshal extraction: %w", err)
	}
	return &result, nil
}

// unmarshalObject decodes the outermost JSON object in a model reply,
// ignoring any wrapper text around it.
func unmarshalObject(content string, v interface{}) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in reply")
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}
