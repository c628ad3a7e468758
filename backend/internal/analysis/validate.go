package analysis

import (
	"math"
	"strings"
	"unicode/utf8"

	"notegraph/backend/internal/graph"
)

const maxNameRunes = 200

// relationKinds maps the extractor's lowercase relation vocabulary onto
// ledger relation types. The multiplier skews the initial weight so causal
// and structural links start out stronger than loose associations.
var relationKinds = map[string]struct {
	relType    string
	multiplier float64
}{
	"related_to": {graph.RelRelatedTo, 1.0},
	"part_of":    {graph.RelBelongsTo, 1.2},
	"caused_by":  {graph.RelCausedBy, 1.3},
	"similar_to": {graph.RelSimilarTo, 0.9},
	"contains":   {graph.RelContains, 1.1},
}

// cleanName trims a proposed node name and rejects empty or oversized ones.
// Returns "" when the name is unusable.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		return ""
	}
	return name
}

// clampConfidence forces a model-reported confidence into [0, 1]
func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// resolveRelation maps an extractor relation type onto a ledger relation
// type and its weight multiplier. Unknown types are rejected, never written.
func resolveRelation(extractorType string) (string, float64, bool) {
	kind, ok := relationKinds[strings.ToLower(strings.TrimSpace(extractorType))]
	if !ok {
		return "", 0, false
	}
	return kind.relType, kind.multiplier, true
}

// initialWeight derives an edge's starting weight from extraction confidence
func initialWeight(confidence, multiplier float64) float64 {
	return math.Round(confidence*multiplier*100) / 100
}
