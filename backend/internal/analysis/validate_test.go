package analysis

import (
	"math"
	"strings"
	"testing"

	"notegraph/backend/internal/graph"
)

func TestCleanName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "LangChain", "LangChain"},
		{"trimmed", "  Berlin  ", "Berlin"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"at limit", strings.Repeat("x", 200), strings.Repeat("x", 200)},
		{"over limit", strings.Repeat("x", 201), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanName(tc.in); got != tc.want {
				t.Errorf("cleanName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 0.5, 0.5},
		{"negative", -0.1, 0},
		{"above one", 1.5, 1},
		{"nan", math.NaN(), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampConfidence(tc.in); got != tc.want {
				t.Errorf("clampConfidence(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveRelation(t *testing.T) {
	cases := []struct {
		in         string
		wantType   string
		wantMult   float64
		wantOK     bool
	}{
		{"related_to", graph.RelRelatedTo, 1.0, true},
		{"part_of", graph.RelBelongsTo, 1.2, true},
		{"CAUSED_BY", graph.RelCausedBy, 1.3, true},
		{" similar_to ", graph.RelSimilarTo, 0.9, true},
		{"contains", graph.RelContains, 1.1, true},
		{"friend_of", "", 0, false},
		{"", "", 0, false},
	}
	for _, tc := range cases {
		relType, mult, ok := resolveRelation(tc.in)
		if ok != tc.wantOK || relType != tc.wantType || mult != tc.wantMult {
			t.Errorf("resolveRelation(%q) = (%q, %v, %v), want (%q, %v, %v)",
				tc.in, relType, mult, ok, tc.wantType, tc.wantMult, tc.wantOK)
		}
	}
}

func TestInitialWeight(t *testing.T) {
	cases := []struct {
		confidence float64
		multiplier float64
		want       float64
	}{
		{0.8, 1.0, 0.8},
		{0.8, 1.2, 0.96},
		{0.6, 1.3, 0.78},
		{0.9, 0.9, 0.81},
		{1.0, 1.3, 1.3},
	}
	for _, tc := range cases {
		if got := initialWeight(tc.confidence, tc.multiplier); got != tc.want {
			t.Errorf("initialWeight(%v, %v) = %v, want %v", tc.confidence, tc.multiplier, got, tc.want)
		}
	}
}
