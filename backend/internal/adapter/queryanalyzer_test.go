package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeLLMServer answers every chat completion with the given content.
func fakeLLMServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encoding fake completion: %v", err)
		}
	}))
}

func newFakeAnalyzer(t *testing.T, reply string) (*QueryAnalyzer, func()) {
	t.Helper()
	srv := fakeLLMServer(t, reply)
	llm := NewLLMAdapter(srv.URL, "test-key", "test-model")
	return NewQueryAnalyzer(llm), srv.Close
}

func TestAnalyze_ParsesRecommendation(t *testing.T) {
	reply := "```json\n" + `{"refined_query": "kubernetes deployment notes", "strategy": "lexical", "category": "work", "start_date": "", "end_date": "", "explanation": "keyword query"}` + "\n```"
	analyzer, done := newFakeAnalyzer(t, reply)
	defer done()

	analysis := analyzer.Analyze(context.Background(), "k8s deploy notes")

	if analysis.Strategy != "lexical" {
		t.Errorf("Expected strategy lexical, got %s", analysis.Strategy)
	}
	if analysis.RefinedQuery != "kubernetes deployment notes" {
		t.Errorf("Unexpected refined query: %s", analysis.RefinedQuery)
	}
	if analysis.Category != "work" {
		t.Errorf("Expected category work, got %s", analysis.Category)
	}
}

func TestAnalyze_BlankRefinementKeepsOriginalQuery(t *testing.T) {
	reply := `{"refined_query": "  ", "strategy": "vector", "category": "", "start_date": "", "end_date": "", "explanation": ""}`
	analyzer, done := newFakeAnalyzer(t, reply)
	defer done()

	analysis := analyzer.Analyze(context.Background(), "monstera care")

	if analysis.RefinedQuery != "monstera care" {
		t.Errorf("Expected original query kept, got %q", analysis.RefinedQuery)
	}
	if analysis.Strategy != "vector" {
		t.Errorf("Expected strategy vector, got %s", analysis.Strategy)
	}
}

func TestAnalyze_UnparseableReplyFallsBackToHybrid(t *testing.T) {
	analyzer, done := newFakeAnalyzer(t, "I would search for plants, probably.")
	defer done()

	analysis := analyzer.Analyze(context.Background(), "monstera care")

	if analysis.Strategy != "hybrid" {
		t.Errorf("Expected hybrid fallback, got %s", analysis.Strategy)
	}
	if analysis.RefinedQuery != "monstera care" {
		t.Errorf("Expected original query in fallback, got %q", analysis.RefinedQuery)
	}
}

func TestExtractQueryEntities_ParsesBulletedLines(t *testing.T) {
	analyzer, done := newFakeAnalyzer(t, "- Alice\n* Paris\n\n  LangChain  \n")
	defer done()

	entities := analyzer.ExtractQueryEntities(context.Background(), "notes about Alice in Paris using LangChain")

	want := []string{"Alice", "Paris", "LangChain"}
	if len(entities) != len(want) {
		t.Fatalf("Expected %d entities, got %v", len(want), entities)
	}
	for i, name := range want {
		if entities[i] != name {
			t.Errorf("entities[%d] = %q, want %q", i, entities[i], name)
		}
	}
}

func TestSummarizeResults_EmptyInput(t *testing.T) {
	// No server: the empty case must not call the model at all
	llm := NewLLMAdapter("http://127.0.0.1:1", "test-key", "test-model")
	analyzer := NewQueryAnalyzer(llm)

	summary := analyzer.SummarizeResults(context.Background(), "anything", nil)

	if summary != "No matching entries found" {
		t.Errorf("Unexpected summary: %q", summary)
	}
}

func TestSummarizeResults_ReturnsModelReply(t *testing.T) {
	analyzer, done := newFakeAnalyzer(t, "  Three notes about deployment planning.  ")
	defer done()

	summary := analyzer.SummarizeResults(context.Background(), "deployment", []string{"a", "b", "c"})

	if summary != "Three notes about deployment planning." {
		t.Errorf("Unexpected summary: %q", summary)
	}
}
