package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/analysis"
	"notegraph/backend/internal/graph"
	apperrors "notegraph/backend/pkg/errors"
)

type fakeStore struct {
	nodeErr error

	nodes     []string
	noteAttrs map[string]interface{}
	edges     []graph.EdgeInput
	generated int
}

func (f *fakeStore) UpsertNode(ctx context.Context, variant graph.NodeVariant, naturalKey string, attrs map[string]interface{}) (string, error) {
	if f.nodeErr != nil {
		return "", f.nodeErr
	}
	f.nodes = append(f.nodes, string(variant)+":"+naturalKey)
	if variant == graph.VariantNote || variant == graph.VariantEvent {
		f.noteAttrs = attrs
	}
	if naturalKey == "" {
		f.generated++
		return fmt.Sprintf("gen-%d", f.generated), nil
	}
	return "id-" + naturalKey, nil
}

func (f *fakeStore) UpsertEdge(ctx context.Context, input graph.EdgeInput) (string, error) {
	f.edges = append(f.edges, input)
	return "edge-id", nil
}

func (f *fakeStore) hasEdge(relType, source, target string) bool {
	for _, e := range f.edges {
		if e.Type == relType && e.SourceID == source && e.TargetID == target {
			return true
		}
	}
	return false
}

type fakeAnalyzer struct {
	report  *analysis.Report
	incErr  error
	globErr error

	incCalls  int
	globCalls int
	gotItemID string
	gotText   string
}

func (f *fakeAnalyzer) AnalyzeIncremental(ctx context.Context, userID, noteID, text string) (*analysis.Report, error) {
	f.incCalls++
	f.gotItemID = noteID
	f.gotText = text
	return f.report, f.incErr
}

func (f *fakeAnalyzer) AnalyzeGlobal(ctx context.Context, userID, itemID, itemText string) (*analysis.Report, error) {
	f.globCalls++
	f.gotItemID = itemID
	f.gotText = itemText
	return f.report, f.globErr
}

func newTestService(store *fakeStore, analyzer *fakeAnalyzer) (*Service, *adapter.VectorCache) {
	vectors := adapter.NewVectorCache()
	return NewService(store, analyzer, vectors, NewWebClipper()), vectors
}

func TestCreateNote(t *testing.T) {
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{report: &analysis.Report{Entities: 2}}
	svc, vectors := newTestService(store, analyzer)

	vectors.Put("u1", map[string]adapter.DocVector{"old": {Vector: []float32{1}}})

	noteID, report, err := svc.CreateNote(context.Background(), "u1", "  met Alice at the conference  ", "")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	if noteID != "gen-1" {
		t.Errorf("expected generated note id, got %s", noteID)
	}
	if !store.hasEdge(graph.RelCreated, "u1", "gen-1") {
		t.Errorf("expected a CREATED edge, got %+v", store.edges)
	}
	if len(store.edges) != 1 {
		t.Errorf("expected no category link without a category, got %+v", store.edges)
	}
	if store.noteAttrs["content"] != "met Alice at the conference" {
		t.Errorf("expected trimmed content, got %q", store.noteAttrs["content"])
	}

	if analyzer.incCalls != 1 || analyzer.gotItemID != "gen-1" {
		t.Errorf("expected one incremental pass on gen-1, got %d on %s", analyzer.incCalls, analyzer.gotItemID)
	}
	if report == nil || report.Entities != 2 {
		t.Errorf("expected the analysis report back, got %+v", report)
	}
	if _, ok := vectors.Get("u1"); ok {
		t.Error("expected the vector cache slot to be invalidated")
	}
}

func TestCreateNote_WithCategory(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestService(store, &fakeAnalyzer{})

	noteID, _, err := svc.CreateNote(context.Background(), "u1", "watered the plants", "home")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if !store.hasEdge(graph.RelBelongsTo, noteID, "id-home") {
		t.Errorf("expected a BELONGS_TO edge to the category, got %+v", store.edges)
	}
}

func TestCreateNote_AnalysisFailureKeepsNote(t *testing.T) {
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{incErr: errors.New("model unreachable")}
	svc, _ := newTestService(store, analyzer)

	noteID, report, err := svc.CreateNote(context.Background(), "u1", "quick thought", "")
	if err != nil {
		t.Fatalf("a failed analysis must not fail the create: %v", err)
	}
	if noteID == "" {
		t.Error("expected the note to exist")
	}
	if report != nil {
		t.Errorf("expected no report on analysis failure, got %+v", report)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, &fakeAnalyzer{})

	if _, _, err := svc.CreateNote(context.Background(), "", "text", ""); !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument for missing user, got %v", err)
	}
	if _, _, err := svc.CreateNote(context.Background(), "u1", "   ", ""); !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument for empty content, got %v", err)
	}
}

func TestCreateNote_StoreFailure(t *testing.T) {
	wantErr := errors.New("store down")
	svc, _ := newTestService(&fakeStore{nodeErr: wantErr}, &fakeAnalyzer{})

	if _, _, err := svc.CreateNote(context.Background(), "u1", "text", ""); !errors.Is(err, wantErr) {
		t.Errorf("expected the store error, got %v", err)
	}
}

func TestCreateEvent(t *testing.T) {
	store := &fakeStore{}
	analyzer := &fakeAnalyzer{report: &analysis.Report{Relations: 1}}
	svc, _ := newTestService(store, analyzer)

	eventID, report, err := svc.CreateEvent(context.Background(), "u1", "Moved to Berlin", "new apartment in Kreuzberg", "life")
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if store.noteAttrs["title"] != "Moved to Berlin" {
		t.Errorf("expected the event title stored, got %+v", store.noteAttrs)
	}
	if !store.hasEdge(graph.RelCreated, "u1", eventID) {
		t.Errorf("expected a CREATED edge, got %+v", store.edges)
	}
	if !store.hasEdge(graph.RelBelongsTo, eventID, "id-life") {
		t.Errorf("expected a category link, got %+v", store.edges)
	}

	if analyzer.globCalls != 1 {
		t.Errorf("expected one global pass, got %d", analyzer.globCalls)
	}
	if !strings.Contains(analyzer.gotText, "Moved to Berlin") || !strings.Contains(analyzer.gotText, "Kreuzberg") {
		t.Errorf("expected title and description in the analyzed text, got %q", analyzer.gotText)
	}
	if report == nil || report.Relations != 1 {
		t.Errorf("expected the analysis report back, got %+v", report)
	}
}

func TestCreateEvent_RequiresTitle(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, &fakeAnalyzer{})

	if _, _, err := svc.CreateEvent(context.Background(), "u1", "", "desc", ""); !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}
