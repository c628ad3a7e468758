package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/analysis"
	apperrors "notegraph/backend/pkg/errors"
)

const samplePage = `<html>
<head><title> Graph Databases: An Introduction </title>
<script>trackVisitor("should never appear in the note");</script></head>
<body>
<nav><ul><li>Home is where all the navigation links of this page live</li></ul></nav>
<article>
<p>Graph databases store data as nodes and relationships instead of rows.</p>
<p>ok</p>
<p>Traversals follow pointers directly, which keeps neighborhood queries fast.</p>
</article>
<footer><p>Copyright notice that should be stripped away from the clipped body.</p></footer>
</body></html>`

func TestExtractReadableText(t *testing.T) {
	title, text, err := extractReadableText(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("extractReadableText failed: %v", err)
	}

	if title != "Graph Databases: An Introduction" {
		t.Errorf("unexpected title: %q", title)
	}
	if !strings.Contains(text, "nodes and relationships") || !strings.Contains(text, "neighborhood queries") {
		t.Errorf("expected article paragraphs, got %q", text)
	}
	if strings.Contains(text, "trackVisitor") {
		t.Errorf("script content leaked into the text: %q", text)
	}
	if strings.Contains(text, "navigation links") || strings.Contains(text, "Copyright") {
		t.Errorf("boilerplate leaked into the text: %q", text)
	}
	for _, part := range strings.Split(text, "\n\n") {
		if part == "ok" {
			t.Errorf("short filler paragraph should be dropped, got %q", text)
		}
	}
}

func TestExtractReadableText_BodyFallback(t *testing.T) {
	page := `<html><head><title>Plain</title></head><body>
<p>No article element here, but this paragraph is long enough to keep.</p>
</body></html>`

	_, text, err := extractReadableText(strings.NewReader(page))
	if err != nil {
		t.Fatalf("extractReadableText failed: %v", err)
	}
	if !strings.Contains(text, "long enough to keep") {
		t.Errorf("expected body paragraphs without an article, got %q", text)
	}
}

func TestExtractReadableText_CapsLength(t *testing.T) {
	long := strings.Repeat("All work and no play makes for a very repetitive paragraph indeed. ", 200)
	page := "<html><head><title>Long</title></head><body><article><p>" + long + "</p></article></body></html>"

	_, text, err := extractReadableText(strings.NewReader(page))
	if err != nil {
		t.Fatalf("extractReadableText failed: %v", err)
	}
	if got := len([]rune(text)); got != maxClipRunes+3 {
		t.Errorf("expected text capped at %d runes plus ellipsis, got %d", maxClipRunes, got)
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected a truncation marker")
	}
}

func TestClip(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	clipper := NewWebClipper()
	title, text, err := clipper.Clip(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Clip failed: %v", err)
	}

	if title != "Graph Databases: An Introduction" {
		t.Errorf("unexpected title: %q", title)
	}
	if !strings.Contains(text, "nodes and relationships") {
		t.Errorf("unexpected text: %q", text)
	}
	if !strings.Contains(gotUA, "NotegraphBot") {
		t.Errorf("expected the bot user agent, got %q", gotUA)
	}
}

func TestClip_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	clipper := NewWebClipper()
	_, _, err := clipper.Clip(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected an HTTP 404 error, got %v", err)
	}
}

func TestClip_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	clipper := NewWebClipper()
	_, _, err := clipper.Clip(context.Background(), url)
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeUpstreamUnavailable) {
		t.Errorf("expected upstream unavailable, got %v", err)
	}
}

func TestClip_EmptyURL(t *testing.T) {
	clipper := NewWebClipper()
	if _, _, err := clipper.Clip(context.Background(), "  "); !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestClipURL_CreatesNoteWithSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	store := &fakeStore{}
	analyzer := &fakeAnalyzer{report: &analysis.Report{}}
	vectors := adapter.NewVectorCache()
	svc := NewService(store, analyzer, vectors, NewWebClipper())

	noteID, _, err := svc.ClipURL(context.Background(), "u1", server.URL, "reading")
	if err != nil {
		t.Fatalf("ClipURL failed: %v", err)
	}

	content, _ := store.noteAttrs["content"].(string)
	if !strings.HasPrefix(content, "Graph Databases") {
		t.Errorf("expected the title to lead the note, got %q", content)
	}
	if store.noteAttrs["source_url"] != server.URL {
		t.Errorf("expected the source url kept, got %v", store.noteAttrs["source_url"])
	}
	if !store.hasEdge("BELONGS_TO", noteID, "id-reading") {
		t.Errorf("expected a category link, got %+v", store.edges)
	}
	if analyzer.incCalls != 1 {
		t.Errorf("expected one incremental pass, got %d", analyzer.incCalls)
	}
}

func TestClipURL_FetchFailureCreatesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	store := &fakeStore{}
	svc, _ := newTestService(store, &fakeAnalyzer{})

	if _, _, err := svc.ClipURL(context.Background(), "u1", server.URL, ""); err == nil {
		t.Fatal("expected an error")
	}
	if len(store.nodes) != 0 {
		t.Errorf("expected no writes on fetch failure, got %v", store.nodes)
	}
}
