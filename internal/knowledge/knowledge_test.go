package knowledge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"

	"interviewsim/internal/chunker"
	"interviewsim/internal/domain"
	"interviewsim/internal/embedding"
	"interviewsim/internal/metrics"
	"interviewsim/internal/vectorstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mocks ---

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Name() string   { return "mock" }
func (m *mockEmbedder) Dimension() int { return 2 }
func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return domain.Embedding{1, 0}, nil
}

// mockStore returns canned results and ignores the domain hint.
type mockStore struct {
	count     int
	results   []domain.RetrievalResult
	queryErr  error
	lastQuery domain.VectorQuery
}

func (m *mockStore) Upsert(ctx context.Context, chunks []domain.Chunk, embs []domain.Embedding) error {
	return nil
}
func (m *mockStore) Query(ctx context.Context, v domain.Embedding, q domain.VectorQuery) ([]domain.RetrievalResult, error) {
	m.lastQuery = q
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return append([]domain.RetrievalResult(nil), m.results...), nil
}
func (m *mockStore) Count(ctx context.Context) (int, error)              { return m.count, nil }
func (m *mockStore) DeleteDocument(ctx context.Context, id string) error { return nil }
func (m *mockStore) Clear(ctx context.Context) error                     { return nil }
func (m *mockStore) Close() error                                        { return nil }

func result(doc, dom string, idx int, text string, score float64) domain.RetrievalResult {
	return domain.RetrievalResult{
		Chunk: domain.Chunk{Text: text, Domain: dom, SourceDocumentID: doc, ChunkIndex: idx},
		Score: score,
	}
}

func newEngine(t *testing.T, store domain.VectorStore, emb domain.Embedder) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{Store: store, Embedder: emb, Metrics: metrics.NewRetrievalMetrics(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// --- Retrieve ---

func TestRetrieve_InvalidTopK(t *testing.T) {
	e := newEngine(t, &mockStore{count: 3}, &mockEmbedder{})
	for _, k := range []int{0, -1} {
		if _, err := e.Retrieve(context.Background(), "q", k, nil); !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Errorf("topK=%d: expected ErrInvalidConfiguration, got %v", k, err)
		}
	}
}

func TestRetrieve_EmptyKnowledgeBase(t *testing.T) {
	emb := &mockEmbedder{}
	e := newEngine(t, vectorstore.NewMemory(), emb)
	_, err := e.Retrieve(context.Background(), "what is REST?", 5, nil)
	if !errors.Is(err, domain.ErrEmptyKnowledgeBase) {
		t.Fatalf("expected ErrEmptyKnowledgeBase, got %v", err)
	}
	if emb.calls != 0 {
		t.Error("query should not be embedded when the knowledge base is empty")
	}
}

func TestRetrieve_TieBreak(t *testing.T) {
	store := &mockStore{count: 2, results: []domain.RetrievalResult{
		result("doc1", "backend", 2, "second", 0.7),
		result("doc1", "backend", 1, "first", 0.7),
	}}
	e := newEngine(t, store, &mockEmbedder{})
	res, err := e.Retrieve(context.Background(), "q", 5, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res) != 2 || res[0].Chunk.ChunkIndex != 1 || res[1].Chunk.ChunkIndex != 2 {
		t.Fatalf("expected idx1 before idx2, got %+v", res)
	}
}

func TestRetrieve_OrderAndTruncate(t *testing.T) {
	store := &mockStore{count: 4, results: []domain.RetrievalResult{
		result("a", "oop", 0, "a0", 0.2),
		result("b", "oop", 0, "b0", 0.9),
		result("a", "oop", 1, "a1", 0.5),
		result("c", "oop", 0, "c0", 0.5),
	}}
	e := newEngine(t, store, &mockEmbedder{})
	res, _ := e.Retrieve(context.Background(), "q", 3, nil)
	want := []string{"b0", "a1", "c0"}
	if len(res) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res))
	}
	for i, w := range want {
		if res[i].Chunk.Text != w {
			t.Errorf("position %d: expected %s, got %s", i, w, res[i].Chunk.Text)
		}
	}
}

func TestRetrieve_DomainFilterBeforeTruncation(t *testing.T) {
	store := &mockStore{count: 4, results: []domain.RetrievalResult{
		result("frontend", "frontend", 0, "f0", 0.95),
		result("frontend", "frontend", 1, "f1", 0.9),
		result("database", "database", 0, "d0", 0.5),
		result("database", "database", 1, "d1", 0.4),
	}}
	e := newEngine(t, store, &mockEmbedder{})
	res, err := e.Retrieve(context.Background(), "q", 2, []string{"database"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res) != 2 || res[0].Chunk.Text != "d0" || res[1].Chunk.Text != "d1" {
		t.Fatalf("expected both database chunks, got %+v", res)
	}
	if len(store.lastQuery.Domains) != 1 || store.lastQuery.Domains[0] != "database" {
		t.Errorf("domain filter not passed to the store: %+v", store.lastQuery)
	}
}

func TestRetrieve_ClampsTopK(t *testing.T) {
	store := &mockStore{count: 1, results: []domain.RetrievalResult{result("a", "oop", 0, "x", 1)}}
	e := newEngine(t, store, &mockEmbedder{})
	if _, err := e.Retrieve(context.Background(), "q", 500, nil); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if store.lastQuery.Limit != DefaultMaxTopK {
		t.Fatalf("expected limit clamped to %d, got %d", DefaultMaxTopK, store.lastQuery.Limit)
	}
}

func TestRetrieve_MinScore(t *testing.T) {
	store := &mockStore{count: 2, results: []domain.RetrievalResult{
		result("a", "oop", 0, "strong", 0.8),
		result("a", "oop", 1, "weak", 0.1),
	}}
	e, _ := NewEngine(EngineConfig{Store: store, Embedder: &mockEmbedder{}, MinScore: 0.3, Logger: testLogger()})
	res, _ := e.Retrieve(context.Background(), "q", 5, nil)
	if len(res) != 1 || res[0].Chunk.Text != "strong" {
		t.Fatalf("expected only the strong result, got %+v", res)
	}
}

func TestRetrieve_CollaboratorErrorsPropagate(t *testing.T) {
	embErr := errors.New("embedding service down")
	e := newEngine(t, &mockStore{count: 1}, &mockEmbedder{err: embErr})
	if _, err := e.Retrieve(context.Background(), "q", 5, nil); !errors.Is(err, embErr) {
		t.Fatalf("expected embedder error, got %v", err)
	}

	storeErr := errors.New("index unavailable")
	e = newEngine(t, &mockStore{count: 1, queryErr: storeErr}, &mockEmbedder{})
	if _, err := e.Retrieve(context.Background(), "q", 5, nil); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestRetrieve_RecordsMetrics(t *testing.T) {
	store := &mockStore{count: 2, results: []domain.RetrievalResult{
		result("oop", "oop", 0, "x", 0.9),
		result("backend", "backend", 0, "y", 0.7),
	}}
	e := newEngine(t, store, &mockEmbedder{})
	e.Retrieve(context.Background(), "q", 5, nil)
	m := e.Metrics()
	if m.QueryCount() != 1 {
		t.Errorf("expected 1 query recorded, got %d", m.QueryCount())
	}
	if cov := m.DomainCoverage(); cov["oop"] != 50 || cov["backend"] != 50 {
		t.Errorf("unexpected coverage %v", cov)
	}
	if got := m.RetrievalCoverage(4); got != 50 {
		t.Errorf("expected 50%% chunk coverage, got %f", got)
	}
}

// --- AssembleContext ---

func TestAssembleContext_Empty(t *testing.T) {
	if got := AssembleContext(nil, 1000); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestAssembleContext_NeverSplitsChunks(t *testing.T) {
	a := strings.Repeat("A", 300)
	b := strings.Repeat("B", 300)
	got := AssembleContext([]domain.RetrievalResult{
		result("d", "backend", 0, a, 0.9),
		result("d", "backend", 1, b, 0.8),
	}, 350)
	if got != "[backend]\n"+a {
		t.Fatalf("expected only the first chunk, got %d runes", len([]rune(got)))
	}
}

func TestAssembleContext_FormatAndOrder(t *testing.T) {
	got := AssembleContext([]domain.RetrievalResult{
		result("oop", "oop", 0, "Encapsulation hides state.", 0.4),
		result("backend", "backend", 3, "REST uses HTTP verbs.", 0.9),
	}, 1000)
	want := "[backend]\nREST uses HTTP verbs." + ContextSeparator + "[oop]\nEncapsulation hides state."
	if got != want {
		t.Fatalf("unexpected context:\n%q\nwant:\n%q", got, want)
	}
}

func TestAssembleContext_DropsDuplicates(t *testing.T) {
	got := AssembleContext([]domain.RetrievalResult{
		result("a", "oop", 0, "same text", 0.9),
		result("b", "oop", 4, "same text", 0.8),
		result("c", "oop", 1, "other", 0.7),
	}, 1000)
	if strings.Count(got, "same text") != 1 || !strings.Contains(got, "other") {
		t.Fatalf("expected duplicate dropped, got %q", got)
	}
}

func TestAssembleContext_StopsAtFirstOverflow(t *testing.T) {
	got := AssembleContext([]domain.RetrievalResult{
		result("a", "x", 0, strings.Repeat("a", 10), 0.9),
		result("a", "x", 1, strings.Repeat("b", 100), 0.8),
		result("a", "x", 2, "c", 0.7),
	}, 40)
	// "c" would fit on its own but assembly stops at the first overflow.
	if got != "[x]\n"+strings.Repeat("a", 10) {
		t.Fatalf("unexpected context %q", got)
	}
}

func TestAssembleContext_FirstChunkTooLong(t *testing.T) {
	got := AssembleContext([]domain.RetrievalResult{result("a", "x", 0, strings.Repeat("z", 50), 1)}, 10)
	if got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestAssembleContext_CountsRunes(t *testing.T) {
	text := strings.Repeat("é", 20) // 40 bytes, 20 runes
	got := AssembleContext([]domain.RetrievalResult{result("a", "x", 0, text, 1)}, 24)
	if got != "[x]\n"+text {
		t.Fatalf("expected chunk to fit by rune count, got %q", got)
	}
}

func TestAssembler_OrderByPosition(t *testing.T) {
	got := Assembler{OrderByPosition: true}.Assemble([]domain.RetrievalResult{
		result("doc", "db", 5, "later", 0.9),
		result("doc", "db", 1, "earlier", 0.8),
		result("doc", "db", 9, "dropped", 0.1),
	}, 40)
	want := "[db]\nearlier" + ContextSeparator + "[db]\nlater"
	if got != want {
		t.Fatalf("unexpected context %q", got)
	}
}

// --- Ingest ---

func kbDocs(backend string) []domain.Document {
	return []domain.Document{
		{ID: "backend", Name: "Backend Development", Domain: "backend", Content: backend},
		{ID: "database", Name: "Database Systems", Domain: "database",
			Content: "Database normalization removes redundancy. Indexes speed up queries on large tables. Transactions guarantee ACID properties."},
	}
}

func TestIngest_EndToEnd(t *testing.T) {
	splitter, _ := chunker.New(60, 10, chunker.WithSeparators(chunker.DefaultSeparators))
	store := vectorstore.NewMemory()
	e, err := NewEngine(EngineConfig{
		Store:    store,
		Embedder: embedding.NewHashing(256),
		Splitter: splitter,
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx := context.Background()
	backend := "REST APIs expose resources over HTTP. Middleware handles authentication and logging for every request."

	rep, err := e.Ingest(ctx, kbDocs(backend))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rep.Documents != 2 || rep.Skipped != 0 || rep.Chunks == 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	total, _ := e.Count(ctx)
	if total != rep.Chunks {
		t.Fatalf("store holds %d chunks, report says %d", total, rep.Chunks)
	}

	// Unchanged documents are skipped.
	rep, _ = e.Ingest(ctx, kbDocs(backend))
	if rep.Skipped != 2 || rep.Documents != 0 {
		t.Fatalf("expected both documents skipped, got %+v", rep)
	}

	// A changed document replaces its chunks instead of adding to them.
	rep, _ = e.Ingest(ctx, kbDocs("Short backend notes."))
	if rep.Documents != 1 || rep.Skipped != 1 {
		t.Fatalf("expected one re-ingest, got %+v", rep)
	}
	res, err := e.Retrieve(ctx, "backend notes", 20, []string{"backend"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res) != 1 || res[0].Chunk.Text != "Short backend notes." {
		t.Fatalf("expected the single replaced chunk, got %+v", res)
	}

	res, _ = e.Retrieve(ctx, "how do indexes speed up database queries", 1, nil)
	if len(res) != 1 || res[0].Chunk.Domain != "database" {
		t.Fatalf("expected a database chunk, got %+v", res)
	}
}

func TestIngest_EmbedderChangeReindexes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")
	backend := "REST APIs expose resources over HTTP. Middleware handles authentication and logging for every request."

	open := func(dim int) (*Engine, *vectorstore.SQLite) {
		store, err := vectorstore.NewSQLite(path, testLogger())
		if err != nil {
			t.Fatalf("NewSQLite: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return newEngine(t, store, embedding.NewHashing(dim)), store
	}

	e, store := open(512)
	if _, err := e.Ingest(ctx, kbDocs(backend)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	before, _ := e.Count(ctx)
	store.Close()

	e, _ = open(8)
	rep, err := e.Ingest(ctx, kbDocs(backend))
	if rep.Skipped != 0 {
		t.Fatalf("documents embedded by another embedder must not be skipped, got %+v", rep)
	}
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch while other documents hold 512-d vectors, got %v", err)
	}
	if n, _ := e.Count(ctx); n != before {
		t.Fatalf("failed re-ingest must keep the previous chunks: had %d, now %d", before, n)
	}
	if _, err := e.Retrieve(ctx, "middleware", 3, nil); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected retrieval with mismatched vectors to fail, got %v", err)
	}

	if err := e.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	rep, err = e.Ingest(ctx, kbDocs(backend))
	if err != nil || rep.Documents != 2 {
		t.Fatalf("expected a full re-index after reset, got %+v (%v)", rep, err)
	}
	res, err := e.Retrieve(ctx, "middleware authentication", 1, nil)
	if err != nil || len(res) != 1 {
		t.Fatalf("expected a result in the new space, got %+v (%v)", res, err)
	}

	rep, _ = e.Ingest(ctx, kbDocs(backend))
	if rep.Skipped != 2 {
		t.Fatalf("same embedder should skip unchanged documents, got %+v", rep)
	}
}

// replaceCounter records how the engine writes a document.
type replaceCounter struct {
	*vectorstore.Memory
	replaced int
}

func (r *replaceCounter) ReplaceDocument(ctx context.Context, id string, chunks []domain.Chunk, embs []domain.Embedding) error {
	r.replaced++
	return r.Memory.ReplaceDocument(ctx, id, chunks, embs)
}

func (r *replaceCounter) DeleteDocument(ctx context.Context, id string) error {
	panic("engine should replace, not delete then upsert")
}

func TestIngest_UsesReplaceDocument(t *testing.T) {
	store := &replaceCounter{Memory: vectorstore.NewMemory()}
	e := newEngine(t, store, embedding.NewHashing(64))
	rep, err := e.Ingest(context.Background(), kbDocs("Goroutines are cheap."))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if store.replaced != rep.Documents || rep.Documents != 2 {
		t.Fatalf("expected one ReplaceDocument per document, got %d for %+v", store.replaced, rep)
	}
}

// --- Loader ---

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "oop.txt"), []byte("Inheritance\r\nPolymorphism\r\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "backend.txt"), []byte("REST"), 0o644)

	docs, err := LoadDocuments(dir, []Source{
		{ID: "oop", Name: "Object-Oriented Programming", File: "oop.txt"},
		{ID: "frontend", Name: "Frontend Development", File: "frontend.txt"},
		{ID: "backend", Name: "Backend Development", File: "backend.txt"},
	}, testLogger())
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected missing file skipped, got %d docs", len(docs))
	}
	if docs[0].Content != "Inheritance\nPolymorphism\n" {
		t.Errorf("expected CRLF normalized, got %q", docs[0].Content)
	}
	if docs[0].Domain != "oop" || docs[0].Fingerprint != Fingerprint(docs[0].Content) {
		t.Errorf("unexpected document %+v", docs[0])
	}
}

func TestLoadDocuments_RejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "bad.txt"), []byte{0xff, 0xfe, 0x00}, 0o644)
	if _, err := LoadDocuments(dir, []Source{{ID: "bad", File: "bad.txt"}}, testLogger()); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestSourceForPath(t *testing.T) {
	dir := t.TempDir()
	sources := []Source{{ID: "oop", File: "oop.txt"}, {ID: "database", File: "database.txt"}}
	src, ok := SourceForPath(dir, sources, filepath.Join(dir, "database.txt"))
	if !ok || src.ID != "database" {
		t.Fatalf("expected database source, got %+v %v", src, ok)
	}
	if _, ok := SourceForPath(dir, sources, filepath.Join(dir, "notes.txt")); ok {
		t.Fatal("expected no match for unknown file")
	}
}

// --- Fingerprint / watcher ---

func TestFingerprint(t *testing.T) {
	a := Fingerprint("hello")
	if len(a) != 16 || a != Fingerprint("hello") {
		t.Fatalf("expected stable 16 hex digit fingerprint, got %q", a)
	}
	if a == Fingerprint("hello!") {
		t.Fatal("different content should not share a fingerprint")
	}
}

func TestRelevantEvent(t *testing.T) {
	cases := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/kb/oop.txt", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/kb/OOP.TXT", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/kb/oop.txt", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/kb/oop.txt", Op: fsnotify.Remove}, false},
		{fsnotify.Event{Name: "/kb/.oop.txt.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/kb/notes.md", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := relevantEvent(tc.ev); got != tc.want {
			t.Errorf("relevantEvent(%v) = %v, want %v", tc.ev, got, tc.want)
		}
	}
}
