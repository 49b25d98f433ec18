package vectorstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"interviewsim/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func chunk(doc, dom string, idx int, text string) domain.Chunk {
	return domain.Chunk{Text: text, Domain: dom, SourceDocumentID: doc, ChunkIndex: idx, StartOffset: idx * 10}
}

// seed loads four chunks over two domains. Query vector {1,0} ranks
// backend:0 > backend:1 == database:1 > database:0.
func seed(t *testing.T, s domain.VectorStore) {
	t.Helper()
	chunks := []domain.Chunk{
		chunk("backend", "backend", 0, "REST"),
		chunk("backend", "backend", 1, "gRPC"),
		chunk("database", "database", 0, "B-tree"),
		chunk("database", "database", 1, "WAL"),
	}
	embs := []domain.Embedding{{1, 0}, {1, 1}, {0, 1}, {1, 1}}
	if err := s.Upsert(context.Background(), chunks, embs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

// storeContract runs the behaviour every store shares.
func storeContract(t *testing.T, s domain.VectorStore) {
	ctx := context.Background()

	n, err := s.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected empty store, got %d (%v)", n, err)
	}

	seed(t, s)
	if n, _ := s.Count(ctx); n != 4 {
		t.Fatalf("expected 4 chunks, got %d", n)
	}

	// Upserting the same keys again replaces rather than duplicates.
	seed(t, s)
	if n, _ := s.Count(ctx); n != 4 {
		t.Fatalf("expected 4 chunks after re-upsert, got %d", n)
	}

	res, err := s.Query(ctx, domain.Embedding{1, 0}, domain.VectorQuery{Limit: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res))
	}
	wantKeys := []string{"backend:0", "backend:1", "database:1"}
	for i, r := range res {
		if r.Chunk.Key() != wantKeys[i] {
			t.Errorf("result %d: expected %s, got %s (score %f)", i, wantKeys[i], r.Chunk.Key(), r.Score)
		}
	}
	if math.Abs(res[0].Score-1) > 1e-6 {
		t.Errorf("expected identical vector to score 1, got %f", res[0].Score)
	}
	if res[1].Chunk.StartOffset != 10 || res[1].Chunk.Text != "gRPC" {
		t.Errorf("chunk fields not round-tripped: %+v", res[1].Chunk)
	}

	res, _ = s.Query(ctx, domain.Embedding{1, 0}, domain.VectorQuery{Limit: 10, Domains: []string{"database"}})
	if len(res) != 2 {
		t.Fatalf("expected 2 database results, got %d", len(res))
	}
	for _, r := range res {
		if r.Chunk.Domain != "database" {
			t.Errorf("domain filter leaked %s", r.Chunk.Domain)
		}
	}

	if err := s.DeleteDocument(ctx, "backend"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("expected 2 chunks after delete, got %d", n)
	}

	if err := s.Upsert(ctx, []domain.Chunk{chunk("x", "x", 0, "x")}, []domain.Embedding{{1, 2, 3}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on upsert, got %v", err)
	}
	if _, err := s.Query(ctx, domain.Embedding{1, 2, 3}, domain.VectorQuery{Limit: 3}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on query, got %v", err)
	}
	if err := s.Upsert(ctx, []domain.Chunk{chunk("x", "x", 0, "x")}, nil); err == nil {
		t.Error("expected length mismatch error")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("expected empty store after Clear, got %d", n)
	}
}

func fingerprintContract(t *testing.T, fs domain.FingerprintStore, s domain.VectorStore) {
	ctx := context.Background()
	fp, err := fs.DocumentFingerprint(ctx, "backend")
	if err != nil || fp != "" {
		t.Fatalf("expected no fingerprint, got %q (%v)", fp, err)
	}
	fs.SetDocumentFingerprint(ctx, "backend", "abc")
	fs.SetDocumentFingerprint(ctx, "backend", "def")
	if fp, _ := fs.DocumentFingerprint(ctx, "backend"); fp != "def" {
		t.Fatalf("expected def, got %q", fp)
	}
	s.DeleteDocument(ctx, "backend")
	if fp, _ := fs.DocumentFingerprint(ctx, "backend"); fp != "" {
		t.Fatalf("expected fingerprint dropped with document, got %q", fp)
	}
}

// replaceContract checks that ReplaceDocument swaps one document's chunks and
// leaves them untouched when the write is rejected.
func replaceContract(t *testing.T, r domain.DocumentReplacer, s domain.VectorStore) {
	ctx := context.Background()
	seed(t, s)

	err := r.ReplaceDocument(ctx, "backend", []domain.Chunk{chunk("backend", "backend", 0, "new")}, []domain.Embedding{{0, 1}})
	if err != nil {
		t.Fatalf("ReplaceDocument: %v", err)
	}
	if n, _ := s.Count(ctx); n != 3 {
		t.Fatalf("expected 3 chunks after replacing backend, got %d", n)
	}
	res, _ := s.Query(ctx, domain.Embedding{0, 1}, domain.VectorQuery{Limit: 10, Domains: []string{"backend"}})
	if len(res) != 1 || res[0].Chunk.Text != "new" {
		t.Fatalf("expected only the new backend chunk, got %+v", res)
	}

	// Another document still holds 2-dimensional vectors, so this must fail
	// without dropping the current backend chunk.
	err = r.ReplaceDocument(ctx, "backend", []domain.Chunk{chunk("backend", "backend", 0, "wide")}, []domain.Embedding{{1, 2, 3}})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	res, _ = s.Query(ctx, domain.Embedding{0, 1}, domain.VectorQuery{Limit: 10, Domains: []string{"backend"}})
	if len(res) != 1 || res[0].Chunk.Text != "new" {
		t.Fatalf("failed replace must keep the previous chunks, got %+v", res)
	}

	// Once the document is the only one left, its dimension may change.
	s.DeleteDocument(ctx, "database")
	if err := r.ReplaceDocument(ctx, "backend", []domain.Chunk{chunk("backend", "backend", 0, "wide")}, []domain.Embedding{{1, 2, 3}}); err != nil {
		t.Fatalf("ReplaceDocument with new dimension on sole document: %v", err)
	}
	if res, err := s.Query(ctx, domain.Embedding{1, 2, 3}, domain.VectorQuery{Limit: 1}); err != nil || len(res) != 1 {
		t.Fatalf("expected query in the new dimension to work, got %v (%v)", res, err)
	}
}

// --- Cosine ---

func TestCosine(t *testing.T) {
	if got := Cosine(domain.Embedding{1, 0}, domain.Embedding{0, 1}); got != 0 {
		t.Errorf("orthogonal: expected 0, got %f", got)
	}
	if got := Cosine(domain.Embedding{2, 0}, domain.Embedding{5, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("parallel: expected 1, got %f", got)
	}
	if got := Cosine(domain.Embedding{0, 0}, domain.Embedding{1, 1}); got != 0 {
		t.Errorf("zero vector: expected 0, got %f", got)
	}
}

func TestTopN_TieBreak(t *testing.T) {
	in := []domain.RetrievalResult{
		{Chunk: chunk("b", "d", 0, ""), Score: 0.5},
		{Chunk: chunk("a", "d", 2, ""), Score: 0.5},
		{Chunk: chunk("a", "d", 1, ""), Score: 0.5},
		{Chunk: chunk("z", "d", 0, ""), Score: 0.9},
	}
	out := topN(in, 3)
	want := []string{"z:0", "a:1", "a:2"}
	for i, r := range out {
		if r.Chunk.Key() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], r.Chunk.Key())
		}
	}
}

// --- Memory ---

func TestMemory(t *testing.T) {
	storeContract(t, NewMemory())
}

func TestMemory_ReplaceDocument(t *testing.T) {
	m := NewMemory()
	replaceContract(t, m, m)
}

func TestMemory_Fingerprints(t *testing.T) {
	m := NewMemory()
	fingerprintContract(t, m, m)
}

// --- SQLite ---

func TestSQLite(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "vectors.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestSQLite_Fingerprints(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "vectors.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	fingerprintContract(t, s, s)
}

func TestSQLite_ReplaceDocument(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "vectors.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	replaceContract(t, s, s)
}

func TestSQLite_DimensionCheckSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := NewSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	seed(t, s)
	s.Close()

	s2, err := NewSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	wide := make(domain.Embedding, 8)
	wide[0] = 1
	if _, err := s2.Query(context.Background(), wide, domain.VectorQuery{Limit: 1}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := NewSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	seed(t, s)
	s.Close()

	s2, err := NewSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if n, _ := s2.Count(context.Background()); n != 4 {
		t.Fatalf("expected 4 chunks after reopen, got %d", n)
	}
}

func TestVectorEncoding(t *testing.T) {
	v := domain.Embedding{0, -1.5, 3.25, float32(math.Pi)}
	got := decodeVector(encodeVector(v))
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("component %d: expected %f, got %f", i, v[i], got[i])
		}
	}
}

// --- PGVector helpers ---

func TestPGHelpers(t *testing.T) {
	if pgDomains(nil) != nil || pgDomains([]string{}) != nil {
		t.Error("empty domain filter should map to NULL")
	}
	if got := pgDomains([]string{"oop"}); len(got) != 1 {
		t.Errorf("expected filter preserved, got %v", got)
	}
	if pgLimit(0) != 10 || pgLimit(3) != 3 {
		t.Error("unexpected limit mapping")
	}
	if !strings.Contains(pgQueryChunks, "ORDER BY embedding <=> $1, document_id, chunk_index") {
		t.Errorf("query must break distance ties by chunk key:%s", pgQueryChunks)
	}
}

// --- Factory ---

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Type: "memory"})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", s)
	}

	s, err = Open(ctx, Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "v.db"), Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	s.Close()

	if _, err := Open(ctx, Config{Type: "faiss"}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if _, err := Open(ctx, Config{Type: "pgvector"}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for missing dsn, got %v", err)
	}
}
