package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"interviewsim/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cosine(a, b domain.Embedding) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// --- Tokenize ---

func TestTokenize(t *testing.T) {
	got := Tokenize("What is the CAP theorem? It's about consistency, availability & partitions in 2 phases.")
	want := []string{"cap", "theorem", "it's", "consistency", "availability", "partitions", "2", "phases"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// --- Hashing ---

func TestHashing_DeterministicAndNormalized(t *testing.T) {
	h := NewHashing(0)
	if h.Dimension() != DefaultHashingDimension {
		t.Fatalf("expected default dimension %d, got %d", DefaultHashingDimension, h.Dimension())
	}
	ctx := context.Background()
	a, err := h.Embed(ctx, "Database indexes speed up lookups")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := NewHashing(0).Embed(ctx, "Database indexes speed up lookups")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestHashing_SimilarTextsScoreHigher(t *testing.T) {
	h := NewHashing(1024)
	ctx := context.Background()
	q, _ := h.Embed(ctx, "how do database indexes work")
	near, _ := h.Embed(ctx, "A database index is a structure that makes lookups fast. Indexes work like a book index.")
	far, _ := h.Embed(ctx, "React components render JSX and manage state with hooks.")
	if cosine(q, near) <= cosine(q, far) {
		t.Fatalf("expected related text to be closer: near=%f far=%f", cosine(q, near), cosine(q, far))
	}
}

func TestHashing_EmptyTextIsZeroVector(t *testing.T) {
	v, err := NewHashing(64).Embed(context.Background(), "the of and ...")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(v))
	}
	for _, x := range v {
		if x != 0 {
			t.Fatal("expected zero vector for stopword-only text")
		}
	}
}

func TestHashing_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashing(8).Embed(ctx, "anything"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// --- OpenAI-compatible ---

func TestOpenAI_OpenAIShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-3-small" || req.Input != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAI(OpenAIConfig{APIBase: srv.URL + "/v1/", APIKey: "sk-test", Logger: testLogger()})
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 || e.Dimension() != 3 {
		t.Fatalf("expected 3 dims, got %d (Dimension=%d)", len(v), e.Dimension())
	}
}

func TestOpenAI_OllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("ollama requests should carry no auth header")
		}
		w.Write([]byte(`{"embedding":[1,0]}`))
	}))
	defer srv.Close()

	e, err := New(Config{Type: "ollama", APIBase: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Name() != "ollama" {
		t.Fatalf("expected name ollama, got %s", e.Name())
	}
	v, err := e.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 || v[0] != 1 {
		t.Fatalf("unexpected vector %v", v)
	}
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad model"}`))
	}))
	defer srv.Close()

	e := NewOpenAI(OpenAIConfig{APIBase: srv.URL, Logger: testLogger()})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestOpenAI_EmptyPayload(t *testing.T) {
	if _, err := decodeEmbedding([]byte(`{"data":[]}`)); err == nil {
		t.Fatal("expected error for empty data")
	}
}

// --- Factory ---

func TestNew_UnknownType(t *testing.T) {
	if _, err := New(Config{Type: "word2vec"}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestNew_DefaultsToHashing(t *testing.T) {
	e, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Name() != "hashing" {
		t.Fatalf("expected hashing, got %s", e.Name())
	}
}

func TestEmbedderIDs(t *testing.T) {
	if id := NewHashing(8).ID(); id != "hashing/8" {
		t.Errorf("expected hashing/8, got %s", id)
	}
	if NewHashing(8).ID() == NewHashing(16).ID() {
		t.Error("different dimensions must have different ids")
	}
	o := NewOpenAI(OpenAIConfig{Model: "text-embedding-3-large"})
	if o.ID() != "openai/text-embedding-3-large" {
		t.Errorf("unexpected id %s", o.ID())
	}
	if o.ID() == NewOpenAI(OpenAIConfig{}).ID() {
		t.Error("models must be told apart")
	}
}
