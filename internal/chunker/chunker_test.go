package chunker

import (
	"errors"
	"strings"
	"testing"

	"interviewsim/internal/domain"
)

func doc(content string) domain.Document {
	return domain.Document{ID: "backend", Name: "backend.txt", Domain: "backend", Content: content}
}

// rebuild concatenates chunks dropping the overlap prefix of every chunk after the first.
func rebuild(chunks []domain.Chunk, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 {
			r = r[overlap:]
		}
		sb.WriteString(string(r))
	}
	return sb.String()
}

// --- Chunk ---

func TestChunk_KnownWindows(t *testing.T) {
	chunks, err := Chunk(doc("abcdefghij"), 4, 1)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	want := []string{"abcd", "defg", "ghij"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, c := range chunks {
		if c.Text != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], c.Text)
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk %d: index %d", i, c.ChunkIndex)
		}
		if c.StartOffset != i*3 {
			t.Errorf("chunk %d: expected offset %d, got %d", i, i*3, c.StartOffset)
		}
		if c.Domain != "backend" || c.SourceDocumentID != "backend" {
			t.Errorf("chunk %d: provenance not copied: %+v", i, c)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("REST APIs expose resources over HTTP. ", 80)
	a, err := Chunk(doc(text), 120, 20)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	b, _ := Chunk(doc(text), 120, 20)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunk_RoundTrip(t *testing.T) {
	texts := []string{
		strings.Repeat("x", 1000),
		strings.Repeat("Normalization removes redundancy. ", 53),
		"短い日本語のテキストと emoji 🎉 mixed into a longer sentence that spans windows.",
	}
	cases := []struct{ size, overlap int }{{500, 50}, {100, 0}, {7, 6}, {10, 3}}
	for _, text := range texts {
		for _, tc := range cases {
			chunks, err := Chunk(doc(text), tc.size, tc.overlap)
			if err != nil {
				t.Fatalf("Chunk(%d,%d): %v", tc.size, tc.overlap, err)
			}
			if got := rebuild(chunks, tc.overlap); got != text {
				t.Fatalf("round trip failed for size=%d overlap=%d", tc.size, tc.overlap)
			}
			for i, c := range chunks {
				if n := len([]rune(c.Text)); n > tc.size || n == 0 {
					t.Fatalf("chunk %d has %d runes (size %d)", i, n, tc.size)
				}
			}
		}
	}
}

func TestChunk_Empty(t *testing.T) {
	chunks, err := Chunk(doc(""), 500, 50)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunk_ShortDocument(t *testing.T) {
	chunks, err := Chunk(doc("tiny"), 500, 50)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "tiny" {
		t.Fatalf("expected single chunk 'tiny', got %+v", chunks)
	}
}

func TestChunk_ExactFit(t *testing.T) {
	chunks, _ := Chunk(doc(strings.Repeat("a", 500)), 500, 50)
	if len(chunks) != 1 {
		t.Fatalf("a document of exactly chunkSize runes should give 1 chunk, got %d", len(chunks))
	}
}

func TestChunk_InvalidConfiguration(t *testing.T) {
	cases := []struct{ size, overlap int }{{0, 0}, {-1, 0}, {10, 10}, {10, 11}, {10, -1}}
	for _, tc := range cases {
		_, err := Chunk(doc("anything"), tc.size, tc.overlap)
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Errorf("Chunk(%d,%d): expected ErrInvalidConfiguration, got %v", tc.size, tc.overlap, err)
		}
	}
}

// --- Splitter with separators ---

func TestSplitter_PrefersSentenceBoundaries(t *testing.T) {
	text := "First sentence is here. Second sentence follows it. Third one closes the paragraph."
	s, err := New(40, 5, WithSeparators(DefaultSeparators))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.ChunkSize() != 40 || s.Overlap() != 5 {
		t.Fatalf("expected 40/5, got %d/%d", s.ChunkSize(), s.Overlap())
	}
	chunks := s.Split(doc(text))
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ". ") {
		t.Errorf("first chunk should end on a sentence boundary, got %q", chunks[0].Text)
	}
	if got := rebuild(chunks, 5); got != text {
		t.Fatalf("round trip failed in boundary mode: %q", got)
	}
}

func TestSplitter_BoundaryFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("z", 95)
	s, _ := New(30, 10, WithSeparators(DefaultSeparators))
	chunks := s.Split(doc(text))
	for i, c := range chunks[:len(chunks)-1] {
		if len([]rune(c.Text)) != 30 {
			t.Errorf("chunk %d: expected hard cut at 30, got %d", i, len([]rune(c.Text)))
		}
	}
	if got := rebuild(chunks, 10); got != text {
		t.Fatal("round trip failed")
	}
}

func TestSplitter_ParagraphsRoundTrip(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Indexes speed up reads, but they slow down writes.\n")
		if i%4 == 0 {
			sb.WriteString("\n")
		}
	}
	text := sb.String()
	s, _ := New(DefaultChunkSize, DefaultChunkOverlap, WithSeparators(DefaultSeparators))
	chunks := s.Split(doc(text))
	if got := rebuild(chunks, DefaultChunkOverlap); got != text {
		t.Fatal("round trip failed")
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
}
