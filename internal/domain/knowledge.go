package domain

import (
	"context"
	"strconv"
)

// Document is one knowledge-base file belonging to a single interview domain.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Path        string `json:"path,omitempty"`
	Content     string `json:"-"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Chunk is a bounded slice of a Document used as the unit of retrieval.
// StartOffset is counted in characters (runes), not bytes.
type Chunk struct {
	Text             string `json:"text"`
	Domain           string `json:"domain"`
	SourceDocumentID string `json:"source_document_id"`
	ChunkIndex       int    `json:"chunk_index"`
	StartOffset      int    `json:"start_offset"`
}

// Key identifies a chunk inside a knowledge base.
func (c Chunk) Key() string {
	return c.SourceDocumentID + ":" + strconv.Itoa(c.ChunkIndex)
}

// Embedding is the vector attached 1:1 to a chunk.
type Embedding []float32

// RetrievalResult is a chunk with its similarity to the query (higher is closer).
type RetrievalResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// VectorQuery narrows a nearest-neighbour lookup. Domains is a hint: stores
// that can filter natively do so, the retrieval core filters again either way.
type VectorQuery struct {
	Limit   int
	Domains []string
}

// Embedder turns text into an Embedding.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) (Embedding, error)
}

// VectorStore persists chunk embeddings and answers similarity queries.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []Chunk, embeddings []Embedding) error
	Query(ctx context.Context, vector Embedding, q VectorQuery) ([]RetrievalResult, error)
	Count(ctx context.Context) (int, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Clear(ctx context.Context) error
	Close() error
}

// FingerprintStore is implemented by vector stores that can remember which
// version of a document they hold, so unchanged documents are not re-embedded.
type FingerprintStore interface {
	DocumentFingerprint(ctx context.Context, documentID string) (string, error)
	SetDocumentFingerprint(ctx context.Context, documentID, fingerprint string) error
}

// DocumentReplacer is implemented by stores that can swap a document's chunks
// in one step, so a failed write leaves the previous chunks in place.
type DocumentReplacer interface {
	ReplaceDocument(ctx context.Context, documentID string, chunks []Chunk, embeddings []Embedding) error
}

// Before reports whether r ranks ahead of o: higher score first, then
// ascending (SourceDocumentID, ChunkIndex) so equal scores order deterministically.
func (r RetrievalResult) Before(o RetrievalResult) bool {
	if r.Score != o.Score {
		return r.Score > o.Score
	}
	if r.Chunk.SourceDocumentID != o.Chunk.SourceDocumentID {
		return r.Chunk.SourceDocumentID < o.Chunk.SourceDocumentID
	}
	return r.Chunk.ChunkIndex < o.Chunk.ChunkIndex
}
