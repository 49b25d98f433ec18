package vectorstore

import (
	"context"
	"sync"

	"interviewsim/internal/domain"
)

type entry struct {
	chunk domain.Chunk
	vec   domain.Embedding
}

// Memory is an in-process vector store using brute-force cosine similarity.
// Contents are lost when the process exits.
type Memory struct {
	mu           sync.RWMutex
	dimension    int
	entries      map[string]entry
	fingerprints map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		entries:      make(map[string]entry),
		fingerprints: make(map[string]string),
	}
}

func (m *Memory) Upsert(ctx context.Context, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(chunks, embeddings)
}

// ReplaceDocument drops documentID's chunks and stores the new ones under one
// lock. On a dimension mismatch nothing changes.
func (m *Memory) ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(chunks) > 0 && m.dimension != len(embeddings[0]) {
		for _, e := range m.entries {
			if e.chunk.SourceDocumentID != documentID {
				return dimensionError(len(embeddings[0]), m.dimension)
			}
		}
	}
	for k, e := range m.entries {
		if e.chunk.SourceDocumentID == documentID {
			delete(m.entries, k)
		}
	}
	delete(m.fingerprints, documentID)
	return m.put(chunks, embeddings)
}

func (m *Memory) put(chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if len(chunks) == 0 {
		return nil
	}
	dim := len(embeddings[0])
	if len(m.entries) > 0 && m.dimension != dim {
		return dimensionError(dim, m.dimension)
	}
	m.dimension = dim
	for i, c := range chunks {
		vec := make(domain.Embedding, dim)
		copy(vec, embeddings[i])
		m.entries[c.Key()] = entry{chunk: c, vec: vec}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, vector domain.Embedding, q domain.VectorQuery) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allowed := domainSet(q.Domains)

	m.mu.RLock()
	if len(m.entries) > 0 && len(vector) != m.dimension {
		m.mu.RUnlock()
		return nil, dimensionError(len(vector), m.dimension)
	}
	results := make([]domain.RetrievalResult, 0, len(m.entries))
	for _, e := range m.entries {
		if allowed != nil && !allowed[e.chunk.Domain] {
			continue
		}
		results = append(results, domain.RetrievalResult{Chunk: e.chunk, Score: Cosine(vector, e.vec)})
	}
	m.mu.RUnlock()

	return topN(results, q.Limit), nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *Memory) DeleteDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if e.chunk.SourceDocumentID == documentID {
			delete(m.entries, k)
		}
	}
	delete(m.fingerprints, documentID)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	m.fingerprints = make(map[string]string)
	m.dimension = 0
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) DocumentFingerprint(ctx context.Context, documentID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fingerprints[documentID], nil
}

func (m *Memory) SetDocumentFingerprint(ctx context.Context, documentID, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fingerprints[documentID] = fingerprint
	return nil
}
