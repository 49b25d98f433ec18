package vectorstore

import (
	"fmt"
	"math"
	"slices"

	"interviewsim/internal/domain"
)

// Cosine returns the cosine similarity of a and b, 0 if either is a zero vector.
func Cosine(a, b domain.Embedding) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func checkBatch(chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d != %d", len(chunks), len(embeddings))
	}
	for i := 1; i < len(embeddings); i++ {
		if len(embeddings[i]) != len(embeddings[0]) {
			return fmt.Errorf("embedding dimension mismatch at %d: %d != %d", i, len(embeddings[i]), len(embeddings[0]))
		}
	}
	return nil
}

func dimensionError(got, stored int) error {
	return fmt.Errorf("%w: got %d, store holds %d (re-ingest with --reset after changing the embedder)",
		domain.ErrDimensionMismatch, got, stored)
}

func domainSet(domains []string) map[string]bool {
	if len(domains) == 0 {
		return nil
	}
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[d] = true
	}
	return set
}

// topN sorts results best-first and keeps at most limit of them (all when limit <= 0).
func topN(results []domain.RetrievalResult, limit int) []domain.RetrievalResult {
	slices.SortFunc(results, func(a, b domain.RetrievalResult) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
