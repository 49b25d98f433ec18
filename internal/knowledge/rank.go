package knowledge

import (
	"slices"

	"interviewsim/internal/domain"
)

// SortResults orders results best-first, breaking score ties by ascending
// (SourceDocumentID, ChunkIndex).
func SortResults(results []domain.RetrievalResult) {
	slices.SortStableFunc(results, compareResults)
}

func compareResults(a, b domain.RetrievalResult) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	}
	return 0
}

// FilterDomains keeps the results whose chunk domain is in domains.
// An empty filter keeps everything.
func FilterDomains(results []domain.RetrievalResult, domains []string) []domain.RetrievalResult {
	if len(domains) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if slices.Contains(domains, r.Chunk.Domain) {
			out = append(out, r)
		}
	}
	return out
}

func filterScore(results []domain.RetrievalResult, minScore float64) []domain.RetrievalResult {
	if minScore <= 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}
