package knowledge

import (
	"slices"
	"strings"
	"unicode/utf8"

	"interviewsim/internal/domain"
)

// ContextSeparator is placed between consecutive chunks of an assembled context.
const ContextSeparator = "\n\n---\n\n"

// Assembler joins retrieval results into a bounded context string.
type Assembler struct {
	// OrderByPosition re-orders the selected chunks by document and position
	// after selection, so neighbouring chunks read in their original order.
	OrderByPosition bool
}

// AssembleContext is Assembler{}.Assemble.
func AssembleContext(results []domain.RetrievalResult, maxContextLength int) string {
	return Assembler{}.Assemble(results, maxContextLength)
}

// Assemble walks results best-first, skipping exact-duplicate texts, and adds
// each chunk as "[domain]\n<text>" until the next one would push the length
// (in runes) past maxContextLength. Chunks are never cut.
func (a Assembler) Assemble(results []domain.RetrievalResult, maxContextLength int) string {
	if len(results) == 0 {
		return ""
	}
	ranked := slices.Clone(results)
	SortResults(ranked)

	sepLen := utf8.RuneCountInString(ContextSeparator)
	seen := make(map[string]bool, len(ranked))
	var picked []domain.RetrievalResult
	var blocks []string
	total := 0

	for _, r := range ranked {
		if seen[r.Chunk.Text] {
			continue
		}
		seen[r.Chunk.Text] = true

		block := renderChunk(r.Chunk)
		n := utf8.RuneCountInString(block)
		if len(blocks) > 0 {
			n += sepLen
		}
		if total+n > maxContextLength {
			break
		}
		total += n
		picked = append(picked, r)
		blocks = append(blocks, block)
	}

	if a.OrderByPosition && len(picked) > 1 {
		slices.SortStableFunc(picked, func(x, y domain.RetrievalResult) int {
			if c := strings.Compare(x.Chunk.SourceDocumentID, y.Chunk.SourceDocumentID); c != 0 {
				return c
			}
			return x.Chunk.ChunkIndex - y.Chunk.ChunkIndex
		})
		for i, r := range picked {
			blocks[i] = renderChunk(r.Chunk)
		}
	}
	return strings.Join(blocks, ContextSeparator)
}

func renderChunk(c domain.Chunk) string {
	return "[" + c.Domain + "]\n" + c.Text
}
