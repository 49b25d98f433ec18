// Package chunker splits knowledge-base documents into overlapping character windows.
package chunker

import (
	"fmt"

	"interviewsim/internal/domain"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// DefaultSeparators lists split points from most to least preferred.
var DefaultSeparators = []string{"\n\n", "\n", ". ", ", ", " "}

// Splitter cuts documents into chunks of at most chunkSize runes, each chunk
// after the first starting with the last overlap runes of its predecessor.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators [][]rune
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparators makes the splitter end windows on the best separator found
// in the second half of the window instead of at the exact size limit.
func WithSeparators(seps []string) Option {
	return func(s *Splitter) {
		s.separators = s.separators[:0]
		for _, sep := range seps {
			if sep == "" {
				continue
			}
			s.separators = append(s.separators, []rune(sep))
		}
	}
}

// Validate checks chunkSize > 0 and 0 <= overlap < chunkSize.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be > 0, got %d", domain.ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidConfiguration, chunkSize, overlap)
	}
	return nil
}

// New creates a Splitter. Without options it produces plain fixed windows.
func New(chunkSize, overlap int, opts ...Option) (*Splitter, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	s := &Splitter{chunkSize: chunkSize, overlap: overlap}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chunk splits doc into fixed windows of chunkSize runes advancing by
// chunkSize-overlap. It has no hidden state: equal inputs give equal output.
func Chunk(doc domain.Document, chunkSize, overlap int) ([]domain.Chunk, error) {
	s, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return s.Split(doc), nil
}

// ChunkSize is the window length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap is the number of runes each chunk repeats from the previous one.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunks of doc in index order. An empty document has no chunks.
func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	text := []rune(doc.Content)
	n := len(text)
	if n == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, n/(s.chunkSize-s.overlap)+1)
	start := 0
	for {
		end := start + s.chunkSize
		if end >= n {
			end = n
		} else if len(s.separators) > 0 {
			end = s.boundary(text, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			Text:             string(text[start:end]),
			Domain:           doc.Domain,
			SourceDocumentID: doc.ID,
			ChunkIndex:       len(chunks),
			StartOffset:      start,
		})

		if end == n {
			break
		}
		start = end - s.overlap
	}
	return chunks
}

// boundary moves end back to just after the highest-priority separator in the
// tail of the window. The result always stays > start+overlap so the next
// window makes progress.
func (s *Splitter) boundary(text []rune, start, end int) int {
	lo := start + s.chunkSize/2
	if lo <= start+s.overlap {
		lo = start + s.overlap + 1
	}
	for _, sep := range s.separators {
		for i := end - len(sep); i >= lo-len(sep) && i >= start; i-- {
			if hasPrefixAt(text, i, sep) {
				cut := i + len(sep)
				if cut > start+s.overlap && cut <= end {
					return cut
				}
			}
		}
	}
	return end
}

func hasPrefixAt(text []rune, i int, sep []rune) bool {
	if i+len(sep) > len(text) {
		return false
	}
	for j, r := range sep {
		if text[i+j] != r {
			return false
		}
	}
	return true
}
