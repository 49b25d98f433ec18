// Package knowledge provides the retrieval engine behind the interviewer:
// ingesting domain documents and finding the chunks relevant to an answer.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"interviewsim/internal/chunker"
	"interviewsim/internal/domain"
	"interviewsim/internal/metrics"
)

const DefaultMaxTopK = 20

// Engine manages the knowledge base: ingesting documents and retrieving chunks.
type Engine struct {
	store    domain.VectorStore
	embedder domain.Embedder
	splitter *chunker.Splitter
	maxTopK  int
	minScore float64
	metrics  *metrics.RetrievalMetrics
	logger   *slog.Logger
}

type EngineConfig struct {
	Store    domain.VectorStore
	Embedder domain.Embedder
	Splitter *chunker.Splitter // default: fixed 500/50 windows
	MaxTopK  int               // requests above this are clamped (default: 20)
	MinScore float64           // results scoring below are dropped (default: 0, disabled)
	Metrics  *metrics.RetrievalMetrics
	Logger   *slog.Logger
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: knowledge engine needs a store and an embedder", domain.ErrInvalidConfiguration)
	}
	if cfg.Splitter == nil {
		s, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap)
		if err != nil {
			return nil, err
		}
		cfg.Splitter = s
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultMaxTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		splitter: cfg.Splitter,
		maxTopK:  cfg.MaxTopK,
		minScore: cfg.MinScore,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}, nil
}

// Metrics returns the retrieval metrics recorder, nil if none was configured.
func (e *Engine) Metrics() *metrics.RetrievalMetrics { return e.metrics }

// Count returns the number of chunks in the store.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// Retrieve returns up to topK chunks most similar to query, restricted to
// domains when non-empty. Results are ordered best-first with ties broken by
// (SourceDocumentID, ChunkIndex). Collaborator errors are returned wrapped and
// never retried here.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, domains []string) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be > 0, got %d", domain.ErrInvalidConfiguration, topK)
	}
	if topK > e.maxTopK {
		e.logger.Warn("topK clamped", "requested", topK, "max", e.maxTopK)
		topK = e.maxTopK
	}

	start := time.Now()
	results, err := e.retrieve(ctx, query, topK, domains)
	if err != nil {
		metrics.RetrievalErrors.Inc()
		return nil, err
	}
	elapsed := time.Since(start)

	metrics.RetrievalsTotal.Inc()
	metrics.RetrievalLatency.ObserveDuration(elapsed)
	e.record(results, elapsed)

	e.logger.Debug("retrieved chunks", "results", len(results), "top_k", topK, "domains", domains, "elapsed", elapsed)
	return results, nil
}

func (e *Engine) retrieve(ctx context.Context, query string, topK int, domains []string) ([]domain.RetrievalResult, error) {
	n, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrEmptyKnowledgeBase
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := e.store.Query(ctx, vec, domain.VectorQuery{Limit: topK, Domains: domains})
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	candidates = FilterDomains(candidates, domains)
	candidates = filterScore(candidates, e.minScore)
	SortResults(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (e *Engine) record(results []domain.RetrievalResult, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordQueryLatency(elapsed)
	scores := make([]float64, len(results))
	perDomain := make(map[string]int)
	for i, r := range results {
		scores[i] = r.Score
		perDomain[r.Chunk.Domain]++
		e.metrics.RecordChunkHit(r.Chunk.Key())
	}
	e.metrics.RecordSimilarities(scores)
	for d, n := range perDomain {
		e.metrics.RecordDomainHit(d, n)
	}
}

// IngestReport summarizes an Ingest call.
type IngestReport struct {
	Documents int
	Skipped   int
	Chunks    int
}

// Ingest chunks, embeds and stores docs. Re-ingesting a document replaces its
// previous chunks. When the store keeps fingerprints, documents whose content
// and embedder did not change are skipped.
func (e *Engine) Ingest(ctx context.Context, docs []domain.Document) (IngestReport, error) {
	var report IngestReport
	fps, _ := e.store.(domain.FingerprintStore)
	e.logger.Debug("ingesting", "documents", len(docs), "chunk_size", e.splitter.ChunkSize(), "overlap", e.splitter.Overlap())

	for _, doc := range docs {
		if doc.Fingerprint == "" {
			doc.Fingerprint = Fingerprint(doc.Content)
		}
		key := e.indexKey(doc)
		if fps != nil {
			prev, err := fps.DocumentFingerprint(ctx, doc.ID)
			if err != nil {
				return report, fmt.Errorf("read fingerprint %s: %w", doc.ID, err)
			}
			if prev == key {
				report.Skipped++
				metrics.DocumentsSkipped.Inc()
				e.logger.Debug("document unchanged, skipping", "doc", doc.ID)
				continue
			}
		}

		n, err := e.ingestOne(ctx, doc)
		if err != nil {
			return report, err
		}
		if fps != nil {
			if err := fps.SetDocumentFingerprint(ctx, doc.ID, key); err != nil {
				return report, fmt.Errorf("store fingerprint %s: %w", doc.ID, err)
			}
		}
		report.Documents++
		report.Chunks += n
		e.logger.Info("document ingested", "doc", doc.ID, "domain", doc.Domain, "chunks", n)
	}
	return report, nil
}

func (e *Engine) ingestOne(ctx context.Context, doc domain.Document) (int, error) {
	chunks := e.splitter.Split(doc)
	embeddings := make([]domain.Embedding, len(chunks))
	for i, c := range chunks {
		vec, err := e.embedder.Embed(ctx, c.Text)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", c.Key(), err)
		}
		embeddings[i] = vec
	}

	if r, ok := e.store.(domain.DocumentReplacer); ok {
		if err := r.ReplaceDocument(ctx, doc.ID, chunks, embeddings); err != nil {
			return 0, fmt.Errorf("store chunks of %s: %w", doc.ID, err)
		}
	} else {
		if err := e.store.DeleteDocument(ctx, doc.ID); err != nil {
			return 0, fmt.Errorf("delete previous chunks of %s: %w", doc.ID, err)
		}
		if err := e.store.Upsert(ctx, chunks, embeddings); err != nil {
			return 0, fmt.Errorf("store chunks of %s: %w", doc.ID, err)
		}
	}
	metrics.ChunksIngested.Add(int64(len(chunks)))
	return len(chunks), nil
}

// identifiedEmbedder names the vector space it embeds into, model included.
type identifiedEmbedder interface {
	ID() string
}

// indexKey is what the store remembers per document: the content fingerprint
// plus the embedder that produced the vectors. Switching embedders, models or
// dimensions therefore re-embeds every document.
func (e *Engine) indexKey(doc domain.Document) string {
	if id, ok := e.embedder.(identifiedEmbedder); ok {
		return doc.Fingerprint + "/" + id.ID()
	}
	return doc.Fingerprint + "/" + e.embedder.Name() + "/" + strconv.Itoa(e.embedder.Dimension())
}

// Clear removes every chunk from the store.
func (e *Engine) Clear(ctx context.Context) error {
	return e.store.Clear(ctx)
}
