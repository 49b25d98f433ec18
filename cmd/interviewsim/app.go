package main

import (
	"context"
	"fmt"
	"time"

	"interviewsim/internal/chunker"
	"interviewsim/internal/config"
	"interviewsim/internal/domain"
	"interviewsim/internal/embedding"
	"interviewsim/internal/knowledge"
	"interviewsim/internal/metrics"
	"interviewsim/internal/vectorstore"
)

// app bundles the knowledge side shared by ingest, search, interview and benchmark.
type app struct {
	cfg       *config.Config
	catalogue *config.Catalogue
	store     domain.VectorStore
	embedder  domain.Embedder
	engine    *knowledge.Engine
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	cat, err := config.LoadCatalogue(cfg.Knowledge.Catalogue)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(embedding.Config{
		Type:      cfg.Embedder.Type,
		Dimension: cfg.Embedder.Dimension,
		APIBase:   cfg.Embedder.APIBase,
		APIKey:    cfg.Embedder.APIKey,
		Model:     cfg.Embedder.Model,
		Timeout:   time.Duration(cfg.Embedder.TimeoutSeconds) * time.Second,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	store, err := vectorstore.Open(ctx, vectorstore.Config{
		Type:       cfg.VectorStore.Type,
		Path:       cfg.VectorStore.Path,
		URL:        cfg.VectorStore.URL,
		APIKey:     cfg.VectorStore.APIKey,
		Collection: cfg.VectorStore.Collection,
		DSN:        cfg.VectorStore.DSN,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	var opts []chunker.Option
	if cfg.Knowledge.BoundaryAware {
		opts = append(opts, chunker.WithSeparators(cfg.Knowledge.Separators))
	}
	splitter, err := chunker.New(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	engine, err := knowledge.NewEngine(knowledge.EngineConfig{
		Store:    store,
		Embedder: emb,
		Splitter: splitter,
		MaxTopK:  cfg.Knowledge.MaxTopK,
		MinScore: cfg.Knowledge.MinScore,
		Metrics:  metrics.NewRetrievalMetrics(),
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, catalogue: cat, store: store, embedder: emb, engine: engine}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("closing vector store", "err", err)
	}
}

func (a *app) sources() []knowledge.Source {
	out := make([]knowledge.Source, len(a.catalogue.Domains))
	for i, d := range a.catalogue.Domains {
		out[i] = knowledge.Source{ID: d.ID, Name: d.Name, File: d.File}
	}
	return out
}

func (a *app) domainNames() map[string]string {
	names := make(map[string]string, len(a.catalogue.Domains))
	for _, d := range a.catalogue.Domains {
		names[d.ID] = d.Name
	}
	return names
}

// resolveDomains maps ids or display names to catalogue ids.
func (a *app) resolveDomains(keys []string) ([]string, error) {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		d, ok := a.catalogue.Lookup(k)
		if !ok {
			return nil, fmt.Errorf("%w: unknown domain %q (known: %v)", domain.ErrInvalidConfiguration, k, a.catalogue.IDs())
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (a *app) assembler() knowledge.Assembler {
	return knowledge.Assembler{OrderByPosition: a.cfg.Knowledge.OrderByPosition}
}
