// Package vectorstore holds the chunk-embedding stores the knowledge engine searches.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"interviewsim/internal/domain"
)

var (
	_ domain.DocumentReplacer = (*Memory)(nil)
	_ domain.DocumentReplacer = (*SQLite)(nil)
	_ domain.DocumentReplacer = (*PGVector)(nil)
)

// Config selects and configures a vector store.
type Config struct {
	Type       string // memory | sqlite | qdrant | pgvector
	Path       string
	URL        string
	APIKey     string
	Collection string
	DSN        string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Open returns the store named by cfg.Type.
func Open(ctx context.Context, cfg Config) (domain.VectorStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case "memory":
		return NewMemory(), nil
	case "", "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: vectorStore.path is required for sqlite", domain.ErrInvalidConfiguration)
		}
		return NewSQLite(cfg.Path, logger)
	case "qdrant":
		return NewQdrant(QdrantConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
			Timeout:    cfg.Timeout,
			Logger:     logger,
		}), nil
	case "pgvector":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%w: vectorStore.dsn is required for pgvector", domain.ErrInvalidConfiguration)
		}
		return NewPGVector(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: unknown vector store type %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}
