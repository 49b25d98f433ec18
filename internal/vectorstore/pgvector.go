package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"interviewsim/internal/domain"
)

const pgSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS interview_chunks (
	document_id  TEXT NOT NULL,
	chunk_index  INTEGER NOT NULL,
	domain       TEXT NOT NULL,
	content      TEXT NOT NULL,
	start_offset INTEGER NOT NULL DEFAULT 0,
	embedding    vector NOT NULL,
	PRIMARY KEY (document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_interview_chunks_domain ON interview_chunks(domain);

CREATE TABLE IF NOT EXISTS interview_documents (
	document_id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const pgUpsertChunk = `
INSERT INTO interview_chunks (document_id, chunk_index, domain, content, start_offset, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (document_id, chunk_index) DO UPDATE
SET domain = EXCLUDED.domain, content = EXCLUDED.content,
    start_offset = EXCLUDED.start_offset, embedding = EXCLUDED.embedding`

// pgQueryChunks ranks by cosine distance, equal distances by chunk key so the
// LIMIT cut is deterministic. A NULL domain array disables the filter.
const pgQueryChunks = `
SELECT document_id, chunk_index, domain, content, start_offset, 1 - (embedding <=> $1) AS score
FROM interview_chunks
WHERE $3::text[] IS NULL OR domain = ANY($3)
ORDER BY embedding <=> $1, document_id, chunk_index
LIMIT $2`

const pgStoredDimension = `SELECT COALESCE(MAX(vector_dims(embedding)), 0) FROM interview_chunks`

// PGVector stores chunks in PostgreSQL with the pgvector extension.
type PGVector struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGVector(ctx context.Context, dsn string, logger *slog.Logger) (*PGVector, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema (is the vector extension installed?): %w", err)
	}
	return &PGVector{pool: pool, logger: logger}, nil
}

func (p *PGVector) Upsert(ctx context.Context, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return pgWriteChunks(ctx, tx, chunks, embeddings)
	})
}

// ReplaceDocument swaps documentID's chunks inside one transaction.
func (p *PGVector) ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM interview_chunks WHERE document_id = $1`, documentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM interview_documents WHERE document_id = $1`, documentID); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return pgWriteChunks(ctx, tx, chunks, embeddings)
	})
}

func pgWriteChunks(ctx context.Context, tx pgx.Tx, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	var stored int
	if err := tx.QueryRow(ctx, pgStoredDimension).Scan(&stored); err != nil {
		return fmt.Errorf("failed to read dimension: %w", err)
	}
	if stored != 0 && stored != len(embeddings[0]) {
		return dimensionError(len(embeddings[0]), stored)
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(pgUpsertChunk,
			c.SourceDocumentID, c.ChunkIndex, c.Domain, c.Text, c.StartOffset,
			pgvector.NewVector(embeddings[i]),
		)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunk %d: %w", i, err)
		}
	}
	return br.Close()
}

func (p *PGVector) Query(ctx context.Context, vector domain.Embedding, q domain.VectorQuery) ([]domain.RetrievalResult, error) {
	var stored int
	if err := p.pool.QueryRow(ctx, pgStoredDimension).Scan(&stored); err != nil {
		return nil, fmt.Errorf("failed to read dimension: %w", err)
	}
	if stored != 0 && stored != len(vector) {
		return nil, dimensionError(len(vector), stored)
	}

	rows, err := p.pool.Query(ctx, pgQueryChunks, pgvector.NewVector(vector), pgLimit(q.Limit), pgDomains(q.Domains))
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var r domain.RetrievalResult
		if err := rows.Scan(
			&r.Chunk.SourceDocumentID, &r.Chunk.ChunkIndex, &r.Chunk.Domain,
			&r.Chunk.Text, &r.Chunk.StartOffset, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(results, q.Limit), nil
}

func (p *PGVector) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM interview_chunks`).Scan(&n)
	return n, err
}

func (p *PGVector) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM interview_chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `DELETE FROM interview_documents WHERE document_id = $1`, documentID)
	return err
}

func (p *PGVector) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `TRUNCATE interview_chunks, interview_documents`)
	return err
}

func (p *PGVector) DocumentFingerprint(ctx context.Context, documentID string) (string, error) {
	var fp string
	err := p.pool.QueryRow(ctx,
		`SELECT fingerprint FROM interview_documents WHERE document_id = $1`, documentID,
	).Scan(&fp)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return fp, err
}

func (p *PGVector) SetDocumentFingerprint(ctx context.Context, documentID, fingerprint string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO interview_documents (document_id, fingerprint) VALUES ($1, $2)
		 ON CONFLICT (document_id) DO UPDATE SET fingerprint = EXCLUDED.fingerprint, updated_at = now()`,
		documentID, fingerprint)
	return err
}

func (p *PGVector) Close() error {
	p.pool.Close()
	return nil
}

func pgLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}

// pgDomains maps an empty filter to NULL so the WHERE clause matches every row.
func pgDomains(domains []string) []string {
	if len(domains) == 0 {
		return nil
	}
	return domains
}
