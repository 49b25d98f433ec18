package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"interviewsim/internal/domain"
	"interviewsim/internal/sqlitedb"
)

// SQLite keeps chunks and their embeddings in a single SQLite file. Similarity
// is computed in Go over the rows matching the domain filter.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLite(dbPath string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.Migrate(context.Background(), db, sqliteMigrations, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("vector store migration failed: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

var sqliteMigrations = []sqlitedb.Migration{
	{
		Version:     1,
		Description: "chunks with float32 embeddings, document fingerprints",
		SQL: `
		CREATE TABLE IF NOT EXISTS chunks (
			document_id  TEXT NOT NULL,
			chunk_index  INTEGER NOT NULL,
			domain       TEXT NOT NULL,
			content      TEXT NOT NULL,
			start_offset INTEGER DEFAULT 0,
			dimension    INTEGER NOT NULL,
			embedding    BLOB NOT NULL,
			PRIMARY KEY (document_id, chunk_index)
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_domain ON chunks(domain);

		CREATE TABLE IF NOT EXISTS document_fingerprints (
			document_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		`,
	},
}

func (s *SQLite) Upsert(ctx context.Context, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeChunks(ctx, tx, chunks, embeddings)
	})
}

// ReplaceDocument deletes documentID's chunks and fingerprint and writes the
// new chunks in one transaction. Any failure rolls back to the old chunks.
func (s *SQLite) ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_fingerprints WHERE document_id = ?`, documentID); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return writeChunks(ctx, tx, chunks, embeddings)
	})
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// storedDimension returns the embedding size held by the store, 0 when empty.
func storedDimension(ctx context.Context, q queryRower) (int, error) {
	var dim int
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(dimension), 0) FROM chunks`).Scan(&dim); err != nil {
		return 0, fmt.Errorf("read dimension: %w", err)
	}
	return dim, nil
}

func writeChunks(ctx context.Context, tx *sql.Tx, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	stored, err := storedDimension(ctx, tx)
	if err != nil {
		return err
	}
	if stored != 0 && stored != len(embeddings[0]) {
		return dimensionError(len(embeddings[0]), stored)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (document_id, chunk_index, domain, content, start_offset, dimension, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			c.SourceDocumentID, c.ChunkIndex, c.Domain, c.Text, c.StartOffset,
			len(embeddings[i]), encodeVector(embeddings[i]),
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.Key(), err)
		}
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, vector domain.Embedding, q domain.VectorQuery) ([]domain.RetrievalResult, error) {
	stored, err := storedDimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if stored != 0 && stored != len(vector) {
		return nil, dimensionError(len(vector), stored)
	}

	query := `SELECT document_id, chunk_index, domain, content, start_offset, embedding FROM chunks`
	var args []any
	if len(q.Domains) > 0 {
		query += ` WHERE domain IN (?` + strings.Repeat(`, ?`, len(q.Domains)-1) + `)`
		for _, d := range q.Domains {
			args = append(args, d)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.SourceDocumentID, &c.ChunkIndex, &c.Domain, &c.Text, &c.StartOffset, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		results = append(results, domain.RetrievalResult{Chunk: c, Score: Cosine(vector, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(results, q.Limit), nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (s *SQLite) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_fingerprints WHERE document_id = ?`, documentID)
	return err
}

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_fingerprints`)
	return err
}

func (s *SQLite) DocumentFingerprint(ctx context.Context, documentID string) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM document_fingerprints WHERE document_id = ?`, documentID,
	).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return fp, err
}

func (s *SQLite) SetDocumentFingerprint(ctx context.Context, documentID, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_fingerprints (document_id, fingerprint, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(document_id) DO UPDATE SET fingerprint = excluded.fingerprint, updated_at = CURRENT_TIMESTAMP`,
		documentID, fingerprint)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v domain.Embedding) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) domain.Embedding {
	v := make(domain.Embedding, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
