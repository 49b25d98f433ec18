// Package memory persists interview transcripts in SQLite.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"interviewsim/internal/domain"
	"interviewsim/internal/sqlitedb"
)

// SQLiteStore implements domain.TranscriptStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.TranscriptStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.Migrate(context.Background(), db, migrations, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcript migration failed: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) CreateInterview(ctx context.Context, iv domain.Interview) error {
	now := time.Now()
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = now
	}
	if iv.UpdatedAt.IsZero() {
		iv.UpdatedAt = iv.CreatedAt
	}
	domains, err := json.Marshal(iv.Domains)
	if err != nil {
		return fmt.Errorf("marshal domains: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO interviews (id, title, domains, difficulty, provider, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.Title, string(domains), iv.Difficulty, iv.Provider, iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create interview %s: %w", iv.ID, err)
	}
	return nil
}

// GetInterview returns nil without error when the interview does not exist.
func (s *SQLiteStore) GetInterview(ctx context.Context, id string) (*domain.Interview, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, domains, difficulty, provider, created_at, updated_at FROM interviews WHERE id = ?`, id,
	)
	iv, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return iv, nil
}

func (s *SQLiteStore) ListInterviews(ctx context.Context, limit int) ([]domain.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, domains, difficulty, provider, created_at, updated_at
		 FROM interviews ORDER BY updated_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInterview(sc scanner) (*domain.Interview, error) {
	var iv domain.Interview
	var title, domains sql.NullString
	if err := sc.Scan(&iv.ID, &title, &domains, &iv.Difficulty, &iv.Provider, &iv.CreatedAt, &iv.UpdatedAt); err != nil {
		return nil, err
	}
	iv.Title = title.String
	if domains.String != "" {
		if err := json.Unmarshal([]byte(domains.String), &iv.Domains); err != nil {
			return nil, fmt.Errorf("decode domains of %s: %w", iv.ID, err)
		}
	}
	return &iv, nil
}

func (s *SQLiteStore) DeleteInterview(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE interview_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM interviews WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// AddTurns stores turns in one transaction so a question and its answer are
// persisted together or not at all.
func (s *SQLiteStore) AddTurns(ctx context.Context, interviewID string, turns ...domain.TurnRecord) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("%w: role %q", domain.ErrInvalidConfiguration, t.Role)
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (interview_id, role, content, provider, latency_ms, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			interviewID, string(t.Role), t.Content, t.Provider, t.LatencyMs, t.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE interviews SET updated_at = ? WHERE id = ?`, now, interviewID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetTurns returns the last limit turns in chronological order. limit <= 0 returns all.
func (s *SQLiteStore) GetTurns(ctx context.Context, interviewID string, limit int) ([]domain.TurnRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, interview_id, role, content, provider, latency_ms, created_at
		 FROM turns WHERE interview_id = ?
		 ORDER BY id DESC LIMIT ?`, interviewID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TurnRecord
	for rows.Next() {
		var t domain.TurnRecord
		var role string
		var content, provider sql.NullString
		var latency sql.NullInt64
		if err := rows.Scan(&t.ID, &t.InterviewID, &role, &content, &provider, &latency, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = domain.Role(role)
		t.Content = content.String
		t.Provider = provider.String
		t.LatencyMs = latency.Int64
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Stats returns the number of stored interviews and turns.
func (s *SQLiteStore) Stats(ctx context.Context) (interviews, turns int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interviews`).Scan(&interviews); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&turns); err != nil {
		return 0, 0, err
	}
	return interviews, turns, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
