package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Migration is one schema step. Versions start at 1 and increase by one.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Latest returns the highest version in ms, or 0.
func Latest(ms []Migration) int {
	if len(ms) == 0 {
		return 0
	}
	return ms[len(ms)-1].Version
}

func validate(ms []Migration) error {
	for i, m := range ms {
		if m.Version != i+1 {
			return fmt.Errorf("migration %d has version %d, want %d", i, m.Version, i+1)
		}
	}
	return nil
}

// Migrate applies every migration newer than the version recorded in the
// schema_version table. Each step runs in its own transaction. A step that
// fails because a column or index already exists is replayed statement by
// statement, skipping what is already there.
func Migrate(ctx context.Context, db *sql.DB, ms []Migration, logger *slog.Logger) error {
	if err := validate(ms); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > Latest(ms) {
		return fmt.Errorf("database schema v%d is newer than this build (v%d)", current, Latest(ms))
	}

	for _, m := range ms[current:] {
		logger.Info("applying migration", "version", m.Version, "description", m.Description)
		if err := apply(ctx, db, m); err != nil {
			logger.Warn("migration failed as a whole, retrying per statement", "version", m.Version, "err", err)
			if err := applyStatements(ctx, db, m, logger); err != nil {
				return err
			}
		}
		logger.Debug("migration applied", "version", m.Version)
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration v%d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if err := record(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

func applyStatements(ctx context.Context, db *sql.DB, m Migration, logger *slog.Logger) error {
	for _, stmt := range splitSQL(m.SQL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if alreadyApplied(err) {
				logger.Debug("migration statement skipped (already applied)", "stmt_prefix", truncate(stmt, 60))
				continue
			}
			return fmt.Errorf("migration v%d statement failed: %w\nSQL: %s", m.Version, err, truncate(stmt, 200))
		}
	}
	return record(ctx, db, m)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func record(ctx context.Context, db execer, m Migration) error {
	if _, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration v%d: %w", m.Version, err)
	}
	return nil
}

// SchemaVersion returns the applied version, 0 for a database never migrated.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	var version int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}

func splitSQL(sql string) []string {
	var result []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

func alreadyApplied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
