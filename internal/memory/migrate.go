package memory

import "interviewsim/internal/sqlitedb"

// migrations is the transcript schema. Append new steps; never edit applied ones.
var migrations = []sqlitedb.Migration{
	{
		Version:     1,
		Description: "base schema: interviews, turns",
		SQL: `
		CREATE TABLE IF NOT EXISTS interviews (
			id          TEXT PRIMARY KEY,
			title       TEXT,
			domains     TEXT DEFAULT '',
			difficulty  TEXT DEFAULT '',
			provider    TEXT DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS turns (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			interview_id  TEXT NOT NULL REFERENCES interviews(id) ON DELETE CASCADE,
			role          TEXT NOT NULL,
			content       TEXT,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_turns_interview ON turns(interview_id, id);
		`,
	},
	{
		Version:     2,
		Description: "per-turn provider and latency",
		SQL: `
		ALTER TABLE turns ADD COLUMN provider TEXT DEFAULT '';
		ALTER TABLE turns ADD COLUMN latency_ms INTEGER DEFAULT 0;
		`,
	},
	{
		Version:     3,
		Description: "updated_at index for listing",
		SQL: `
		CREATE INDEX IF NOT EXISTS idx_interviews_updated ON interviews(updated_at);
		`,
	},
}
