package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and turns",
		SQL: `
			CREATE TABLE sessions (
				id             TEXT PRIMARY KEY,
				seed_document  TEXT NOT NULL,
				state          TEXT NOT NULL DEFAULT 'active',
				created_at     TEXT NOT NULL,
				last_active_at TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_last_active ON sessions (state, last_active_at);

			CREATE TABLE turns (
				session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				seq        INTEGER NOT NULL,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				timestamp  TEXT NOT NULL,
				PRIMARY KEY (session_id, seq)
			);
		`,
	},
}
