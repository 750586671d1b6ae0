package state

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS lastfm_session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			username TEXT NOT NULL,
			session_key TEXT NOT NULL,
			linked_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pending_scrobbles (
			id TEXT PRIMARY KEY,
			identifier TEXT,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_attempt_at INTEGER,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pending_created ON pending_scrobbles(created_at);

		CREATE TABLE IF NOT EXISTS scrobble_ledger (
			key TEXT PRIMARY KEY,
			scrobbled_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ledger_scrobbled_at ON scrobble_ledger(scrobbled_at);

		CREATE TABLE IF NOT EXISTS current_candidate (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			identifier TEXT,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			last_position_ms INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			now_playing_sent INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS scrobble_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			status TEXT NOT NULL,
			message TEXT
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
