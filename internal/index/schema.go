package index

import "database/sql"

const currentSchemaVersion = 3

// ensureSchema creates the directories/tracks/kv tables if missing and
// applies any pending migrations. Each ALTER TABLE is idempotent: SQLite
// reports a duplicate-column error on repeat runs, which is ignored here the
// same way the teacher's migration block ignores it, so startup never fails
// on an already-migrated database.
func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS directories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			path       TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			directory_id   INTEGER NOT NULL REFERENCES directories(id) ON DELETE CASCADE,
			relative_path  TEXT NOT NULL,
			title          TEXT NOT NULL,
			artist         TEXT NOT NULL,
			album          TEXT NOT NULL DEFAULT '',
			album_artist   TEXT NOT NULL DEFAULT '',
			duration_secs  REAL NOT NULL DEFAULT 0,
			file_mtime     INTEGER NOT NULL,
			last_scanned_at INTEGER NOT NULL,
			lyric_state    TEXT NOT NULL DEFAULT 'unknown',
			lyric_reason   TEXT NOT NULL DEFAULT '',
			UNIQUE(directory_id, relative_path)
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_artist_album ON tracks(artist, album, relative_path);
		CREATE INDEX IF NOT EXISTS idx_tracks_lyric_state ON tracks(lyric_state);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_kv (key, value) VALUES ('version', ?)`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: lyric_reason was added after the first cut of this table.
	_, _ = db.Exec(`ALTER TABLE tracks ADD COLUMN lyric_reason TEXT NOT NULL DEFAULT ''`)

	_, _ = db.Exec(`UPDATE schema_kv SET value = ? WHERE key = 'version'`, currentSchemaVersion)

	return nil
}
