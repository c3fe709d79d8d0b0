package journal

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 2

func initSchema(db *sql.DB) error {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version == schemaVersion {
		return nil
	}
	if version > schemaVersion {
		return fmt.Errorf("journal schema version %d is newer than %d", version, schemaVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version == 0 {
		if err := createTables(tx); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	} else if err := migrate(tx, version); err != nil {
		return fmt.Errorf("failed to migrate from version %d: %w", version, err)
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return tx.Commit()
}

func createTables(tx *sql.Tx) error {
	queries := []string{
		// One row per server process.
		`CREATE TABLE IF NOT EXISTS sessions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            started_at INTEGER NOT NULL,
            encoding TEXT NOT NULL
        )`,

		// One row per committed buffer change, in commit order.
		`CREATE TABLE IF NOT EXISTS changes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id INTEGER NOT NULL,
            version INTEGER NOT NULL,
            kind TEXT NOT NULL,
            encoding TEXT NOT NULL,
            recorded_at INTEGER NOT NULL,
            FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
        )`,

		`CREATE INDEX IF NOT EXISTS idx_changes_session
            ON changes(session_id, version)`,

		// The edits of a change; has_range = 0 marks a full replacement.
		`CREATE TABLE IF NOT EXISTS edits (
            change_id INTEGER NOT NULL,
            idx INTEGER NOT NULL,
            has_range INTEGER NOT NULL,
            start_line INTEGER NOT NULL DEFAULT 0,
            start_character INTEGER NOT NULL DEFAULT 0,
            end_line INTEGER NOT NULL DEFAULT 0,
            end_character INTEGER NOT NULL DEFAULT 0,
            text TEXT NOT NULL,
            FOREIGN KEY (change_id) REFERENCES changes(id) ON DELETE CASCADE,
            PRIMARY KEY (change_id, idx)
        )`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	return nil
}

// migrate upgrades an older schema in place.
func migrate(tx *sql.Tx, from int) error {
	if from < 2 {
		// Version 1 kept the encoding on the session only; an empty value
		// falls back to it.
		_, err := tx.Exec(`ALTER TABLE changes ADD COLUMN encoding TEXT NOT NULL DEFAULT ''`)
		if err != nil {
			return err
		}
	}
	return nil
}
