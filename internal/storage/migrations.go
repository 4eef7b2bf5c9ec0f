package storage

import "fmt"

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied")
	return nil
}

var migrations = []string{
	// Current token. A single row, replaced on every login.
	`CREATE TABLE IF NOT EXISTS token (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		access_token TEXT NOT NULL,
		obtained_at  TEXT NOT NULL
	)`,

	// Stops. lines holds the line labels as a JSON array.
	`CREATE TABLE IF NOT EXISTS stops (
		stop_id   TEXT PRIMARY KEY,
		stop_name TEXT NOT NULL,
		lines     TEXT NOT NULL,
		latitude  REAL NOT NULL,
		longitude REAL NOT NULL
	)`,
}
