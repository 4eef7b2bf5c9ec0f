package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Stop is a cached transit stop.
type Stop struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Lines     []string `json:"lines"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
}

// UpsertStops inserts or replaces the given stops by id inside a single
// transaction. Readers see either the pre-upsert state or all of it,
// never a partial batch. Returns the number of rows written.
//
// Stops absent from the batch are left in place; a full refresh never
// deletes anything.
func (db *DB) UpsertStops(ctx context.Context, stops []Stop) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stops (stop_id, stop_name, lines, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(stop_id) DO UPDATE SET
		 	stop_name = excluded.stop_name,
		 	lines     = excluded.lines,
		 	latitude  = excluded.latitude,
		 	longitude = excluded.longitude`)
	if err != nil {
		return 0, fmt.Errorf("prepare stops upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, s := range stops {
		lines, err := json.Marshal(s.Lines)
		if err != nil {
			return 0, fmt.Errorf("marshal lines for stop %s: %w", s.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.ID, s.Name, string(lines), s.Latitude, s.Longitude); err != nil {
			return 0, fmt.Errorf("upsert stop %s: %w", s.ID, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit stops upsert: %w", err)
	}

	db.logger.Info("stops upserted", "count", count)
	return count, nil
}

// PageStops returns up to limit stops ordered by id ascending, starting
// at offset. An out-of-range offset yields an empty page, not an error.
func (db *DB) PageStops(ctx context.Context, limit, offset int) ([]Stop, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stop_id, stop_name, lines, latitude, longitude
		FROM stops
		ORDER BY stop_id
		LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("page stops query: %w", err)
	}
	defer rows.Close()
	return scanStops(rows)
}

// SearchStops returns up to limit stops whose name, id, or serialized
// lines list contain query as a substring. An empty query matches every
// stop, mirroring plain LIKE '%%' semantics.
func (db *DB) SearchStops(ctx context.Context, query string, limit int) ([]Stop, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stop_id, stop_name, lines, latitude, longitude
		FROM stops
		WHERE stop_name LIKE '%' || ? || '%'
		   OR stop_id   LIKE '%' || ? || '%'
		   OR lines     LIKE '%' || ? || '%'
		ORDER BY stop_id
		LIMIT ?`,
		query, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search stops query: %w", err)
	}
	defer rows.Close()
	return scanStops(rows)
}

// CountStops returns the number of cached stops.
func (db *DB) CountStops(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stops`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stops: %w", err)
	}
	return count, nil
}

// HasStops returns true if the cache holds any stops.
func (db *DB) HasStops(ctx context.Context) bool {
	count, err := db.CountStops(ctx)
	return err == nil && count > 0
}

func scanStops(rows *sql.Rows) ([]Stop, error) {
	var stops []Stop
	for rows.Next() {
		var s Stop
		var lines string
		if err := rows.Scan(&s.ID, &s.Name, &lines, &s.Latitude, &s.Longitude); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		if err := json.Unmarshal([]byte(lines), &s.Lines); err != nil {
			s.Lines = nil
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}
