package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Token is the persisted form of the current API credential.
type Token struct {
	AccessToken string
	ObtainedAt  time.Time
}

// SaveToken persists the token, replacing any prior one.
func (db *DB) SaveToken(ctx context.Context, t Token) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO token (id, access_token, obtained_at) VALUES (1, ?, ?)`,
		t.AccessToken, t.ObtainedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// GetToken returns the current token, or nil when none is stored.
// "No token" is a valid result, not an error.
func (db *DB) GetToken(ctx context.Context) (*Token, error) {
	var accessToken, obtainedAt string
	err := db.QueryRowContext(ctx,
		`SELECT access_token, obtained_at FROM token WHERE id = 1`).
		Scan(&accessToken, &obtainedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	t := &Token{AccessToken: accessToken}
	if ts, err := time.Parse(time.RFC3339, obtainedAt); err == nil {
		t.ObtainedAt = ts
	}
	return t, nil
}

// ClearToken removes the stored token. Used when the API rejects it.
func (db *DB) ClearToken(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM token`); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
