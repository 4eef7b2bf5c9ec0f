package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetToken_NonePresent(t *testing.T) {
	db := openTestDB(t)

	// "No token" is a valid result, not an error.
	token, err := db.GetToken(context.Background())
	require.NoError(t, err)
	require.Nil(t, token)
}

func TestSaveToken_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	obtained := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, db.SaveToken(ctx, Token{AccessToken: "T1", ObtainedAt: obtained}))

	token, err := db.GetToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Equal(t, "T1", token.AccessToken)
	require.True(t, token.ObtainedAt.Equal(obtained))
}

func TestSaveToken_ReplacesPrior(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveToken(ctx, Token{AccessToken: "old", ObtainedAt: time.Now()}))
	require.NoError(t, db.SaveToken(ctx, Token{AccessToken: "new", ObtainedAt: time.Now()}))

	token, err := db.GetToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Equal(t, "new", token.AccessToken)

	// Still a single row.
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM token`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestClearToken(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveToken(ctx, Token{AccessToken: "T1", ObtainedAt: time.Now()}))
	require.NoError(t, db.ClearToken(ctx))

	token, err := db.GetToken(ctx)
	require.NoError(t, err)
	require.Nil(t, token)

	// Clearing an already-empty store is fine.
	require.NoError(t, db.ClearToken(ctx))
}
