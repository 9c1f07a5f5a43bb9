package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/cryptox"
	"github.com/dmitrijs2005/glucolink/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBundle() *TokenBundle {
	userID := "user-42"
	return &TokenBundle{
		Token:     "eyJhbGciOiJIUzI1NiJ9.payload.sig",
		Expires:   time.Now().Add(50 * time.Minute).UTC().Truncate(time.Second),
		UserID:    userID,
		AccountID: cryptox.AccountID(userID),
		Region:    "eu",
	}
}

func TestTokenSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewTokenStore(dir, newTestKeyer(), logging.Nop())

	bundle := testBundle()
	require.NoError(t, store.Save(ctx, bundle))

	raw, err := os.ReadFile(filepath.Join(dir, tokenFile))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), bundle.Token, "token must never reach disk in the clear")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, bundle.Token, loaded.Token)
	assert.Equal(t, bundle.UserID, loaded.UserID)
	assert.Equal(t, bundle.AccountID, loaded.AccountID)
	assert.Equal(t, bundle.Region, loaded.Region)
	assert.True(t, bundle.Expires.Equal(loaded.Expires))

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, common.ErrNotFound)

	// Clearing an already absent bundle stays silent.
	require.NoError(t, store.Clear(ctx))
}

func TestTokenLoadAbsent(t *testing.T) {
	store := NewTokenStore(t.TempDir(), newTestKeyer(), logging.Nop())

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.NotErrorIs(t, err, common.ErrNotConfigured,
		"a missing token is not a missing credential")
}

func TestTokenLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tokenFile), []byte("junk"), 0o600))

	store := NewTokenStore(dir, newTestKeyer(), logging.Nop())

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, common.ErrCorruptedStore)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestTokenLoadAccountIDMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewTokenStore(t.TempDir(), newTestKeyer(), logging.Nop())

	bundle := testBundle()
	bundle.AccountID = cryptox.AccountID("somebody-else")
	require.NoError(t, store.Save(ctx, bundle))

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, common.ErrCorruptedStore)
}

func TestTokenSaveValidation(t *testing.T) {
	store := NewTokenStore(t.TempDir(), newTestKeyer(), logging.Nop())

	require.Error(t, store.Save(context.Background(), nil))
	require.Error(t, store.Save(context.Background(), &TokenBundle{}))
}

func TestTokenClearLeavesCredentials(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keyer := newTestKeyer()

	creds := NewCredentialStore(dir, keyer, logging.Nop())
	tokens := NewTokenStore(dir, keyer, logging.Nop())

	require.NoError(t, creds.Save(ctx, &Credential{Email: "a@b.c", Password: []byte("pw")}))
	require.NoError(t, tokens.Save(ctx, testBundle()))

	require.NoError(t, tokens.Clear(ctx))

	cred, err := creds.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", cred.Email)
}
