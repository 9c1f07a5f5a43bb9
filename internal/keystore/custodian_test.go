package keystore

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/cryptox"
	"github.com/dmitrijs2005/glucolink/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]string

	getErr error
	setErr error

	getCalls int
	setCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]string)}
}

func (f *fakeStore) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return "", f.getErr
	}
	secret, ok := f.entries[service+"/"+account]
	if !ok {
		return "", common.ErrNotFound
	}
	return secret, nil
}

func (f *fakeStore) Set(service, account, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[service+"/"+account] = secret
	return nil
}

func (f *fakeStore) Delete(service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, service+"/"+account)
	return nil
}

func testSeed() ([]byte, error) {
	return []byte("testhost:/home/tester"), nil
}

func TestMasterKeyGeneratesAndStores(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCustodian(store, t.TempDir(), logging.Nop())

	key, degraded, err := c.MasterKey(ctx)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, key, cryptox.KeySize)

	stored, ok := store.entries[serviceName+"/"+accountName]
	require.True(t, ok, "new key must be persisted in the secret store")
	decoded, err := hex.DecodeString(stored)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestMasterKeyReusesStored(t *testing.T) {
	ctx := context.Background()
	want := common.GenerateRandByteArray(cryptox.KeySize)

	store := newFakeStore()
	store.entries[serviceName+"/"+accountName] = hex.EncodeToString(want)

	c := NewCustodian(store, t.TempDir(), logging.Nop())
	key, degraded, err := c.MasterKey(ctx)
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, want, key)
	assert.Zero(t, store.setCalls, "existing key must not be rewritten")
}

func TestMasterKeyCachedForProcessLife(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCustodian(store, t.TempDir(), logging.Nop())

	first, _, err := c.MasterKey(ctx)
	require.NoError(t, err)
	second, _, err := c.MasterKey(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.getCalls, "second call must come from cache")

	// Callers get their own copy; wiping one must not poison the cache.
	common.WipeByteArray(first)
	third, _, err := c.MasterKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestMasterKeyFallbackWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	broken := newFakeStore()
	broken.getErr = common.ErrSecretStoreUnavailable

	c := NewCustodian(broken, dir, logging.Nop())
	c.seedFn = testSeed

	key, degraded, err := c.MasterKey(ctx)
	require.NoError(t, err)
	assert.True(t, degraded, "fallback must be surfaced")
	require.Len(t, key, cryptox.KeySize)
	assert.Equal(t, 1, broken.getCalls, "secret store gets one attempt, no retries")

	saltPath := filepath.Join(dir, fallbackSaltFile)
	salt, err := os.ReadFile(saltPath)
	require.NoError(t, err)
	assert.Len(t, salt, fallbackSaltSize)
	if runtime.GOOS != "windows" {
		info, err := os.Stat(saltPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	// A later process on the same machine derives the same key from the
	// persisted salt.
	again := NewCustodian(broken, dir, logging.Nop())
	again.seedFn = testSeed
	key2, degraded2, err := again.MasterKey(ctx)
	require.NoError(t, err)
	assert.True(t, degraded2)
	assert.Equal(t, key, key2)
}

func TestMasterKeyFallbackWhenSetRejected(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	store.setErr = common.ErrSecretStoreUnavailable

	c := NewCustodian(store, t.TempDir(), logging.Nop())
	c.seedFn = testSeed

	key, degraded, err := c.MasterKey(ctx)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Len(t, key, cryptox.KeySize)
	assert.Equal(t, 1, store.setCalls)
}

func TestMasterKeyMalformedEntryFailsLoudly(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	store.entries[serviceName+"/"+accountName] = "not hex at all"

	c := NewCustodian(store, t.TempDir(), logging.Nop())
	c.seedFn = testSeed

	_, _, err := c.MasterKey(ctx)
	require.ErrorIs(t, err, common.ErrCorruptedStore)
	assert.Zero(t, store.setCalls, "a mangled entry must never be replaced automatically")
}

func TestMasterKeyCorruptSaltFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fallbackSaltFile), []byte("abc"), 0o600))

	broken := newFakeStore()
	broken.getErr = common.ErrSecretStoreUnavailable

	c := NewCustodian(broken, dir, logging.Nop())
	c.seedFn = testSeed

	_, _, err := c.MasterKey(ctx)
	require.ErrorIs(t, err, common.ErrCorruptedStore)
}

func TestDegraded(t *testing.T) {
	ctx := context.Background()

	c := NewCustodian(newFakeStore(), t.TempDir(), logging.Nop())
	assert.False(t, c.Degraded(), "unresolved custodian reports not degraded")

	_, _, err := c.MasterKey(ctx)
	require.NoError(t, err)
	assert.False(t, c.Degraded())

	broken := newFakeStore()
	broken.getErr = errors.New("dbus: connection refused")
	d := NewCustodian(broken, t.TempDir(), logging.Nop())
	d.seedFn = testSeed
	_, _, err = d.MasterKey(ctx)
	require.NoError(t, err)
	assert.True(t, d.Degraded())
}
