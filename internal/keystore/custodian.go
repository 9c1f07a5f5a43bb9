package keystore

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/cryptox"
	"github.com/dmitrijs2005/glucolink/internal/filex"
	"github.com/dmitrijs2005/glucolink/internal/logging"
)

const (
	serviceName = "glucolink"
	accountName = "master-key"

	fallbackSaltFile = "fallback.salt"
	fallbackSaltSize = 16
)

// Custodian resolves the master key exactly once per process and caches it.
// Resolution order: existing keyring entry, then a freshly generated and
// stored one, then the derived fallback. The secret store gets one attempt;
// a failure switches to fallback immediately, without retries.
type Custodian struct {
	store   SecretStore
	dataDir string
	logger  logging.Logger

	// seedFn supplies the machine-local seed for the fallback derivation.
	// Swappable in tests.
	seedFn func() ([]byte, error)

	mu       sync.Mutex
	key      []byte
	degraded bool
}

func NewCustodian(store SecretStore, dataDir string, logger logging.Logger) *Custodian {
	return &Custodian{
		store:   store,
		dataDir: dataDir,
		logger:  logger,
		seedFn:  machineSeed,
	}
}

// MasterKey returns the process master key and whether it came from the
// degraded fallback derivation. The returned slice is the caller's copy and
// may be wiped freely.
func (c *Custodian) MasterKey(ctx context.Context) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == nil {
		key, degraded, err := c.obtain(ctx)
		if err != nil {
			return nil, false, err
		}
		c.key = key
		c.degraded = degraded
	}

	return bytes.Clone(c.key), c.degraded, nil
}

// Degraded reports whether the cached key came from the fallback derivation.
// False until MasterKey has succeeded at least once.
func (c *Custodian) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key != nil && c.degraded
}

func (c *Custodian) obtain(ctx context.Context) ([]byte, bool, error) {
	stored, err := c.store.Get(serviceName, accountName)
	switch {
	case err == nil:
		key, decErr := hex.DecodeString(stored)
		if decErr != nil || len(key) != cryptox.KeySize {
			// A mangled entry must not be silently replaced: a new key
			// would orphan every previously encrypted file.
			return nil, false, fmt.Errorf("stored master key is malformed: %w", common.ErrCorruptedStore)
		}
		return key, false, nil

	case errors.Is(err, common.ErrNotFound):
		key := common.GenerateRandByteArray(cryptox.KeySize)
		if setErr := c.store.Set(serviceName, accountName, hex.EncodeToString(key)); setErr != nil {
			c.logger.Warn(ctx, "secret store rejected new master key, using derived fallback", "error", setErr)
			return c.fallbackKey(ctx)
		}
		c.logger.Info(ctx, "generated new master key in secret store")
		return key, false, nil

	default:
		c.logger.Warn(ctx, "secret store unavailable, using derived fallback", "error", err)
		return c.fallbackKey(ctx)
	}
}

func (c *Custodian) fallbackKey(ctx context.Context) ([]byte, bool, error) {
	salt, err := c.ensureFallbackSalt()
	if err != nil {
		return nil, false, err
	}

	seed, err := c.seedFn()
	if err != nil {
		return nil, false, fmt.Errorf("machine seed: %w", err)
	}
	defer common.WipeByteArray(seed)

	key := cryptox.DeriveFallbackKey(seed, salt)
	c.logger.Warn(ctx, "operating with derived master key", "salt_file", c.saltPath())
	return key, true, nil
}

func (c *Custodian) saltPath() string {
	return filepath.Join(c.dataDir, fallbackSaltFile)
}

// ensureFallbackSalt loads the persisted derivation salt, generating and
// persisting one on first fallback. The salt is not secret; only the seed
// input and the resulting key are.
func (c *Custodian) ensureFallbackSalt() ([]byte, error) {
	path := c.saltPath()

	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != fallbackSaltSize {
			return nil, fmt.Errorf("fallback salt has length %d: %w", len(salt), common.ErrCorruptedStore)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read fallback salt: %w", err)
	}

	salt = common.GenerateRandByteArray(fallbackSaltSize)
	if err := filex.EnsureDir(c.dataDir); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	if err := filex.AtomicWrite(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("persist fallback salt: %w", err)
	}
	return salt, nil
}

func machineSeed() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return []byte(hostname + ":" + home), nil
}
