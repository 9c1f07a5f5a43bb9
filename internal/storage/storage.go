// Package storage persists the two secrets glucolink keeps on disk, the
// account credential and the session token bundle, each sealed in its own
// encrypted envelope under the master key. Every failure mode is typed:
// an absent file, a malformed envelope and a failed integrity check are
// distinct errors and are never collapsed into one another.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/cryptox"
	"github.com/dmitrijs2005/glucolink/internal/filex"
)

const (
	credentialFile       = "credentials.enc"
	legacyCredentialFile = "credentials.json"
	tokenFile            = "token.enc"
)

// Keyer supplies the master key. keystore.Custodian satisfies it.
type Keyer interface {
	MasterKey(ctx context.Context) (key []byte, degraded bool, err error)
}

// Credential is the upstream account credential. Password is a byte slice so
// callers can wipe it after use.
type Credential struct {
	Email    string `json:"email"`
	Password []byte `json:"password"`
}

// TokenBundle is the persisted form of an authenticated session.
type TokenBundle struct {
	Token     string    `json:"token"`
	Expires   time.Time `json:"expires"`
	UserID    string    `json:"user_id"`
	AccountID string    `json:"account_id"`
	Region    string    `json:"region"`
}

// sealToFile serializes v, seals it under the master key and writes the
// envelope atomically with owner-only permissions.
func sealToFile(ctx context.Context, keyer Keyer, dir, path string, v any) error {
	key, _, err := keyer.MasterKey(ctx)
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	defer common.WipeByteArray(key)

	env, err := cryptox.SealJSON(v, key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := filex.EnsureDir(dir); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}
	if err := filex.AtomicWrite(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// openFromFile reads an envelope file and decrypts it into v. An absent file
// yields the caller's sentinel; everything structurally wrong yields
// common.ErrCorruptedStore and a failed tag check common.ErrIntegrity.
func openFromFile(ctx context.Context, keyer Keyer, path string, absent error, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return absent
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var env cryptox.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s: %w", path, errors.Join(err, common.ErrCorruptedStore))
	}

	key, _, err := keyer.MasterKey(ctx)
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	defer common.WipeByteArray(key)

	return cryptox.OpenJSON(&env, key, v)
}
