package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/logging"
)

type CredentialStore interface {
	// Save seals the credential and writes it atomically.
	Save(ctx context.Context, cred *Credential) error

	// Load returns the stored credential. An absent store yields
	// common.ErrNotConfigured; a malformed or tampered store yields
	// common.ErrCorruptedStore or common.ErrIntegrity, never "not configured".
	Load(ctx context.Context) (*Credential, error)

	// MigrateLegacy converts a plaintext credentials.json left behind by old
	// versions into the encrypted store and removes it. A missing legacy file
	// is a no-op, so the call is idempotent.
	MigrateLegacy(ctx context.Context) error
}

type fileCredentialStore struct {
	dataDir string
	keyer   Keyer
	logger  logging.Logger
}

func NewCredentialStore(dataDir string, keyer Keyer, logger logging.Logger) CredentialStore {
	return &fileCredentialStore{dataDir: dataDir, keyer: keyer, logger: logger}
}

func (s *fileCredentialStore) path() string {
	return filepath.Join(s.dataDir, credentialFile)
}

func (s *fileCredentialStore) legacyPath() string {
	return filepath.Join(s.dataDir, legacyCredentialFile)
}

func (s *fileCredentialStore) Save(ctx context.Context, cred *Credential) error {
	if cred == nil || cred.Email == "" {
		return errors.New("credential save: email is required")
	}
	if err := sealToFile(ctx, s.keyer, s.dataDir, s.path(), cred); err != nil {
		return fmt.Errorf("credential save: %w", err)
	}
	s.logger.Info(ctx, "credential stored", "email_len", len(cred.Email))
	return nil
}

func (s *fileCredentialStore) Load(ctx context.Context) (*Credential, error) {
	var cred Credential
	if err := openFromFile(ctx, s.keyer, s.path(), common.ErrNotConfigured, &cred); err != nil {
		return nil, fmt.Errorf("credential load: %w", err)
	}
	return &cred, nil
}

// legacyCredential matches the plaintext JSON written by pre-envelope
// versions, password included as a bare string.
type legacyCredential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *fileCredentialStore) MigrateLegacy(ctx context.Context) error {
	data, err := os.ReadFile(s.legacyPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("legacy migration: %w", err)
	}
	defer common.WipeByteArray(data)

	var legacy legacyCredential
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("legacy migration: %w", errors.Join(err, common.ErrCorruptedStore))
	}

	cred := &Credential{Email: legacy.Email, Password: []byte(legacy.Password)}
	defer common.WipeByteArray(cred.Password)

	if err := s.Save(ctx, cred); err != nil {
		return fmt.Errorf("legacy migration: %w", err)
	}
	if err := os.Remove(s.legacyPath()); err != nil {
		return fmt.Errorf("legacy migration: remove plaintext file: %w", err)
	}

	s.logger.Warn(ctx, "migrated plaintext credentials file to encrypted store", "file", s.legacyPath())
	return nil
}
