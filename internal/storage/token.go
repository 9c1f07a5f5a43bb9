package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/cryptox"
	"github.com/dmitrijs2005/glucolink/internal/logging"
)

type TokenStore interface {
	// Save seals the token bundle and writes it atomically.
	Save(ctx context.Context, bundle *TokenBundle) error

	// Load returns the stored bundle. Absent yields common.ErrNotFound, so
	// clearing a session is never mistaken for missing credentials.
	Load(ctx context.Context) (*TokenBundle, error)

	// Clear deletes the stored bundle. Clearing an absent bundle is a no-op.
	Clear(ctx context.Context) error
}

type fileTokenStore struct {
	dataDir string
	keyer   Keyer
	logger  logging.Logger
}

func NewTokenStore(dataDir string, keyer Keyer, logger logging.Logger) TokenStore {
	return &fileTokenStore{dataDir: dataDir, keyer: keyer, logger: logger}
}

func (s *fileTokenStore) path() string {
	return filepath.Join(s.dataDir, tokenFile)
}

func (s *fileTokenStore) Save(ctx context.Context, bundle *TokenBundle) error {
	if bundle == nil || bundle.Token == "" {
		return errors.New("token save: empty bundle")
	}
	if err := sealToFile(ctx, s.keyer, s.dataDir, s.path(), bundle); err != nil {
		return fmt.Errorf("token save: %w", err)
	}
	s.logger.Debug(ctx, "token bundle stored", "expires", bundle.Expires, "region", bundle.Region)
	return nil
}

func (s *fileTokenStore) Load(ctx context.Context) (*TokenBundle, error) {
	var bundle TokenBundle
	if err := openFromFile(ctx, s.keyer, s.path(), common.ErrNotFound, &bundle); err != nil {
		return nil, fmt.Errorf("token load: %w", err)
	}

	// The account id is derived from the user id; a stored bundle where the
	// derivation no longer matches was written by broken code and must not
	// be trusted.
	if cryptox.AccountID(bundle.UserID) != bundle.AccountID {
		return nil, fmt.Errorf("token load: account id mismatch: %w", common.ErrCorruptedStore)
	}

	return &bundle, nil
}

func (s *fileTokenStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("token clear: %w", err)
	}
	s.logger.Debug(ctx, "token bundle cleared")
	return nil
}
