// Package keystore manages custody of the 256-bit master key that encrypts
// everything glucolink persists. The key of record lives in the platform
// secret store (Keychain, Windows Credential Manager, Secret Service); when
// no such store is usable the custodian degrades to a key derived from
// machine-local identifiers, and says so.
package keystore

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/zalando/go-keyring"
)

// SecretStore is the capability the custodian needs from a platform secret
// store. The narrow surface keeps tests trivial to fake.
type SecretStore interface {
	// Get returns the secret stored under service/account, or an error
	// wrapping common.ErrNotFound when no such entry exists.
	Get(service, account string) (string, error)

	// Set stores a secret under service/account, replacing any previous value.
	Set(service, account, secret string) error

	// Delete removes the entry under service/account.
	Delete(service, account string) error
}

// SystemStore is the production SecretStore backed by the OS keyring.
type SystemStore struct{}

func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

func (s *SystemStore) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("secret store get: %w", common.ErrNotFound)
		}
		return "", fmt.Errorf("%w: %v", common.ErrSecretStoreUnavailable, err)
	}
	return secret, nil
}

func (s *SystemStore) Set(service, account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSecretStoreUnavailable, err)
	}
	return nil
}

func (s *SystemStore) Delete(service, account string) error {
	if err := keyring.Delete(service, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("secret store delete: %w", common.ErrNotFound)
		}
		return fmt.Errorf("%w: %v", common.ErrSecretStoreUnavailable, err)
	}
	return nil
}
