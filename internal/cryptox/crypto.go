// Package cryptox implements the encrypted envelope format used for all
// secrets glucolink persists: AES-256-GCM with a fresh random nonce and salt
// per seal, argon2id for the fallback key derivation, and the SHA-256
// account-id derivation required by the upstream protocol.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the master key length in bytes (AES-256).
	KeySize = 32

	nonceSize = 12
	saltSize  = 16

	envelopeVersion = 1
	schemeAES256GCM = "aes256gcm"
)

// Envelope is a self-describing sealed record. The GCM authentication tag is
// carried at the tail of Ciphertext, as crypto/cipher produces it. Salt is
// re-randomized on every seal; it participates in decryption only when the
// key is derived from a passphrase-like seed rather than supplied directly.
type Envelope struct {
	Version    int    `json:"version"`
	Scheme     string `json:"scheme"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext under a 256-bit key into a fresh Envelope.
// Nonce and salt are newly random on every call; envelopes are never reused.
func Seal(plaintext, key []byte) (*Envelope, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("seal: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	salt := common.GenerateRandByteArray(saltSize)

	return &Envelope{
		Version:    envelopeVersion,
		Scheme:     schemeAES256GCM,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aesgcm.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open decrypts an Envelope with the given key. A malformed envelope fails
// with common.ErrCorruptedStore; a tampered envelope or wrong key fails with
// common.ErrIntegrity. No partial plaintext is ever returned.
func Open(env *Envelope, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("open: key must be %d bytes, got %d", KeySize, len(key))
	}
	if err := validate(env); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", common.ErrIntegrity)
	}
	return plaintext, nil
}

func validate(env *Envelope) error {
	if env == nil {
		return fmt.Errorf("open: nil envelope: %w", common.ErrCorruptedStore)
	}
	if env.Version != envelopeVersion {
		return fmt.Errorf("open: unsupported envelope version %d: %w", env.Version, common.ErrCorruptedStore)
	}
	if env.Scheme != schemeAES256GCM {
		return fmt.Errorf("open: unsupported scheme %q: %w", env.Scheme, common.ErrCorruptedStore)
	}
	if len(env.Nonce) != nonceSize {
		return fmt.Errorf("open: bad nonce length %d: %w", len(env.Nonce), common.ErrCorruptedStore)
	}
	if len(env.Ciphertext) == 0 {
		return fmt.Errorf("open: empty ciphertext: %w", common.ErrCorruptedStore)
	}
	return nil
}

// SealJSON serializes v to JSON and seals the result.
func SealJSON(v any, key []byte) (*Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	return Seal(plaintext, key)
}

// OpenJSON opens an envelope and unmarshals the plaintext into v.
func OpenJSON(env *Envelope, key []byte, v any) error {
	plaintext, err := Open(env, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("open: decode payload: %w", errors.Join(err, common.ErrCorruptedStore))
	}
	return nil
}

// DeriveFallbackKey derives a 256-bit key from a stable local seed and a
// random salt using argon2id. Used only when the platform secret store is
// unavailable; strictly weaker than a random key held by the OS.
func DeriveFallbackKey(seed, salt []byte) []byte {
	return argon2.IDKey(seed, salt, 1, 64*1024, 4, KeySize)
}

// AccountID derives the upstream account identifier from a user id:
// lowercase hex of SHA-256(userID). The server requires it as a header on
// every authenticated call, and a restored token bundle is only trusted if
// this derivation still matches.
func AccountID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
