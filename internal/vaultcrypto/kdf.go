// Package vaultcrypto implements the vault's cryptographic primitives:
// password-based key derivation, per-locator authenticated encryption,
// content hashing, and credential generation. Grounded on
// NasServer/internal/api/src/services/security/encryption_service.go,
// which derives per-chunk AEAD keys from an Argon2-derived master key
// using ChaCha20-Poly1305 in the same streaming-chunk shape this vault
// needs for per-locator segments.
package vaultcrypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// MasterKeyLen is the size, in bytes, of the derived master key.
const MasterKeyLen = 32

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// DeriveMasterKey derives the vault's master key from the storage code
// (hex-encoded, used as the Argon2 salt) and the user's password.
// Identical credentials always yield the identical master key, which is
// the root of the entire deterministic keyspace (§3, §4.1).
func DeriveMasterKey(storageCodeHex, password string) ([]byte, error) {
	salt, err := hex.DecodeString(storageCodeHex)
	if err != nil {
		return nil, fmt.Errorf("storage code is not valid hex: %w", err)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("storage code must not be empty")
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, MasterKeyLen)
	return key, nil
}

// StorageCodeLen is the recommended size, in bytes, of a generated
// storage code before hex-encoding.
const StorageCodeLen = 32

// GenerateStorageCode returns a fresh hex-encoded storage code from a
// CSPRNG, per §6 "Credentials".
func GenerateStorageCode() (string, error) {
	buf := make([]byte, StorageCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate storage code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
