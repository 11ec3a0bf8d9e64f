package vaultcrypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/zzenonn/nntpvault/internal/vaulterrors"
)

// deriveLocatorKey mixes the master key with a locator to produce a
// per-locator AEAD key, so that identical plaintext written to different
// locators yields unrelated ciphertexts (§4.2).
func deriveLocatorKey(masterKey, locator []byte) []byte {
	mac := hmac.New(sha256.New, masterKey)
	mac.Write([]byte("nntpvault/locator-key/v1"))
	mac.Write(locator)
	return mac.Sum(nil)
}

// Encrypt encrypts plaintext under a key derived from (masterKey, locator)
// using ChaCha20-Poly1305. The returned ciphertext is
// nonce || sealed-data.
func Encrypt(masterKey, locator, plaintext []byte) ([]byte, error) {
	key := deriveLocatorKey(masterKey, locator)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. It fails with ErrDecryption when the
// ciphertext is corrupt or keyed for a different locator (§4.2).
func Decrypt(masterKey, locator, ciphertext []byte) ([]byte, error) {
	key := deriveLocatorKey(masterKey, locator)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, vaulterrors.ErrDecryption
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, vaulterrors.ErrDecryption
	}
	return plain, nil
}
