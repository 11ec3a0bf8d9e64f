package vaultcrypto

import "crypto/sha256"

// ContentHash returns the SHA-256 digest of plaintext, used throughout
// the engine as the content-addressing hash for chunks and shards.
func ContentHash(plain []byte) []byte {
	sum := sha256.Sum256(plain)
	return sum[:]
}
