package main

import (
	"github.com/zzenonn/nntpvault/internal/vaultcrypto"
)

// genStorageCode wraps vaultcrypto's random storage code generator for
// the gen-storage-code command.
func genStorageCode() (string, error) {
	return vaultcrypto.GenerateStorageCode()
}
