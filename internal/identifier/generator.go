// Package identifier derives the deterministic IndexIDs and Locators that
// let a client holding only (storageCode, password) blind-probe the
// transport for its data, without any separately-stored metadata (§4.1).
package identifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/zzenonn/nntpvault/internal/domain"
)

// Tag bytes give each identifier role its own HMAC domain, so that e.g.
// AssuranceID(0) and MetaFileID(0, "") can never collide.
const (
	tagAssurance byte = iota + 1
	tagRawOrParity
	tagMetaFile
	tagMetaFolder
	tagLocator
	tagPublicHash
)

// Generator derives IndexIDs and Locators from a single vault's master
// key. Safe for concurrent use; it holds no mutable state.
type Generator struct {
	masterKey []byte
}

// New returns a Generator bound to masterKey.
func New(masterKey []byte) *Generator {
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	return &Generator{masterKey: key}
}

func (g *Generator) keyedHash(tag byte, parts ...[]byte) domain.IndexID {
	mac := hmac.New(sha256.New, g.masterKey)
	mac.Write([]byte{tag})
	for _, p := range parts {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		mac.Write(lenBuf[:])
		mac.Write(p)
	}
	return domain.IndexID(mac.Sum(nil))
}

// AssuranceID derives the IndexID for the i-th assurance log slot.
func (g *Generator) AssuranceID(i uint32) domain.IndexID {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], i)
	return g.keyedHash(tagAssurance, buf[:])
}

// RawOrParityID derives the IndexID for a content-addressed data or
// parity blob of hash h.
func (g *Generator) RawOrParityID(hash []byte) domain.IndexID {
	return g.keyedHash(tagRawOrParity, hash)
}

// MetaFileID derives the IndexID for the i-th meta record of a file path.
func (g *Generator) MetaFileID(i uint32, path string) domain.IndexID {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], i)
	return g.keyedHash(tagMetaFile, buf[:], []byte(path))
}

// MetaFolderID derives the IndexID for the i-th meta record of a folder
// path.
func (g *Generator) MetaFolderID(i uint32, path string) domain.IndexID {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], i)
	return g.keyedHash(tagMetaFolder, buf[:], []byte(path))
}

// DeriveLocator derives the transport-level address of one replication
// of an IndexID. Different replications of the same IndexID address
// independent copies.
func (g *Generator) DeriveLocator(id domain.IndexID, replication uint32) domain.Locator {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], replication)
	return domain.Locator(g.keyedHash(tagLocator, []byte(id), buf[:]))
}

// MasterKey returns the underlying master key, for packages (crypto,
// catalog bootstrap) that need it directly.
func (g *Generator) MasterKey() []byte {
	return g.masterKey
}

// PublicHash returns a deterministic fingerprint of the master key used
// to name the vault's local catalog directory (§6 "Persisted state
// layout"). It reveals nothing about the master key beyond equality.
func (g *Generator) PublicHash() string {
	id := g.keyedHash(tagPublicHash, []byte("nntpvault/public-hash/v1"))
	return hex.EncodeToString(id)
}
