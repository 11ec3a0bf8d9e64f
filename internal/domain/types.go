// Package domain holds the shared record types that flow between the
// wire codecs, the local catalog, and the engine: the same shapes the
// teacher's internal/domain package held for ObjectMetadata, generalized
// from a single flat erasure-coding record into the vault's three wire
// record kinds (assurance entries, parity relations, meta commands).
package domain

import "encoding/hex"

// IndexID is a fixed-size opaque identifier derived from the master key.
// Stable across sessions and machines given the same credentials.
type IndexID []byte

// Hex renders an IndexID for use as an in-memory cache key.
func (id IndexID) Hex() string { return hex.EncodeToString(id) }

// Locator is the transport-level address of one replication of an IndexID.
type Locator []byte

// AssuranceEntry is a locally-known fact that a blob exists remotely.
type AssuranceEntry struct {
	IndexID       IndexID
	Replication   uint32
	PlainHash     []byte
	StoredLength  uint32
	AssuranceSlot uint32
}

// ParityRelationEntry is one member (data or parity) of a parity collection
// as it appears inside a serialized AssuranceSegment.
type ParityRelationEntry struct {
	CollectionID uint64
	PlainHash    []byte
	IsParity     bool
}

// AssuranceSegment is the decoded payload of one assurance-log slot.
type AssuranceSegment struct {
	Entries   []AssuranceEntry
	Relations []ParityRelationEntry
}

// CommandKind tags the variant carried by a Command.
type CommandKind uint8

const (
	CommandAddFolder CommandKind = iota + 1
	CommandAddFile
	CommandAddBlock
)

// Command is one entry of a MetaSegment: an ADD FOLDER, ADD FILE, or
// ADD BLOCK virtual-filesystem instruction.
type Command struct {
	Kind CommandKind

	// ADD FOLDER / ADD FILE
	Name     string
	FileSize int64 // only meaningful for ADD FILE

	// ADD BLOCK
	BlockHash  []byte
	BlockSize  int64
	BlockStart int64

	// Index is the command's position within its path's meta log,
	// counting both already-flushed slots and the transient cache.
	// Not part of the wire encoding; filled in by the catalog.
	Index int
}

// MetaSegment is the decoded payload of one meta-log slot for one path.
type MetaSegment struct {
	Commands []Command
}

// PathKind distinguishes the two disjoint meta namespaces.
type PathKind uint8

const (
	PathUnknown PathKind = iota
	PathFile
	PathFolder
)
