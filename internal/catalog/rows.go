package catalog

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/zzenonn/nntpvault/internal/domain"
)

// AssuranceRow is the persisted form of domain.AssuranceEntry.
type AssuranceRow struct {
	IndexID       domain.IndexID
	Replication   uint32
	PlainHash     []byte
	StoredLength  uint32
	AssuranceSlot uint32
}

func (r AssuranceRow) toEntry() domain.AssuranceEntry {
	return domain.AssuranceEntry{
		IndexID:       r.IndexID,
		Replication:   r.Replication,
		PlainHash:     r.PlainHash,
		StoredLength:  r.StoredLength,
		AssuranceSlot: r.AssuranceSlot,
	}
}

// ParityRow is one member (data or parity) of a parity collection as
// persisted locally. TmpDataCompressed holds the compressed plaintext
// until the collection closes, after which it is cleared (§3
// "ParityRelationCollections").
type ParityRow struct {
	CollectionID      uint64
	PlainHash         []byte
	IsParity          bool
	TmpDataCompressed []byte
}

// TransientCommand is one not-yet-flushed meta command, keyed by the
// path it belongs to (§3 "TransientMetaCache").
type TransientCommand struct {
	Path  string
	Index int
	IsNew bool
	Cmd   domain.Command
}

// FlushState tracks assurance-log fetch/aggregate progress (§3
// "FlushState").
type FlushState struct {
	LastFetchedAssuranceID  int64 // -1 means none fetched yet
	AllAssurancesFetched    bool
	PendingMinSegmentID     uint32
	PendingMaxSegmentID     uint32
	PendingAggregationValid bool
	FlushedCount            int
}

func encodeGob(v any) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic(fmt.Sprintf("catalog: gob encode: %v", err))
	}
	return buf.Bytes()
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
