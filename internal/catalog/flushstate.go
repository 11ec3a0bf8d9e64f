package catalog

import (
	"bytes"
	"encoding/binary"

	"go.etcd.io/bbolt"

	"github.com/zzenonn/nntpvault/internal/domain"
)

var (
	pendingEntryPrefix    = []byte("pending_entry/")
	pendingRelationPrefix = []byte("pending_relation/")
	keyFlushState         = []byte("flush_state")
	keyPendingEntrySeq    = []byte("pending_entry_seq")
	keyPendingRelationSeq = []byte("pending_relation_seq")
)

func nextSeqTx(tx *bbolt.Tx, bucket, seqKey []byte) uint64 {
	meta := tx.Bucket(bucket)
	var seq uint64
	if v := meta.Get(seqKey); v != nil {
		seq = binary.BigEndian.Uint64(v)
	}
	_ = meta.Put(seqKey, beUint64(seq+1))
	return seq
}

// queuePendingEntryTx records an assurance entry that has not yet been
// written to the remote assurance log (§4.8, the "unflushed portion of
// the assurance log").
func queuePendingEntryTx(tx *bbolt.Tx, e domain.AssuranceEntry) error {
	seq := nextSeqTx(tx, bucketParityMeta, keyPendingEntrySeq)
	key := append(append([]byte{}, pendingEntryPrefix...), beUint64(seq)...)
	return tx.Bucket(bucketTransientMeta).Put(key, encodeGob(e))
}

func queuePendingRelationTx(tx *bbolt.Tx, r domain.ParityRelationEntry) error {
	seq := nextSeqTx(tx, bucketParityMeta, keyPendingRelationSeq)
	key := append(append([]byte{}, pendingRelationPrefix...), beUint64(seq)...)
	return tx.Bucket(bucketTransientMeta).Put(key, encodeGob(r))
}

func scanPendingTx[T any](tx *bbolt.Tx, prefix []byte) ([]T, error) {
	var out []T
	cur := tx.Bucket(bucketTransientMeta).Cursor()
	for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
		var item T
		if err := decodeGob(v, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func clearPendingTx(tx *bbolt.Tx, prefix []byte) error {
	cur := tx.Bucket(bucketTransientMeta).Cursor()
	var keys [][]byte
	for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
		keys = append(keys, append([]byte{}, k...))
	}
	b := tx.Bucket(bucketTransientMeta)
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func getFlushStateTx(tx *bbolt.Tx) FlushState {
	state := FlushState{LastFetchedAssuranceID: -1}
	if v := tx.Bucket(bucketFlushState).Get(keyFlushState); v != nil {
		_ = decodeGob(v, &state)
	}
	return state
}

func putFlushStateTx(tx *bbolt.Tx, state FlushState) error {
	return tx.Bucket(bucketFlushState).Put(keyFlushState, encodeGob(state))
}

// NewAggregatedAssuranceSegmentWithFlushState aggregates every assurance
// entry and parity relation added locally since the last successful
// flush into one AssuranceSegment, returning the current FlushState
// alongside it. The segment is nil when there is nothing to do; the
// FlushState is returned either way (§4.5, §4.8).
func (c *Catalog) NewAggregatedAssuranceSegmentWithFlushState() (*domain.AssuranceSegment, *FlushState, error) {
	var seg *domain.AssuranceSegment
	var state FlushState
	err := c.db.View(func(tx *bbolt.Tx) error {
		entries, err := scanPendingTx[domain.AssuranceEntry](tx, pendingEntryPrefix)
		if err != nil {
			return err
		}
		relations, err := scanPendingTx[domain.ParityRelationEntry](tx, pendingRelationPrefix)
		if err != nil {
			return err
		}
		state = getFlushStateTx(tx)
		if len(entries) == 0 && len(relations) == 0 && state.FlushedCount == 0 {
			return nil
		}
		seg = &domain.AssuranceSegment{Entries: entries, Relations: relations}
		return nil
	})
	return seg, &state, err
}

// SetFlushedCount persists progress through the current aggregation's
// split segments, so a crash mid-flush resumes rather than re-sends
// (§4.8 "Increment FlushedCount atomically").
func (c *Catalog) SetFlushedCount(n int) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		state := getFlushStateTx(tx)
		state.FlushedCount = n
		return putFlushStateTx(tx, state)
	})
}

// MarkAggregationFlushed clears the pending aggregation and advances
// LastFetchedAssuranceID past the slots just written, so a subsequent
// Load does not need to re-fetch what this process itself just wrote
// (§4.8, §4.9).
func (c *Catalog) MarkAggregationFlushed(newLastFetchedAssuranceID int64) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := clearPendingTx(tx, pendingEntryPrefix); err != nil {
			return err
		}
		if err := clearPendingTx(tx, pendingRelationPrefix); err != nil {
			return err
		}
		state := getFlushStateTx(tx)
		state.FlushedCount = 0
		if newLastFetchedAssuranceID > state.LastFetchedAssuranceID {
			state.LastFetchedAssuranceID = newLastFetchedAssuranceID
		}
		return putFlushStateTx(tx, state)
	})
}

// AddFetchedAssurances records the assurance segments read from the
// remote assurance log starting at slot, without re-queuing them for a
// future flush (§4.9).
func (c *Catalog) AddFetchedAssurances(segs []domain.AssuranceSegment, slot uint32) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		id, count := getCurrentCollection(tx)
		maxSeen := id

		for i, seg := range segs {
			segSlot := slot + uint32(i)
			for _, e := range seg.Entries {
				row := AssuranceRow{
					IndexID:       e.IndexID,
					Replication:   e.Replication,
					PlainHash:     e.PlainHash,
					StoredLength:  e.StoredLength,
					AssuranceSlot: segSlot,
				}
				if err := putAssuranceTx(tx, row); err != nil {
					return err
				}
			}
			for _, r := range seg.Relations {
				row := ParityRow{CollectionID: r.CollectionID, PlainHash: r.PlainHash, IsParity: r.IsParity}
				if err := tx.Bucket(bucketParityRows).Put(parityRowKey(r.CollectionID, r.PlainHash), encodeGob(row)); err != nil {
					return err
				}
				if err := tx.Bucket(bucketParityHashIndex).Put(r.PlainHash, beUint64(r.CollectionID)); err != nil {
					return err
				}
				if r.CollectionID >= maxSeen {
					maxSeen = r.CollectionID + 1
				}
			}
		}

		if count == 0 && maxSeen > id {
			if err := setCurrentCollection(tx, maxSeen, 0); err != nil {
				return err
			}
		}

		state := getFlushStateTx(tx)
		last := int64(slot) + int64(len(segs)) - 1
		if last > state.LastFetchedAssuranceID {
			state.LastFetchedAssuranceID = last
		}
		return putFlushStateTx(tx, state)
	})
}

// SetAllAssurancesFetched marks the assurance log as fully enumerated
// (§4.9).
func (c *Catalog) SetAllAssurancesFetched() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		state := getFlushStateTx(tx)
		state.AllAssurancesFetched = true
		return putFlushStateTx(tx, state)
	})
}

// GetAllAssurancesFetched reports whether the assurance log has already
// been fully enumerated.
func (c *Catalog) GetAllAssurancesFetched() (bool, error) {
	var fetched bool
	err := c.db.View(func(tx *bbolt.Tx) error {
		fetched = getFlushStateTx(tx).AllAssurancesFetched
		return nil
	})
	return fetched, err
}

// LastFetchedAssuranceID returns the highest assurance slot known
// locally, or -1 if none.
func (c *Catalog) LastFetchedAssuranceID() (int64, error) {
	var id int64
	err := c.db.View(func(tx *bbolt.Tx) error {
		id = getFlushStateTx(tx).LastFetchedAssuranceID
		return nil
	})
	return id, err
}
