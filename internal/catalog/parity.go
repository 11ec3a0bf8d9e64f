package catalog

import (
	"bytes"
	"encoding/binary"

	"go.etcd.io/bbolt"

	"github.com/zzenonn/nntpvault/internal/domain"
)

var (
	keyCurrentCollectionID    = []byte("current_id")
	keyCurrentCollectionCount = []byte("current_count")
	readyPrefix               = []byte("ready/")
)

func parityRowKey(collectionID uint64, hash []byte) []byte {
	key := make([]byte, 0, 9+len(hash))
	key = append(key, beUint64(collectionID)...)
	key = append(key, 0x00)
	key = append(key, hash...)
	return key
}

func readyKey(collectionID uint64) []byte {
	return append(append([]byte{}, readyPrefix...), beUint64(collectionID)...)
}

func getCurrentCollection(tx *bbolt.Tx) (id uint64, count uint32) {
	meta := tx.Bucket(bucketParityMeta)
	if v := meta.Get(keyCurrentCollectionID); v != nil {
		id = binary.BigEndian.Uint64(v)
	}
	if v := meta.Get(keyCurrentCollectionCount); v != nil {
		count = binary.BigEndian.Uint32(v)
	}
	return id, count
}

func setCurrentCollection(tx *bbolt.Tx, id uint64, count uint32) error {
	meta := tx.Bucket(bucketParityMeta)
	if err := meta.Put(keyCurrentCollectionID, beUint64(id)); err != nil {
		return err
	}
	return meta.Put(keyCurrentCollectionCount, beUint32(count))
}

// enqueueParityDataRowTx appends a data shard to the currently open
// parity relation collection, marking it ready once it reaches
// dataShardsPerCollection members (§4.5
// "AddNewAssuranceAndTmpData ... enqueues a ParityRelation row").
func enqueueParityDataRowTx(tx *bbolt.Tx, hash, compressedBytes []byte, dataShardsPerCollection int) error {
	id, count := getCurrentCollection(tx)

	row := ParityRow{CollectionID: id, PlainHash: hash, IsParity: false, TmpDataCompressed: compressedBytes}
	if err := tx.Bucket(bucketParityRows).Put(parityRowKey(id, hash), encodeGob(row)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketParityHashIndex).Put(hash, beUint64(id)); err != nil {
		return err
	}

	count++
	if int(count) >= dataShardsPerCollection {
		if err := tx.Bucket(bucketParityMeta).Put(readyKey(id), []byte{1}); err != nil {
			return err
		}
		return setCurrentCollection(tx, id+1, 0)
	}
	return setCurrentCollection(tx, id, count)
}

// ForceParityProcessingState marks the current partial collection ready
// even though it has fewer than N members (§4.5
// "ForceParityProcessingState").
func (c *Catalog) ForceParityProcessingState() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		id, count := getCurrentCollection(tx)
		if count == 0 {
			return nil
		}
		if err := tx.Bucket(bucketParityMeta).Put(readyKey(id), []byte{1}); err != nil {
			return err
		}
		return setCurrentCollection(tx, id+1, 0)
	})
}

func rowsForCollectionTx(tx *bbolt.Tx, collectionID uint64) ([]ParityRow, error) {
	prefix := append(beUint64(collectionID), 0x00)
	var rows []ParityRow
	cur := tx.Bucket(bucketParityRows).Cursor()
	for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
		var row ParityRow
		if err := decodeGob(v, &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetProcessingParityRelations returns every collection marked ready
// (size N reached, or forced) that has not yet been closed, keyed by
// collection id (§4.5).
func (c *Catalog) GetProcessingParityRelations() (map[uint64][]ParityRow, error) {
	result := make(map[uint64][]ParityRow)
	err := c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketParityMeta).Cursor()
		for k, _ := cur.Seek(readyPrefix); k != nil && bytes.HasPrefix(k, readyPrefix); k, _ = cur.Next() {
			id := binary.BigEndian.Uint64(k[len(readyPrefix):])
			rows, err := rowsForCollectionTx(tx, id)
			if err != nil {
				return err
			}
			result[id] = rows
		}
		return nil
	})
	return result, err
}

// CloseParityRelations writes M parity rows for collectionID and clears
// tmp-data-compressed on its N data rows, removing it from the
// ready-but-unclosed set. Every member (data and parity) of the closed
// collection is queued as a ParityRelationEntry for the next assurance-log
// flush, since only a closed collection is safe to publish (§4.5, §4.8).
func (c *Catalog) CloseParityRelations(collectionID uint64, n int, parityHashes [][]byte) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		for _, hash := range parityHashes {
			row := ParityRow{CollectionID: collectionID, PlainHash: hash, IsParity: true}
			if err := tx.Bucket(bucketParityRows).Put(parityRowKey(collectionID, hash), encodeGob(row)); err != nil {
				return err
			}
			if err := tx.Bucket(bucketParityHashIndex).Put(hash, beUint64(collectionID)); err != nil {
				return err
			}
			if err := queuePendingRelationTx(tx, domain.ParityRelationEntry{CollectionID: collectionID, PlainHash: hash, IsParity: true}); err != nil {
				return err
			}
		}

		rows, err := rowsForCollectionTx(tx, collectionID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.IsParity {
				continue
			}
			row.TmpDataCompressed = nil
			if err := tx.Bucket(bucketParityRows).Put(parityRowKey(collectionID, row.PlainHash), encodeGob(row)); err != nil {
				return err
			}
			if err := queuePendingRelationTx(tx, domain.ParityRelationEntry{CollectionID: collectionID, PlainHash: row.PlainHash, IsParity: false}); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketParityMeta).Delete(readyKey(collectionID))
	})
}

// GetParityRelationsForHash returns every member (data and parity) of
// the collection containing hash (§4.5).
func (c *Catalog) GetParityRelationsForHash(hash []byte) ([]ParityRow, error) {
	var rows []ParityRow
	err := c.db.View(func(tx *bbolt.Tx) error {
		idBytes := tx.Bucket(bucketParityHashIndex).Get(hash)
		if idBytes == nil {
			return nil
		}
		id := binary.BigEndian.Uint64(idBytes)
		var err error
		rows, err = rowsForCollectionTx(tx, id)
		return err
	})
	return rows, err
}
