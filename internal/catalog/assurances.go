package catalog

import (
	"go.etcd.io/bbolt"

	"github.com/zzenonn/nntpvault/internal/domain"
)

// FindMatchingSegmentInAssurancesByIndexId returns the assurance known
// for id, or nil if none exists (§4.5).
func (c *Catalog) FindMatchingSegmentInAssurancesByIndexId(id domain.IndexID) (*domain.AssuranceEntry, error) {
	var found *domain.AssuranceEntry
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketAssurances).Get(id)
		if v == nil {
			return nil
		}
		var row AssuranceRow
		if err := decodeGob(v, &row); err != nil {
			return err
		}
		entry := row.toEntry()
		found = &entry
		return nil
	})
	return found, err
}

// FindMatchingSegmentInAssurancesByPlainHash returns the first assurance
// known for a given content hash, or nil if none exists (§4.5).
func (c *Catalog) FindMatchingSegmentInAssurancesByPlainHash(hash []byte) (*domain.AssuranceEntry, error) {
	var found *domain.AssuranceEntry
	err := c.db.View(func(tx *bbolt.Tx) error {
		idBytes := tx.Bucket(bucketAssurancesByHash).Get(hash)
		if idBytes == nil {
			return nil
		}
		v := tx.Bucket(bucketAssurances).Get(idBytes)
		if v == nil {
			return nil
		}
		var row AssuranceRow
		if err := decodeGob(v, &row); err != nil {
			return err
		}
		entry := row.toEntry()
		found = &entry
		return nil
	})
	return found, err
}

func putAssuranceTx(tx *bbolt.Tx, row AssuranceRow) error {
	if err := tx.Bucket(bucketAssurances).Put([]byte(row.IndexID), encodeGob(row)); err != nil {
		return err
	}
	return tx.Bucket(bucketAssurancesByHash).Put(row.PlainHash, []byte(row.IndexID))
}

// AddNewAssurance records an assurance for a blob that is not tracked by
// a parity relation (parity blobs; §4.5), queuing it for the next
// assurance-log flush (§4.8).
func (c *Catalog) AddNewAssurance(id domain.IndexID, replication uint32, hash []byte, length uint32) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		row := AssuranceRow{
			IndexID:      id,
			Replication:  replication,
			PlainHash:    hash,
			StoredLength: length,
		}
		if err := putAssuranceTx(tx, row); err != nil {
			return err
		}
		return queuePendingEntryTx(tx, row.toEntry())
	})
}

// AddNewAssuranceAndTmpData records an assurance for a data blob and
// enqueues it into the current (or a new) parity relation collection,
// keeping the compressed payload until parity closes (§4.5). The
// assurance itself is queued for the next flush immediately; the
// ParityRelationEntry for this member follows once its collection
// closes (see CloseParityRelations).
func (c *Catalog) AddNewAssuranceAndTmpData(id domain.IndexID, replication uint32, hash []byte, length uint32, compressedBytes []byte, dataShardsPerCollection int) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		row := AssuranceRow{
			IndexID:      id,
			Replication:  replication,
			PlainHash:    hash,
			StoredLength: length,
		}
		if err := putAssuranceTx(tx, row); err != nil {
			return err
		}
		if err := queuePendingEntryTx(tx, row.toEntry()); err != nil {
			return err
		}
		return enqueueParityDataRowTx(tx, hash, compressedBytes, dataShardsPerCollection)
	})
}
