// Package catalog implements the vault's local persistent catalog
// (§3 "Local catalog (persistent)", §4.5): the authoritative local
// mirror of what is known to exist remotely. Grounded on the teacher's
// internal/repository/db package (a thin struct wrapping one database
// handle, with one file per concern) but built on go.etcd.io/bbolt, an
// embedded transactional key/value store, rather than DynamoDB — per
// spec §6 "Persisted state layout", the vault's catalog is "one embedded
// database file", and bbolt is the corpus's own answer for that shape
// (cuemby-warren/pkg/storage documents BoltDB/bbolt for exactly this
// role; storj-storj's node database uses the same family via
// boltdb/bolt).
package catalog

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketAssurances       = []byte("assurances")
	bucketAssurancesByHash = []byte("assurances_by_hash")
	bucketParityRows       = []byte("parity_rows")
	bucketParityHashIndex  = []byte("parity_hash_index")
	bucketParityMeta       = []byte("parity_meta")
	bucketTransientMeta    = []byte("transient_meta")
	bucketFlushState       = []byte("flush_state")
)

var allBuckets = [][]byte{
	bucketAssurances,
	bucketAssurancesByHash,
	bucketParityRows,
	bucketParityHashIndex,
	bucketParityMeta,
	bucketTransientMeta,
	bucketFlushState,
}

// Catalog is the vault's embedded local database. All operations are
// transactional per bbolt.DB.Update/View; multi-row mutations that must
// be atomic (§5 "Shared state") run inside a single bbolt transaction.
type Catalog struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the catalog file at path.
func Open(path string) (*Catalog, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize catalog buckets: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database file.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func beUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func beUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
