package catalog

import (
	"bytes"
	"encoding/binary"

	"go.etcd.io/bbolt"

	"github.com/zzenonn/nntpvault/internal/domain"
)

var (
	transientCmdPrefix  = []byte("cmd/")
	transientKindPrefix = []byte("kind/")
)

func transientCmdKey(path string, index int) []byte {
	key := append(append([]byte{}, transientCmdPrefix...), []byte(path)...)
	key = append(key, 0x00)
	key = append(key, beUint64(uint64(index))...)
	return key
}

func transientCmdPathPrefix(path string) []byte {
	key := append(append([]byte{}, transientCmdPrefix...), []byte(path)...)
	return append(key, 0x00)
}

func transientKindKey(path string) []byte {
	return append(append([]byte{}, transientKindPrefix...), []byte(path)...)
}

// AddCommandsToTransientCache records meta commands that have not yet
// been written to the path's remote meta log, recording the path's
// namespace (File/Folder) the first time it is seen (§3 "Transient meta
// cache", §4.11 namespace disjointness).
func (c *Catalog) AddCommandsToTransientCache(cmds []TransientCommand) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTransientMeta)
		for _, tc := range cmds {
			if err := b.Put(transientCmdKey(tc.Path, tc.Index), encodeGob(tc)); err != nil {
				return err
			}
			kindKey := transientKindKey(tc.Path)
			if b.Get(kindKey) == nil {
				// ADD FOLDER/ADD FILE commands describe a Folder path's
				// children; ADD BLOCK commands describe a File path's
				// content (§4.11: ADD FILE is appended to the parent
				// folder's log, not to the file's own log).
				kind := domain.PathFolder
				if tc.Cmd.Kind == domain.CommandAddBlock {
					kind = domain.PathFile
				}
				if err := b.Put(kindKey, []byte{byte(kind)}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// CommandsInTransientCache returns every not-yet-flushed command queued
// for path, ordered by Index.
func (c *Catalog) CommandsInTransientCache(path string) ([]TransientCommand, error) {
	var out []TransientCommand
	err := c.db.View(func(tx *bbolt.Tx) error {
		prefix := transientCmdPathPrefix(path)
		cur := tx.Bucket(bucketTransientMeta).Cursor()
		for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
			var tc TransientCommand
			if err := decodeGob(v, &tc); err != nil {
				return err
			}
			out = append(out, tc)
		}
		return nil
	})
	return out, err
}

// MetaTypeAtPathInTransientCache reports whether path has been recorded
// as a File or Folder path, or PathUnknown if neither command kind has
// been queued for it yet (§4.11).
func (c *Catalog) MetaTypeAtPathInTransientCache(path string) (domain.PathKind, error) {
	kind := domain.PathUnknown
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketTransientMeta).Get(transientKindKey(path))
		if v == nil {
			return nil
		}
		kind = domain.PathKind(v[0])
		return nil
	})
	return kind, err
}

// PathsWithTransientCommands returns every path that has ever had a
// command queued into the transient cache and still carries a recorded
// namespace kind, as candidates for FlushMeta to inspect. Callers must
// still check CommandsInTransientCache, since a path's kind marker
// outlives any particular flush.
func (c *Catalog) PathsWithTransientCommands() ([]string, error) {
	var paths []string
	err := c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketTransientMeta).Cursor()
		for k, _ := cur.Seek(transientKindPrefix); k != nil && bytes.HasPrefix(k, transientKindPrefix); k, _ = cur.Next() {
			paths = append(paths, string(k[len(transientKindPrefix):]))
		}
		return nil
	})
	return paths, err
}

// CommandsFlushedForPath removes every transient command for path with
// Index < indexSmallerThan, once those commands are durably written to
// the remote meta log (§4.11 "FlushMeta").
func (c *Catalog) CommandsFlushedForPath(path string, indexSmallerThan int) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		prefix := transientCmdPathPrefix(path)
		b := tx.Bucket(bucketTransientMeta)
		cur := b.Cursor()
		var toDelete [][]byte
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			idx := int(binary.BigEndian.Uint64(k[len(prefix):]))
			if idx < indexSmallerThan {
				toDelete = append(toDelete, append([]byte{}, k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
