package wire

import (
	"bytes"
	"fmt"

	"github.com/zzenonn/nntpvault/internal/domain"
)

// EncodeAssuranceSegment serializes an AssuranceSegment to its
// wire-stable binary form (§6 "Binary formats").
func EncodeAssuranceSegment(seg domain.AssuranceSegment) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(seg.Entries)))
	for _, e := range seg.Entries {
		writeBytes(&buf, []byte(e.IndexID))
		writeUvarint(&buf, uint64(e.Replication))
		writeBytes(&buf, e.PlainHash)
		writeUvarint(&buf, uint64(e.StoredLength))
	}
	writeUvarint(&buf, uint64(len(seg.Relations)))
	for _, r := range seg.Relations {
		writeUvarint(&buf, r.CollectionID)
		writeBytes(&buf, r.PlainHash)
		if r.IsParity {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// DecodeAssuranceSegment reverses EncodeAssuranceSegment.
func DecodeAssuranceSegment(data []byte) (domain.AssuranceSegment, error) {
	r := bytes.NewReader(data)
	var seg domain.AssuranceSegment

	nEntries, err := readUvarint(r)
	if err != nil {
		return seg, fmt.Errorf("assurance segment entry count: %w", err)
	}
	seg.Entries = make([]domain.AssuranceEntry, 0, nEntries)
	for i := uint64(0); i < nEntries; i++ {
		id, err := readBytes(r)
		if err != nil {
			return seg, fmt.Errorf("assurance segment entry %d index id: %w", i, err)
		}
		repl, err := readUvarint(r)
		if err != nil {
			return seg, fmt.Errorf("assurance segment entry %d replication: %w", i, err)
		}
		hash, err := readBytes(r)
		if err != nil {
			return seg, fmt.Errorf("assurance segment entry %d hash: %w", i, err)
		}
		length, err := readUvarint(r)
		if err != nil {
			return seg, fmt.Errorf("assurance segment entry %d length: %w", i, err)
		}
		seg.Entries = append(seg.Entries, domain.AssuranceEntry{
			IndexID:      domain.IndexID(id),
			Replication:  uint32(repl),
			PlainHash:    hash,
			StoredLength: uint32(length),
		})
	}

	nRelations, err := readUvarint(r)
	if err != nil {
		return seg, fmt.Errorf("assurance segment relation count: %w", err)
	}
	seg.Relations = make([]domain.ParityRelationEntry, 0, nRelations)
	for i := uint64(0); i < nRelations; i++ {
		collectionID, err := readUvarint(r)
		if err != nil {
			return seg, fmt.Errorf("assurance segment relation %d collection id: %w", i, err)
		}
		hash, err := readBytes(r)
		if err != nil {
			return seg, fmt.Errorf("assurance segment relation %d hash: %w", i, err)
		}
		isParityByte, err := r.ReadByte()
		if err != nil {
			return seg, fmt.Errorf("assurance segment relation %d is-parity: %w", i, err)
		}
		seg.Relations = append(seg.Relations, domain.ParityRelationEntry{
			CollectionID: collectionID,
			PlainHash:    hash,
			IsParity:     isParityByte != 0,
		})
	}
	return seg, nil
}

// SplitAssuranceSegment packs seg's entries and relations into one or
// more independently-decodable AssuranceSegment encodings, each no larger
// than maxChunkSize. Unlike SplitIntoChunks, which cuts raw bytes with no
// regard for the format's leading counts, every returned chunk starts
// with its own entry/relation counts and decodes on its own via
// DecodeAssuranceSegment — required because each chunk lands in its own
// assurance slot and is read back independently (§6 "Binary formats").
func SplitAssuranceSegment(seg domain.AssuranceSegment, maxChunkSize int) [][]byte {
	if len(seg.Entries) == 0 && len(seg.Relations) == 0 {
		return [][]byte{EncodeAssuranceSegment(domain.AssuranceSegment{})}
	}

	var chunks [][]byte
	var cur domain.AssuranceSegment

	flush := func() {
		if len(cur.Entries) == 0 && len(cur.Relations) == 0 {
			return
		}
		chunks = append(chunks, EncodeAssuranceSegment(cur))
		cur = domain.AssuranceSegment{}
	}

	for i := range seg.Entries {
		trial := cur
		trial.Entries = append(append([]domain.AssuranceEntry{}, cur.Entries...), seg.Entries[i])
		if len(cur.Entries) > 0 || len(cur.Relations) > 0 {
			if len(EncodeAssuranceSegment(trial)) > maxChunkSize {
				flush()
				trial.Entries = []domain.AssuranceEntry{seg.Entries[i]}
			}
		}
		cur = trial
	}
	for i := range seg.Relations {
		trial := cur
		trial.Relations = append(append([]domain.ParityRelationEntry{}, cur.Relations...), seg.Relations[i])
		if len(cur.Entries) > 0 || len(cur.Relations) > 0 {
			if len(EncodeAssuranceSegment(trial)) > maxChunkSize {
				flush()
				trial = domain.AssuranceSegment{Relations: []domain.ParityRelationEntry{seg.Relations[i]}}
			}
		}
		cur = trial
	}
	flush()
	return chunks
}

// SplitMetaSegment packs seg's commands into one or more
// independently-decodable MetaSegment encodings, each no larger than
// maxChunkSize, for the same reason SplitAssuranceSegment exists: every
// chunk lands in its own meta slot and is decoded independently via
// DecodeMetaSegment.
func SplitMetaSegment(seg domain.MetaSegment, maxChunkSize int) [][]byte {
	if len(seg.Commands) == 0 {
		return [][]byte{EncodeMetaSegment(domain.MetaSegment{})}
	}

	var chunks [][]byte
	var cur []domain.Command

	for _, cmd := range seg.Commands {
		trial := append(append([]domain.Command{}, cur...), cmd)
		if len(EncodeMetaSegment(domain.MetaSegment{Commands: trial})) > maxChunkSize && len(cur) > 0 {
			chunks = append(chunks, EncodeMetaSegment(domain.MetaSegment{Commands: cur}))
			cur = []domain.Command{cmd}
			continue
		}
		cur = trial
	}
	if len(cur) > 0 {
		chunks = append(chunks, EncodeMetaSegment(domain.MetaSegment{Commands: cur}))
	}
	return chunks
}

// EncodeMetaSegment serializes a MetaSegment to its wire-stable binary
// form (§6 "Binary formats").
func EncodeMetaSegment(seg domain.MetaSegment) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(seg.Commands)))
	for _, c := range seg.Commands {
		buf.WriteByte(byte(c.Kind))
		switch c.Kind {
		case domain.CommandAddFolder:
			writeBytes(&buf, []byte(c.Name))
		case domain.CommandAddFile:
			writeBytes(&buf, []byte(c.Name))
			writeUvarint(&buf, uint64(c.FileSize))
		case domain.CommandAddBlock:
			writeBytes(&buf, c.BlockHash)
			writeUvarint(&buf, uint64(c.BlockSize))
			writeUvarint(&buf, uint64(c.BlockStart))
		default:
			panic(fmt.Sprintf("wire: unknown command kind %d", c.Kind))
		}
	}
	return buf.Bytes()
}

// DecodeMetaSegment reverses EncodeMetaSegment.
func DecodeMetaSegment(data []byte) (domain.MetaSegment, error) {
	r := bytes.NewReader(data)
	var seg domain.MetaSegment

	nCommands, err := readUvarint(r)
	if err != nil {
		return seg, fmt.Errorf("meta segment command count: %w", err)
	}
	seg.Commands = make([]domain.Command, 0, nCommands)
	for i := uint64(0); i < nCommands; i++ {
		kindByte, err := r.ReadByte()
		if err != nil {
			return seg, fmt.Errorf("meta segment command %d kind: %w", i, err)
		}
		cmd := domain.Command{Kind: domain.CommandKind(kindByte)}
		switch cmd.Kind {
		case domain.CommandAddFolder:
			name, err := readBytes(r)
			if err != nil {
				return seg, fmt.Errorf("meta segment command %d folder name: %w", i, err)
			}
			cmd.Name = string(name)
		case domain.CommandAddFile:
			name, err := readBytes(r)
			if err != nil {
				return seg, fmt.Errorf("meta segment command %d file name: %w", i, err)
			}
			size, err := readUvarint(r)
			if err != nil {
				return seg, fmt.Errorf("meta segment command %d file size: %w", i, err)
			}
			cmd.Name = string(name)
			cmd.FileSize = int64(size)
		case domain.CommandAddBlock:
			hash, err := readBytes(r)
			if err != nil {
				return seg, fmt.Errorf("meta segment command %d block hash: %w", i, err)
			}
			size, err := readUvarint(r)
			if err != nil {
				return seg, fmt.Errorf("meta segment command %d block size: %w", i, err)
			}
			start, err := readUvarint(r)
			if err != nil {
				return seg, fmt.Errorf("meta segment command %d block start: %w", i, err)
			}
			cmd.BlockHash = hash
			cmd.BlockSize = int64(size)
			cmd.BlockStart = int64(start)
		default:
			return seg, fmt.Errorf("meta segment command %d: unknown kind %d", i, cmd.Kind)
		}
		seg.Commands = append(seg.Commands, cmd)
	}
	return seg, nil
}
