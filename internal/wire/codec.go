// Package wire implements the vault's wire-stable binary formats: the
// length-delimited AssuranceSegment and MetaSegment record encodings, and
// the OverallSegment compress/frame/pad/encrypt pipeline that turns any
// plaintext byte string into a SegmentSize-bounded ciphertext (§4.3, §6
// "Binary formats"). Framing is hand-rolled length-delimited
// encoding/binary, in the style of this corpus's own log-structured
// formats (dreamsxin/wal, calvinalkan-agent-task/slotcache) rather than a
// generated schema — the format is small, fixed, and internal only.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

func writeBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf.Write(lenBuf[:n])
	buf.Write(b)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], v)
	buf.Write(lenBuf[:n])
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}
	if n > uint64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// SplitIntoChunks splits encoded into pieces no larger than maxChunkSize,
// the generalized form of the teacher's wire-size-bounding rule,
// corresponding to spec's "ToListOfByteArrays" (§6). Each resulting
// piece becomes one independent OverallSegment.
func SplitIntoChunks(encoded []byte, maxChunkSize int) [][]byte {
	if len(encoded) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for len(encoded) > 0 {
		n := maxChunkSize
		if n > len(encoded) {
			n = len(encoded)
		}
		chunks = append(chunks, encoded[:n])
		encoded = encoded[n:]
	}
	return chunks
}
