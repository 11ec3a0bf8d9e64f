package wire

import (
	"bytes"
	"testing"

	"github.com/zzenonn/nntpvault/internal/domain"
)

func testMasterKey() []byte {
	return bytes.Repeat([]byte{0x07}, 32)
}

func TestEncodeDecodeSegment_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		plain []byte
	}{
		{name: "small payload", plain: []byte("hello vault")},
		{name: "empty payload", plain: []byte{}},
		{name: "larger payload", plain: bytes.Repeat([]byte("block"), 2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := testMasterKey()
			locator := domain.Locator("locator-" + tt.name)

			ciphertext, err := EncodeSegment(key, locator, tt.plain, 64*1024)
			if err != nil {
				t.Fatalf("EncodeSegment() error = %v", err)
			}
			if len(ciphertext) == 0 {
				t.Fatal("EncodeSegment() returned empty ciphertext")
			}

			got, err := DecodeSegment(key, locator, ciphertext)
			if err != nil {
				t.Fatalf("DecodeSegment() error = %v", err)
			}
			if !bytes.Equal(got, tt.plain) {
				t.Errorf("DecodeSegment() = %q, want %q", got, tt.plain)
			}
		})
	}
}

func TestEncodeSegment_ExceedsSegmentSizeFails(t *testing.T) {
	key := testMasterKey()
	locator := domain.Locator("locator-overflow")
	// A period-256 pattern with no repeat inside one period leaves at
	// least 256 literal bytes after compression, more than the segment.
	plain := make([]byte, 10000)
	for i := range plain {
		plain[i] = byte(i * 37)
	}

	if _, err := EncodeSegment(key, locator, plain, 128); err == nil {
		t.Error("EncodeSegment() succeeded despite exceeding segmentSize")
	}
}

func TestDecodeSegment_WrongLocatorFails(t *testing.T) {
	key := testMasterKey()
	ciphertext, err := EncodeSegment(key, domain.Locator("locator-a"), []byte("payload"), 4096)
	if err != nil {
		t.Fatalf("EncodeSegment() error = %v", err)
	}
	if _, err := DecodeSegment(key, domain.Locator("locator-b"), ciphertext); err == nil {
		t.Error("DecodeSegment() succeeded with the wrong locator")
	}
}

func TestCompressDecompress_RoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("repeating data compresses well "), 100)
	compressed := Compress(plain)
	if len(compressed) >= len(plain) {
		t.Errorf("compressed length %d not smaller than plain length %d", len(compressed), len(plain))
	}
	got, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Error("Decompress(Compress(plain)) != plain")
	}
}

func TestDecompress_CorruptInputFails(t *testing.T) {
	if _, err := Decompress([]byte("not a zstd frame")); err == nil {
		t.Error("Decompress() succeeded on corrupt input")
	}
}

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		maxChunk   int
		wantChunks int
	}{
		{name: "empty", data: []byte{}, maxChunk: 10, wantChunks: 1},
		{name: "single chunk", data: bytes.Repeat([]byte{1}, 5), maxChunk: 10, wantChunks: 1},
		{name: "exact multiple", data: bytes.Repeat([]byte{1}, 20), maxChunk: 10, wantChunks: 2},
		{name: "remainder", data: bytes.Repeat([]byte{1}, 25), maxChunk: 10, wantChunks: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitIntoChunks(tt.data, tt.maxChunk)
			if len(chunks) != tt.wantChunks {
				t.Fatalf("len(chunks) = %d, want %d", len(chunks), tt.wantChunks)
			}
			var reassembled []byte
			for _, c := range chunks {
				if len(c) > tt.maxChunk {
					t.Errorf("chunk length %d exceeds maxChunk %d", len(c), tt.maxChunk)
				}
				reassembled = append(reassembled, c...)
			}
			if !bytes.Equal(reassembled, tt.data) {
				t.Error("reassembled chunks do not match original data")
			}
		})
	}
}

func TestEncodeDecodeAssuranceSegment_RoundTrip(t *testing.T) {
	seg := domain.AssuranceSegment{
		Entries: []domain.AssuranceEntry{
			{IndexID: domain.IndexID("idx-1"), Replication: 0, PlainHash: []byte("hash-1"), StoredLength: 100},
			{IndexID: domain.IndexID("idx-2"), Replication: 1, PlainHash: []byte("hash-2"), StoredLength: 200},
		},
		Relations: []domain.ParityRelationEntry{
			{CollectionID: 7, PlainHash: []byte("hash-1"), IsParity: false},
			{CollectionID: 7, PlainHash: []byte("parity-hash"), IsParity: true},
		},
	}

	encoded := EncodeAssuranceSegment(seg)
	got, err := DecodeAssuranceSegment(encoded)
	if err != nil {
		t.Fatalf("DecodeAssuranceSegment() error = %v", err)
	}

	if len(got.Entries) != len(seg.Entries) || len(got.Relations) != len(seg.Relations) {
		t.Fatalf("decoded segment shape mismatch: %+v", got)
	}
	for i := range seg.Entries {
		if got.Entries[i].Replication != seg.Entries[i].Replication ||
			!bytes.Equal(got.Entries[i].PlainHash, seg.Entries[i].PlainHash) ||
			got.Entries[i].StoredLength != seg.Entries[i].StoredLength ||
			!bytes.Equal([]byte(got.Entries[i].IndexID), []byte(seg.Entries[i].IndexID)) {
			t.Errorf("entry %d mismatch: got %+v, want %+v", i, got.Entries[i], seg.Entries[i])
		}
	}
	for i := range seg.Relations {
		if got.Relations[i].CollectionID != seg.Relations[i].CollectionID ||
			!bytes.Equal(got.Relations[i].PlainHash, seg.Relations[i].PlainHash) ||
			got.Relations[i].IsParity != seg.Relations[i].IsParity {
			t.Errorf("relation %d mismatch: got %+v, want %+v", i, got.Relations[i], seg.Relations[i])
		}
	}
}

func TestEncodeDecodeMetaSegment_RoundTrip(t *testing.T) {
	seg := domain.MetaSegment{
		Commands: []domain.Command{
			{Kind: domain.CommandAddFolder, Name: "docs"},
			{Kind: domain.CommandAddFile, Name: "report.pdf", FileSize: 4096},
			{Kind: domain.CommandAddBlock, BlockHash: []byte("block-hash"), BlockSize: 512, BlockStart: 0},
		},
	}

	encoded := EncodeMetaSegment(seg)
	got, err := DecodeMetaSegment(encoded)
	if err != nil {
		t.Fatalf("DecodeMetaSegment() error = %v", err)
	}
	if len(got.Commands) != len(seg.Commands) {
		t.Fatalf("len(got.Commands) = %d, want %d", len(got.Commands), len(seg.Commands))
	}
	for i, want := range seg.Commands {
		gotCmd := got.Commands[i]
		if gotCmd.Kind != want.Kind || gotCmd.Name != want.Name || gotCmd.FileSize != want.FileSize ||
			gotCmd.BlockSize != want.BlockSize || gotCmd.BlockStart != want.BlockStart ||
			!bytes.Equal(gotCmd.BlockHash, want.BlockHash) {
			t.Errorf("command %d mismatch: got %+v, want %+v", i, gotCmd, want)
		}
	}
}

func TestSplitAssuranceSegment_EachChunkDecodesIndependently(t *testing.T) {
	var entries []domain.AssuranceEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, domain.AssuranceEntry{
			IndexID:      domain.IndexID(bytes.Repeat([]byte{byte(i)}, 32)),
			Replication:  uint32(i % 3),
			PlainHash:    bytes.Repeat([]byte{byte(i + 1)}, 32),
			StoredLength: uint32(100 + i),
		})
	}
	seg := domain.AssuranceSegment{Entries: entries}

	const maxChunk = 150
	chunks := SplitAssuranceSegment(seg, maxChunk)
	if len(chunks) <= 1 {
		t.Fatalf("len(chunks) = %d, want > 1 for maxChunk %d", len(chunks), maxChunk)
	}

	var gotEntries []domain.AssuranceEntry
	for i, c := range chunks {
		if len(c) > maxChunk {
			t.Errorf("chunk %d length %d exceeds maxChunk %d", i, len(c), maxChunk)
		}
		decoded, err := DecodeAssuranceSegment(c)
		if err != nil {
			t.Fatalf("DecodeAssuranceSegment(chunk %d) error = %v", i, err)
		}
		gotEntries = append(gotEntries, decoded.Entries...)
	}

	if len(gotEntries) != len(entries) {
		t.Fatalf("len(gotEntries) = %d, want %d", len(gotEntries), len(entries))
	}
	for i := range entries {
		if !bytes.Equal([]byte(gotEntries[i].IndexID), []byte(entries[i].IndexID)) ||
			gotEntries[i].StoredLength != entries[i].StoredLength {
			t.Errorf("entry %d mismatch: got %+v, want %+v", i, gotEntries[i], entries[i])
		}
	}
}

func TestSplitAssuranceSegment_Empty(t *testing.T) {
	chunks := SplitAssuranceSegment(domain.AssuranceSegment{}, 100)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1 for an empty segment", len(chunks))
	}
	decoded, err := DecodeAssuranceSegment(chunks[0])
	if err != nil {
		t.Fatalf("DecodeAssuranceSegment() error = %v", err)
	}
	if len(decoded.Entries) != 0 || len(decoded.Relations) != 0 {
		t.Errorf("decoded = %+v, want empty segment", decoded)
	}
}

func TestSplitMetaSegment_EachChunkDecodesIndependently(t *testing.T) {
	var cmds []domain.Command
	for i := 0; i < 20; i++ {
		cmds = append(cmds, domain.Command{Kind: domain.CommandAddFolder, Name: "folder-name-00000"})
	}
	seg := domain.MetaSegment{Commands: cmds}

	const maxChunk = 100
	chunks := SplitMetaSegment(seg, maxChunk)
	if len(chunks) <= 1 {
		t.Fatalf("len(chunks) = %d, want > 1 for maxChunk %d", len(chunks), maxChunk)
	}

	var gotCmds []domain.Command
	for i, c := range chunks {
		if len(c) > maxChunk {
			t.Errorf("chunk %d length %d exceeds maxChunk %d", i, len(c), maxChunk)
		}
		decoded, err := DecodeMetaSegment(c)
		if err != nil {
			t.Fatalf("DecodeMetaSegment(chunk %d) error = %v", i, err)
		}
		gotCmds = append(gotCmds, decoded.Commands...)
	}

	if len(gotCmds) != len(cmds) {
		t.Fatalf("len(gotCmds) = %d, want %d", len(gotCmds), len(cmds))
	}
	for i := range cmds {
		if gotCmds[i].Kind != cmds[i].Kind || gotCmds[i].Name != cmds[i].Name {
			t.Errorf("command %d mismatch: got %+v, want %+v", i, gotCmds[i], cmds[i])
		}
	}
}

func TestSplitMetaSegment_Empty(t *testing.T) {
	chunks := SplitMetaSegment(domain.MetaSegment{}, 100)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1 for an empty segment", len(chunks))
	}
	decoded, err := DecodeMetaSegment(chunks[0])
	if err != nil {
		t.Fatalf("DecodeMetaSegment() error = %v", err)
	}
	if len(decoded.Commands) != 0 {
		t.Errorf("decoded = %+v, want empty segment", decoded)
	}
}

func TestMaxPlainChunkSize(t *testing.T) {
	if got := MaxPlainChunkSize(1024); got <= 0 || got >= 1024 {
		t.Errorf("MaxPlainChunkSize(1024) = %d, want in (0, 1024)", got)
	}
	if got := MaxPlainChunkSize(1); got < 1 {
		t.Errorf("MaxPlainChunkSize(1) = %d, want >= 1", got)
	}
}
