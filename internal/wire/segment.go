package wire

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/vaultcrypto"
	"github.com/zzenonn/nntpvault/internal/vaulterrors"
)

// overallFrameMargin reserves room, within SegmentSize, for the
// OverallSegment length prefix and zstd's small worst-case frame
// overhead so that EncodeSegment never exceeds the caller's budget for
// the chunk sizes SplitIntoChunks hands it.
const overallFrameMargin = 512

// MaxPlainChunkSize returns the largest raw (pre-compression) chunk size
// that is guaranteed to fit within segmentSize once compressed, framed,
// and padded.
func MaxPlainChunkSize(segmentSize int) int {
	n := segmentSize - overallFrameMargin
	if n < 1 {
		n = 1
	}
	return n
}

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("wire: failed to init zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("wire: failed to init zstd decoder: %v", err))
	}
}

// compress applies the vault's compression stage (§4.3 "Compress").
func compress(plain []byte) []byte {
	return encoder.EncodeAll(plain, make([]byte, 0, len(plain)))
}

// decompress reverses compress.
func decompress(compressed []byte) ([]byte, error) {
	return decoder.DecodeAll(compressed, nil)
}

// Compress exposes the segment codec's compression stage directly, for
// the engine's parity path: `tmp-data-compressed` (§4.5) is the
// compressed-but-not-yet-encrypted form of a data chunk, since parity
// must be computed before a per-locator key exists for every replication.
func Compress(plain []byte) []byte {
	return compress(plain)
}

// Decompress reverses Compress, surfacing corrupt input as
// vaulterrors.ErrInvalidFormat.
func Decompress(compressed []byte) ([]byte, error) {
	plain, err := decompress(compressed)
	if err != nil {
		return nil, vaulterrors.InvalidFormat("tmp-data-compressed", err)
	}
	return plain, nil
}

// frameOverall frames compressed bytes into an OverallSegment{data} and
// pads the result up to segmentSize (§4.3 "frame into OverallSegment{data}
// → AddPadding to fixed SegmentSize"). Padding is required so all
// ciphertexts at the transport layer are indistinguishable in length.
func frameOverall(compressed []byte, segmentSize int) ([]byte, error) {
	var buf bytes.Buffer
	writeBytes(&buf, compressed)
	if buf.Len() > segmentSize {
		return nil, fmt.Errorf("wire: framed segment (%d bytes) exceeds SegmentSize (%d)", buf.Len(), segmentSize)
	}
	padded := make([]byte, segmentSize)
	copy(padded, buf.Bytes())
	return padded, nil
}

// unframeOverall reverses frameOverall, ignoring trailing padding.
func unframeOverall(padded []byte) ([]byte, error) {
	r := bytes.NewReader(padded)
	return readBytes(r)
}

// EncodeSegment runs the full OverallSegment pipeline — compress, frame,
// pad, encrypt — on plain, addressed at locator under masterKey (§4.3).
// plain must fit within MaxPlainChunkSize(segmentSize) once compressed;
// callers that may exceed SegmentSize must pre-split with
// SplitIntoChunks.
func EncodeSegment(masterKey []byte, locator domain.Locator, plain []byte, segmentSize int) ([]byte, error) {
	compressed := compress(plain)
	padded, err := frameOverall(compressed, segmentSize)
	if err != nil {
		return nil, err
	}
	return vaultcrypto.Encrypt(masterKey, []byte(locator), padded)
}

// DecodeSegment reverses EncodeSegment. Decryption failures surface as
// vaulterrors.ErrDecryption; malformed plaintext (corrupt frame or
// compressed stream) surfaces as vaulterrors.ErrInvalidFormat.
func DecodeSegment(masterKey []byte, locator domain.Locator, ciphertext []byte) ([]byte, error) {
	padded, err := vaultcrypto.Decrypt(masterKey, []byte(locator), ciphertext)
	if err != nil {
		return nil, err
	}
	compressed, err := unframeOverall(padded)
	if err != nil {
		return nil, vaulterrors.InvalidFormat("overall-segment-frame", err)
	}
	plain, err := decompress(compressed)
	if err != nil {
		return nil, vaulterrors.InvalidFormat("overall-segment-compress", err)
	}
	return plain, nil
}
