// Package parity implements the vault's erasure code over fixed-count
// data and parity shards (§4.4), generalizing the teacher's
// erasure_coding_service.go from a single variable-shape Reed-Solomon
// split of one file into the vault's fixed N-data/M-parity groups of
// independently produced, independently sized chunks.
package parity

import (
	"github.com/klauspost/reedsolomon"

	"github.com/zzenonn/nntpvault/internal/vaulterrors"
)

// Shard describes one member of a data+parity group for repair.
// A Broken shard has no usable Data; RealLength is the shard's own
// unpadded length, to truncate back to once the shard is reconstructed
// (shards are logically zero-padded to a common size before encoding).
type Shard struct {
	Data       []byte
	Broken     bool
	RealLength int
}

// CreateParity produces M parity shards from N data shards, following
// the teacher's ShardFile (reedsolomon.New, then Encode) but over
// independently-produced byte strings rather than one split file. All
// inputs are logically padded to the max input length; every returned
// parity shard has that padded length.
func CreateParity(data [][]byte, parityShards int) ([][]byte, error) {
	dataShards := len(data)
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}

	maxLen := 0
	for _, d := range data {
		if len(d) > maxLen {
			maxLen = len(d)
		}
	}

	shards := make([][]byte, dataShards+parityShards)
	for i, d := range data {
		padded := make([]byte, maxLen)
		copy(padded, d)
		shards[i] = padded
	}
	for i := dataShards; i < dataShards+parityShards; i++ {
		shards[i] = make([]byte, maxLen)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards[dataShards:], nil
}

// RepairWithParity reconstructs any broken data or parity shards in
// place, using whichever shards of the N+M group are present. It fails
// with ErrNotEnoughParity when more than M shards are broken, or when no
// shard at all survived to establish the padded shard size (§4.4).
func RepairWithParity(dataInfo, parityInfo []Shard) error {
	n, m := len(dataInfo), len(parityInfo)

	shardSize := 0
	for _, info := range append(append([]Shard{}, dataInfo...), parityInfo...) {
		if !info.Broken && info.Data != nil && len(info.Data) > shardSize {
			shardSize = len(info.Data)
		}
	}
	if shardSize == 0 {
		return vaulterrors.ErrNotEnoughParity
	}

	shards := make([][]byte, n+m)
	broken := 0
	for i, info := range dataInfo {
		if info.Broken || info.Data == nil {
			broken++
			continue
		}
		shards[i] = make([]byte, shardSize)
		copy(shards[i], info.Data)
	}
	for i, info := range parityInfo {
		if info.Broken || info.Data == nil {
			broken++
			continue
		}
		shards[n+i] = make([]byte, shardSize)
		copy(shards[n+i], info.Data)
	}
	if broken > m {
		return vaulterrors.ErrNotEnoughParity
	}

	enc, err := reedsolomon.New(n, m)
	if err != nil {
		return err
	}
	if err := enc.Reconstruct(shards); err != nil {
		return vaulterrors.ErrNotEnoughParity
	}

	for i := range dataInfo {
		if dataInfo[i].Broken || dataInfo[i].Data == nil {
			dataInfo[i].Data = truncate(shards[i], dataInfo[i].RealLength)
			dataInfo[i].Broken = false
		}
	}
	for i := range parityInfo {
		if parityInfo[i].Broken || parityInfo[i].Data == nil {
			parityInfo[i].Data = truncate(shards[n+i], parityInfo[i].RealLength)
			parityInfo[i].Broken = false
		}
	}
	return nil
}

func truncate(b []byte, realLength int) []byte {
	if realLength < 0 || realLength > len(b) {
		realLength = len(b)
	}
	out := make([]byte, realLength)
	copy(out, b[:realLength])
	return out
}
