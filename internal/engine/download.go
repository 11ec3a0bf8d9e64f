package engine

import (
	"bytes"
	"context"
	"errors"

	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/parity"
	"github.com/zzenonn/nntpvault/internal/vaultcrypto"
	"github.com/zzenonn/nntpvault/internal/vaulterrors"
	"github.com/zzenonn/nntpvault/internal/wire"
)

// downloadChunkBasic tries to fetch and decode the blob at (id,
// replication). A nil, nil result means nothing usable was found there
// (absent or undecodable) — not a hard failure; only a transport-level
// error is returned as an error (§4.8 "_downloadChunkBasic", reused for
// downloads per §4.10).
func (e *Engine) downloadChunkBasic(ctx context.Context, id domain.IndexID, replication uint32) ([]byte, error) {
	locator := e.gen.DeriveLocator(id, replication)

	svc, release, err := e.pool.AcquireDownload(ctx)
	if err != nil {
		return nil, vaulterrors.Transport(err)
	}
	defer release()

	body, err := svc.GetBody(ctx, locator)
	if err != nil {
		return nil, vaulterrors.Transport(err)
	}
	if body == nil {
		return nil, nil
	}

	plain, err := wire.DecodeSegment(e.gen.MasterKey(), locator, body)
	if err != nil {
		return nil, nil
	}
	return plain, nil
}

// DownloadChunk returns the plaintext for id, repairing it from parity
// if the primary replication is unavailable and parityAware is set
// (§4.10 "DownloadChunk").
func (e *Engine) DownloadChunk(ctx context.Context, id domain.IndexID, parityAware bool) ([]byte, error) {
	data, _, err := e.downloadDedup.Do(id.Hex(), func() ([]byte, error) {
		return e.downloadChunkOnce(ctx, id, parityAware)
	})
	return data, err
}

func (e *Engine) downloadChunkOnce(ctx context.Context, id domain.IndexID, parityAware bool) ([]byte, error) {
	if cached, ok := e.cache.Get(id.Hex()); ok {
		return cached, nil
	}

	row, err := e.cat.FindMatchingSegmentInAssurancesByIndexId(id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, vaulterrors.ErrNotFound
	}

	plain, err := e.downloadChunkBasic(ctx, id, row.Replication)
	if err != nil {
		return nil, err
	}
	if plain != nil {
		e.cache.Put(id.Hex(), plain)
		return plain, nil
	}

	if !parityAware {
		return nil, vaulterrors.ErrNotFound
	}

	recovered, err := e.repairChunk(ctx, *row)
	if err != nil {
		return nil, err
	}
	e.cache.Put(id.Hex(), recovered)
	return recovered, nil
}

// repairChunk reconstructs a missing data or parity chunk from its
// parity relation collection (§4.10 steps 4): every other member's
// plaintext is obtained from its still-present tmp-data-compressed or,
// failing that, a non-parity-aware DownloadChunk, then RepairWithParity
// reconstructs the requested member in place.
func (e *Engine) repairChunk(ctx context.Context, row domain.AssuranceEntry) ([]byte, error) {
	relations, err := e.cat.GetParityRelationsForHash(row.PlainHash)
	if err != nil {
		return nil, err
	}
	if len(relations) == 0 {
		return nil, vaulterrors.ErrNotEnoughParity
	}

	var dataInfo, parityInfo []parity.Shard
	dataOursIdx, parityOursIdx := -1, -1
	oursIsParity := false

	for _, rel := range relations {
		isOurs := bytes.Equal(rel.PlainHash, row.PlainHash)
		var shardBytes []byte
		broken := false

		switch {
		case isOurs:
			broken = true
		case rel.TmpDataCompressed != nil:
			shardBytes = rel.TmpDataCompressed
		default:
			memberID := e.gen.RawOrParityID(rel.PlainHash)
			plain, derr := e.DownloadChunk(ctx, memberID, false)
			if derr != nil {
				if errors.Is(derr, vaulterrors.ErrTransport) {
					return nil, derr
				}
				broken = true
			} else if rel.IsParity {
				shardBytes = plain
			} else {
				shardBytes = wire.Compress(plain)
			}
		}

		memberAssurance, aerr := e.cat.FindMatchingSegmentInAssurancesByPlainHash(rel.PlainHash)
		if aerr != nil {
			return nil, aerr
		}
		realLength := 0
		if memberAssurance != nil {
			realLength = int(memberAssurance.StoredLength)
		}

		shard := parity.Shard{Data: shardBytes, Broken: broken, RealLength: realLength}
		if rel.IsParity {
			if isOurs {
				oursIsParity = true
				parityOursIdx = len(parityInfo)
			}
			parityInfo = append(parityInfo, shard)
		} else {
			if isOurs {
				dataOursIdx = len(dataInfo)
			}
			dataInfo = append(dataInfo, shard)
		}
	}

	if err := parity.RepairWithParity(dataInfo, parityInfo); err != nil {
		return nil, err
	}

	var recoveredShard []byte
	if oursIsParity {
		recoveredShard = parityInfo[parityOursIdx].Data
	} else {
		recoveredShard = dataInfo[dataOursIdx].Data
	}

	if oursIsParity {
		return recoveredShard, nil
	}

	plain, err := wire.Decompress(recoveredShard)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(vaultcrypto.ContentHash(plain), row.PlainHash) {
		return nil, vaulterrors.ErrNotEnoughParity
	}
	return plain, nil
}
