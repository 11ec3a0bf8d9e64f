package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/parity"
	"github.com/zzenonn/nntpvault/internal/transport"
	"github.com/zzenonn/nntpvault/internal/vaultcrypto"
	"github.com/zzenonn/nntpvault/internal/vaulterrors"
	"github.com/zzenonn/nntpvault/internal/wire"
)

const maxInFlightBudget = 32 * 1024 * 1024

func randomSubject() string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 24)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return "v-" + string(b)
}

// uploadChunkBasic derives the locator for (id, replication), runs the
// segment codec, and attempts to store the result at that locator
// (§4.8 "_uploadChunkBasic"). A false result means another blob already
// occupies the locator, not a failure.
func (e *Engine) uploadChunkBasic(ctx context.Context, data []byte, id domain.IndexID, replication uint32) (bool, error) {
	locator := e.gen.DeriveLocator(id, replication)
	ciphertext, err := wire.EncodeSegment(e.gen.MasterKey(), locator, data, e.cfg.SegmentSize)
	if err != nil {
		return false, err
	}

	svc, release, err := e.pool.AcquireUpload(ctx)
	if err != nil {
		return false, vaulterrors.Transport(err)
	}
	defer release()

	ok, err := svc.Upload(ctx, transport.Chunk{Locator: locator, Subject: randomSubject(), Ciphertext: ciphertext})
	if err != nil {
		return false, vaulterrors.Transport(err)
	}
	return ok, nil
}

// uploadChunk wraps the actual upload in the upload dedup context and
// opportunistically flushes any ready (non-forced) parity collections
// first (§4.8 "uploadChunk").
func (e *Engine) uploadChunk(ctx context.Context, data, hash []byte, id domain.IndexID, kind chunkKind) error {
	_, _, err := e.uploadDedup.Do(id.Hex(), func() (struct{}, error) {
		if err := e.flushParity(ctx, false); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, e.uploadChunkOnce(ctx, data, hash, id, kind)
	})
	return err
}

// uploadChunkOnce is "_uploadChunk": idempotent per IndexID, retries
// across replications, and records the resulting assurance (§4.8).
func (e *Engine) uploadChunkOnce(ctx context.Context, data, hash []byte, id domain.IndexID, kind chunkKind) error {
	existing, err := e.cat.FindMatchingSegmentInAssurancesByIndexId(id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	for r := 0; r < e.cfg.ReplicationAttemptCount; r++ {
		ok, err := e.uploadChunkBasic(ctx, data, id, uint32(r))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		switch kind {
		case chunkData:
			compressed := wire.Compress(data)
			// StoredLength for a data blob is the compressed length, not the
			// plaintext length: repairChunk reads it back as RealLength and
			// truncates the reconstructed (compressed) shard to it before
			// decompression (§9).
			if err := e.cat.AddNewAssuranceAndTmpData(id, uint32(r), hash, uint32(len(compressed)), compressed, e.cfg.DataShards); err != nil {
				return err
			}
		default:
			if err := e.cat.AddNewAssurance(id, uint32(r), hash, uint32(len(data))); err != nil {
				return err
			}
		}

		e.cache.Put(id.Hex(), data)
		return nil
	}
	return vaulterrors.ErrUploadExhausted
}

// ForceFlushParity closes every open parity collection regardless of
// size (§4.8 "ForceFlushParity").
func (e *Engine) ForceFlushParity(ctx context.Context) error {
	return e.flushParity(ctx, true)
}

// flushParity computes and uploads parity shards for every ready
// collection, closing each once its M shards land (§4.8 "flushParity").
func (e *Engine) flushParity(ctx context.Context, force bool) error {
	e.flushParitySem.Lock()
	defer e.flushParitySem.Unlock()

	if force {
		if err := e.cat.ForceParityProcessingState(); err != nil {
			return err
		}
	}

	collections, err := e.cat.GetProcessingParityRelations()
	if err != nil {
		return err
	}

	for collectionID, rows := range collections {
		dataCompressed := make([][]byte, 0, len(rows))
		for _, row := range rows {
			if !row.IsParity {
				dataCompressed = append(dataCompressed, row.TmpDataCompressed)
			}
		}
		if len(dataCompressed) == 0 {
			continue
		}

		parityShards, err := parity.CreateParity(dataCompressed, e.cfg.ParityShards)
		if err != nil {
			return err
		}

		parityHashes := make([][]byte, len(parityShards))
		for i, shard := range parityShards {
			hash := vaultcrypto.ContentHash(shard)
			parityHashes[i] = hash
			id := e.gen.RawOrParityID(hash)
			if err := e.uploadChunkOnce(ctx, shard, hash, id, chunkParity); err != nil {
				return fmt.Errorf("flush parity collection %d: %w", collectionID, err)
			}
		}

		if err := e.cat.CloseParityRelations(collectionID, len(dataCompressed), parityHashes); err != nil {
			return err
		}
		log.WithField("collection", collectionID).Debug("engine: closed parity collection")
	}
	return nil
}

// FlushAssurances encodes and writes every locally-known, not-yet-published
// assurance-log fact to the next free assurance slots (§4.8 "FlushAssurances").
func (e *Engine) FlushAssurances(ctx context.Context) error {
	e.flushParitySem.Lock()
	defer e.flushParitySem.Unlock()

	aggSeg, state, err := e.cat.NewAggregatedAssuranceSegmentWithFlushState()
	if err != nil {
		return err
	}
	if aggSeg == nil {
		return nil
	}

	maxChunk := wire.MaxPlainChunkSize(e.cfg.SegmentSize)
	segs := wire.SplitAssuranceSegment(*aggSeg, maxChunk)
	nextSlot := uint32(state.LastFetchedAssuranceID + 1)

	for i := state.FlushedCount; i < len(segs); i++ {
		seg := segs[i]
		slotID := nextSlot + uint32(i)
		id := e.gen.AssuranceID(slotID)

		runs, invalidCount := 0, 0
		for r := 0; r < e.cfg.AssuranceReplicationSearchCount; r++ {
			limit := e.cfg.AssuranceReplicationDefaultCount + invalidCount
			if limit > e.cfg.AssuranceReplicationSearchCount {
				limit = e.cfg.AssuranceReplicationSearchCount
			}
			if r >= limit {
				break
			}

			ok, err := e.uploadChunkBasic(ctx, seg, id, uint32(r))
			if err != nil {
				return err
			}
			if ok {
				runs++
				continue
			}

			readBack, err := e.downloadChunkBasic(ctx, id, uint32(r))
			if err != nil {
				return err
			}
			if readBack != nil && bytes.Equal(readBack, seg) {
				runs++
			} else {
				invalidCount++
			}
		}

		if runs-invalidCount < e.cfg.AssuranceReplicationDefaultCount {
			return vaulterrors.ErrInsufficientAssuranceReplication
		}
		if err := e.cat.SetFlushedCount(i + 1); err != nil {
			return err
		}
	}

	newLast := int64(nextSlot) + int64(len(segs)) - 1
	return e.cat.MarkAggregationFlushed(newLast)
}

// UploadFile streams localPath to the vault in fixed chunks of
// MaxPlainChunkSize(SegmentSize) bytes, so every chunk fits one segment
// even when it does not compress, and pushes its meta description to
// remotePath (§4.8 "UploadFile").
func (e *Engine) UploadFile(ctx context.Context, localPath, remotePath string, quiet bool) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("engine: open %s: %w", localPath, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	maxInFlight := maxInFlightBudget / e.cfg.SegmentSize
	if maxInFlight < 1 {
		maxInFlight = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.DefaultBytes(stat.Size(), "uploading "+remotePath)
	}

	buf := make([]byte, wire.MaxPlainChunkSize(e.cfg.SegmentSize))
	var commands []domain.Command
	var start int64

	for {
		n, rerr := io.ReadFull(f, buf)
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return fmt.Errorf("engine: read %s: %w", localPath, rerr)
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			hash := vaultcrypto.ContentHash(chunk)
			id := e.gen.RawOrParityID(hash)

			commands = append(commands, domain.Command{
				Kind:       domain.CommandAddBlock,
				BlockHash:  hash,
				BlockSize:  int64(n),
				BlockStart: start,
			})

			g.Go(func() error {
				return e.uploadChunk(gctx, chunk, hash, id, chunkData)
			})

			start += int64(n)
			if bar != nil {
				_ = bar.Add(n)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return e.pushFileToMeta(ctx, commands, stat.Size(), remotePath, false)
}

// UploadFileChunk uploads a single raw chunk directly (§6 "Engine public
// surface": UploadFileChunk(bytes, hash?)), without pushing any meta.
func (e *Engine) UploadFileChunk(ctx context.Context, data []byte, hash []byte) (domain.IndexID, error) {
	if hash == nil {
		hash = vaultcrypto.ContentHash(data)
	}
	id := e.gen.RawOrParityID(hash)
	if err := e.uploadChunk(ctx, data, hash, id, chunkData); err != nil {
		return nil, err
	}
	return id, nil
}
