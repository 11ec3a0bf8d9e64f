package engine

import (
	"context"

	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/wire"
)

// Load enumerates the remote assurance log into the local catalog
// (§4.9 "Load" / "_fetchAssurances").
func (e *Engine) Load(ctx context.Context) error {
	done, err := e.cat.GetAllAssurancesFetched()
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	last, err := e.cat.LastFetchedAssuranceID()
	if err != nil {
		return err
	}
	nextSlot := uint32(last + 1)

	for i := nextSlot; ; i++ {
		id := e.gen.AssuranceID(i)

		var seg *domain.AssuranceSegment
		for r := 0; r < e.cfg.AssuranceReplicationSearchCount; r++ {
			raw, err := e.downloadChunkBasic(ctx, id, uint32(r))
			if err != nil {
				return err
			}
			if raw == nil {
				continue
			}
			decoded, derr := wire.DecodeAssuranceSegment(raw)
			if derr != nil {
				continue
			}
			seg = &decoded
			break
		}

		if seg == nil {
			break
		}
		if err := e.cat.AddFetchedAssurances([]domain.AssuranceSegment{*seg}, i); err != nil {
			return err
		}
	}

	return e.cat.SetAllAssurancesFetched()
}
