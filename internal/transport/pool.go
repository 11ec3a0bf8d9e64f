package transport

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent transport use with two counting semaphores and
// a free-list of sessions, per §4.7 "Connection pool": total ≥ upload ≥
// 1; upload acquires both, download only total, so uploads can never
// starve downloads past (total − upload) concurrent slots (§5).
type Pool struct {
	factory ServiceFactory

	total  *semaphore.Weighted
	upload *semaphore.Weighted

	mu   sync.Mutex
	free []Service
}

// NewPool constructs a pool backed by factory, admitting up to total
// concurrent transport sessions of which at most upload may be uploads.
func NewPool(factory ServiceFactory, total, upload int64) *Pool {
	return &Pool{
		factory: factory,
		total:   semaphore.NewWeighted(total),
		upload:  semaphore.NewWeighted(upload),
	}
}

// lease is a borrowed session plus the release closure that returns it
// to the pool and drops whichever semaphores it was holding.
type lease struct {
	svc     Service
	release func()
}

func (p *Pool) take() (Service, error) {
	p.mu.Lock()
	n := len(p.free)
	if n > 0 {
		svc := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return svc, nil
	}
	p.mu.Unlock()
	return p.factory.Give()
}

func (p *Pool) put(svc Service) {
	p.mu.Lock()
	p.free = append(p.free, svc)
	p.mu.Unlock()
}

// AcquireUpload borrows a connected session for an upload, holding both
// the total and upload semaphores until release is called.
func (p *Pool) AcquireUpload(ctx context.Context) (svc Service, release func(), err error) {
	if err := p.total.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	if err := p.upload.Acquire(ctx, 1); err != nil {
		p.total.Release(1)
		return nil, nil, err
	}
	svc, err = p.take()
	if err != nil {
		p.upload.Release(1)
		p.total.Release(1)
		return nil, nil, err
	}
	if err := EnsureConnected(ctx, svc); err != nil {
		p.upload.Release(1)
		p.total.Release(1)
		return nil, nil, err
	}
	return svc, func() {
		p.put(svc)
		p.upload.Release(1)
		p.total.Release(1)
	}, nil
}

// AcquireDownload borrows a connected session for a download, holding
// only the total semaphore until release is called.
func (p *Pool) AcquireDownload(ctx context.Context) (svc Service, release func(), err error) {
	if err := p.total.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	svc, err = p.take()
	if err != nil {
		p.total.Release(1)
		return nil, nil, err
	}
	if err := EnsureConnected(ctx, svc); err != nil {
		p.total.Release(1)
		return nil, nil, err
	}
	return svc, func() {
		p.put(svc)
		p.total.Release(1)
	}, nil
}

// Close releases every idle session in the free-list.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, svc := range p.free {
		if err := svc.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.free = nil
	return first
}
