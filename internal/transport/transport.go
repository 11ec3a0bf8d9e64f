// Package transport defines the vault's collaborator boundary with the
// append-only blob store it runs on top of, grounded on the teacher's
// internal/repository/objectstore package: an interface implemented by
// concrete backends plus a factory that hands out sessions
// (object_store_factory.go's ObjectRepositoryFactory generalizes
// directly into ServiceFactory, one session per Give() rather than one
// client per bucket config).
package transport

import (
	"context"

	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/vaulterrors"
)

// Chunk is one blob addressed for upload: a locator, an arbitrary
// (non-addressing) subject line, and its ciphertext (§6).
type Chunk struct {
	Locator    domain.Locator
	Subject    string
	Ciphertext []byte
}

// Service is one session against the transport. Upload reports true if
// the blob was newly accepted at Locator, false if another blob already
// occupies it; both are successful outcomes. GetBody returns nil, nil
// when nothing exists at locator. Any transport-level failure is
// reported as an error wrapped in ErrTransport (§6).
type Service interface {
	Connected() bool
	Connect(ctx context.Context) error
	Upload(ctx context.Context, c Chunk) (bool, error)
	GetBody(ctx context.Context, locator domain.Locator) ([]byte, error)
	Close() error
}

// ServiceFactory manufactures transport sessions on demand (§6
// "ServiceFactory (collaborator)").
type ServiceFactory interface {
	Give() (Service, error)
}

// EnsureConnected connects svc if it reports disconnected, wrapping any
// failure as a transport error (§4.7 "A session that reports
// disconnected must be reconnected before use").
func EnsureConnected(ctx context.Context, svc Service) error {
	if svc.Connected() {
		return nil
	}
	if err := svc.Connect(ctx); err != nil {
		return vaulterrors.Transport(err)
	}
	return nil
}
