// Package memdriver is an in-memory transport.Service/ServiceFactory
// pair for tests and local smoke runs, standing in for a real NNTP-style
// backend the same way the teacher's repository layer is swapped behind
// ObjectRepository for S3 versus GCS (object_store_factory.go).
package memdriver

import (
	"context"
	"sync"

	"github.com/zzenonn/nntpvault/internal/domain"
	"github.com/zzenonn/nntpvault/internal/transport"
)

// Store is the shared backing map for a Factory's sessions, keyed by
// the locator's raw bytes.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewStore returns an empty backing store.
func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

type session struct {
	store     *Store
	connected bool
}

// Factory hands out sessions backed by a single shared Store, so every
// session a test acquires observes the same blob set.
type Factory struct {
	store *Store
}

// NewFactory returns a ServiceFactory backed by store.
func NewFactory(store *Store) *Factory {
	return &Factory{store: store}
}

func (f *Factory) Give() (transport.Service, error) {
	return &session{store: f.store}, nil
}

func (s *session) Connected() bool { return s.connected }

func (s *session) Connect(ctx context.Context) error {
	s.connected = true
	return nil
}

func (s *session) Upload(ctx context.Context, c transport.Chunk) (bool, error) {
	key := string(c.Locator)
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, exists := s.store.blobs[key]; exists {
		return false, nil
	}
	stored := make([]byte, len(c.Ciphertext))
	copy(stored, c.Ciphertext)
	s.store.blobs[key] = stored
	return true, nil
}

func (s *session) GetBody(ctx context.Context, locator domain.Locator) ([]byte, error) {
	key := string(locator)
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	body, ok := s.store.blobs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (s *session) Close() error {
	s.connected = false
	return nil
}

// Delete removes the blob at locator, simulating data loss for parity
// repair exercises.
func (s *Store) Delete(locator domain.Locator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, string(locator))
}
