// Package engine is the vault's orchestration layer: it wires the
// identifier generator, segment/parity codecs, local catalog, connection
// pool, and dedup contexts together into the public operations a caller
// actually drives (§4.8-§4.11, §6 "Engine public surface"). Grounded on
// the teacher's internal/service package — FileService composes a
// Placer, a MetadataRepository, and the erasure codec the same way this
// Engine composes a transport.Pool, a catalog.Catalog, and the parity
// codec.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/nntpvault/internal/blobcache"
	"github.com/zzenonn/nntpvault/internal/catalog"
	"github.com/zzenonn/nntpvault/internal/config"
	"github.com/zzenonn/nntpvault/internal/dedup"
	"github.com/zzenonn/nntpvault/internal/identifier"
	"github.com/zzenonn/nntpvault/internal/transport"
	"github.com/zzenonn/nntpvault/internal/vaultcrypto"
)

// Engine is the vault's single entry point. One Engine serves one vault
// (one (storageCode, password) pair) for the lifetime of the process.
type Engine struct {
	cfg *config.Config
	gen *identifier.Generator
	cat *catalog.Catalog
	pool *transport.Pool
	cache *blobcache.Cache

	uploadDedup   *dedup.Context[struct{}]
	downloadDedup *dedup.Context[[]byte]

	// metaSem serializes pushFileToMeta and FlushMeta (§5).
	metaSem sync.Mutex
	// flushParitySem serializes flushParity and FlushAssurances (§5).
	flushParitySem sync.Mutex
}

// New opens (or creates) the vault identified by cfg's credentials,
// deriving its master key, opening its catalog under
// cfg.CatalogRoot/<PublicHash>, and constructing a connection pool
// backed by factory.
func New(cfg *config.Config, factory transport.ServiceFactory) (*Engine, error) {
	masterKey, err := vaultcrypto.DeriveMasterKey(cfg.StorageCode, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("engine: derive master key: %w", err)
	}
	gen := identifier.New(masterKey)

	vaultDir := filepath.Join(cfg.CatalogRoot, gen.PublicHash())
	if err := os.MkdirAll(vaultDir, 0o700); err != nil {
		return nil, fmt.Errorf("engine: create vault directory: %w", err)
	}

	cat, err := catalog.Open(filepath.Join(vaultDir, "catalog.db"))
	if err != nil {
		return nil, fmt.Errorf("engine: open catalog: %w", err)
	}

	log.WithField("vault", gen.PublicHash()).Debug("engine: opened vault")

	return &Engine{
		cfg:           cfg,
		gen:           gen,
		cat:           cat,
		pool:          transport.NewPool(factory, cfg.TotalConnections, cfg.UploadConnections),
		cache:         blobcache.New(100),
		uploadDedup:   dedup.New[struct{}](),
		downloadDedup: dedup.New[[]byte](),
	}, nil
}

// Close releases the catalog and any idle transport sessions.
func (e *Engine) Close() error {
	poolErr := e.pool.Close()
	catErr := e.cat.Close()
	if catErr != nil {
		return catErr
	}
	return poolErr
}

// Generator returns the vault's identifier generator.
func (e *Engine) Generator() *identifier.Generator { return e.gen }

// PublicHash returns the vault's deterministic fingerprint.
func (e *Engine) PublicHash() string { return e.gen.PublicHash() }
