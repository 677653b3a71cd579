package textfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// Backend stores accounts in accounts.txt and each user's products in its
// own products_<key>.txt under DataDir. Every write rewrites the affected
// file atomically. A single RWMutex serializes writers within the process.
type Backend struct {
	mu      sync.RWMutex
	dataDir string
	closed  bool
	log     *zap.Logger

	products *productStore
	users    *userStore
}

var _ types.Backend = (*Backend)(nil)

// Open creates DataDir if needed and returns an attached backend.
func Open(cfg types.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	b := &Backend{
		dataDir: dataDir,
		log:     logger.Named("textfile"),
	}
	b.products = &productStore{b: b}
	b.users = &userStore{b: b}
	return b, nil
}

// Name returns types.BackendTextFile.
func (b *Backend) Name() string { return types.BackendTextFile }

// DataDir returns the directory holding the record files.
func (b *Backend) DataDir() string { return b.dataDir }

// Products returns the product store.
func (b *Backend) Products() types.ProductStore { return b.products }

// Users returns the user store.
func (b *Backend) Users() types.UserStore { return b.users }

// Ping checks that the data directory is still accessible.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(ctx); err != nil {
		return err
	}
	info, err := os.Stat(b.dataDir)
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", b.dataDir)
	}
	return nil
}

// Close detaches the backend. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// check returns ErrBackendClosed after Close and the context error once
// ctx is done. The caller must hold b.mu.
func (b *Backend) check(ctx context.Context) error {
	if b.closed {
		return types.ErrBackendClosed
	}
	return ctx.Err()
}

func (b *Backend) accountsPath() string {
	return filepath.Join(b.dataDir, accountsFile)
}

func (b *Backend) productsPath(username string) string {
	return filepath.Join(b.dataDir, productFileName(username))
}
