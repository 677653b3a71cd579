// Package sqlstore implements the SQL backends for VENTO: SQLite through
// modernc.org/sqlite and PostgreSQL through pgx. Both share one
// database/sql implementation; only the DDL and placeholders differ.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// Backend implements types.Backend on a database/sql handle.
type Backend struct {
	mu      sync.RWMutex
	closed  bool
	name    string
	dialect dialect
	db      *sql.DB
	log     *zap.Logger

	products *productStore
	users    *userStore
}

var _ types.Backend = (*Backend)(nil)

// Open connects to the database selected by cfg.Backend (sqlite or
// postgres) and applies the schema.
func Open(ctx context.Context, cfg types.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		d   dialect
		dsn string
	)
	switch cfg.Backend {
	case types.BackendSQLite:
		path, err := sqlitePath(cfg)
		if err != nil {
			return nil, err
		}
		d, dsn = dialectSQLite, sqliteDSN(path)
	case types.BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, types.ErrPostgresDSNEmpty
		}
		d, dsn = dialectPostgres, cfg.PostgresDSN
	default:
		return nil, fmt.Errorf("%w: %q is not a SQL backend", types.ErrBackendUnknown, cfg.Backend)
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Backend, err)
	}
	if d == dialectSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	for _, ddl := range schemaDDL(d) {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	b := &Backend{
		name:    cfg.Backend,
		dialect: d,
		db:      db,
		log:     logger.Named(cfg.Backend),
	}
	b.products = &productStore{b: b}
	b.users = &userStore{b: b}
	b.log.Debug("backend attached")
	return b, nil
}

func sqlitePath(cfg types.Config) (string, error) {
	path := cfg.SQLitePath
	if path == "" {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "data"
		}
		path = filepath.Join(dataDir, types.DefaultSQLiteFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create database dir: %w", err)
	}
	return path, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Name returns the backend identifier, sqlite or postgres.
func (b *Backend) Name() string { return b.name }

func (b *Backend) Products() types.ProductStore { return b.products }

func (b *Backend) Users() types.UserStore { return b.users }

// Ping checks the database connection.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return types.ErrBackendClosed
	}
	return b.db.PingContext(ctx)
}

// Close closes the database handle. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// acquire read-locks the backend for one operation. The returned func
// releases it.
func (b *Backend) acquire() (func(), error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, types.ErrBackendClosed
	}
	return b.mu.RUnlock, nil
}

func (b *Backend) q(query string) string {
	return b.dialect.rebind(query)
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (b *Backend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
