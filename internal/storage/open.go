// Package storage selects and instruments record-store backends.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/internal/mongo"
	"github.com/mesh-intelligence/vento/internal/sqlstore"
	"github.com/mesh-intelligence/vento/internal/textfile"
	"github.com/mesh-intelligence/vento/pkg/types"
)

// Open validates cfg and attaches the backend it names.
func Open(ctx context.Context, cfg types.Config, logger *zap.Logger) (types.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		b   types.Backend
		err error
	)
	switch cfg.Backend {
	case types.BackendTextFile:
		b, err = textfile.Open(cfg, logger)
	case types.BackendMongo:
		b, err = mongo.Open(ctx, cfg, logger)
	case types.BackendSQLite, types.BackendPostgres:
		b, err = sqlstore.Open(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	logger.Info("storage backend attached", zap.String("backend", b.Name()))
	return b, nil
}
