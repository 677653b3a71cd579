// Shared helpers for vento CLI commands.
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/vento/internal/auth"
	"github.com/mesh-intelligence/vento/internal/storage"
	"github.com/mesh-intelligence/vento/pkg/types"
)

// openBackend attaches the configured backend. The caller must Close it.
func openBackend(ctx context.Context) (types.Backend, error) {
	b, err := storage.Open(ctx, cfg.store, logger)
	if err != nil {
		if errors.Is(err, types.ErrBackendEmpty) || errors.Is(err, types.ErrBackendUnknown) ||
			errors.Is(err, types.ErrMongoURIEmpty) || errors.Is(err, types.ErrPostgresDSNEmpty) {
			return nil, userError{fmt.Errorf("%w (backend %q)", err, cfg.store.Backend)}
		}
		return nil, err
	}
	return b, nil
}

func newAuthManager() (*auth.Manager, error) {
	am, err := auth.NewManager(auth.Options{
		Secret: cfg.jwtSecret,
		TTL:    cfg.sessionTTL,
		Secure: cfg.cookieSecure,
	})
	if err != nil {
		return nil, userError{err}
	}
	return am, nil
}
