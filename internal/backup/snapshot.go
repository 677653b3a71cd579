// Package backup exports every account and product from a backend into a
// portable snapshot and imports snapshots into any backend. Snapshots move
// data between backends, for example from text files to MongoDB.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// SnapshotVersion is the format version written by Export.
const SnapshotVersion = 1

// ErrUnsupportedVersion is returned when decoding a snapshot from a newer
// release.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Snapshot is the complete content of a backend.
type Snapshot struct {
	Version  int                        `json:"version"`
	TakenAt  time.Time                  `json:"takenAt"`
	Backend  string                     `json:"backend"`
	Users    []types.User               `json:"users"`
	Products map[string][]types.Product `json:"products"`
}

// ProductCount returns the number of products across all users.
func (s Snapshot) ProductCount() int {
	n := 0
	for _, list := range s.Products {
		n += len(list)
	}
	return n
}

// Export reads every account and its products from b.
func Export(ctx context.Context, b types.Backend) (Snapshot, error) {
	users, err := b.Users().List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list users: %w", err)
	}
	snap := Snapshot{
		Version:  SnapshotVersion,
		TakenAt:  time.Now().UTC(),
		Backend:  b.Name(),
		Users:    users,
		Products: make(map[string][]types.Product, len(users)),
	}
	for _, u := range users {
		list, err := b.Products().List(ctx, u.Username)
		if err != nil {
			return Snapshot{}, fmt.Errorf("list products for %s: %w", u.Username, err)
		}
		if len(list) > 0 {
			snap.Products[u.Username] = list
		}
	}
	return snap, nil
}

// ImportStats counts what Import did.
type ImportStats struct {
	UsersAdded      int
	UsersUpdated    int
	UsersSkipped    int
	ProductsAdded   int
	ProductsUpdated int
	ProductsSkipped int
}

// Import writes snap into b. Records that already exist are replaced when
// overwrite is set and left alone otherwise.
func Import(ctx context.Context, b types.Backend, snap Snapshot, overwrite bool, logger *zap.Logger) (ImportStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var st ImportStats
	for _, u := range snap.Users {
		err := b.Users().Add(ctx, u)
		switch {
		case err == nil:
			st.UsersAdded++
		case errors.Is(err, types.ErrUsernameTaken) && overwrite:
			if err := b.Users().Update(ctx, u.Username, u); err != nil {
				return st, fmt.Errorf("update user %s: %w", u.Username, err)
			}
			st.UsersUpdated++
		case errors.Is(err, types.ErrUsernameTaken):
			st.UsersSkipped++
		default:
			return st, fmt.Errorf("add user %s: %w", u.Username, err)
		}
	}
	for owner, list := range snap.Products {
		for _, p := range list {
			err := b.Products().Add(ctx, owner, p)
			switch {
			case err == nil:
				st.ProductsAdded++
			case errors.Is(err, types.ErrDuplicateID) && overwrite:
				if err := b.Products().Update(ctx, owner, p); err != nil {
					return st, fmt.Errorf("update product %s/%d: %w", owner, p.ID, err)
				}
				st.ProductsUpdated++
			case errors.Is(err, types.ErrDuplicateID):
				st.ProductsSkipped++
			default:
				return st, fmt.Errorf("add product %s/%d: %w", owner, p.ID, err)
			}
		}
	}
	logger.Info("snapshot imported",
		zap.String("backend", b.Name()),
		zap.Int("users_added", st.UsersAdded), zap.Int("users_updated", st.UsersUpdated),
		zap.Int("products_added", st.ProductsAdded), zap.Int("products_updated", st.ProductsUpdated))
	return st, nil
}

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version < 1 || snap.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	if snap.Products == nil {
		snap.Products = map[string][]types.Product{}
	}
	return snap, nil
}

// FileName names a snapshot taken at t.
func FileName(t time.Time) string {
	return "vento-backup-" + t.UTC().Format("20060102T150405Z") + ".json"
}
