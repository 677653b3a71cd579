package types

import "context"

// ProductStore provides per-user CRUD over products. Every operation is
// scoped to one username; the same product ID may exist under different
// users.
type ProductStore interface {
	// Exists reports whether the user owns a product with the given ID.
	Exists(ctx context.Context, username string, id int64) (bool, error)

	// Get returns the product or ErrNotFound.
	Get(ctx context.Context, username string, id int64) (Product, error)

	// List returns all of the user's products sorted by ID ascending.
	List(ctx context.Context, username string) ([]Product, error)

	// Add stores a new product. Returns ErrDuplicateID if the user already
	// has a product with that ID.
	Add(ctx context.Context, username string, p Product) error

	// Update replaces the product with the same ID. Returns ErrNotFound if
	// there is none.
	Update(ctx context.Context, username string, p Product) error

	// Delete removes the product. Returns ErrNotFound if there is none.
	Delete(ctx context.Context, username string, id int64) error

	// AdjustQuantity adds delta to the stored quantity and returns the
	// updated product. Returns ErrNotFound or ErrInsufficientStock; on error
	// the stored product is unchanged.
	AdjustQuantity(ctx context.Context, username string, id int64, delta int64) (Product, error)

	// Count returns how many products the user owns.
	Count(ctx context.Context, username string) (int, error)

	// DeleteAllForUser removes every product the user owns. Succeeds when
	// there is nothing to delete.
	DeleteAllForUser(ctx context.Context, username string) error

	// RenameOwner moves all of from's products to to.
	RenameOwner(ctx context.Context, from, to string) error
}

// UserStore manages accounts. Usernames are matched case-insensitively.
type UserStore interface {
	// Exists reports whether an account with that username exists.
	Exists(ctx context.Context, username string) (bool, error)

	// Get returns the account or ErrUserNotFound.
	Get(ctx context.Context, username string) (User, error)

	// List returns all accounts in creation order.
	List(ctx context.Context) ([]User, error)

	// Add creates an account. Returns ErrUsernameTaken on collision.
	Add(ctx context.Context, u User) error

	// Update replaces the account currently named oldUsername with u.
	// Returns ErrUserNotFound, or ErrUsernameTaken when u renames the
	// account onto another existing username.
	Update(ctx context.Context, oldUsername string, u User) error

	// Delete removes the account. Returns ErrUserNotFound if absent. It does
	// not touch the user's products.
	Delete(ctx context.Context, username string) error
}

// Backend is an attached storage implementation exposing both stores.
type Backend interface {
	// Name returns the backend identifier (one of the Backend constants).
	Name() string

	Products() ProductStore
	Users() UserStore

	// Ping verifies that the underlying storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources. Idempotent. Operations after Close return
	// ErrBackendClosed.
	Close() error
}
