// Package storetest is a conformance suite for types.Backend
// implementations. Each backend package runs it against a fresh instance.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// Opener returns an empty backend. Implementations register cleanup with t.
type Opener func(t *testing.T) types.Backend

// Run exercises every ProductStore and UserStore operation against
// backends produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("Products", func(t *testing.T) { runProducts(t, open) })
	t.Run("Users", func(t *testing.T) { runUsers(t, open) })
	t.Run("Lifecycle", func(t *testing.T) { runLifecycle(t, open) })
}

func widget(id int64, qty int64) types.Product {
	return types.Product{ID: id, Name: "Widget", Price: 2.5, Quantity: qty}
}

func runProducts(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("add then get", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", types.Product{ID: 7, Name: "  Bolt ", Price: 0.25, Quantity: 100}))

		got, err := ps.Get(ctx, "alice", 7)
		require.NoError(t, err)
		assert.Equal(t, types.Product{ID: 7, Name: "Bolt", Price: 0.25, Quantity: 100}, got)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 1)))
		err := ps.Add(ctx, "alice", widget(1, 2))
		assert.ErrorIs(t, err, types.ErrDuplicateID)

		got, err := ps.Get(ctx, "alice", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Quantity)
	})

	t.Run("same id under different users", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 1)))
		require.NoError(t, ps.Add(ctx, "bob", widget(1, 9)))

		a, err := ps.Get(ctx, "alice", 1)
		require.NoError(t, err)
		b, err := ps.Get(ctx, "bob", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), a.Quantity)
		assert.Equal(t, int64(9), b.Quantity)
	})

	t.Run("owner match is case-insensitive", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "Alice", widget(3, 1)))
		ok, err := ps.Exists(ctx, "ALICE", 3)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("invalid product rejected", func(t *testing.T) {
		ps := open(t).Products()
		err := ps.Add(ctx, "alice", types.Product{ID: 1, Name: "", Price: 1})
		assert.ErrorIs(t, err, types.ErrInvalidName)
		err = ps.Add(ctx, "alice", types.Product{ID: -4, Name: "x", Price: 1})
		assert.ErrorIs(t, err, types.ErrInvalidID)

		n, err := ps.Count(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("list sorted by id", func(t *testing.T) {
		ps := open(t).Products()
		for _, id := range []int64{5, 2, 9, 0} {
			require.NoError(t, ps.Add(ctx, "alice", widget(id, id)))
		}
		list, err := ps.List(ctx, "alice")
		require.NoError(t, err)
		ids := make([]int64, len(list))
		for i, p := range list {
			ids[i] = p.ID
		}
		assert.Equal(t, []int64{0, 2, 5, 9}, ids)
	})

	t.Run("list for unknown user is empty", func(t *testing.T) {
		ps := open(t).Products()
		list, err := ps.List(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("get and exists on missing", func(t *testing.T) {
		ps := open(t).Products()
		_, err := ps.Get(ctx, "alice", 42)
		assert.ErrorIs(t, err, types.ErrNotFound)
		ok, err := ps.Exists(ctx, "alice", 42)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("update replaces fields", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 1)))
		upd := types.Product{ID: 1, Name: "Gadget", Price: 10, Quantity: 4}
		require.NoError(t, ps.Update(ctx, "alice", upd))

		got, err := ps.Get(ctx, "alice", 1)
		require.NoError(t, err)
		assert.Equal(t, upd, got)

		// Unchanged values still succeed.
		require.NoError(t, ps.Update(ctx, "alice", upd))
	})

	t.Run("update missing", func(t *testing.T) {
		ps := open(t).Products()
		err := ps.Update(ctx, "alice", widget(1, 1))
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 1)))
		require.NoError(t, ps.Add(ctx, "alice", widget(2, 1)))
		require.NoError(t, ps.Delete(ctx, "alice", 1))

		assert.ErrorIs(t, ps.Delete(ctx, "alice", 1), types.ErrNotFound)
		n, err := ps.Count(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("adjust quantity", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 5)))

		p, err := ps.AdjustQuantity(ctx, "alice", 1, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(8), p.Quantity)

		p, err = ps.AdjustQuantity(ctx, "alice", 1, -8)
		require.NoError(t, err)
		assert.Equal(t, int64(0), p.Quantity)

		_, err = ps.AdjustQuantity(ctx, "alice", 1, -1)
		assert.ErrorIs(t, err, types.ErrInsufficientStock)

		got, err := ps.Get(ctx, "alice", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Quantity)

		_, err = ps.AdjustQuantity(ctx, "alice", 99, 1)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("concurrent adjustments", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 0)))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := ps.AdjustQuantity(ctx, "alice", 1, 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := ps.Get(ctx, "alice", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(20), got.Quantity)
	})

	t.Run("delete all for user", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 1)))
		require.NoError(t, ps.Add(ctx, "alice", widget(2, 1)))
		require.NoError(t, ps.Add(ctx, "bob", widget(1, 1)))

		require.NoError(t, ps.DeleteAllForUser(ctx, "alice"))
		require.NoError(t, ps.DeleteAllForUser(ctx, "alice"))

		n, err := ps.Count(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = ps.Count(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("rename owner", func(t *testing.T) {
		ps := open(t).Products()
		require.NoError(t, ps.Add(ctx, "alice", widget(1, 1)))
		require.NoError(t, ps.Add(ctx, "alice", widget(2, 2)))

		require.NoError(t, ps.RenameOwner(ctx, "alice", "alicia"))

		n, err := ps.Count(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, n)
		list, err := ps.List(ctx, "alicia")
		require.NoError(t, err)
		assert.Len(t, list, 2)

		// Nothing to move.
		require.NoError(t, ps.RenameOwner(ctx, "ghost", "phantom"))
		// Case-only rename keeps the records reachable.
		require.NoError(t, ps.RenameOwner(ctx, "alicia", "Alicia"))
		n, err = ps.Count(ctx, "alicia")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func runUsers(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("add get list", func(t *testing.T) {
		us := open(t).Users()
		alice := types.User{Username: "alice", Password: "secret", CreatedAt: "2025-01-02 03:04:05"}
		bob := types.User{Username: "Bob", Password: "hunter2", CreatedAt: "2025-01-03 03:04:05", IsAdmin: true}
		require.NoError(t, us.Add(ctx, alice))
		require.NoError(t, us.Add(ctx, bob))

		got, err := us.Get(ctx, "BOB")
		require.NoError(t, err)
		assert.Equal(t, bob, got)

		list, err := us.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "alice", list[0].Username)
		assert.Equal(t, "Bob", list[1].Username)
	})

	t.Run("username taken ignores case", func(t *testing.T) {
		us := open(t).Users()
		require.NoError(t, us.Add(ctx, types.NewUser("alice", "secret", false)))
		err := us.Add(ctx, types.NewUser("ALICE", "other", false))
		assert.ErrorIs(t, err, types.ErrUsernameTaken)
	})

	t.Run("invalid user rejected", func(t *testing.T) {
		us := open(t).Users()
		assert.ErrorIs(t, us.Add(ctx, types.NewUser("ab", "secret", false)), types.ErrInvalidUsername)
		assert.ErrorIs(t, us.Add(ctx, types.NewUser("abc", "123", false)), types.ErrInvalidPassword)
	})

	t.Run("missing user", func(t *testing.T) {
		us := open(t).Users()
		_, err := us.Get(ctx, "ghost")
		assert.ErrorIs(t, err, types.ErrUserNotFound)
		ok, err := us.Exists(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.ErrorIs(t, us.Delete(ctx, "ghost"), types.ErrUserNotFound)
		assert.ErrorIs(t, us.Update(ctx, "ghost", types.NewUser("ghost", "pass", false)), types.ErrUserNotFound)
	})

	t.Run("update renames and keeps order", func(t *testing.T) {
		us := open(t).Users()
		require.NoError(t, us.Add(ctx, types.NewUser("alice", "secret", false)))
		require.NoError(t, us.Add(ctx, types.NewUser("bob", "secret", false)))

		alice, err := us.Get(ctx, "alice")
		require.NoError(t, err)
		alice.Username = "alicia"
		alice.IsAdmin = true
		require.NoError(t, us.Update(ctx, "alice", alice))

		ok, err := us.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, ok)
		got, err := us.Get(ctx, "alicia")
		require.NoError(t, err)
		assert.True(t, got.IsAdmin)
		assert.Equal(t, alice.CreatedAt, got.CreatedAt)

		list, err := us.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "alicia", list[0].Username)
	})

	t.Run("update onto existing name", func(t *testing.T) {
		us := open(t).Users()
		require.NoError(t, us.Add(ctx, types.NewUser("alice", "secret", false)))
		require.NoError(t, us.Add(ctx, types.NewUser("bob", "secret", false)))
		err := us.Update(ctx, "alice", types.NewUser("BOB", "secret", false))
		assert.ErrorIs(t, err, types.ErrUsernameTaken)

		// Case change of the same account is allowed.
		require.NoError(t, us.Update(ctx, "alice", types.NewUser("Alice", "secret", false)))
		got, err := us.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Username)
	})

	t.Run("delete", func(t *testing.T) {
		us := open(t).Users()
		require.NoError(t, us.Add(ctx, types.NewUser("alice", "secret", false)))
		require.NoError(t, us.Delete(ctx, "ALICE"))
		ok, err := us.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func runLifecycle(t *testing.T, open Opener) {
	ctx := context.Background()

	b := open(t)
	require.NoError(t, b.Ping(ctx))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Products().List(ctx, "alice")
	assert.ErrorIs(t, err, types.ErrBackendClosed)
	_, err = b.Users().List(ctx)
	assert.ErrorIs(t, err, types.ErrBackendClosed)
	assert.ErrorIs(t, b.Ping(ctx), types.ErrBackendClosed)
}
