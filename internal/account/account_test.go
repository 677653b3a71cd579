package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/vento/internal/textfile"
	"github.com/mesh-intelligence/vento/pkg/types"
)

type fixture struct {
	svc *Service
	b   types.Backend
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	b, err := textfile.Open(types.Config{Backend: types.BackendTextFile, DataDir: t.TempDir()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return fixture{svc: New(b.Users(), b.Products(), zaptest.NewLogger(t)), b: b}
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		confirm  string
		wantErr  error
	}{
		{name: "valid", username: "alice", password: "secret", confirm: "secret"},
		{name: "trims input", username: "  carol ", password: " pass1 ", confirm: "pass1"},
		{name: "missing username", username: "", password: "secret", confirm: "secret", wantErr: ErrMissingFields},
		{name: "missing confirm", username: "dave", password: "secret", confirm: "", wantErr: ErrMissingFields},
		{name: "mismatch", username: "erin", password: "secret", confirm: "secreT", wantErr: ErrPasswordMismatch},
		{name: "short username", username: "ab", password: "secret", confirm: "secret", wantErr: types.ErrInvalidUsername},
		{name: "short password", username: "frank", password: "abc", confirm: "abc", wantErr: types.ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u, err := f.svc.Signup(context.Background(), tt.username, tt.password, tt.confirm)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, u.IsAdmin)
			assert.NotEmpty(t, u.CreatedAt)
		})
	}
}

func TestSignupUsernameTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, "alice", "secret", "secret")
	require.NoError(t, err)
	_, err = f.svc.Signup(ctx, "ALICE", "secret", "secret")
	assert.ErrorIs(t, err, types.ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, "Alice", "secret", "secret")
	require.NoError(t, err)

	u, err := f.svc.Login(ctx, " alice ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Username)

	_, err = f.svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestLoginLegacyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.b.Users().Add(ctx, types.User{Username: "legacy", Password: string(hash), CreatedAt: "2023-01-01 00:00:00"}))

	_, err = f.svc.Login(ctx, "legacy", "oldpass")
	assert.NoError(t, err)
	_, err = f.svc.Login(ctx, "legacy", "newpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestListUsersAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateAdmin(ctx, "", "")
	require.NoError(t, err)
	_, err = f.svc.Signup(ctx, "alice", "secret", "secret")
	require.NoError(t, err)
	require.NoError(t, f.b.Products().Add(ctx, "alice", types.Product{ID: 1, Name: "Bolt", Price: 1, Quantity: 1}))
	require.NoError(t, f.b.Products().Add(ctx, "alice", types.Product{ID: 2, Name: "Nut", Price: 1, Quantity: 1}))

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, DefaultAdminUsername, users[0].Username)
	assert.True(t, users[0].IsAdmin)
	assert.Equal(t, 2, users[1].ProductCount)

	assert.Equal(t, Stats{Total: 2, Regular: 1, Admins: 1}, StatsFor(users))

	all, err := f.svc.AllProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)
}

func TestEditUser(t *testing.T) {
	ctx := context.Background()

	yes, no := true, false

	t.Run("rename moves products", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(ctx, "alice", "secret", "secret")
		require.NoError(t, err)
		require.NoError(t, f.b.Products().Add(ctx, "alice", types.Product{ID: 1, Name: "Bolt", Price: 1, Quantity: 1}))

		u, err := f.svc.EditUser(ctx, "alice", EditRequest{Username: "alicia", IsAdmin: &yes})
		require.NoError(t, err)
		assert.Equal(t, "alicia", u.Username)
		assert.Equal(t, "secret", u.Password)
		assert.True(t, u.IsAdmin)

		n, err := f.b.Products().Count(ctx, "alicia")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = f.svc.Login(ctx, "alicia", "secret")
		assert.NoError(t, err)
	})

	t.Run("new password", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(ctx, "alice", "secret", "secret")
		require.NoError(t, err)
		_, err = f.svc.EditUser(ctx, "alice", EditRequest{Username: "alice", Password: "fresh"})
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, "alice", "fresh")
		assert.NoError(t, err)
	})

	t.Run("name taken", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(ctx, "alice", "secret", "secret")
		require.NoError(t, err)
		_, err = f.svc.Signup(ctx, "bob", "secret", "secret")
		require.NoError(t, err)
		_, err = f.svc.EditUser(ctx, "alice", EditRequest{Username: "Bob"})
		assert.ErrorIs(t, err, types.ErrUsernameTaken)
	})

	t.Run("case change only", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(ctx, "alice", "secret", "secret")
		require.NoError(t, err)
		u, err := f.svc.EditUser(ctx, "alice", EditRequest{Username: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, "Alice", u.Username)
	})

	t.Run("role kept unless given", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateAdmin(ctx, "root", "rootpw")
		require.NoError(t, err)

		u, err := f.svc.EditUser(ctx, "root", EditRequest{Username: "root"})
		require.NoError(t, err)
		assert.True(t, u.IsAdmin)

		u, err = f.svc.EditUser(ctx, "root", EditRequest{Username: "root", IsAdmin: &no})
		require.NoError(t, err)
		assert.False(t, u.IsAdmin)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.EditUser(ctx, "ghost", EditRequest{Username: "ghost"})
		assert.ErrorIs(t, err, types.ErrUserNotFound)
	})

	t.Run("short new password", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(ctx, "alice", "secret", "secret")
		require.NoError(t, err)
		_, err = f.svc.EditUser(ctx, "alice", EditRequest{Username: "alice", Password: "xy"})
		assert.ErrorIs(t, err, types.ErrInvalidPassword)
	})
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.CreateAdmin(ctx, "root", "rootpw")
	require.NoError(t, err)
	_, err = f.svc.Signup(ctx, "alice", "secret", "secret")
	require.NoError(t, err)
	require.NoError(t, f.b.Products().Add(ctx, "alice", types.Product{ID: 1, Name: "Bolt", Price: 1, Quantity: 1}))

	assert.ErrorIs(t, f.svc.DeleteUser(ctx, "root", "ROOT"), ErrSelfDelete)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, "root", ""), ErrMissingFields)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, "root", "ghost"), types.ErrUserNotFound)

	require.NoError(t, f.svc.DeleteUser(ctx, "root", "alice"))
	ok, err := f.b.Users().Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := f.b.Products().Count(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.svc.CreateAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultAdminUsername, u.Username)
	assert.True(t, u.IsAdmin)

	_, err = f.svc.CreateAdmin(ctx, "ventoadmin", "other")
	assert.ErrorIs(t, err, types.ErrUsernameTaken)

	_, err = f.svc.Login(ctx, DefaultAdminUsername, DefaultAdminPassword)
	assert.NoError(t, err)
}
