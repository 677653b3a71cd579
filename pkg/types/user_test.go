package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr error
	}{
		{name: "valid", user: User{Username: "alice", Password: "pass"}},
		{name: "short username", user: User{Username: "al", Password: "pass"}, wantErr: ErrInvalidUsername},
		{name: "padded short username", user: User{Username: "  al  ", Password: "pass"}, wantErr: ErrInvalidUsername},
		{name: "separator in username", user: User{Username: "al|ce", Password: "pass"}, wantErr: ErrInvalidUsername},
		{name: "short password", user: User{Username: "alice", Password: "abc"}, wantErr: ErrInvalidPassword},
		{name: "separator in password", user: User{Username: "alice", Password: "pa|ss"}, wantErr: ErrInvalidPassword},
		{name: "legacy hash accepted", user: User{Username: "alice", Password: "$2y$10$abcdefghijklmnopqrstuv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUsernameKey(t *testing.T) {
	assert.Equal(t, "alice", UsernameKey("  Alice "))
	assert.Equal(t, User{Username: "BOB"}.Key(), User{Username: "bob"}.Key())
}

func TestUserVerifyPassword(t *testing.T) {
	t.Run("plaintext", func(t *testing.T) {
		u := User{Username: "alice", Password: "secret"}
		assert.True(t, u.VerifyPassword("secret"))
		assert.True(t, u.VerifyPassword(" secret "), "input is trimmed")
		assert.False(t, u.VerifyPassword("Secret"))
	})

	t.Run("legacy bcrypt hash", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		require.NoError(t, err)
		u := User{Username: "alice", Password: string(hash)}
		require.True(t, u.HasLegacyHash())
		assert.True(t, u.VerifyPassword("secret"))
		assert.False(t, u.VerifyPassword("wrong"))
	})

	t.Run("empty stored password never matches", func(t *testing.T) {
		assert.False(t, User{Username: "alice"}.VerifyPassword(""))
	})
}

func TestUserLine(t *testing.T) {
	u := User{Username: "alice", Password: "pw12", CreatedAt: "2025-01-02 03:04:05", IsAdmin: true}
	assert.Equal(t, "alice|pw12|2025-01-02 03:04:05|1", u.Line())

	u.IsAdmin = false
	assert.Equal(t, "alice|pw12|2025-01-02 03:04:05|0", u.Line())
}

func TestParseUserLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    User
		wantErr error
	}{
		{
			name: "admin flag 1",
			line: "root|pw12|2025-01-01 00:00:00|1",
			want: User{Username: "root", Password: "pw12", CreatedAt: "2025-01-01 00:00:00", IsAdmin: true},
		},
		{
			name: "admin flag true",
			line: "root|pw12|2025-01-01 00:00:00|TRUE",
			want: User{Username: "root", Password: "pw12", CreatedAt: "2025-01-01 00:00:00", IsAdmin: true},
		},
		{
			name: "legacy three fields",
			line: "bob|pw12|2024-05-05 10:00:00",
			want: User{Username: "bob", Password: "pw12", CreatedAt: "2024-05-05 10:00:00"},
		},
		{name: "blank", line: "", wantErr: ErrEmptyLine},
		{name: "two fields", line: "bob|pw12", wantErr: ErrMalformedLine},
		{name: "five fields", line: "a|b|c|d|e", wantErr: ErrMalformedLine},
		{name: "empty password", line: "bob||2024-05-05 10:00:00|0", wantErr: ErrMalformedLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUserLine(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewUser(t *testing.T) {
	u := NewUser("  carol ", " pw12 ", false)
	assert.Equal(t, "carol", u.Username)
	assert.Equal(t, "pw12", u.Password)
	assert.NotEmpty(t, u.CreatedAt)
	assert.Equal(t, SessionUser{Username: "carol"}, u.Session())
}
