package types

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CreatedAtLayout is the timestamp format stored in CreatedAt.
const CreatedAtLayout = "2006-01-02 15:04:05"

// Credential length limits.
const (
	MinUsernameLength = 3
	MinPasswordLength = 4
)

// bcryptPrefixes mark passwords written by older releases that hashed them.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// User is an account. Passwords are stored as entered; accounts created
// before plaintext storage may still carry a bcrypt hash.
type User struct {
	Username  string `json:"username"`
	Password  string `json:"password,omitempty"`
	CreatedAt string `json:"createdAt"`
	IsAdmin   bool   `json:"isAdmin"`
}

// SessionUser is the identity carried by a login session.
type SessionUser struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// NewUser builds a user stamped with the current time.
func NewUser(username, password string, isAdmin bool) User {
	return User{
		Username:  strings.TrimSpace(username),
		Password:  strings.TrimSpace(password),
		CreatedAt: time.Now().Format(CreatedAtLayout),
		IsAdmin:   isAdmin,
	}
}

// UsernameKey returns the case-insensitive identity of a username.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Key returns the case-insensitive identity of the user.
func (u User) Key() string {
	return UsernameKey(u.Username)
}

// Session returns the session identity for u.
func (u User) Session() SessionUser {
	return SessionUser{Username: u.Username, IsAdmin: u.IsAdmin}
}

// Validate checks the username and password. Legacy hashed passwords are
// accepted as-is; plaintext passwords must meet the minimum length.
func (u User) Validate() error {
	name := strings.TrimSpace(u.Username)
	if len(name) < MinUsernameLength || !serializable(name) {
		return ErrInvalidUsername
	}
	if u.HasLegacyHash() {
		return nil
	}
	pw := strings.TrimSpace(u.Password)
	if len(pw) < MinPasswordLength || !serializable(pw) {
		return ErrInvalidPassword
	}
	return nil
}

// HasLegacyHash reports whether the stored password is a bcrypt hash.
func (u User) HasLegacyHash() bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(u.Password, p) {
			return true
		}
	}
	return false
}

// VerifyPassword compares password against the stored credential.
func (u User) VerifyPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	password = strings.TrimSpace(password)
	if u.HasLegacyHash() {
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
	}
	return u.Password == password
}

// Line renders the user as username|password|createdAt|isAdmin.
func (u User) Line() string {
	admin := "0"
	if u.IsAdmin {
		admin = "1"
	}
	return strings.Join([]string{u.Username, u.Password, u.CreatedAt, admin}, FieldSeparator)
}

// ParseUserLine parses a line produced by User.Line. Three-field lines
// from before the admin flag existed parse as regular users.
func ParseUserLine(line string) (User, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return User{}, ErrEmptyLine
	}
	parts := strings.Split(line, FieldSeparator)
	if len(parts) < 3 || len(parts) > 4 {
		return User{}, fmt.Errorf("%w: want 3 or 4 fields, got %d", ErrMalformedLine, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	u := User{Username: parts[0], Password: parts[1], CreatedAt: parts[2]}
	if len(parts) == 4 {
		flag := strings.ToLower(parts[3])
		u.IsAdmin = flag == "1" || flag == "true"
	}
	if strings.TrimSpace(u.Username) == "" {
		return User{}, fmt.Errorf("%w: empty username", ErrMalformedLine)
	}
	if u.Password == "" {
		return User{}, fmt.Errorf("%w: empty password", ErrMalformedLine)
	}
	return u, nil
}
